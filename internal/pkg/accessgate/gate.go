// Package accessgate consumes the project access service: a pass/fail
// read/write gate evaluated before every mutation of the structure tree.
package accessgate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"structure-service/internal/pkg/xerrors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheTTL = 30 * time.Second

type Gate struct {
	baseURL string
	http    *http.Client
	rdb     *redis.Client
	logger  *zap.Logger
}

func New(baseURL string, rdb *redis.Client, logger *zap.Logger) *Gate {
	return &Gate{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		rdb:     rdb,
		logger:  logger,
	}
}

func (g *Gate) CanRead(ctx context.Context, userID, projectID string) error {
	return g.check(ctx, userID, projectID, "read")
}

func (g *Gate) CanWrite(ctx context.Context, userID, projectID string) error {
	return g.check(ctx, userID, projectID, "write")
}

// check is fail-closed: any transport or decode failure denies.
func (g *Gate) check(ctx context.Context, userID, projectID, action string) error {
	if userID == "" {
		return xerrors.ErrUnauthorized
	}

	cacheKey := fmt.Sprintf("gate:%s:%s:%s", userID, projectID, action)
	if cached, err := g.rdb.Get(ctx, cacheKey).Result(); err == nil {
		if cached == "1" {
			return nil
		}
		return xerrors.ErrForbidden
	}

	url := fmt.Sprintf("%s/api/v1/access/check?user_id=%s&project_id=%s&action=%s",
		g.baseURL, userID, projectID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return xerrors.ErrForbidden
	}

	resp, err := g.http.Do(req)
	if err != nil {
		g.logger.Warn("access gate unreachable",
			zap.String("user_id", userID),
			zap.String("project_id", projectID),
			zap.Error(err))
		return xerrors.ErrForbidden
	}
	defer resp.Body.Close()

	var body struct {
		Allowed bool `json:"allowed"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&body) != nil {
		return xerrors.ErrForbidden
	}

	verdict := "0"
	if body.Allowed {
		verdict = "1"
	}
	_ = g.rdb.Set(ctx, cacheKey, verdict, cacheTTL).Err()

	if !body.Allowed {
		return xerrors.ErrForbidden
	}
	return nil
}
