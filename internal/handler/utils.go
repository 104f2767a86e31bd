package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/middleware"
	"structure-service/internal/pkg/response"
)

// actor pulls the authenticated user from the request context; handlers
// never run without the auth middleware in front of them.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		response.Error(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptionalBody decodes a request body that is allowed to be absent.
// An empty body leaves dst untouched; Content-Length is not consulted, so
// chunked requests decode like any other.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	response.Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

func parseDirection(raw string) (domain.MoveDirection, bool) {
	switch domain.MoveDirection(raw) {
	case domain.MoveUp:
		return domain.MoveUp, true
	case domain.MoveDown:
		return domain.MoveDown, true
	}
	return "", false
}

func boolQuery(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "true" || v == "1"
}

type moveRequest struct {
	Direction string `json:"direction"`
}

type snapshotRequest struct {
	Changelog string `json:"changelog,omitempty"`
}

type rollbackRequest struct {
	VersionNumber int    `json:"version_number"`
	Changelog     string `json:"changelog,omitempty"`
}

type publishRequest struct {
	VersionNumber int `json:"version_number"`
}
