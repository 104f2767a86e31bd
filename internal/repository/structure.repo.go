package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/xerrors"
	"structure-service/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so every query method
// works inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type StructureRepo struct {
	pool   *pgxpool.Pool // nil when transaction-bound
	db     DBTX
	logger *zap.Logger
}

func NewStructureRepo(pool *pgxpool.Pool, logger *zap.Logger) *StructureRepo {
	return &StructureRepo{
		pool:   pool,
		db:     pool,
		logger: logger,
	}
}

var _ service.Store = (*StructureRepo)(nil)

// WithTx runs fn against a transaction-bound repo. Reentrant calls reuse the
// open transaction.
func (r *StructureRepo) WithTx(ctx context.Context, fn func(tx service.Store) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	txRepo := &StructureRepo{db: tx, logger: r.logger}
	if err := fn(txRepo); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ============================================================================
// MODULES
// ============================================================================

const moduleColumns = `
	id, project_id, parent_module_id, name, description, is_root, sort_order,
	published_version_id, created_by, last_modified_by, deleted_at, deleted_by,
	created_at, updated_at`

func (r *StructureRepo) GetModule(ctx context.Context, id string) (*domain.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`

	m := &domain.Module{}
	err := scanModule(r.db.QueryRow(ctx, query, id), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get module %s: %w", id, err)
	}
	return m, nil
}

func (r *StructureRepo) InsertModule(ctx context.Context, m *domain.Module) error {
	query := `
		INSERT INTO modules (
			id, project_id, parent_module_id, name, description, is_root,
			sort_order, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.ProjectID, m.ParentModuleID, m.Name, nullIfEmpty(m.Description),
		m.IsRoot, m.SortOrder, m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert module %s: %w", m.ID, err)
	}
	return nil
}

func (r *StructureRepo) UpdateModule(ctx context.Context, m *domain.Module) error {
	query := `
		UPDATE modules
		SET parent_module_id = $1,
		    name = $2,
		    description = $3,
		    is_root = $4,
		    sort_order = $5,
		    last_modified_by = $6,
		    updated_at = $7
		WHERE id = $8
		RETURNING id
	`
	var returned string
	err := r.db.QueryRow(ctx, query,
		m.ParentModuleID, m.Name, nullIfEmpty(m.Description), m.IsRoot,
		m.SortOrder, m.LastModifiedBy, m.UpdatedAt, m.ID,
	).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrModuleNotFound
	}
	if err != nil {
		return fmt.Errorf("update module %s: %w", m.ID, err)
	}
	return nil
}

func (r *StructureRepo) ListActiveChildModules(ctx context.Context, scope domain.Scope) ([]*domain.Module, error) {
	query := `
		SELECT ` + moduleColumns + `
		FROM modules
		WHERE project_id = $1
		  AND parent_module_id IS NOT DISTINCT FROM $2
		  AND deleted_at IS NULL
		ORDER BY sort_order ASC
	`
	return r.queryModules(ctx, query, scope.ProjectID, scope.ParentModuleID)
}

func (r *StructureRepo) ListChildModules(ctx context.Context, parentModuleID string) ([]*domain.Module, error) {
	query := `
		SELECT ` + moduleColumns + `
		FROM modules
		WHERE parent_module_id = $1
		ORDER BY sort_order ASC
	`
	return r.queryModules(ctx, query, parentModuleID)
}

func (r *StructureRepo) ListActiveModulesByProject(ctx context.Context, projectID string) ([]*domain.Module, error) {
	query := `
		SELECT ` + moduleColumns + `
		FROM modules
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC, created_at ASC
	`
	return r.queryModules(ctx, query, projectID)
}

func (r *StructureRepo) queryModules(ctx context.Context, query string, args ...any) ([]*domain.Module, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var modules []*domain.Module
	for rows.Next() {
		m := &domain.Module{}
		if err := scanModule(rows, m); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return modules, nil
}

// ============================================================================
// FEATURES
// ============================================================================

const featureColumns = `
	id, module_id, name, description, priority, status, sort_order,
	published_version_id, created_by, last_modified_by, deleted_at, deleted_by,
	created_at, updated_at`

func (r *StructureRepo) GetFeature(ctx context.Context, id string) (*domain.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE id = $1`

	f := &domain.Feature{}
	err := scanFeature(r.db.QueryRow(ctx, query, id), f)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrFeatureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feature %s: %w", id, err)
	}
	return f, nil
}

func (r *StructureRepo) InsertFeature(ctx context.Context, f *domain.Feature) error {
	query := `
		INSERT INTO features (
			id, module_id, name, description, priority, status,
			sort_order, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		f.ID, f.ModuleID, f.Name, nullIfEmpty(f.Description), f.Priority,
		f.Status, f.SortOrder, f.CreatedBy, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feature %s: %w", f.ID, err)
	}
	return nil
}

func (r *StructureRepo) UpdateFeature(ctx context.Context, f *domain.Feature) error {
	query := `
		UPDATE features
		SET name = $1,
		    description = $2,
		    priority = $3,
		    status = $4,
		    sort_order = $5,
		    last_modified_by = $6,
		    updated_at = $7
		WHERE id = $8
		RETURNING id
	`
	var returned string
	err := r.db.QueryRow(ctx, query,
		f.Name, nullIfEmpty(f.Description), f.Priority, f.Status,
		f.SortOrder, f.LastModifiedBy, f.UpdatedAt, f.ID,
	).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrFeatureNotFound
	}
	if err != nil {
		return fmt.Errorf("update feature %s: %w", f.ID, err)
	}
	return nil
}

func (r *StructureRepo) ListActiveFeatures(ctx context.Context, moduleID string) ([]*domain.Feature, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features
		WHERE module_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC
	`
	return r.queryFeatures(ctx, query, moduleID)
}

func (r *StructureRepo) ListFeatures(ctx context.Context, moduleID string) ([]*domain.Feature, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features
		WHERE module_id = $1
		ORDER BY sort_order ASC
	`
	return r.queryFeatures(ctx, query, moduleID)
}

func (r *StructureRepo) ListActiveFeaturesByProject(ctx context.Context, projectID string) ([]*domain.Feature, error) {
	query := `
		SELECT f.id, f.module_id, f.name, f.description, f.priority, f.status,
		       f.sort_order, f.published_version_id, f.created_by,
		       f.last_modified_by, f.deleted_at, f.deleted_by, f.created_at,
		       f.updated_at
		FROM features f
		JOIN modules m ON m.id = f.module_id
		WHERE m.project_id = $1 AND f.deleted_at IS NULL
		ORDER BY f.sort_order ASC, f.created_at ASC
	`
	return r.queryFeatures(ctx, query, projectID)
}

func (r *StructureRepo) queryFeatures(ctx context.Context, query string, args ...any) ([]*domain.Feature, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var features []*domain.Feature
	for rows.Next() {
		f := &domain.Feature{}
		if err := scanFeature(rows, f); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return features, nil
}

// ============================================================================
// ORDERING
// ============================================================================

func (r *StructureRepo) SetSortOrder(ctx context.Context, kind domain.NodeKind, id string, order int) error {
	table := "modules"
	if kind == domain.KindFeature {
		table = "features"
	}
	query := fmt.Sprintf(`UPDATE %s SET sort_order = $1, updated_at = now() WHERE id = $2`, table)

	tag, err := r.db.Exec(ctx, query, order, id)
	if err != nil {
		return fmt.Errorf("set sort order %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *StructureRepo) ShiftOrdersAfter(ctx context.Context, scope domain.Scope, removedOrder int) error {
	moduleQuery := `
		UPDATE modules
		SET sort_order = sort_order - 1, updated_at = now()
		WHERE project_id = $1
		  AND parent_module_id IS NOT DISTINCT FROM $2
		  AND deleted_at IS NULL
		  AND sort_order > $3
	`
	if _, err := r.db.Exec(ctx, moduleQuery, scope.ProjectID, scope.ParentModuleID, removedOrder); err != nil {
		return fmt.Errorf("shift module orders: %w", err)
	}

	if scope.ParentModuleID == nil {
		return nil
	}
	featureQuery := `
		UPDATE features
		SET sort_order = sort_order - 1, updated_at = now()
		WHERE module_id = $1
		  AND deleted_at IS NULL
		  AND sort_order > $2
	`
	if _, err := r.db.Exec(ctx, featureQuery, *scope.ParentModuleID, removedOrder); err != nil {
		return fmt.Errorf("shift feature orders: %w", err)
	}
	return nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func (r *StructureRepo) MarkDeleted(ctx context.Context, kind domain.NodeKind, ids []string, at time.Time, by string) error {
	table := "modules"
	if kind == domain.KindFeature {
		table = "features"
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, deleted_by = $2, updated_at = now()
		WHERE id = ANY($3) AND deleted_at IS NULL
	`, table)

	if _, err := r.db.Exec(ctx, query, at, by, ids); err != nil {
		return fmt.Errorf("mark %s deleted: %w", kind, err)
	}
	r.logger.Info("nodes soft-deleted",
		zap.String("kind", string(kind)),
		zap.Int("count", len(ids)))
	return nil
}

func (r *StructureRepo) ClearDeleted(ctx context.Context, kind domain.NodeKind, ids []string) error {
	table := "modules"
	if kind == domain.KindFeature {
		table = "features"
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NULL, deleted_by = NULL, updated_at = now()
		WHERE id = ANY($1)
	`, table)

	if _, err := r.db.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("restore %s: %w", kind, err)
	}
	return nil
}

// ============================================================================
// SCAN HELPERS
// ============================================================================

func scanModule(row pgx.Row, m *domain.Module) error {
	var description *string
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.ParentModuleID,
		&m.Name,
		&description,
		&m.IsRoot,
		&m.SortOrder,
		&m.PublishedVersionID,
		&m.CreatedBy,
		&m.LastModifiedBy,
		&m.DeletedAt,
		&m.DeletedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if description != nil {
		m.Description = *description
	}
	return nil
}

func scanFeature(row pgx.Row, f *domain.Feature) error {
	var description *string
	err := row.Scan(
		&f.ID,
		&f.ModuleID,
		&f.Name,
		&description,
		&f.Priority,
		&f.Status,
		&f.SortOrder,
		&f.PublishedVersionID,
		&f.CreatedBy,
		&f.LastModifiedBy,
		&f.DeletedAt,
		&f.DeletedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if description != nil {
		f.Description = *description
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
