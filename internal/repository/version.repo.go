package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ============================================================================
// MODULE VERSIONS
// ============================================================================

const moduleVersionColumns = `
	id, module_id, version_number, content_hash, name, description,
	children_pins, feature_pins, changelog, is_rollback, created_by, created_at`

func (r *StructureRepo) GetModuleVersion(ctx context.Context, moduleID string, number int) (*domain.ModuleVersion, error) {
	query := `SELECT ` + moduleVersionColumns + ` FROM module_versions WHERE module_id = $1 AND version_number = $2`
	return r.queryModuleVersion(ctx, query, moduleID, number)
}

func (r *StructureRepo) GetModuleVersionByID(ctx context.Context, versionID string) (*domain.ModuleVersion, error) {
	query := `SELECT ` + moduleVersionColumns + ` FROM module_versions WHERE id = $1`
	return r.queryModuleVersion(ctx, query, versionID)
}

func (r *StructureRepo) GetModuleVersionByHash(ctx context.Context, moduleID, hash string) (*domain.ModuleVersion, error) {
	query := `SELECT ` + moduleVersionColumns + ` FROM module_versions WHERE module_id = $1 AND content_hash = $2`
	return r.queryModuleVersion(ctx, query, moduleID, hash)
}

func (r *StructureRepo) queryModuleVersion(ctx context.Context, query string, args ...any) (*domain.ModuleVersion, error) {
	v := &domain.ModuleVersion{}
	err := scanModuleVersion(r.db.QueryRow(ctx, query, args...), v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get module version: %w", err)
	}
	return v, nil
}

func (r *StructureRepo) NextModuleVersionNumber(ctx context.Context, moduleID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM module_versions WHERE module_id = $1`,
		moduleID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next module version number: %w", err)
	}
	return next, nil
}

func (r *StructureRepo) InsertModuleVersion(ctx context.Context, v *domain.ModuleVersion) error {
	childrenPins, err := json.Marshal(pinsOrEmpty(v.ChildrenPins))
	if err != nil {
		return fmt.Errorf("marshal children pins: %w", err)
	}
	featurePins, err := json.Marshal(pinsOrEmpty(v.FeaturePins))
	if err != nil {
		return fmt.Errorf("marshal feature pins: %w", err)
	}

	query := `
		INSERT INTO module_versions (
			id, module_id, version_number, content_hash, name, description,
			children_pins, feature_pins, changelog, is_rollback, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Exec(ctx, query,
		v.ID, v.ModuleID, v.VersionNumber, v.ContentHash, v.Name,
		nullIfEmpty(v.Description), childrenPins, featurePins,
		nullIfEmpty(v.Changelog), v.IsRollback, v.CreatedBy, v.CreatedAt,
	)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return xerrors.ErrDuplicateVersion
		}
		return fmt.Errorf("insert module version %s v%d: %w", v.ModuleID, v.VersionNumber, err)
	}

	r.logger.Info("module version stored",
		zap.String("module_id", v.ModuleID),
		zap.Int("version", v.VersionNumber),
		zap.Bool("rollback", v.IsRollback))
	return nil
}

func (r *StructureRepo) ListModuleVersions(ctx context.Context, moduleID string) ([]*domain.ModuleVersion, error) {
	query := `
		SELECT ` + moduleVersionColumns + `
		FROM module_versions
		WHERE module_id = $1
		ORDER BY version_number DESC
	`
	rows, err := r.db.Query(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list module versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.ModuleVersion
	for rows.Next() {
		v := &domain.ModuleVersion{}
		if err := scanModuleVersion(rows, v); err != nil {
			return nil, fmt.Errorf("scan module version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func (r *StructureRepo) SetModulePublishedVersion(ctx context.Context, moduleID string, versionID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE modules SET published_version_id = $1, updated_at = now() WHERE id = $2`,
		versionID, moduleID,
	)
	if err != nil {
		return fmt.Errorf("set module published version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrModuleNotFound
	}
	return nil
}

// ============================================================================
// FEATURE VERSIONS
// ============================================================================

const featureVersionColumns = `
	id, feature_id, version_number, content_hash, name, description,
	priority, status, changelog, is_rollback, created_by, created_at`

func (r *StructureRepo) GetFeatureVersion(ctx context.Context, featureID string, number int) (*domain.FeatureVersion, error) {
	query := `SELECT ` + featureVersionColumns + ` FROM feature_versions WHERE feature_id = $1 AND version_number = $2`
	return r.queryFeatureVersion(ctx, query, featureID, number)
}

func (r *StructureRepo) GetFeatureVersionByID(ctx context.Context, versionID string) (*domain.FeatureVersion, error) {
	query := `SELECT ` + featureVersionColumns + ` FROM feature_versions WHERE id = $1`
	return r.queryFeatureVersion(ctx, query, versionID)
}

func (r *StructureRepo) GetFeatureVersionByHash(ctx context.Context, featureID, hash string) (*domain.FeatureVersion, error) {
	query := `SELECT ` + featureVersionColumns + ` FROM feature_versions WHERE feature_id = $1 AND content_hash = $2`
	return r.queryFeatureVersion(ctx, query, featureID, hash)
}

func (r *StructureRepo) queryFeatureVersion(ctx context.Context, query string, args ...any) (*domain.FeatureVersion, error) {
	v := &domain.FeatureVersion{}
	err := scanFeatureVersion(r.db.QueryRow(ctx, query, args...), v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feature version: %w", err)
	}
	return v, nil
}

func (r *StructureRepo) NextFeatureVersionNumber(ctx context.Context, featureID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM feature_versions WHERE feature_id = $1`,
		featureID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next feature version number: %w", err)
	}
	return next, nil
}

func (r *StructureRepo) InsertFeatureVersion(ctx context.Context, v *domain.FeatureVersion) error {
	query := `
		INSERT INTO feature_versions (
			id, feature_id, version_number, content_hash, name, description,
			priority, status, changelog, is_rollback, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		v.ID, v.FeatureID, v.VersionNumber, v.ContentHash, v.Name,
		nullIfEmpty(v.Description), v.Priority, v.Status,
		nullIfEmpty(v.Changelog), v.IsRollback, v.CreatedBy, v.CreatedAt,
	)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return xerrors.ErrDuplicateVersion
		}
		return fmt.Errorf("insert feature version %s v%d: %w", v.FeatureID, v.VersionNumber, err)
	}

	r.logger.Info("feature version stored",
		zap.String("feature_id", v.FeatureID),
		zap.Int("version", v.VersionNumber),
		zap.Bool("rollback", v.IsRollback))
	return nil
}

func (r *StructureRepo) ListFeatureVersions(ctx context.Context, featureID string) ([]*domain.FeatureVersion, error) {
	query := `
		SELECT ` + featureVersionColumns + `
		FROM feature_versions
		WHERE feature_id = $1
		ORDER BY version_number DESC
	`
	rows, err := r.db.Query(ctx, query, featureID)
	if err != nil {
		return nil, fmt.Errorf("list feature versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.FeatureVersion
	for rows.Next() {
		v := &domain.FeatureVersion{}
		if err := scanFeatureVersion(rows, v); err != nil {
			return nil, fmt.Errorf("scan feature version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func (r *StructureRepo) SetFeaturePublishedVersion(ctx context.Context, featureID string, versionID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE features SET published_version_id = $1, updated_at = now() WHERE id = $2`,
		versionID, featureID,
	)
	if err != nil {
		return fmt.Errorf("set feature published version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrFeatureNotFound
	}
	return nil
}

// ============================================================================
// SCAN HELPERS
// ============================================================================

func scanModuleVersion(row pgx.Row, v *domain.ModuleVersion) error {
	var description, changelog *string
	var childrenPins, featurePins []byte
	err := row.Scan(
		&v.ID,
		&v.ModuleID,
		&v.VersionNumber,
		&v.ContentHash,
		&v.Name,
		&description,
		&childrenPins,
		&featurePins,
		&changelog,
		&v.IsRollback,
		&v.CreatedBy,
		&v.CreatedAt,
	)
	if err != nil {
		return err
	}
	if description != nil {
		v.Description = *description
	}
	if changelog != nil {
		v.Changelog = *changelog
	}
	if err := json.Unmarshal(childrenPins, &v.ChildrenPins); err != nil {
		return fmt.Errorf("decode children pins: %w", err)
	}
	if err := json.Unmarshal(featurePins, &v.FeaturePins); err != nil {
		return fmt.Errorf("decode feature pins: %w", err)
	}
	return nil
}

func scanFeatureVersion(row pgx.Row, v *domain.FeatureVersion) error {
	var description, changelog *string
	err := row.Scan(
		&v.ID,
		&v.FeatureID,
		&v.VersionNumber,
		&v.ContentHash,
		&v.Name,
		&description,
		&v.Priority,
		&v.Status,
		&changelog,
		&v.IsRollback,
		&v.CreatedBy,
		&v.CreatedAt,
	)
	if err != nil {
		return err
	}
	if description != nil {
		v.Description = *description
	}
	if changelog != nil {
		v.Changelog = *changelog
	}
	return nil
}

func pinsOrEmpty(pins []domain.Pin) []domain.Pin {
	if pins == nil {
		return []domain.Pin{}
	}
	return pins
}
