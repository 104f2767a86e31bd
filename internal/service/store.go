package service

import (
	"context"
	"time"

	"structure-service/internal/domain"
)

// Store is the persistence surface the structure engine runs on. The pgx
// implementation lives in internal/repository; tests use an in-memory fake.
// Methods returning a single row surface xerrors sentinels for absent rows.
type Store interface {
	// WithTx runs fn against a transaction-bound Store. The transaction
	// commits when fn returns nil and rolls back otherwise. Calling WithTx
	// on an already transaction-bound Store reuses the open transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// modules
	GetModule(ctx context.Context, id string) (*domain.Module, error)
	InsertModule(ctx context.Context, m *domain.Module) error
	UpdateModule(ctx context.Context, m *domain.Module) error
	ListActiveChildModules(ctx context.Context, scope domain.Scope) ([]*domain.Module, error)
	// ListChildModules includes soft-deleted rows; restore traversal needs them.
	ListChildModules(ctx context.Context, parentModuleID string) ([]*domain.Module, error)
	ListActiveModulesByProject(ctx context.Context, projectID string) ([]*domain.Module, error)

	// features
	GetFeature(ctx context.Context, id string) (*domain.Feature, error)
	InsertFeature(ctx context.Context, f *domain.Feature) error
	UpdateFeature(ctx context.Context, f *domain.Feature) error
	ListActiveFeatures(ctx context.Context, moduleID string) ([]*domain.Feature, error)
	ListFeatures(ctx context.Context, moduleID string) ([]*domain.Feature, error)
	ListActiveFeaturesByProject(ctx context.Context, projectID string) ([]*domain.Feature, error)

	// ordering
	SetSortOrder(ctx context.Context, kind domain.NodeKind, id string, order int) error
	// ShiftOrdersAfter closes the gap left at removedOrder: every active
	// sibling in scope with a greater order is decremented by one.
	ShiftOrdersAfter(ctx context.Context, scope domain.Scope, removedOrder int) error

	// lifecycle
	MarkDeleted(ctx context.Context, kind domain.NodeKind, ids []string, at time.Time, by string) error
	ClearDeleted(ctx context.Context, kind domain.NodeKind, ids []string) error

	// module versions
	GetModuleVersion(ctx context.Context, moduleID string, number int) (*domain.ModuleVersion, error)
	GetModuleVersionByID(ctx context.Context, versionID string) (*domain.ModuleVersion, error)
	GetModuleVersionByHash(ctx context.Context, moduleID, hash string) (*domain.ModuleVersion, error)
	NextModuleVersionNumber(ctx context.Context, moduleID string) (int, error)
	// InsertModuleVersion returns xerrors.ErrDuplicateVersion when one of the
	// (module, number) / (module, hash) unique constraints fires.
	InsertModuleVersion(ctx context.Context, v *domain.ModuleVersion) error
	ListModuleVersions(ctx context.Context, moduleID string) ([]*domain.ModuleVersion, error)
	SetModulePublishedVersion(ctx context.Context, moduleID string, versionID *string) error

	// feature versions
	GetFeatureVersion(ctx context.Context, featureID string, number int) (*domain.FeatureVersion, error)
	GetFeatureVersionByID(ctx context.Context, versionID string) (*domain.FeatureVersion, error)
	GetFeatureVersionByHash(ctx context.Context, featureID, hash string) (*domain.FeatureVersion, error)
	NextFeatureVersionNumber(ctx context.Context, featureID string) (int, error)
	InsertFeatureVersion(ctx context.Context, v *domain.FeatureVersion) error
	ListFeatureVersions(ctx context.Context, featureID string) ([]*domain.FeatureVersion, error)
	SetFeaturePublishedVersion(ctx context.Context, featureID string, versionID *string) error
}

// AccessGate is the per-project authorization collaborator. Implementations
// return xerrors.ErrForbidden on denial.
type AccessGate interface {
	CanRead(ctx context.Context, userID, projectID string) error
	CanWrite(ctx context.Context, userID, projectID string) error
}
