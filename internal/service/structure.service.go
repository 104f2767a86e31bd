package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/id"
	"structure-service/internal/pkg/xerrors"

	"go.uber.org/zap"
)

// StructureService owns the module/feature tree of a project: structure,
// sibling ordering, content-addressed versions, publish pointers and
// cascading soft delete/restore. Every mutation runs the access gate for
// the acting user and then one store transaction.
type StructureService struct {
	store  Store
	gate   AccessGate
	logger *zap.Logger
}

func NewStructureService(store Store, gate AccessGate, logger *zap.Logger) *StructureService {
	return &StructureService{
		store:  store,
		gate:   gate,
		logger: logger,
	}
}

// ============================================================================
// MODULES
// ============================================================================

func (svc *StructureService) CreateModule(ctx context.Context, actor string, req *domain.CreateModuleRequest) (*domain.Module, error) {
	if strings.TrimSpace(req.Name) == "" || req.ProjectID == "" {
		return nil, xerrors.ErrInvalidRequest
	}
	if err := svc.gate.CanWrite(ctx, actor, req.ProjectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &domain.Module{
		ID:             id.New(id.PrefixModule),
		ProjectID:      req.ProjectID,
		ParentModuleID: req.ParentModuleID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		IsRoot:         req.ParentModuleID == nil,
		CreatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := svc.store.WithTx(ctx, func(tx Store) error {
		if m.ParentModuleID != nil {
			parent, err := tx.GetModule(ctx, *m.ParentModuleID)
			if err != nil || parent.IsDeleted() {
				return xerrors.ErrParentNotFound
			}
			if parent.ProjectID != m.ProjectID {
				return xerrors.ErrCrossProject
			}
		}

		siblings, err := activeSiblings(ctx, tx, domain.Scope{ProjectID: m.ProjectID, ParentModuleID: m.ParentModuleID})
		if err != nil {
			return err
		}
		m.SortOrder = nextOrder(siblings)
		return tx.InsertModule(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info("module created",
		zap.String("module_id", m.ID),
		zap.String("project_id", m.ProjectID),
		zap.Int("sort_order", m.SortOrder))
	return m, nil
}

func (svc *StructureService) GetModule(ctx context.Context, actor, moduleID string) (*domain.Module, error) {
	m, err := svc.store.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if err := svc.gate.CanRead(ctx, actor, m.ProjectID); err != nil {
		return nil, err
	}
	return m, nil
}

func (svc *StructureService) UpdateModule(ctx context.Context, actor, moduleID string, req *domain.UpdateModuleRequest) (*domain.Module, error) {
	var updated *domain.Module
	err := svc.writeModule(ctx, actor, moduleID, func(tx Store, m *domain.Module) error {
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return xerrors.ErrInvalidRequest
			}
			m.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			m.Description = *req.Description
		}

		reparent := req.MoveToRoot && m.ParentModuleID != nil ||
			req.ParentModuleID != nil && (m.ParentModuleID == nil || *m.ParentModuleID != *req.ParentModuleID)
		if reparent {
			var target *string
			if !req.MoveToRoot {
				target = req.ParentModuleID
			}
			if err := reparentModule(ctx, tx, m, target, actor); err != nil {
				return err
			}
			updated = m
			return nil
		}

		m.LastModifiedBy = &actor
		m.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateModule(ctx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (svc *StructureService) MoveModule(ctx context.Context, actor, moduleID string, dir domain.MoveDirection) error {
	return svc.writeModule(ctx, actor, moduleID, func(tx Store, m *domain.Module) error {
		scope := domain.Scope{ProjectID: m.ProjectID, ParentModuleID: m.ParentModuleID}
		return moveWithinScope(ctx, tx, scope, domain.KindModule, m.ID, m.SortOrder, dir)
	})
}

func (svc *StructureService) SnapshotModule(ctx context.Context, actor, moduleID, changelog string) (*domain.ModuleVersion, error) {
	var v *domain.ModuleVersion
	err := svc.writeModule(ctx, actor, moduleID, func(tx Store, m *domain.Module) error {
		var err error
		v, err = snapshotModule(ctx, tx, m, changelog, false, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("module snapshot",
		zap.String("module_id", moduleID),
		zap.Int("version", v.VersionNumber),
		zap.String("hash", v.ContentHash))
	return v, nil
}

func (svc *StructureService) RollbackModule(ctx context.Context, actor, moduleID string, targetNumber int, changelog string) (*domain.ModuleVersion, error) {
	var v *domain.ModuleVersion
	err := svc.writeModule(ctx, actor, moduleID, func(tx Store, m *domain.Module) error {
		var err error
		v, err = rollbackModule(ctx, tx, m, targetNumber, changelog, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("module rollback",
		zap.String("module_id", moduleID),
		zap.Int("target", targetNumber),
		zap.Int("new_version", v.VersionNumber))
	return v, nil
}

func (svc *StructureService) PublishModule(ctx context.Context, actor, moduleID string, number int) (*domain.ModuleVersion, error) {
	var v *domain.ModuleVersion
	err := svc.writeModule(ctx, actor, moduleID, func(tx Store, m *domain.Module) error {
		var err error
		v, err = publishModule(ctx, tx, m, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("module published",
		zap.String("module_id", moduleID),
		zap.Int("version", number))
	return v, nil
}

func (svc *StructureService) ListModuleVersions(ctx context.Context, actor, moduleID string) ([]*domain.ModuleVersion, error) {
	m, err := svc.store.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if err := svc.gate.CanRead(ctx, actor, m.ProjectID); err != nil {
		return nil, err
	}
	return svc.store.ListModuleVersions(ctx, moduleID)
}

func (svc *StructureService) DeleteModule(ctx context.Context, actor, moduleID string, opts domain.DeleteOptions) error {
	err := svc.writeModule(ctx, actor, moduleID, func(tx Store, m *domain.Module) error {
		return deleteModule(ctx, tx, m, opts, actor)
	})
	if err != nil {
		return err
	}
	svc.logger.Info("module deleted",
		zap.String("module_id", moduleID),
		zap.Bool("cascade", opts.Cascade),
		zap.Bool("force", opts.Force))
	return nil
}

func (svc *StructureService) RestoreModule(ctx context.Context, actor, moduleID string) error {
	m, err := svc.store.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}
	if err := svc.gate.CanWrite(ctx, actor, m.ProjectID); err != nil {
		return err
	}

	err = svc.store.WithTx(ctx, func(tx Store) error {
		m, err := tx.GetModule(ctx, moduleID)
		if err != nil {
			return err
		}
		return restoreModule(ctx, tx, m)
	})
	if err != nil {
		return err
	}
	svc.logger.Info("module restored", zap.String("module_id", moduleID))
	return nil
}

// ============================================================================
// FEATURES
// ============================================================================

func (svc *StructureService) CreateFeature(ctx context.Context, actor string, req *domain.CreateFeatureRequest) (*domain.Feature, error) {
	if strings.TrimSpace(req.Name) == "" || req.ModuleID == "" {
		return nil, xerrors.ErrInvalidRequest
	}

	parent, err := svc.store.GetModule(ctx, req.ModuleID)
	if err != nil || parent.IsDeleted() {
		return nil, xerrors.ErrParentNotFound
	}
	if err := svc.gate.CanWrite(ctx, actor, parent.ProjectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	f := &domain.Feature{
		ID:          id.New(id.PrefixFeature),
		ModuleID:    req.ModuleID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.Priority == "" {
		f.Priority = domain.PriorityMedium
	}
	if f.Status == "" {
		f.Status = domain.StatusDraft
	}

	err = svc.store.WithTx(ctx, func(tx Store) error {
		siblings, err := activeSiblings(ctx, tx, domain.Scope{ProjectID: parent.ProjectID, ParentModuleID: &f.ModuleID})
		if err != nil {
			return err
		}
		f.SortOrder = nextOrder(siblings)
		return tx.InsertFeature(ctx, f)
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info("feature created",
		zap.String("feature_id", f.ID),
		zap.String("module_id", f.ModuleID),
		zap.Int("sort_order", f.SortOrder))
	return f, nil
}

func (svc *StructureService) GetFeature(ctx context.Context, actor, featureID string) (*domain.Feature, error) {
	f, projectID, err := svc.featureWithProject(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if err := svc.gate.CanRead(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return f, nil
}

func (svc *StructureService) UpdateFeature(ctx context.Context, actor, featureID string, req *domain.UpdateFeatureRequest) (*domain.Feature, error) {
	var updated *domain.Feature
	err := svc.writeFeature(ctx, actor, featureID, func(tx Store, f *domain.Feature, projectID string) error {
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return xerrors.ErrInvalidRequest
			}
			f.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			f.Description = *req.Description
		}
		if req.Priority != nil {
			f.Priority = *req.Priority
		}
		if req.Status != nil {
			f.Status = *req.Status
		}
		f.LastModifiedBy = &actor
		f.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateFeature(ctx, f); err != nil {
			return err
		}
		updated = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (svc *StructureService) MoveFeature(ctx context.Context, actor, featureID string, dir domain.MoveDirection) error {
	return svc.writeFeature(ctx, actor, featureID, func(tx Store, f *domain.Feature, projectID string) error {
		scope := domain.Scope{ProjectID: projectID, ParentModuleID: &f.ModuleID}
		return moveWithinScope(ctx, tx, scope, domain.KindFeature, f.ID, f.SortOrder, dir)
	})
}

func (svc *StructureService) SnapshotFeature(ctx context.Context, actor, featureID, changelog string) (*domain.FeatureVersion, error) {
	var v *domain.FeatureVersion
	err := svc.writeFeature(ctx, actor, featureID, func(tx Store, f *domain.Feature, projectID string) error {
		var err error
		v, err = snapshotFeature(ctx, tx, f, changelog, false, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (svc *StructureService) RollbackFeature(ctx context.Context, actor, featureID string, targetNumber int, changelog string) (*domain.FeatureVersion, error) {
	var v *domain.FeatureVersion
	err := svc.writeFeature(ctx, actor, featureID, func(tx Store, f *domain.Feature, projectID string) error {
		var err error
		v, err = rollbackFeature(ctx, tx, f, targetNumber, changelog, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (svc *StructureService) PublishFeature(ctx context.Context, actor, featureID string, number int) (*domain.FeatureVersion, error) {
	var v *domain.FeatureVersion
	err := svc.writeFeature(ctx, actor, featureID, func(tx Store, f *domain.Feature, projectID string) error {
		var err error
		v, err = publishFeature(ctx, tx, f, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (svc *StructureService) ListFeatureVersions(ctx context.Context, actor, featureID string) ([]*domain.FeatureVersion, error) {
	_, projectID, err := svc.featureWithProject(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if err := svc.gate.CanRead(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return svc.store.ListFeatureVersions(ctx, featureID)
}

func (svc *StructureService) DeleteFeature(ctx context.Context, actor, featureID string, opts domain.DeleteOptions) error {
	return svc.writeFeature(ctx, actor, featureID, func(tx Store, f *domain.Feature, projectID string) error {
		return deleteFeature(ctx, tx, f, opts, actor, projectID)
	})
}

func (svc *StructureService) RestoreFeature(ctx context.Context, actor, featureID string) error {
	f, projectID, err := svc.featureWithProject(ctx, featureID)
	if err != nil {
		return err
	}
	if err := svc.gate.CanWrite(ctx, actor, projectID); err != nil {
		return err
	}
	return svc.store.WithTx(ctx, func(tx Store) error {
		f, err := tx.GetFeature(ctx, f.ID)
		if err != nil {
			return err
		}
		return restoreFeature(ctx, tx, f, projectID)
	})
}

// ============================================================================
// STRUCTURE QUERY
// ============================================================================

// GetStructure returns the merged tree of a project. The live view reads the
// active rows; the published view resolves each published root through its
// pin graph.
func (svc *StructureService) GetStructure(ctx context.Context, actor, projectID string, published bool) ([]*domain.TreeNode, error) {
	if err := svc.gate.CanRead(ctx, actor, projectID); err != nil {
		return nil, err
	}

	var tree []*domain.TreeNode
	// One transaction for both reads so a concurrent reorder cannot split
	// the view.
	err := svc.store.WithTx(ctx, func(tx Store) error {
		modules, err := tx.ListActiveModulesByProject(ctx, projectID)
		if err != nil {
			return err
		}

		if !published {
			features, err := tx.ListActiveFeaturesByProject(ctx, projectID)
			if err != nil {
				return err
			}
			tree = BuildTree(modules, features)
			return nil
		}

		for _, m := range modules {
			if m.ParentModuleID != nil || m.PublishedVersionID == nil {
				continue
			}
			node, err := resolvePublishedTree(ctx, tx, m.ID)
			if err != nil {
				return err
			}
			node.SortOrder = m.SortOrder
			node.CreatedAt = m.CreatedAt
			tree = append(tree, node)
		}
		// Root order is the engine's contract, not the store's row order.
		sort.SliceStable(tree, func(i, j int) bool {
			return lessTreeNode(tree[i], tree[j])
		})
		for i, n := range tree {
			n.DisplayOrder = i + 1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// writeModule loads the module, runs the write gate, then fn in one store
// transaction against a fresh read of the row.
func (svc *StructureService) writeModule(ctx context.Context, actor, moduleID string, fn func(tx Store, m *domain.Module) error) error {
	m, err := svc.store.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}
	if m.IsDeleted() {
		return xerrors.ErrModuleNotFound
	}
	if err := svc.gate.CanWrite(ctx, actor, m.ProjectID); err != nil {
		return err
	}

	return svc.store.WithTx(ctx, func(tx Store) error {
		m, err := tx.GetModule(ctx, moduleID)
		if err != nil {
			return err
		}
		if m.IsDeleted() {
			return xerrors.ErrModuleNotFound
		}
		return fn(tx, m)
	})
}

func (svc *StructureService) writeFeature(ctx context.Context, actor, featureID string, fn func(tx Store, f *domain.Feature, projectID string) error) error {
	_, projectID, err := svc.featureWithProject(ctx, featureID)
	if err != nil {
		return err
	}
	if err := svc.gate.CanWrite(ctx, actor, projectID); err != nil {
		return err
	}

	return svc.store.WithTx(ctx, func(tx Store) error {
		f, err := tx.GetFeature(ctx, featureID)
		if err != nil {
			return err
		}
		if f.IsDeleted() {
			return xerrors.ErrFeatureNotFound
		}
		return fn(tx, f, projectID)
	})
}

func (svc *StructureService) featureWithProject(ctx context.Context, featureID string) (*domain.Feature, string, error) {
	f, err := svc.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, "", err
	}
	m, err := svc.store.GetModule(ctx, f.ModuleID)
	if err != nil {
		return nil, "", err
	}
	return f, m.ProjectID, nil
}

func moveWithinScope(ctx context.Context, s Store, scope domain.Scope, kind domain.NodeKind, nodeID string, currentOrder int, dir domain.MoveDirection) error {
	siblings, err := activeSiblings(ctx, s, scope)
	if err != nil {
		return err
	}
	neighbor, err := findNeighbor(siblings, currentOrder, dir)
	if err != nil {
		return err
	}
	self := domain.SiblingRef{Kind: kind, ID: nodeID, SortOrder: currentOrder}
	return swapOrders(ctx, s, self, *neighbor)
}
