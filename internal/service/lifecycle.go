package service

import (
	"context"
	"time"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/xerrors"
)

type subtree struct {
	moduleIDs    []string
	featureIDs   []string
	hasPublished bool
}

// activeSubtree walks the active descendants of a module breadth-first,
// collecting every member and whether any of them is published.
func activeSubtree(ctx context.Context, s Store, root *domain.Module) (*subtree, error) {
	sub := &subtree{
		moduleIDs:    []string{root.ID},
		hasPublished: root.PublishedVersionID != nil,
	}

	queue := []*domain.Module{root}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		features, err := s.ListActiveFeatures(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			sub.featureIDs = append(sub.featureIDs, f.ID)
			if f.PublishedVersionID != nil {
				sub.hasPublished = true
			}
		}

		children, err := s.ListActiveChildModules(ctx, domain.Scope{ProjectID: m.ProjectID, ParentModuleID: &m.ID})
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			sub.moduleIDs = append(sub.moduleIDs, c.ID)
			if c.PublishedVersionID != nil {
				sub.hasPublished = true
			}
			queue = append(queue, c)
		}
	}

	return sub, nil
}

// deleteModule soft-deletes a module and, with cascade, its whole active
// subtree, in one store transaction with the scope compaction.
func deleteModule(ctx context.Context, s Store, m *domain.Module, opts domain.DeleteOptions, actor string) error {
	if m.IsDeleted() {
		return xerrors.ErrModuleNotFound
	}

	sub, err := activeSubtree(ctx, s, m)
	if err != nil {
		return err
	}
	if !opts.Cascade && (len(sub.moduleIDs) > 1 || len(sub.featureIDs) > 0) {
		return xerrors.ErrHasActiveChildren
	}
	if !opts.Force && sub.hasPublished {
		return xerrors.ErrSubtreePublished
	}

	now := time.Now().UTC()
	if err := s.MarkDeleted(ctx, domain.KindModule, sub.moduleIDs, now, actor); err != nil {
		return err
	}
	if len(sub.featureIDs) > 0 {
		if err := s.MarkDeleted(ctx, domain.KindFeature, sub.featureIDs, now, actor); err != nil {
			return err
		}
	}

	scope := domain.Scope{ProjectID: m.ProjectID, ParentModuleID: m.ParentModuleID}
	return s.ShiftOrdersAfter(ctx, scope, m.SortOrder)
}

func deleteFeature(ctx context.Context, s Store, f *domain.Feature, opts domain.DeleteOptions, actor string, projectID string) error {
	if f.IsDeleted() {
		return xerrors.ErrFeatureNotFound
	}
	if !opts.Force && f.PublishedVersionID != nil {
		return xerrors.ErrSubtreePublished
	}

	if err := s.MarkDeleted(ctx, domain.KindFeature, []string{f.ID}, time.Now().UTC(), actor); err != nil {
		return err
	}
	scope := domain.Scope{ProjectID: projectID, ParentModuleID: &f.ModuleID}
	return s.ShiftOrdersAfter(ctx, scope, f.SortOrder)
}

// restoreModule brings back a deleted module together with the descendants
// that went down with it: every subtree member whose deletion timestamp is
// at or after the root's own. Members deleted independently earlier stay
// deleted. Restore is top-down only; the parent must already be active.
func restoreModule(ctx context.Context, s Store, m *domain.Module) error {
	if !m.IsDeleted() {
		return xerrors.ErrNotDeleted
	}
	if m.ParentModuleID != nil {
		parent, err := s.GetModule(ctx, *m.ParentModuleID)
		if err != nil {
			return err
		}
		if parent.IsDeleted() {
			return xerrors.ErrParentDeleted
		}
	}

	cutoff := *m.DeletedAt

	var moduleIDs, featureIDs []string
	queue := []string{m.ID}
	for len(queue) > 0 {
		mid := queue[0]
		queue = queue[1:]
		moduleIDs = append(moduleIDs, mid)

		features, err := s.ListFeatures(ctx, mid)
		if err != nil {
			return err
		}
		for _, f := range features {
			if f.DeletedAt != nil && !f.DeletedAt.Before(cutoff) {
				featureIDs = append(featureIDs, f.ID)
			}
		}

		children, err := s.ListChildModules(ctx, mid)
		if err != nil {
			return err
		}
		for _, c := range children {
			if c.DeletedAt != nil && !c.DeletedAt.Before(cutoff) {
				queue = append(queue, c.ID)
			}
		}
	}

	// The restored root re-enters its scope at the end; its old slot was
	// compacted away at delete time.
	scope := domain.Scope{ProjectID: m.ProjectID, ParentModuleID: m.ParentModuleID}
	siblings, err := activeSiblings(ctx, s, scope)
	if err != nil {
		return err
	}

	if err := s.ClearDeleted(ctx, domain.KindModule, moduleIDs); err != nil {
		return err
	}
	if len(featureIDs) > 0 {
		if err := s.ClearDeleted(ctx, domain.KindFeature, featureIDs); err != nil {
			return err
		}
	}
	return s.SetSortOrder(ctx, domain.KindModule, m.ID, nextOrder(siblings))
}

func restoreFeature(ctx context.Context, s Store, f *domain.Feature, projectID string) error {
	if !f.IsDeleted() {
		return xerrors.ErrNotDeleted
	}
	parent, err := s.GetModule(ctx, f.ModuleID)
	if err != nil {
		return err
	}
	if parent.IsDeleted() {
		return xerrors.ErrParentDeleted
	}

	scope := domain.Scope{ProjectID: projectID, ParentModuleID: &f.ModuleID}
	siblings, err := activeSiblings(ctx, s, scope)
	if err != nil {
		return err
	}
	if err := s.ClearDeleted(ctx, domain.KindFeature, []string{f.ID}); err != nil {
		return err
	}
	return s.SetSortOrder(ctx, domain.KindFeature, f.ID, nextOrder(siblings))
}

// validateNewParent rejects self-parenting, cross-project targets and cycles
// before any mutation happens.
func validateNewParent(ctx context.Context, s Store, m *domain.Module, newParentID string) (*domain.Module, error) {
	if newParentID == m.ID {
		return nil, xerrors.ErrSelfParent
	}
	parent, err := s.GetModule(ctx, newParentID)
	if err != nil || parent.IsDeleted() {
		return nil, xerrors.ErrParentNotFound
	}
	if parent.ProjectID != m.ProjectID {
		return nil, xerrors.ErrCrossProject
	}

	// Walking the ancestor chain of the target: hitting the moving module
	// means the target is inside its own subtree.
	cursor := parent
	for cursor.ParentModuleID != nil {
		if *cursor.ParentModuleID == m.ID {
			return nil, xerrors.ErrCyclicParent
		}
		cursor, err = s.GetModule(ctx, *cursor.ParentModuleID)
		if err != nil {
			return nil, err
		}
	}
	return parent, nil
}

// reparentModule moves a module to a new scope: the old scope compacts, the
// module appends to the new scope, all in the caller's transaction.
func reparentModule(ctx context.Context, s Store, m *domain.Module, newParentID *string, actor string) error {
	if newParentID != nil {
		if _, err := validateNewParent(ctx, s, m, *newParentID); err != nil {
			return err
		}
	}

	oldScope := domain.Scope{ProjectID: m.ProjectID, ParentModuleID: m.ParentModuleID}
	if err := s.ShiftOrdersAfter(ctx, oldScope, m.SortOrder); err != nil {
		return err
	}

	newScope := domain.Scope{ProjectID: m.ProjectID, ParentModuleID: newParentID}
	siblings, err := activeSiblings(ctx, s, newScope)
	if err != nil {
		return err
	}

	m.ParentModuleID = newParentID
	m.IsRoot = newParentID == nil
	m.SortOrder = nextOrder(siblings)
	m.LastModifiedBy = &actor
	m.UpdatedAt = time.Now().UTC()
	return s.UpdateModule(ctx, m)
}
