package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/xerrors"
)

// BuildTree assembles the live structure tree from two flat row sets.
// Every scope merges child modules and features into one list ordered by
// sort order ascending (negative means unset and sorts last), creation
// time ascending, name, with modules before features on a full tie.
// Output is fully determined by the input rows.
func BuildTree(modules []*domain.Module, features []*domain.Feature) []*domain.TreeNode {
	childModules := make(map[string][]*domain.Module)
	var roots []*domain.Module
	for _, m := range modules {
		if m.ParentModuleID == nil {
			roots = append(roots, m)
		} else {
			childModules[*m.ParentModuleID] = append(childModules[*m.ParentModuleID], m)
		}
	}

	moduleFeatures := make(map[string][]*domain.Feature)
	for _, f := range features {
		moduleFeatures[f.ModuleID] = append(moduleFeatures[f.ModuleID], f)
	}

	var assemble func(parent *domain.Module) []*domain.TreeNode
	assemble = func(parent *domain.Module) []*domain.TreeNode {
		var scopeModules []*domain.Module
		var scopeFeatures []*domain.Feature
		if parent == nil {
			scopeModules = roots
		} else {
			scopeModules = childModules[parent.ID]
			scopeFeatures = moduleFeatures[parent.ID]
		}

		merged := make([]*domain.TreeNode, 0, len(scopeModules)+len(scopeFeatures))
		for _, m := range scopeModules {
			merged = append(merged, &domain.TreeNode{
				Kind:        domain.KindModule,
				ID:          m.ID,
				Name:        m.Name,
				Description: m.Description,
				SortOrder:   m.SortOrder,
				Published:   m.PublishedVersionID != nil,
				CreatedAt:   m.CreatedAt,
				Children:    assemble(m),
			})
		}
		for _, f := range scopeFeatures {
			merged = append(merged, &domain.TreeNode{
				Kind:        domain.KindFeature,
				ID:          f.ID,
				Name:        f.Name,
				Description: f.Description,
				Priority:    f.Priority,
				Status:      f.Status,
				SortOrder:   f.SortOrder,
				Published:   f.PublishedVersionID != nil,
				CreatedAt:   f.CreatedAt,
			})
		}

		sort.SliceStable(merged, func(i, j int) bool {
			return lessTreeNode(merged[i], merged[j])
		})
		for i, n := range merged {
			n.DisplayOrder = i + 1
		}
		return merged
	}

	return assemble(nil)
}

func lessTreeNode(a, b *domain.TreeNode) bool {
	am, bm := a.SortOrder < 0, b.SortOrder < 0
	if am != bm {
		return bm // unset sorts last
	}
	if !am && a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Kind == domain.KindModule && b.Kind == domain.KindFeature
}

// resolvePublishedTree reconstructs the historical tree fixed by a module's
// published version: its pins name exact child and feature version numbers,
// and pinned child modules resolve recursively through their own pins.
// A missing pinned version is an integrity failure, never skipped.
func resolvePublishedTree(ctx context.Context, s Store, moduleID string) (*domain.TreeNode, error) {
	m, err := s.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if m.PublishedVersionID == nil {
		return nil, xerrors.ErrNotPublished
	}
	mv, err := s.GetModuleVersionByID(ctx, *m.PublishedVersionID)
	if errors.Is(err, xerrors.ErrVersionNotFound) {
		return nil, fmt.Errorf("published version %s of module %s: %w", *m.PublishedVersionID, moduleID, xerrors.ErrPinIntegrity)
	}
	if err != nil {
		return nil, err
	}
	return resolveModuleVersion(ctx, s, mv)
}

func resolveModuleVersion(ctx context.Context, s Store, mv *domain.ModuleVersion) (*domain.TreeNode, error) {
	node := &domain.TreeNode{
		Kind:          domain.KindModule,
		ID:            mv.ModuleID,
		Name:          mv.Name,
		Description:   mv.Description,
		Published:     true,
		VersionNumber: mv.VersionNumber,
		CreatedAt:     mv.CreatedAt,
	}

	for _, pin := range mv.ChildrenPins {
		cv, err := s.GetModuleVersion(ctx, pin.ChildID, pin.VersionNumber)
		if errors.Is(err, xerrors.ErrVersionNotFound) {
			return nil, fmt.Errorf("module %s pins %s@v%d: %w", mv.ModuleID, pin.ChildID, pin.VersionNumber, xerrors.ErrPinIntegrity)
		}
		if err != nil {
			return nil, err
		}
		child, err := resolveModuleVersion(ctx, s, cv)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	for _, pin := range mv.FeaturePins {
		fv, err := s.GetFeatureVersion(ctx, pin.ChildID, pin.VersionNumber)
		if errors.Is(err, xerrors.ErrVersionNotFound) {
			return nil, fmt.Errorf("module %s pins feature %s@v%d: %w", mv.ModuleID, pin.ChildID, pin.VersionNumber, xerrors.ErrPinIntegrity)
		}
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, &domain.TreeNode{
			Kind:          domain.KindFeature,
			ID:            fv.FeatureID,
			Name:          fv.Name,
			Description:   fv.Description,
			Priority:      fv.Priority,
			Status:        fv.Status,
			Published:     true,
			VersionNumber: fv.VersionNumber,
			CreatedAt:     fv.CreatedAt,
		})
	}

	for i, n := range node.Children {
		n.DisplayOrder = i + 1
	}
	return node, nil
}
