package service

import (
	"context"
	"sort"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/xerrors"
)

// activeSiblings returns the tagged union of active child modules and
// features under one scope, ordered by sort order. Features only exist
// under a module, so the project-root scope holds modules alone.
func activeSiblings(ctx context.Context, s Store, scope domain.Scope) ([]domain.SiblingRef, error) {
	modules, err := s.ListActiveChildModules(ctx, scope)
	if err != nil {
		return nil, err
	}

	refs := make([]domain.SiblingRef, 0, len(modules))
	for _, m := range modules {
		refs = append(refs, domain.SiblingRef{
			Kind:      domain.KindModule,
			ID:        m.ID,
			SortOrder: m.SortOrder,
			Name:      m.Name,
			CreatedAt: m.CreatedAt,
		})
	}

	if scope.ParentModuleID != nil {
		features, err := s.ListActiveFeatures(ctx, *scope.ParentModuleID)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			refs = append(refs, domain.SiblingRef{
				Kind:      domain.KindFeature,
				ID:        f.ID,
				SortOrder: f.SortOrder,
				Name:      f.Name,
				CreatedAt: f.CreatedAt,
			})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].SortOrder < refs[j].SortOrder })
	return refs, nil
}

// nextOrder is one past the highest active sibling order, 0 for an empty scope.
func nextOrder(siblings []domain.SiblingRef) int {
	max := -1
	for _, s := range siblings {
		if s.SortOrder > max {
			max = s.SortOrder
		}
	}
	return max + 1
}

// findNeighbor returns the closest active sibling strictly below (UP) or
// above (DOWN) currentOrder. Orders are unique per scope, so no ties.
func findNeighbor(siblings []domain.SiblingRef, currentOrder int, dir domain.MoveDirection) (*domain.SiblingRef, error) {
	var best *domain.SiblingRef
	for i := range siblings {
		s := &siblings[i]
		switch dir {
		case domain.MoveUp:
			if s.SortOrder < currentOrder && (best == nil || s.SortOrder > best.SortOrder) {
				best = s
			}
		case domain.MoveDown:
			if s.SortOrder > currentOrder && (best == nil || s.SortOrder < best.SortOrder) {
				best = s
			}
		default:
			return nil, xerrors.ErrInvalidMoveDir
		}
	}
	if best == nil {
		return nil, xerrors.ErrNoNeighbor
	}
	return best, nil
}

// swapOrders exchanges the sort orders of two siblings. This is the only
// reordering primitive; there is no arbitrary insert-at-index.
func swapOrders(ctx context.Context, s Store, a, b domain.SiblingRef) error {
	if err := s.SetSortOrder(ctx, a.Kind, a.ID, b.SortOrder); err != nil {
		return err
	}
	return s.SetSortOrder(ctx, b.Kind, b.ID, a.SortOrder)
}
