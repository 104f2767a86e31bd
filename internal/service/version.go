package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/id"
	"structure-service/internal/pkg/xerrors"
)

// collectPins reads the versions currently fixed by the active children of a
// module: each active child module / feature that has a published version
// contributes a pin at that version's number. Unpublished children are not
// part of the published composition and carry no pin.
func collectPins(ctx context.Context, s Store, m *domain.Module) (childrenPins, featurePins []domain.Pin, err error) {
	scope := domain.Scope{ProjectID: m.ProjectID, ParentModuleID: &m.ID}

	children, err := s.ListActiveChildModules(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(children, func(i, j int) bool { return children[i].SortOrder < children[j].SortOrder })
	for _, c := range children {
		if c.PublishedVersionID == nil {
			continue
		}
		cv, err := s.GetModuleVersionByID(ctx, *c.PublishedVersionID)
		if errors.Is(err, xerrors.ErrVersionNotFound) {
			return nil, nil, fmt.Errorf("published version of module %s: %w", c.ID, xerrors.ErrPinIntegrity)
		}
		if err != nil {
			return nil, nil, err
		}
		childrenPins = append(childrenPins, domain.Pin{ChildID: c.ID, VersionNumber: cv.VersionNumber})
	}

	features, err := s.ListActiveFeatures(ctx, m.ID)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(features, func(i, j int) bool { return features[i].SortOrder < features[j].SortOrder })
	for _, f := range features {
		if f.PublishedVersionID == nil {
			continue
		}
		fv, err := s.GetFeatureVersionByID(ctx, *f.PublishedVersionID)
		if errors.Is(err, xerrors.ErrVersionNotFound) {
			return nil, nil, fmt.Errorf("published version of feature %s: %w", f.ID, xerrors.ErrPinIntegrity)
		}
		if err != nil {
			return nil, nil, err
		}
		featurePins = append(featurePins, domain.Pin{ChildID: f.ID, VersionNumber: fv.VersionNumber})
	}

	return childrenPins, featurePins, nil
}

// snapshotModule stores an immutable version of the module's current content
// and pins. Unchanged content returns the already-stored row: the lookup is
// by (module, hash), and a concurrent writer losing the race on either
// unique constraint falls back to the same dedup re-read.
func snapshotModule(ctx context.Context, s Store, m *domain.Module, changelog string, isRollback bool, actor string) (*domain.ModuleVersion, error) {
	childrenPins, featurePins, err := collectPins(ctx, s, m)
	if err != nil {
		return nil, err
	}

	hash := ContentHash(moduleHashFields(m.Name, m.Description, childrenPins, featurePins))

	if existing, err := s.GetModuleVersionByHash(ctx, m.ID, hash); err == nil {
		return existing, nil
	} else if !errors.Is(err, xerrors.ErrVersionNotFound) {
		return nil, err
	}

	v := &domain.ModuleVersion{
		ID:           id.New(id.PrefixModuleVersion),
		ModuleID:     m.ID,
		ContentHash:  hash,
		Name:         m.Name,
		Description:  m.Description,
		ChildrenPins: childrenPins,
		FeaturePins:  featurePins,
		Changelog:    changelog,
		IsRollback:   isRollback,
		CreatedBy:    actor,
		CreatedAt:    time.Now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		number, err := s.NextModuleVersionNumber(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		v.VersionNumber = number

		err = s.InsertModuleVersion(ctx, v)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, xerrors.ErrDuplicateVersion) || attempt > 0 {
			return nil, err
		}

		// Lost a race. If the winner stored the same content, that row is
		// our result; otherwise the number collided and one retry with a
		// fresh number settles it.
		if existing, err := s.GetModuleVersionByHash(ctx, m.ID, hash); err == nil {
			return existing, nil
		} else if !errors.Is(err, xerrors.ErrVersionNotFound) {
			return nil, err
		}
	}
}

func snapshotFeature(ctx context.Context, s Store, f *domain.Feature, changelog string, isRollback bool, actor string) (*domain.FeatureVersion, error) {
	hash := ContentHash(featureHashFields(f.Name, f.Description, f.Priority, f.Status))

	if existing, err := s.GetFeatureVersionByHash(ctx, f.ID, hash); err == nil {
		return existing, nil
	} else if !errors.Is(err, xerrors.ErrVersionNotFound) {
		return nil, err
	}

	v := &domain.FeatureVersion{
		ID:          id.New(id.PrefixFeatureVersion),
		FeatureID:   f.ID,
		ContentHash: hash,
		Name:        f.Name,
		Description: f.Description,
		Priority:    f.Priority,
		Status:      f.Status,
		Changelog:   changelog,
		IsRollback:  isRollback,
		CreatedBy:   actor,
		CreatedAt:   time.Now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		number, err := s.NextFeatureVersionNumber(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		v.VersionNumber = number

		err = s.InsertFeatureVersion(ctx, v)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, xerrors.ErrDuplicateVersion) || attempt > 0 {
			return nil, err
		}
		if existing, err := s.GetFeatureVersionByHash(ctx, f.ID, hash); err == nil {
			return existing, nil
		} else if !errors.Is(err, xerrors.ErrVersionNotFound) {
			return nil, err
		}
	}
}

// rollbackModule copies the target version's content over the live module
// and snapshots the result as a new forward version. History is append-only;
// numbers are never rewound. Pins are re-derived from the children's current
// published state, since composition is not live module content.
func rollbackModule(ctx context.Context, s Store, m *domain.Module, targetNumber int, changelog string, actor string) (*domain.ModuleVersion, error) {
	target, err := s.GetModuleVersion(ctx, m.ID, targetNumber)
	if err != nil {
		return nil, err
	}

	m.Name = target.Name
	m.Description = target.Description
	m.LastModifiedBy = &actor
	m.UpdatedAt = time.Now().UTC()
	if err := s.UpdateModule(ctx, m); err != nil {
		return nil, err
	}

	if changelog == "" {
		changelog = fmt.Sprintf("rollback to v%d", targetNumber)
	}
	return snapshotModule(ctx, s, m, changelog, true, actor)
}

func rollbackFeature(ctx context.Context, s Store, f *domain.Feature, targetNumber int, changelog string, actor string) (*domain.FeatureVersion, error) {
	target, err := s.GetFeatureVersion(ctx, f.ID, targetNumber)
	if err != nil {
		return nil, err
	}

	f.Name = target.Name
	f.Description = target.Description
	f.Priority = target.Priority
	f.Status = target.Status
	f.LastModifiedBy = &actor
	f.UpdatedAt = time.Now().UTC()
	if err := s.UpdateFeature(ctx, f); err != nil {
		return nil, err
	}

	if changelog == "" {
		changelog = fmt.Sprintf("rollback to v%d", targetNumber)
	}
	return snapshotFeature(ctx, s, f, changelog, true, actor)
}

// publishModule points the module at one of its stored versions. An older
// version may stay published while newer snapshots accumulate.
func publishModule(ctx context.Context, s Store, m *domain.Module, number int) (*domain.ModuleVersion, error) {
	v, err := s.GetModuleVersion(ctx, m.ID, number)
	if err != nil {
		return nil, err
	}
	if err := s.SetModulePublishedVersion(ctx, m.ID, &v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func publishFeature(ctx context.Context, s Store, f *domain.Feature, number int) (*domain.FeatureVersion, error) {
	v, err := s.GetFeatureVersion(ctx, f.ID, number)
	if err != nil {
		return nil, err
	}
	if err := s.SetFeaturePublishedVersion(ctx, f.ID, &v.ID); err != nil {
		return nil, err
	}
	return v, nil
}
