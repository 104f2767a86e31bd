package service

import (
	"context"
	"time"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/xerrors"
)

// memStore is an in-memory Store used to exercise the engine without
// Postgres. Rows are copied on the way in and out so callers cannot alias
// stored state.
type memStore struct {
	modules         map[string]*domain.Module
	features        map[string]*domain.Feature
	moduleVersions  map[string]*domain.ModuleVersion
	featureVersions map[string]*domain.FeatureVersion
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		modules:         make(map[string]*domain.Module),
		features:        make(map[string]*domain.Feature),
		moduleVersions:  make(map[string]*domain.ModuleVersion),
		featureVersions: make(map[string]*domain.FeatureVersion),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}

// ---- modules ----

func (s *memStore) GetModule(ctx context.Context, id string) (*domain.Module, error) {
	m, ok := s.modules[id]
	if !ok {
		return nil, xerrors.ErrModuleNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) InsertModule(ctx context.Context, m *domain.Module) error {
	cp := *m
	s.modules[m.ID] = &cp
	return nil
}

func (s *memStore) UpdateModule(ctx context.Context, m *domain.Module) error {
	stored, ok := s.modules[m.ID]
	if !ok {
		return xerrors.ErrModuleNotFound
	}
	cp := *m
	cp.DeletedAt = stored.DeletedAt
	cp.DeletedBy = stored.DeletedBy
	cp.PublishedVersionID = stored.PublishedVersionID
	s.modules[m.ID] = &cp
	return nil
}

func (s *memStore) ListActiveChildModules(ctx context.Context, scope domain.Scope) ([]*domain.Module, error) {
	var out []*domain.Module
	for _, m := range s.modules {
		if m.ProjectID != scope.ProjectID || m.IsDeleted() {
			continue
		}
		if !sameParent(m.ParentModuleID, scope.ParentModuleID) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) ListChildModules(ctx context.Context, parentModuleID string) ([]*domain.Module, error) {
	var out []*domain.Module
	for _, m := range s.modules {
		if m.ParentModuleID != nil && *m.ParentModuleID == parentModuleID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListActiveModulesByProject(ctx context.Context, projectID string) ([]*domain.Module, error) {
	var out []*domain.Module
	for _, m := range s.modules {
		if m.ProjectID == projectID && !m.IsDeleted() {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- features ----

func (s *memStore) GetFeature(ctx context.Context, id string) (*domain.Feature, error) {
	f, ok := s.features[id]
	if !ok {
		return nil, xerrors.ErrFeatureNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memStore) InsertFeature(ctx context.Context, f *domain.Feature) error {
	cp := *f
	s.features[f.ID] = &cp
	return nil
}

func (s *memStore) UpdateFeature(ctx context.Context, f *domain.Feature) error {
	stored, ok := s.features[f.ID]
	if !ok {
		return xerrors.ErrFeatureNotFound
	}
	cp := *f
	cp.DeletedAt = stored.DeletedAt
	cp.DeletedBy = stored.DeletedBy
	cp.PublishedVersionID = stored.PublishedVersionID
	s.features[f.ID] = &cp
	return nil
}

func (s *memStore) ListActiveFeatures(ctx context.Context, moduleID string) ([]*domain.Feature, error) {
	var out []*domain.Feature
	for _, f := range s.features {
		if f.ModuleID == moduleID && !f.IsDeleted() {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListFeatures(ctx context.Context, moduleID string) ([]*domain.Feature, error) {
	var out []*domain.Feature
	for _, f := range s.features {
		if f.ModuleID == moduleID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListActiveFeaturesByProject(ctx context.Context, projectID string) ([]*domain.Feature, error) {
	var out []*domain.Feature
	for _, f := range s.features {
		m, ok := s.modules[f.ModuleID]
		if !ok || m.ProjectID != projectID || f.IsDeleted() {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

// ---- ordering ----

func (s *memStore) SetSortOrder(ctx context.Context, kind domain.NodeKind, id string, order int) error {
	switch kind {
	case domain.KindModule:
		m, ok := s.modules[id]
		if !ok {
			return xerrors.ErrNotFound
		}
		m.SortOrder = order
	case domain.KindFeature:
		f, ok := s.features[id]
		if !ok {
			return xerrors.ErrNotFound
		}
		f.SortOrder = order
	}
	return nil
}

func (s *memStore) ShiftOrdersAfter(ctx context.Context, scope domain.Scope, removedOrder int) error {
	for _, m := range s.modules {
		if m.ProjectID == scope.ProjectID && !m.IsDeleted() &&
			sameParent(m.ParentModuleID, scope.ParentModuleID) && m.SortOrder > removedOrder {
			m.SortOrder--
		}
	}
	if scope.ParentModuleID == nil {
		return nil
	}
	for _, f := range s.features {
		if f.ModuleID == *scope.ParentModuleID && !f.IsDeleted() && f.SortOrder > removedOrder {
			f.SortOrder--
		}
	}
	return nil
}

// ---- lifecycle ----

func (s *memStore) MarkDeleted(ctx context.Context, kind domain.NodeKind, ids []string, at time.Time, by string) error {
	for _, id := range ids {
		switch kind {
		case domain.KindModule:
			if m, ok := s.modules[id]; ok && !m.IsDeleted() {
				t, b := at, by
				m.DeletedAt, m.DeletedBy = &t, &b
			}
		case domain.KindFeature:
			if f, ok := s.features[id]; ok && !f.IsDeleted() {
				t, b := at, by
				f.DeletedAt, f.DeletedBy = &t, &b
			}
		}
	}
	return nil
}

func (s *memStore) ClearDeleted(ctx context.Context, kind domain.NodeKind, ids []string) error {
	for _, id := range ids {
		switch kind {
		case domain.KindModule:
			if m, ok := s.modules[id]; ok {
				m.DeletedAt, m.DeletedBy = nil, nil
			}
		case domain.KindFeature:
			if f, ok := s.features[id]; ok {
				f.DeletedAt, f.DeletedBy = nil, nil
			}
		}
	}
	return nil
}

// ---- module versions ----

func (s *memStore) GetModuleVersion(ctx context.Context, moduleID string, number int) (*domain.ModuleVersion, error) {
	for _, v := range s.moduleVersions {
		if v.ModuleID == moduleID && v.VersionNumber == number {
			cp := *v
			return &cp, nil
		}
	}
	return nil, xerrors.ErrVersionNotFound
}

func (s *memStore) GetModuleVersionByID(ctx context.Context, versionID string) (*domain.ModuleVersion, error) {
	v, ok := s.moduleVersions[versionID]
	if !ok {
		return nil, xerrors.ErrVersionNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memStore) GetModuleVersionByHash(ctx context.Context, moduleID, hash string) (*domain.ModuleVersion, error) {
	for _, v := range s.moduleVersions {
		if v.ModuleID == moduleID && v.ContentHash == hash {
			cp := *v
			return &cp, nil
		}
	}
	return nil, xerrors.ErrVersionNotFound
}

func (s *memStore) NextModuleVersionNumber(ctx context.Context, moduleID string) (int, error) {
	max := 0
	for _, v := range s.moduleVersions {
		if v.ModuleID == moduleID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1, nil
}

func (s *memStore) InsertModuleVersion(ctx context.Context, v *domain.ModuleVersion) error {
	for _, existing := range s.moduleVersions {
		if existing.ModuleID == v.ModuleID &&
			(existing.VersionNumber == v.VersionNumber || existing.ContentHash == v.ContentHash) {
			return xerrors.ErrDuplicateVersion
		}
	}
	cp := *v
	s.moduleVersions[v.ID] = &cp
	return nil
}

func (s *memStore) ListModuleVersions(ctx context.Context, moduleID string) ([]*domain.ModuleVersion, error) {
	var out []*domain.ModuleVersion
	for _, v := range s.moduleVersions {
		if v.ModuleID == moduleID {
			cp := *v
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].VersionNumber > out[i].VersionNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *memStore) SetModulePublishedVersion(ctx context.Context, moduleID string, versionID *string) error {
	m, ok := s.modules[moduleID]
	if !ok {
		return xerrors.ErrModuleNotFound
	}
	m.PublishedVersionID = versionID
	return nil
}

// ---- feature versions ----

func (s *memStore) GetFeatureVersion(ctx context.Context, featureID string, number int) (*domain.FeatureVersion, error) {
	for _, v := range s.featureVersions {
		if v.FeatureID == featureID && v.VersionNumber == number {
			cp := *v
			return &cp, nil
		}
	}
	return nil, xerrors.ErrVersionNotFound
}

func (s *memStore) GetFeatureVersionByID(ctx context.Context, versionID string) (*domain.FeatureVersion, error) {
	v, ok := s.featureVersions[versionID]
	if !ok {
		return nil, xerrors.ErrVersionNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memStore) GetFeatureVersionByHash(ctx context.Context, featureID, hash string) (*domain.FeatureVersion, error) {
	for _, v := range s.featureVersions {
		if v.FeatureID == featureID && v.ContentHash == hash {
			cp := *v
			return &cp, nil
		}
	}
	return nil, xerrors.ErrVersionNotFound
}

func (s *memStore) NextFeatureVersionNumber(ctx context.Context, featureID string) (int, error) {
	max := 0
	for _, v := range s.featureVersions {
		if v.FeatureID == featureID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1, nil
}

func (s *memStore) InsertFeatureVersion(ctx context.Context, v *domain.FeatureVersion) error {
	for _, existing := range s.featureVersions {
		if existing.FeatureID == v.FeatureID &&
			(existing.VersionNumber == v.VersionNumber || existing.ContentHash == v.ContentHash) {
			return xerrors.ErrDuplicateVersion
		}
	}
	cp := *v
	s.featureVersions[v.ID] = &cp
	return nil
}

func (s *memStore) ListFeatureVersions(ctx context.Context, featureID string) ([]*domain.FeatureVersion, error) {
	var out []*domain.FeatureVersion
	for _, v := range s.featureVersions {
		if v.FeatureID == featureID {
			cp := *v
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].VersionNumber > out[i].VersionNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *memStore) SetFeaturePublishedVersion(ctx context.Context, featureID string, versionID *string) error {
	f, ok := s.features[featureID]
	if !ok {
		return xerrors.ErrFeatureNotFound
	}
	f.PublishedVersionID = versionID
	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// allowAllGate passes every access check.
type allowAllGate struct{}

func (allowAllGate) CanRead(ctx context.Context, userID, projectID string) error  { return nil }
func (allowAllGate) CanWrite(ctx context.Context, userID, projectID string) error { return nil }

// denyGate refuses every access check.
type denyGate struct{}

func (denyGate) CanRead(ctx context.Context, userID, projectID string) error {
	return xerrors.ErrForbidden
}
func (denyGate) CanWrite(ctx context.Context, userID, projectID string) error {
	return xerrors.ErrForbidden
}
