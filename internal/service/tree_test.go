package service

import (
	"testing"
	"time"

	"structure-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildTree(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	modules := []*domain.Module{
		{ID: "mod_root", ProjectID: "prj_1", Name: "Platform", SortOrder: 0, CreatedAt: base},
		{ID: "mod_auth", ProjectID: "prj_1", ParentModuleID: strPtr("mod_root"), Name: "Auth", SortOrder: 1, CreatedAt: base.Add(time.Minute)},
		{ID: "mod_billing", ProjectID: "prj_1", ParentModuleID: strPtr("mod_root"), Name: "Billing", SortOrder: 0, CreatedAt: base.Add(2 * time.Minute)},
	}
	features := []*domain.Feature{
		{ID: "feat_login", ModuleID: "mod_auth", Name: "Login", SortOrder: 0, CreatedAt: base},
		{ID: "feat_audit", ModuleID: "mod_root", Name: "Audit log", SortOrder: 2, CreatedAt: base},
	}

	t.Run("merges child modules and features per scope", func(t *testing.T) {
		tree := BuildTree(modules, features)
		require.Len(t, tree, 1)

		root := tree[0]
		assert.Equal(t, "mod_root", root.ID)
		assert.Equal(t, 1, root.DisplayOrder)

		require.Len(t, root.Children, 3)
		assert.Equal(t, []string{"mod_billing", "mod_auth", "feat_audit"},
			[]string{root.Children[0].ID, root.Children[1].ID, root.Children[2].ID})
		assert.Equal(t, []int{1, 2, 3},
			[]int{root.Children[0].DisplayOrder, root.Children[1].DisplayOrder, root.Children[2].DisplayOrder})

		auth := root.Children[1]
		require.Len(t, auth.Children, 1)
		assert.Equal(t, "feat_login", auth.Children[0].ID)
		assert.Equal(t, domain.KindFeature, auth.Children[0].Kind)
	})

	t.Run("reproducible regardless of input row order", func(t *testing.T) {
		want := BuildTree(modules, features)

		reversedModules := []*domain.Module{modules[2], modules[0], modules[1]}
		reversedFeatures := []*domain.Feature{features[1], features[0]}
		got := BuildTree(reversedModules, reversedFeatures)

		assert.Equal(t, want, got)
	})
}

func TestBuildTreeTieBreaks(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("unset order sorts last", func(t *testing.T) {
		modules := []*domain.Module{
			{ID: "mod_a", ProjectID: "prj_1", Name: "A", SortOrder: -1, CreatedAt: base},
			{ID: "mod_b", ProjectID: "prj_1", Name: "B", SortOrder: 0, CreatedAt: base},
		}
		tree := BuildTree(modules, nil)
		require.Len(t, tree, 2)
		assert.Equal(t, "mod_b", tree[0].ID)
		assert.Equal(t, "mod_a", tree[1].ID)
	})

	t.Run("creation time then name break order ties", func(t *testing.T) {
		modules := []*domain.Module{
			{ID: "mod_late", ProjectID: "prj_1", Name: "Aardvark", SortOrder: 0, CreatedAt: base.Add(time.Hour)},
			{ID: "mod_early", ProjectID: "prj_1", Name: "Zebra", SortOrder: 0, CreatedAt: base},
			{ID: "mod_name_b", ProjectID: "prj_1", Name: "Beta", SortOrder: 1, CreatedAt: base},
			{ID: "mod_name_a", ProjectID: "prj_1", Name: "Alpha", SortOrder: 1, CreatedAt: base},
		}
		tree := BuildTree(modules, nil)
		require.Len(t, tree, 4)
		assert.Equal(t, "mod_early", tree[0].ID)
		assert.Equal(t, "mod_late", tree[1].ID)
		assert.Equal(t, "mod_name_a", tree[2].ID)
		assert.Equal(t, "mod_name_b", tree[3].ID)
	})

	t.Run("module precedes feature on a full tie", func(t *testing.T) {
		modules := []*domain.Module{
			{ID: "mod_p", ProjectID: "prj_1", Name: "Parent", SortOrder: 0, CreatedAt: base},
			{ID: "mod_same", ProjectID: "prj_1", ParentModuleID: strPtr("mod_p"), Name: "Same", SortOrder: 0, CreatedAt: base},
		}
		features := []*domain.Feature{
			{ID: "feat_same", ModuleID: "mod_p", Name: "Same", SortOrder: 0, CreatedAt: base},
		}
		tree := BuildTree(modules, features)
		require.Len(t, tree, 1)
		require.Len(t, tree[0].Children, 2)
		assert.Equal(t, domain.KindModule, tree[0].Children[0].Kind)
		assert.Equal(t, domain.KindFeature, tree[0].Children[1].Kind)
	})
}
