package service

import (
	"testing"

	"structure-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	t.Run("independent of key insertion order", func(t *testing.T) {
		a := ContentHash(map[string]interface{}{"name": "auth", "description": "login flows"})
		b := ContentHash(map[string]interface{}{"description": "login flows", "name": "auth"})
		assert.Equal(t, a, b)
	})

	t.Run("independent of pin collection order", func(t *testing.T) {
		a := ContentHash(map[string]interface{}{
			"children_pins": []domain.Pin{{ChildID: "mod_b", VersionNumber: 2}, {ChildID: "mod_a", VersionNumber: 1}},
		})
		b := ContentHash(map[string]interface{}{
			"children_pins": []domain.Pin{{ChildID: "mod_a", VersionNumber: 1}, {ChildID: "mod_b", VersionNumber: 2}},
		})
		assert.Equal(t, a, b)
	})

	t.Run("sensitive to every value", func(t *testing.T) {
		base := map[string]interface{}{"name": "auth", "description": "login"}
		h1 := ContentHash(base)
		h2 := ContentHash(map[string]interface{}{"name": "auth", "description": "login!"})
		h3 := ContentHash(map[string]interface{}{"name": "auth2", "description": "login"})
		assert.NotEqual(t, h1, h2)
		assert.NotEqual(t, h1, h3)

		p1 := ContentHash(map[string]interface{}{"children_pins": []domain.Pin{{ChildID: "mod_a", VersionNumber: 1}}})
		p2 := ContentHash(map[string]interface{}{"children_pins": []domain.Pin{{ChildID: "mod_a", VersionNumber: 2}}})
		assert.NotEqual(t, p1, p2)
	})

	t.Run("absent values normalize to one null form", func(t *testing.T) {
		a := ContentHash(map[string]interface{}{"name": "auth", "description": nil})
		b := ContentHash(map[string]interface{}{"name": "auth", "description": ""})
		var p *string
		c := ContentHash(map[string]interface{}{"name": "auth", "description": p})
		assert.Equal(t, a, b)
		assert.Equal(t, a, c)
	})

	t.Run("string null is not absent", func(t *testing.T) {
		a := ContentHash(map[string]interface{}{"description": nil})
		b := ContentHash(map[string]interface{}{"description": "null"})
		assert.NotEqual(t, a, b)
	})

	t.Run("lowercase hex sha-256 shape", func(t *testing.T) {
		h := ContentHash(map[string]interface{}{"name": "auth"})
		require.Len(t, h, 64)
		for _, c := range h {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'), "unexpected rune %q", c)
		}
	})

	t.Run("unsupported shapes never panic", func(t *testing.T) {
		type odd struct{ X int }
		assert.NotPanics(t, func() {
			h1 := ContentHash(map[string]interface{}{"meta": odd{X: 1}})
			h2 := ContentHash(map[string]interface{}{"meta": odd{X: 1}})
			assert.Equal(t, h1, h2)
		})
	})

	t.Run("nested collections are canonical", func(t *testing.T) {
		a := ContentHash(map[string]interface{}{
			"meta": map[string]interface{}{"x": 1, "y": []interface{}{"a", true}},
		})
		b := ContentHash(map[string]interface{}{
			"meta": map[string]interface{}{"y": []interface{}{"a", true}, "x": 1},
		})
		assert.Equal(t, a, b)
	})
}

func TestModuleHashFields(t *testing.T) {
	// The versionable subset covers content plus composition; equal content
	// with different pins must hash differently.
	h1 := ContentHash(moduleHashFields("auth", "login", nil, nil))
	h2 := ContentHash(moduleHashFields("auth", "login", []domain.Pin{{ChildID: "mod_x", VersionNumber: 1}}, nil))
	assert.NotEqual(t, h1, h2)

	h3 := ContentHash(featureHashFields("signup", "", domain.PriorityHigh, domain.StatusDraft))
	h4 := ContentHash(featureHashFields("signup", "", domain.PriorityHigh, domain.StatusDone))
	assert.NotEqual(t, h3, h4)
}
