package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pms/internal/core/domain"
)

func validManifest() domain.Manifest {
	return domain.Manifest{
		Name:          "tool",
		Version:       "1.2.0",
		Description:   "a tool",
		Maintainer:    "dev@example.com",
		Specification: domain.SpecificationVersion,
		Depends:       []string{"libfoo (>= 1.0)"},
	}
}

func TestParseManifest(t *testing.T) {
	t.Run("parses a valid document", func(t *testing.T) {
		raw := []byte(`{
			"name": "tool",
			"version": "1.2.0",
			"description": "a tool",
			"maintainer": "dev@example.com",
			"specification": "1.0.0",
			"dependencies": ["libfoo (>= 1.0)"],
			"unknown_field": 42
		}`)
		m, err := domain.ParseManifest(raw)
		require.NoError(t, err)
		assert.Equal(t, "tool", m.Name)
		assert.Equal(t, "1.2.0", m.ParsedVersion().String())

		deps, err := m.Dependencies()
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.Equal(t, "libfoo", deps[0].Name)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := domain.ParseManifest([]byte("{"))
		assert.ErrorIs(t, err, domain.ErrInvalidManifest)
	})
}

func TestManifestValidate(t *testing.T) {
	t.Run("passes for a complete manifest", func(t *testing.T) {
		require.NoError(t, validManifest().Validate())
	})

	t.Run("rejects missing mandatory fields", func(t *testing.T) {
		mutations := map[string]func(*domain.Manifest){
			"name":          func(m *domain.Manifest) { m.Name = "" },
			"version":       func(m *domain.Manifest) { m.Version = "" },
			"description":   func(m *domain.Manifest) { m.Description = "" },
			"maintainer":    func(m *domain.Manifest) { m.Maintainer = "" },
			"specification": func(m *domain.Manifest) { m.Specification = "" },
		}
		for field, mutate := range mutations {
			m := validManifest()
			mutate(&m)
			assert.ErrorIs(t, m.Validate(), domain.ErrInvalidManifest, field)
		}
	})

	t.Run("specification pin is literal", func(t *testing.T) {
		m := validManifest()
		m.Specification = "1.0"
		assert.ErrorIs(t, m.Validate(), domain.ErrInvalidManifest)

		m.Specification = "1.0.1"
		assert.ErrorIs(t, m.Validate(), domain.ErrInvalidManifest)
	})

	t.Run("rejects unparsable version", func(t *testing.T) {
		m := validManifest()
		m.Version = "1.x"
		assert.ErrorIs(t, m.Validate(), domain.ErrInvalidManifest)
	})

	t.Run("rejects unparsable dependency", func(t *testing.T) {
		m := validManifest()
		m.Depends = []string{"libfoo (~ 1.0)"}
		assert.ErrorIs(t, m.Validate(), domain.ErrInvalidManifest)
	})
}
