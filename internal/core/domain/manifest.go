package domain

import (
	"encoding/json"
	"errors"

	"go.trai.ch/zerr"
)

// SpecificationVersion is the only accepted value for a manifest's
// specification field. The pin is literal: other well-formed version
// strings are rejected without comparison.
const SpecificationVersion = "1.0.0"

// Manifest is the structured metadata describing one package version.
// Name, Version, Description, Maintainer and Specification are mandatory.
type Manifest struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Description   string   `json:"description"`
	Maintainer    string   `json:"maintainer"`
	Specification string   `json:"specification"`
	Depends       []string `json:"dependencies,omitempty"`
	Homepage      string   `json:"homepage,omitempty"`
}

// ParseManifest decodes and validates a manifest document.
// Unknown fields are ignored.
func ParseManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, errors.Join(ErrInvalidManifest, err)
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

// Validate checks the manifest against the conformance rules: presence of
// all mandatory fields, the exact specification pin, a parsable version and
// parsable dependency specifiers.
func (m Manifest) Validate() error {
	for _, field := range []struct{ name, value string }{
		{"name", m.Name},
		{"version", m.Version},
		{"description", m.Description},
		{"maintainer", m.Maintainer},
		{"specification", m.Specification},
	} {
		if field.value == "" {
			return zerr.With(zerr.With(ErrInvalidManifest, "missing_field", field.name), "package", m.Name)
		}
	}

	if m.Specification != SpecificationVersion {
		return zerr.With(
			zerr.With(
				zerr.With(ErrInvalidManifest, "package", m.Name),
				"specification", m.Specification,
			),
			"required", SpecificationVersion,
		)
	}

	if _, err := ParseVersion(m.Version); err != nil {
		return zerr.With(errors.Join(ErrInvalidManifest, err), "package", m.Name)
	}

	if _, err := m.Dependencies(); err != nil {
		return zerr.With(errors.Join(ErrInvalidManifest, err), "package", m.Name)
	}

	return nil
}

// ParsedVersion returns the manifest version as a Version.
// The manifest must have passed Validate.
func (m Manifest) ParsedVersion() Version {
	v, _ := ParseVersion(m.Version)
	return v
}

// Dependencies parses the manifest's dependency specifiers in declaration
// order.
func (m Manifest) Dependencies() ([]Dependency, error) {
	deps := make([]Dependency, 0, len(m.Depends))
	for _, text := range m.Depends {
		dep, err := ParseDependency(text)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}
