// Package domain contains the core domain models for the package manager:
// versions, dependency specifiers, manifests, the repository index and the
// resolution plan.
package domain

import (
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Version is an ordered sequence of non-negative integer components parsed
// from a dotted string such as "1.10.2". Comparison is component-wise
// numeric; missing trailing components compare as zero, so "1.2" equals
// "1.2.0".
type Version struct {
	parts []int
	raw   string
}

// ParseVersion parses a dotted version string.
// It returns ErrMalformedVersion on empty or non-numeric components.
func ParseVersion(text string) (Version, error) {
	if text == "" {
		return Version{}, zerr.With(ErrMalformedVersion, "version", text)
	}

	fields := strings.Split(text, ".")
	parts := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return Version{}, zerr.With(ErrMalformedVersion, "version", text)
		}
		parts[i] = n
	}

	return Version{parts: parts, raw: text}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
// Intended for tests and compile-time constants.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as originally written.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether v is the zero Version (never parsed).
func (v Version) IsZero() bool {
	return v.parts == nil
}

// Compare returns -1, 0 or +1 when v is respectively less than, equal to or
// greater than other. Shorter versions are padded with zero components.
func (v Version) Compare(other Version) int {
	n := max(len(v.parts), len(other.parts))
	for i := range n {
		a, b := v.component(i), other.component(i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// Equal reports whether v and other compare as equal.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func (v Version) component(i int) int {
	if i < len(v.parts) {
		return v.parts[i]
	}
	return 0
}

// Operator is a version comparison operator in a dependency specifier.
type Operator string

const (
	OpEqual        Operator = "="
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
)

// Dependency is a specifier of the form "name" or "name (OP version)".
// A specifier without a constraint is satisfied by any version.
type Dependency struct {
	Name       string
	Op         Operator
	Version    Version
	Constraint bool
}

// ParseDependency parses a dependency specifier string.
// It returns ErrMalformedDependency on an unparsable operator or version.
func ParseDependency(text string) (Dependency, error) {
	text = strings.TrimSpace(text)

	name, rest, constrained := strings.Cut(text, "(")
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return Dependency{}, zerr.With(ErrMalformedDependency, "dependency", text)
	}

	if !constrained {
		return Dependency{Name: name}, nil
	}

	inner, ok := strings.CutSuffix(strings.TrimSpace(rest), ")")
	if !ok {
		return Dependency{}, zerr.With(ErrMalformedDependency, "dependency", text)
	}

	op, version, err := splitConstraint(strings.TrimSpace(inner))
	if err != nil {
		return Dependency{}, zerr.With(err, "dependency", text)
	}

	return Dependency{Name: name, Op: op, Version: version, Constraint: true}, nil
}

func splitConstraint(text string) (Operator, Version, error) {
	var op Operator
	switch {
	case strings.HasPrefix(text, string(OpGreaterEqual)):
		op = OpGreaterEqual
	case strings.HasPrefix(text, string(OpLessEqual)):
		op = OpLessEqual
	case strings.HasPrefix(text, string(OpGreater)):
		op = OpGreater
	case strings.HasPrefix(text, string(OpLess)):
		op = OpLess
	case strings.HasPrefix(text, string(OpEqual)):
		op = OpEqual
	default:
		return "", Version{}, ErrMalformedDependency
	}

	version, err := ParseVersion(strings.TrimSpace(text[len(op):]))
	if err != nil {
		return "", Version{}, ErrMalformedDependency
	}

	return op, version, nil
}

// String renders the specifier back to its canonical text form.
func (d Dependency) String() string {
	if !d.Constraint {
		return d.Name
	}
	return d.Name + " (" + string(d.Op) + " " + d.Version.String() + ")"
}

// SatisfiedBy reports whether the given version satisfies the specifier.
func (d Dependency) SatisfiedBy(v Version) bool {
	if !d.Constraint {
		return true
	}

	switch cmp := v.Compare(d.Version); d.Op {
	case OpEqual:
		return cmp == 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	}
	return false
}
