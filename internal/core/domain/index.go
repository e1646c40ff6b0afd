package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Entry is one installable package version known to the repository index.
type Entry struct {
	Name     string
	Version  Version
	Manifest Manifest
	// Filename is the archive location relative to Source.
	Filename string
	Hash     ContentHash
	// Source is the base URL or directory of the repository that published
	// this entry.
	Source string
}

// Index is the in-memory catalog of available package versions.
// It maps package name to the set of published versions.
type Index struct {
	packages map[string]map[string]Entry
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{packages: make(map[string]map[string]Entry)}
}

// Add inserts an entry. Two entries with the same name and version are
// index corruption and yield ErrDuplicateEntry.
func (ix *Index) Add(e Entry) error {
	versions, ok := ix.packages[e.Name]
	if !ok {
		versions = make(map[string]Entry)
		ix.packages[e.Name] = versions
	}

	key := e.Version.String()
	if _, exists := versions[key]; exists {
		return zerr.With(zerr.With(ErrDuplicateEntry, "package", e.Name), "version", key)
	}

	versions[key] = e
	return nil
}

// Lookup returns all entries for a package name, newest first.
// The result is empty for unknown names.
func (ix *Index) Lookup(name string) []Entry {
	versions := ix.packages[name]
	entries := make([]Entry, 0, len(versions))
	for _, e := range versions {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return b.Version.Compare(a.Version)
	})
	return entries
}

// LookupBest returns the entry with the greatest version satisfying the
// specifier, or false when no entry satisfies it.
func (ix *Index) LookupBest(dep Dependency) (Entry, bool) {
	var best Entry
	found := false
	for _, e := range ix.packages[dep.Name] {
		if !dep.SatisfiedBy(e.Version) {
			continue
		}
		if !found || e.Version.Compare(best.Version) > 0 {
			best = e
			found = true
		}
	}
	return best, found
}

// Get returns the entry for an exact name and version.
func (ix *Index) Get(name, version string) (Entry, bool) {
	e, ok := ix.packages[name][version]
	return e, ok
}

// Names returns all package names in lexicographic order.
func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.packages))
	for name := range ix.packages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of distinct package names.
func (ix *Index) Len() int {
	return len(ix.packages)
}

// Search returns the latest entry of every package whose name or
// description matches the given predicate.
func (ix *Index) Search(match func(name, description string) bool) []Entry {
	var hits []Entry
	for name := range ix.packages {
		entries := ix.Lookup(name)
		if len(entries) == 0 {
			continue
		}
		latest := entries[0]
		if match(strings.ToLower(name), strings.ToLower(latest.Manifest.Description)) {
			hits = append(hits, latest)
		}
	}
	slices.SortFunc(hits, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return hits
}
