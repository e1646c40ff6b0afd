// Package store implements the durable installed-set record as a single
// JSON snapshot with atomic replacement.
package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// snapshot is the on-disk document.
type snapshot struct {
	Packages map[string]domain.InstalledPackage `json:"packages"`
}

// Store implements ports.InstalledStore backed by one snapshot file.
// Mutations write a temp file next to the snapshot and rename it into
// place, so readers never observe a half-written store.
type Store struct {
	path string
}

// New creates a Store persisting to the given snapshot file.
func New(path string) *Store {
	return &Store{path: path}
}

// Get returns the record for a package name, or nil if not installed.
func (s *Store) Get(name string) (*domain.InstalledPackage, error) {
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := snap.Packages[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// All returns every installed package record, sorted by name.
func (s *Store) All() ([]domain.InstalledPackage, error) {
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	recs := make([]domain.InstalledPackage, 0, len(snap.Packages))
	for _, rec := range snap.Packages {
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b domain.InstalledPackage) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return recs, nil
}

// DependentsOf returns the names of installed packages depending on name,
// counting only specifiers the installed version actually satisfies.
func (s *Store) DependentsOf(name string) ([]string, error) {
	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	target, installed := snap.Packages[name]
	if !installed {
		return nil, nil
	}
	targetVersion := target.ParsedVersion()

	var dependents []string
	for depName, rec := range snap.Packages {
		if depName == name {
			continue
		}
		deps, err := rec.Manifest.Dependencies()
		if err != nil {
			return nil, zerr.With(errors.Join(domain.ErrStoreCorruption, err), "package", depName)
		}
		for _, dep := range deps {
			if dep.Name == name && dep.SatisfiedBy(targetVersion) {
				dependents = append(dependents, depName)
				break
			}
		}
	}
	slices.Sort(dependents)
	return dependents, nil
}

// Commit durably records a package as installed, replacing any previous
// record for the same name.
func (s *Store) Commit(rec domain.InstalledPackage) error {
	snap, err := s.load()
	if err != nil {
		return err
	}
	snap.Packages[rec.Name] = rec
	return s.save(snap)
}

// Delete durably removes the record for a package name.
func (s *Store) Delete(name string) error {
	snap, err := s.load()
	if err != nil {
		return err
	}
	delete(snap.Packages, name)
	return s.save(snap)
}

func (s *Store) load() (*snapshot, error) {
	//nolint:gosec // Path is the configured state file
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &snapshot{Packages: make(map[string]domain.InstalledPackage)}, nil
		}
		return nil, zerr.With(errors.Join(domain.ErrStoreCorruption, err), "path", s.path)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrStoreCorruption, err), "path", s.path)
	}
	if snap.Packages == nil {
		snap.Packages = make(map[string]domain.InstalledPackage)
	}
	for name, rec := range snap.Packages {
		if rec.Name != name {
			return nil, zerr.With(
				zerr.With(
					zerr.With(domain.ErrStoreCorruption, "path", s.path),
					"key", name,
				),
				"record", rec.Name,
			)
		}
		if _, err := domain.ParseVersion(rec.Version); err != nil {
			return nil, zerr.With(
				zerr.With(errors.Join(domain.ErrStoreCorruption, err), "path", s.path),
				"package", name,
			)
		}
	}

	return &snap, nil
}

func (s *Store) save(snap *snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode store snapshot")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(dir, domain.StatusFileName+".*")
	if err != nil {
		return zerr.Wrap(err, "failed to create snapshot temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to write snapshot temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to close snapshot temp file")
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to set snapshot permissions")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to replace store snapshot")
	}

	return nil
}
