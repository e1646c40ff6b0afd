// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/pms/internal/core/domain"

// InstalledStore is the durable record of what is installed on the host.
// It is the sole writer of installed-package records; every mutation must
// be atomic with respect to process crashes and concurrent readers.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type InstalledStore interface {
	// Get returns the record for a package name, or nil if not installed.
	Get(name string) (*domain.InstalledPackage, error)

	// All returns every installed package record, sorted by name.
	All() ([]domain.InstalledPackage, error)

	// DependentsOf returns the names of installed packages whose manifest
	// lists name as a dependency satisfied by the installed version.
	DependentsOf(name string) ([]string, error)

	// Commit durably records a package as installed, replacing any
	// previous record for the same name.
	Commit(rec domain.InstalledPackage) error

	// Delete durably removes the record for a package name.
	Delete(name string) error
}
