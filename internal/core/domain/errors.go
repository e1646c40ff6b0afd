package domain

import "errors"

// Sentinels are plain errors so that wrapping them with zerr keeps them
// reachable through errors.Is: zerr.With on a non-zerr error records it
// as the cause, and producers with an underlying failure join the
// sentinel in with errors.Join.
var (
	// ErrMalformedVersion is returned when a version string has empty or
	// non-numeric components.
	ErrMalformedVersion = errors.New("malformed version")

	// ErrMalformedDependency is returned when a dependency specifier cannot
	// be parsed.
	ErrMalformedDependency = errors.New("malformed dependency")

	// ErrInvalidManifest is returned when a package manifest is missing a
	// mandatory field or fails conformance checks.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrDuplicateEntry is returned when a repository index contains two
	// entries with the same name and version.
	ErrDuplicateEntry = errors.New("duplicate index entry")

	// ErrPackageNotFound is returned when a package is not present in the
	// repository index.
	ErrPackageNotFound = errors.New("package not found in repository")

	// ErrDependencyCycle is returned when resolution detects a cycle in the
	// dependency graph.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrUnresolvedDependency is returned when no index entry satisfies a
	// dependency specifier.
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrDependentsBlockRemoval is returned when installed packages depend
	// on a package requested for removal.
	ErrDependentsBlockRemoval = errors.New("installed packages depend on this package")

	// ErrNotInstalled is returned when an operation targets a package that
	// is not installed.
	ErrNotInstalled = errors.New("package is not installed")

	// ErrFetchFailed is returned when an archive could not be retrieved
	// from its source after retries.
	ErrFetchFailed = errors.New("failed to fetch archive")

	// ErrHashMismatch is returned when a fetched archive does not match its
	// recorded content hash. Never retried.
	ErrHashMismatch = errors.New("archive hash mismatch")

	// ErrScriptFailed is returned when a lifecycle script exits with a
	// nonzero status.
	ErrScriptFailed = errors.New("lifecycle script failed")

	// ErrStoreCorruption is returned when the installed-set store is
	// unreadable or inconsistent. Fatal, never auto-repaired.
	ErrStoreCorruption = errors.New("installed-set store is corrupt")

	// ErrMalformedHash is returned when a content hash string cannot be
	// parsed or names an unsupported algorithm.
	ErrMalformedHash = errors.New("malformed content hash")

	// ErrBadArchiveLayout is returned when a package directory or archive
	// does not conform to the expected layout.
	ErrBadArchiveLayout = errors.New("package layout does not conform")

	// ErrLockHeld is returned when another package operation already holds
	// the host lock.
	ErrLockHeld = errors.New("another package operation is in progress")

	// ErrIndexLoadFailed is returned when a repository index cannot be
	// downloaded or parsed.
	ErrIndexLoadFailed = errors.New("failed to load repository index")

	// ErrConfigLoadFailed is returned when the configuration file cannot be
	// read or parsed.
	ErrConfigLoadFailed = errors.New("failed to load configuration")

	// ErrOperationAborted is returned when a plan execution stops before
	// all units committed.
	ErrOperationAborted = errors.New("operation aborted")
)
