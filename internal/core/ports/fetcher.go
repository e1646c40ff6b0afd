package ports

import (
	"context"

	"go.trai.ch/pms/internal/core/domain"
)

// ArchiveFetcher retrieves package archives and verifies their content
// hashes.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type ArchiveFetcher interface {
	// Fetch retrieves the archive for an index entry into the local cache
	// and returns its path. Transport failures surface as ErrFetchFailed
	// after bounded retries.
	Fetch(ctx context.Context, entry domain.Entry) (string, error)

	// Verify recomputes the archive's content hash and compares it against
	// the entry's recorded hash. A mismatch is ErrHashMismatch and is
	// never retried.
	Verify(path string, hash domain.ContentHash) error

	// Prefetch retrieves archives for the given entries concurrently as a
	// best-effort optimization. Errors are deferred to the per-entry
	// Fetch call.
	Prefetch(ctx context.Context, entries []domain.Entry)
}
