// Package fetch downloads package archives into a local cache and
// verifies their content hashes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// prefetchWorkers bounds concurrent best-effort downloads.
const prefetchWorkers = 4

// Fetcher implements ports.ArchiveFetcher. Downloads retry with bounded
// exponential backoff; verification never retries.
type Fetcher struct {
	transport ports.Transport
	logger    ports.Logger
	dir       string
	retries   uint64
}

// New creates a Fetcher caching archives under dir.
func New(transport ports.Transport, logger ports.Logger, dir string, retries uint64) *Fetcher {
	return &Fetcher{
		transport: transport,
		logger:    logger,
		dir:       dir,
		retries:   retries,
	}
}

// Fetch retrieves the archive for an index entry into the cache and
// returns its path. An already-cached archive is returned as is; the
// engine verifies it separately and discards it on mismatch.
func (f *Fetcher) Fetch(ctx context.Context, entry domain.Entry) (string, error) {
	path := f.cachePath(entry)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(f.dir, domain.DirPerm); err != nil {
		return "", zerr.Wrap(err, "failed to create archive cache")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries), ctx)
	err := backoff.Retry(func() error {
		return f.download(ctx, entry, path)
	}, policy)
	if err != nil {
		return "", zerr.With(
			zerr.With(errors.Join(domain.ErrFetchFailed, err), "package", entry.Name),
			"version", entry.Version.String(),
		)
	}

	return path, nil
}

// Verify recomputes the archive's content hash and compares it against
// the recorded one.
func (f *Fetcher) Verify(path string, hash domain.ContentHash) error {
	file, err := os.Open(path) // #nosec G304 -- path produced by Fetch
	if err != nil {
		return zerr.Wrap(err, "failed to open archive for verification")
	}
	defer func() { _ = file.Close() }()

	ok, err := hash.Matches(file)
	if err != nil {
		return zerr.Wrap(err, "failed to hash archive")
	}
	if !ok {
		return zerr.With(
			zerr.With(domain.ErrHashMismatch, "archive", filepath.Base(path)),
			"expected", hash.String(),
		)
	}
	return nil
}

// Prefetch warms the cache for the given entries. Failures are logged and
// deferred to the per-entry Fetch call.
func (f *Fetcher) Prefetch(ctx context.Context, entries []domain.Entry) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchWorkers)

	for _, entry := range entries {
		g.Go(func() error {
			if _, err := f.Fetch(ctx, entry); err != nil {
				f.logger.Warn("prefetch failed", "package", entry.Name)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Fetcher) download(ctx context.Context, entry domain.Entry, path string) error {
	location := joinLocation(entry.Source, entry.Filename)

	body, err := f.transport.Get(ctx, location)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp(f.dir, filepath.Base(path)+".*")
	if err != nil {
		return backoff.Permanent(zerr.Wrap(err, "failed to create download temp file"))
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "download interrupted"), "location", location)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return backoff.Permanent(zerr.Wrap(err, "failed to close download temp file"))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return backoff.Permanent(zerr.Wrap(err, "failed to place archive in cache"))
	}

	return nil
}

// cachePath keys the cache file by source so the same package published by
// two sources never collides.
func (f *Fetcher) cachePath(entry domain.Entry) string {
	key := fmt.Sprintf("%016x", xxhash.Sum64String(entry.Source))
	return filepath.Join(f.dir, key+"_"+domain.ArchiveFileName(entry.Name, entry.Version.String()))
}

func joinLocation(source, filename string) string {
	return strings.TrimSuffix(source, "/") + "/" + filename
}
