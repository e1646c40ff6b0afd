package ports

import (
	"context"
	"io"
)

// Transport retrieves repository documents and archives by location.
// Locations may be HTTP(S) URLs or local filesystem paths.
//
//go:generate mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks
type Transport interface {
	// Get opens the resource at the given location for reading.
	// The caller owns the returned reader and must close it.
	Get(ctx context.Context, location string) (io.ReadCloser, error)
}
