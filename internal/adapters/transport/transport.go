// Package transport retrieves repository documents and archives over
// HTTP(S) or from the local filesystem.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// Client implements ports.Transport. HTTP(S) locations go through the
// embedded http.Client; anything else is treated as a filesystem path.
type Client struct {
	http *http.Client
}

// New creates a Client with a per-request deadline.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Get opens the resource at the given location for reading. The caller
// owns the returned reader and must close it.
func (c *Client) Get(ctx context.Context, location string) (io.ReadCloser, error) {
	if isHTTP(location) {
		return c.getHTTP(ctx, location)
	}
	return c.getFile(location)
}

func (c *Client) getHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrFetchFailed, err), "location", location)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrFetchFailed, err), "location", location)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, zerr.With(
			zerr.With(domain.ErrFetchFailed, "location", location),
			"status", resp.Status,
		)
	}

	return resp.Body, nil
}

func (c *Client) getFile(location string) (io.ReadCloser, error) {
	f, err := os.Open(strings.TrimPrefix(location, "file://")) // #nosec G304 -- operator-configured source
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrFetchFailed, err), "location", location)
	}
	return f, nil
}

func isHTTP(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
