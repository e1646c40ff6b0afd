package fetch_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pms/internal/adapters/fetch"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func entry(source string) domain.Entry {
	return domain.Entry{
		Name:     "vim",
		Version:  domain.MustParseVersion("9.1"),
		Filename: domain.ArchiveFileName("vim", "9.1"),
		Source:   source,
	}
}

func body(content string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(content))
}

func newFetcher(t *testing.T, retries uint64) (*fetch.Fetcher, *mocks.MockTransport, string) {
	t.Helper()
	ctrl := gomock.NewController(t)

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	transport := mocks.NewMockTransport(ctrl)
	dir := t.TempDir()
	return fetch.New(transport, logger, dir, retries), transport, dir
}

func TestFetch(t *testing.T) {
	t.Run("downloads once and serves from cache after", func(t *testing.T) {
		f, transport, _ := newFetcher(t, 0)
		transport.EXPECT().
			Get(gomock.Any(), "https://repo.example.com/stable/vim_9.1_x64.tar.gz").
			Return(body("archive bytes"), nil)

		path, err := f.Fetch(context.Background(), entry("https://repo.example.com/stable"))
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "archive bytes", string(data))

		// No second transport call.
		again, err := f.Fetch(context.Background(), entry("https://repo.example.com/stable"))
		require.NoError(t, err)
		assert.Equal(t, path, again)
	})

	t.Run("retries transient transport failures", func(t *testing.T) {
		f, transport, _ := newFetcher(t, 2)
		gomock.InOrder(
			transport.EXPECT().Get(gomock.Any(), gomock.Any()).
				Return(nil, domain.ErrFetchFailed),
			transport.EXPECT().Get(gomock.Any(), gomock.Any()).
				Return(body("archive bytes"), nil),
		)

		path, err := f.Fetch(context.Background(), entry("https://repo.example.com/stable"))
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("gives up when retries are exhausted", func(t *testing.T) {
		f, transport, _ := newFetcher(t, 0)
		transport.EXPECT().Get(gomock.Any(), gomock.Any()).
			Return(nil, domain.ErrFetchFailed)

		_, err := f.Fetch(context.Background(), entry("https://repo.example.com/stable"))
		assert.ErrorIs(t, err, domain.ErrFetchFailed)
	})

	t.Run("keys the cache by source", func(t *testing.T) {
		f, transport, _ := newFetcher(t, 0)
		transport.EXPECT().Get(gomock.Any(), "https://a.example.com/vim_9.1_x64.tar.gz").
			Return(body("from a"), nil)
		transport.EXPECT().Get(gomock.Any(), "https://b.example.com/vim_9.1_x64.tar.gz").
			Return(body("from b"), nil)

		fromA, err := f.Fetch(context.Background(), entry("https://a.example.com"))
		require.NoError(t, err)
		fromB, err := f.Fetch(context.Background(), entry("https://b.example.com"))
		require.NoError(t, err)
		assert.NotEqual(t, fromA, fromB)
	})
}

func TestVerify(t *testing.T) {
	writeArchive := func(t *testing.T, content string) (string, domain.ContentHash) {
		t.Helper()
		path := strings.TrimSuffix(t.TempDir(), "/") + "/vim_9.1_x64.tar.gz"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		hash, err := domain.SumContent(strings.NewReader(content))
		require.NoError(t, err)
		return path, hash
	}

	t.Run("matching hash", func(t *testing.T) {
		f, _, _ := newFetcher(t, 0)
		path, hash := writeArchive(t, "archive bytes")
		assert.NoError(t, f.Verify(path, hash))
	})

	t.Run("mismatched hash", func(t *testing.T) {
		f, _, _ := newFetcher(t, 0)
		path, hash := writeArchive(t, "archive bytes")
		require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))

		err := f.Verify(path, hash)
		assert.ErrorIs(t, err, domain.ErrHashMismatch)
	})

	t.Run("unreadable archive", func(t *testing.T) {
		f, _, dir := newFetcher(t, 0)
		err := f.Verify(dir+"/missing.tar.gz", domain.ContentHash{})
		assert.Error(t, err)
	})
}

func TestPrefetch(t *testing.T) {
	t.Run("warms the cache", func(t *testing.T) {
		f, transport, _ := newFetcher(t, 0)
		transport.EXPECT().Get(gomock.Any(), gomock.Any()).
			Return(body("archive bytes"), nil)

		f.Prefetch(context.Background(), []domain.Entry{entry("https://repo.example.com")})

		// The later Fetch is a cache hit.
		path, err := f.Fetch(context.Background(), entry("https://repo.example.com"))
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("failures are deferred", func(t *testing.T) {
		f, transport, _ := newFetcher(t, 0)
		transport.EXPECT().Get(gomock.Any(), gomock.Any()).
			Return(nil, domain.ErrFetchFailed)

		f.Prefetch(context.Background(), []domain.Entry{entry("https://repo.example.com")})
	})
}
