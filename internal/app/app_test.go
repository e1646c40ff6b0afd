package app_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/adapters/repo"
	"go.trai.ch/pms/internal/app"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const digest = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

type fixture struct {
	app       *app.App
	cfg       *config.Config
	transport *mocks.MockTransport
	store     *mocks.MockInstalledStore
	fetcher   *mocks.MockArchiveFetcher
	locker    *mocks.MockLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	stateDir := t.TempDir()
	cacheDir := t.TempDir()

	cfg := &config.Config{
		RootDir:      t.TempDir(),
		StateDir:     stateDir,
		CacheDir:     cacheDir,
		SourcesPath:  filepath.Join(stateDir, domain.SourcesFileName),
		FetchRetries: 1,
		FetchTimeout: time.Second,
	}

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any()).AnyTimes()

	f := &fixture{
		cfg:       cfg,
		transport: mocks.NewMockTransport(ctrl),
		store:     mocks.NewMockInstalledStore(ctrl),
		fetcher:   mocks.NewMockArchiveFetcher(ctrl),
		locker:    mocks.NewMockLocker(ctrl),
	}
	loader := repo.NewLoader(f.transport, logger, cfg.SourcesPath, cfg.SnapshotPath())
	f.app = app.New(cfg, loader, f.store, f.fetcher,
		mocks.NewMockScriptRunner(ctrl), mocks.NewMockArchiver(ctrl), f.locker, logger)
	return f
}

// serveIndex registers one source serving a single-package index.
func (f *fixture) serveIndex(t *testing.T, name, version string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.cfg.SourcesPath,
		[]byte("https://repo.example.com\n"), 0o644))

	doc := fmt.Sprintf(`{%[1]q: {%[2]q: {
		"metadata": {
			"name": %[1]q, "version": %[2]q, "description": "a package",
			"maintainer": "dev@example.com", "specification": "1.0.0"
		},
		"hash": "sha256:%[3]s"
	}}}`, name, version, digest)

	f.transport.EXPECT().
		Get(gomock.Any(), "https://repo.example.com/"+domain.IndexFileName).
		Return(io.NopCloser(strings.NewReader(doc)), nil)
}

func TestPlanInstall(t *testing.T) {
	f := newFixture(t)
	f.serveIndex(t, "curl", "8.0")
	f.store.EXPECT().All().Return(nil, nil)

	plan, err := f.app.PlanInstall(context.Background(), []string{"curl"})
	require.NoError(t, err)
	require.Equal(t, 1, plan.Len())
	unit := plan.Units()[0]
	assert.Equal(t, domain.ActionInstall, unit.Action)
	assert.Equal(t, "curl", unit.Name)
}

func TestPlanRemove(t *testing.T) {
	f := newFixture(t)
	f.serveIndex(t, "curl", "8.0")
	installed := []domain.InstalledPackage{{
		Name:    "curl",
		Version: "8.0",
		Manifest: domain.Manifest{
			Name: "curl", Version: "8.0", Description: "transfer tool",
			Maintainer: "dev@example.com", Specification: domain.SpecificationVersion,
		},
	}}
	f.store.EXPECT().All().Return(installed, nil)

	plan, err := f.app.PlanRemove(context.Background(), []string{"curl"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Len())
	assert.Equal(t, domain.ActionRemove, plan.Units()[0].Action)
}

func TestApply(t *testing.T) {
	t.Run("empty plan never takes the lock", func(t *testing.T) {
		f := newFixture(t)

		report, err := f.app.Apply(context.Background(), domain.Plan{})
		require.NoError(t, err)
		assert.Empty(t, report.Results)
	})

	t.Run("held lock blocks the operation", func(t *testing.T) {
		f := newFixture(t)
		f.locker.EXPECT().Acquire().Return(nil, domain.ErrLockHeld)

		plan := domain.NewPlan([]domain.Unit{{
			Action: domain.ActionInstall, Name: "curl", Version: domain.MustParseVersion("8.0"),
		}})
		_, err := f.app.Apply(context.Background(), plan)
		assert.ErrorIs(t, err, domain.ErrLockHeld)
	})

	t.Run("lock is released after execution", func(t *testing.T) {
		f := newFixture(t)
		f.serveIndex(t, "curl", "8.0")

		released := false
		f.locker.EXPECT().Acquire().Return(func() { released = true }, nil)
		f.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return("", domain.ErrFetchFailed)

		plan := domain.NewPlan([]domain.Unit{{
			Action: domain.ActionInstall, Name: "curl", Version: domain.MustParseVersion("8.0"),
		}})
		_, err := f.app.Apply(context.Background(), plan)
		require.Error(t, err)
		assert.True(t, released)
	})
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	f.serveIndex(t, "curl", "8.0")

	require.NoError(t, f.app.Update(context.Background()))
	assert.FileExists(t, f.cfg.SnapshotPath())
}

func TestSearch(t *testing.T) {
	t.Run("matches name and description case-insensitively", func(t *testing.T) {
		f := newFixture(t)
		f.serveIndex(t, "curl", "8.0")

		hits, err := f.app.Search(context.Background(), "CU.L")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "curl", hits[0].Name)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.app.Search(context.Background(), "re(")
		assert.Error(t, err)
	})
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Get("curl").Return(&domain.InstalledPackage{Name: "curl"}, nil)

	rec, err := f.app.Status(context.Background(), "curl")
	require.NoError(t, err)
	assert.Equal(t, "curl", rec.Name)
}

func TestDependents(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().DependentsOf("libssl").Return([]string{"curl"}, nil)

	deps, err := f.app.Dependents(context.Background(), "libssl")
	require.NoError(t, err)
	assert.Equal(t, []string{"curl"}, deps)
}

func TestClean(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.cfg.ArchiveDir(), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.ArchiveDir(), "x.tar.gz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(f.cfg.SnapshotPath(), []byte("{}"), 0o644))

	require.NoError(t, f.app.Clean(context.Background()))
	assert.NoDirExists(t, f.cfg.ArchiveDir())
	assert.NoFileExists(t, f.cfg.SnapshotPath())
}
