package txn_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports/mocks"
	"go.trai.ch/pms/internal/engine/txn"
	"go.uber.org/mock/gomock"
)

type harness struct {
	engine   *txn.Engine
	fetcher  *mocks.MockArchiveFetcher
	scripts  *mocks.MockScriptRunner
	archiver *mocks.MockArchiver
	store    *mocks.MockInstalledStore
	paths    txn.Paths
	index    *domain.Index
}

func newHarness(t *testing.T, entries ...domain.Entry) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	index := domain.NewIndex()
	for _, e := range entries {
		require.NoError(t, index.Add(e))
	}

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any()).AnyTimes()

	h := &harness{
		fetcher:  mocks.NewMockArchiveFetcher(ctrl),
		scripts:  mocks.NewMockScriptRunner(ctrl),
		archiver: mocks.NewMockArchiver(ctrl),
		store:    mocks.NewMockInstalledStore(ctrl),
		index:    index,
		paths: txn.Paths{
			RootDir: t.TempDir(),
			InfoDir: t.TempDir(),
			TempDir: t.TempDir(),
		},
	}
	h.engine = txn.New(index, h.fetcher, h.scripts, h.archiver, h.store, logger, h.paths)
	return h
}

func appEntry() domain.Entry {
	return domain.Entry{
		Name:    "app",
		Version: domain.MustParseVersion("1.0"),
		Manifest: domain.Manifest{
			Name:          "app",
			Version:       "1.0",
			Description:   "the app",
			Maintainer:    "dev@example.com",
			Specification: domain.SpecificationVersion,
		},
		Filename: domain.ArchiveFileName("app", "1.0"),
		Source:   "https://repo.example.com/stable",
	}
}

func installPlan(name, version string) domain.Plan {
	return domain.NewPlan([]domain.Unit{{
		Action:  domain.ActionInstall,
		Name:    name,
		Version: domain.MustParseVersion(version),
	}})
}

// extractFixture makes the mocked Extract produce a staged archive with a
// data payload and a control dir.
func extractFixture(t *testing.T, payload map[string]string) func(string, string) error {
	t.Helper()
	return func(_, dest string) error {
		for rel, content := range payload {
			path := filepath.Join(dest, rel)
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestExecuteInstall(t *testing.T) {
	t.Run("runs all phases and commits the record", func(t *testing.T) {
		h := newHarness(t, appEntry())
		archive := filepath.Join(t.TempDir(), "app_1.0_x64.tar.gz")

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(archive, nil)
		h.fetcher.EXPECT().Verify(archive, gomock.Any()).Return(nil)
		h.archiver.EXPECT().Extract(archive, gomock.Any()).DoAndReturn(extractFixture(t, map[string]string{
			"pms/metadata.json":   "{}",
			"data/usr/bin/app":    "binary",
			"data/etc/app/config": "conf",
		}))

		gomock.InOrder(
			h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePreInst).Return(nil),
			h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhaseInstall).Return(nil),
			h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePostInst).Return(nil),
		)

		var committed domain.InstalledPackage
		h.store.EXPECT().Commit(gomock.Any()).DoAndReturn(func(rec domain.InstalledPackage) error {
			committed = rec
			return nil
		})

		report, err := h.engine.Execute(context.Background(), installPlan("app", "1.0"))
		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Equal(t, txn.StateCommitted, report.Results[0].State)
		assert.False(t, report.Failed())

		assert.Equal(t, "app", committed.Name)
		assert.Equal(t, "1.0", committed.Version)
		assert.ElementsMatch(t, []string{
			filepath.Join("usr", "bin", "app"),
			filepath.Join("etc", "app", "config"),
		}, committed.Files)

		assert.FileExists(t, filepath.Join(h.paths.RootDir, "usr", "bin", "app"))
		assert.FileExists(t, filepath.Join(h.paths.InfoDir, "app", "metadata.json"))

		// Staging is cleaned up after commit.
		assert.NoDirExists(t, filepath.Join(h.paths.TempDir, "app"))
	})

	t.Run("hash mismatch stops before any script runs", func(t *testing.T) {
		h := newHarness(t, appEntry())
		archive := filepath.Join(t.TempDir(), "app_1.0_x64.tar.gz")
		require.NoError(t, os.WriteFile(archive, []byte("tampered"), 0o644))

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(archive, nil)
		h.fetcher.EXPECT().Verify(archive, gomock.Any()).Return(domain.ErrHashMismatch)

		report, err := h.engine.Execute(context.Background(), installPlan("app", "1.0"))
		require.ErrorIs(t, err, domain.ErrHashMismatch)
		require.Len(t, report.Results, 1)
		assert.Equal(t, txn.StateFailed, report.Results[0].State)

		// The mismatched archive is dropped from the cache.
		assert.NoFileExists(t, archive)
	})

	t.Run("postinst failure rolls installed files back", func(t *testing.T) {
		h := newHarness(t, appEntry())
		archive := filepath.Join(t.TempDir(), "app_1.0_x64.tar.gz")

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(archive, nil)
		h.fetcher.EXPECT().Verify(archive, gomock.Any()).Return(nil)
		h.archiver.EXPECT().Extract(archive, gomock.Any()).DoAndReturn(extractFixture(t, map[string]string{
			"pms/metadata.json": "{}",
			"data/usr/bin/app":  "binary",
		}))

		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePreInst).Return(nil)
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhaseInstall).Return(nil)
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePostInst).Return(domain.ErrScriptFailed)

		report, err := h.engine.Execute(context.Background(), installPlan("app", "1.0"))
		require.ErrorIs(t, err, domain.ErrScriptFailed)
		assert.Equal(t, txn.StateFailed, report.Results[0].State)

		// Compensations removed everything the unit wrote.
		assert.NoFileExists(t, filepath.Join(h.paths.RootDir, "usr", "bin", "app"))
		assert.NoDirExists(t, filepath.Join(h.paths.InfoDir, "app"))
		assert.NoDirExists(t, filepath.Join(h.paths.TempDir, "app"))
	})

	t.Run("failure skips remaining units", func(t *testing.T) {
		lib := appEntry()
		lib.Name = "lib"
		lib.Manifest.Name = "lib"
		h := newHarness(t, appEntry(), lib)

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return("", domain.ErrFetchFailed)

		plan := domain.NewPlan([]domain.Unit{
			{Action: domain.ActionInstall, Name: "lib", Version: domain.MustParseVersion("1.0")},
			{Action: domain.ActionInstall, Name: "app", Version: domain.MustParseVersion("1.0")},
		})

		report, err := h.engine.Execute(context.Background(), plan)
		require.ErrorIs(t, err, domain.ErrOperationAborted)
		require.Len(t, report.Results, 2)
		assert.Equal(t, txn.StateFailed, report.Results[0].State)
		assert.Equal(t, txn.StateSkipped, report.Results[1].State)
		assert.ErrorIs(t, report.Results[1].Err, domain.ErrOperationAborted)
	})

	t.Run("unknown unit entry fails", func(t *testing.T) {
		h := newHarness(t)
		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any()).AnyTimes()

		_, err := h.engine.Execute(context.Background(), installPlan("ghost", "1.0"))
		assert.ErrorIs(t, err, domain.ErrPackageNotFound)
	})

	t.Run("cancellation aborts between phases", func(t *testing.T) {
		h := newHarness(t, appEntry())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any()).AnyTimes()

		report, err := h.engine.Execute(ctx, installPlan("app", "1.0"))
		require.ErrorIs(t, err, domain.ErrOperationAborted)
		assert.Equal(t, txn.StateFailed, report.Results[0].State)
	})
}

func TestExecuteUpgrade(t *testing.T) {
	upgradePlan := domain.NewPlan([]domain.Unit{{
		Action:   domain.ActionUpgrade,
		Name:     "app",
		Version:  domain.MustParseVersion("2.0"),
		Previous: domain.MustParseVersion("1.0"),
	}})

	newEntry := func() domain.Entry {
		e := appEntry()
		e.Version = domain.MustParseVersion("2.0")
		e.Manifest.Version = "2.0"
		e.Filename = domain.ArchiveFileName("app", "2.0")
		return e
	}

	prevRecord := func() *domain.InstalledPackage {
		return &domain.InstalledPackage{
			Name:     "app",
			Version:  "1.0",
			Manifest: appEntry().Manifest,
			Files: []string{
				filepath.Join("usr", "bin", "app"),
				filepath.Join("usr", "share", "app", "legacy"),
			},
		}
	}

	seedPrevious := func(t *testing.T, h *harness) {
		t.Helper()
		for _, rel := range prevRecord().Files {
			path := filepath.Join(h.paths.RootDir, rel)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
			require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
		}
	}

	t.Run("old-only files go after the new record is durable", func(t *testing.T) {
		h := newHarness(t, newEntry())
		seedPrevious(t, h)
		archive := filepath.Join(t.TempDir(), "app_2.0_x64.tar.gz")

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(archive, nil)
		h.fetcher.EXPECT().Verify(archive, gomock.Any()).Return(nil)
		h.archiver.EXPECT().Extract(archive, gomock.Any()).DoAndReturn(extractFixture(t, map[string]string{
			"pms/metadata.json":   "{}",
			"data/usr/bin/app":    "new binary",
			"data/etc/app/config": "conf",
		}))
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)

		var committed domain.InstalledPackage
		gomock.InOrder(
			h.store.EXPECT().Get("app").Return(prevRecord(), nil),
			h.store.EXPECT().Commit(gomock.Any()).DoAndReturn(func(rec domain.InstalledPackage) error {
				// The stale file survives until the replacement record is
				// written.
				assert.FileExists(t, filepath.Join(h.paths.RootDir, "usr", "share", "app", "legacy"))
				committed = rec
				return nil
			}),
		)

		report, err := h.engine.Execute(context.Background(), upgradePlan)
		require.NoError(t, err)
		assert.Equal(t, txn.StateCommitted, report.Results[0].State)

		assert.Equal(t, "2.0", committed.Version)
		assert.ElementsMatch(t, []string{
			filepath.Join("usr", "bin", "app"),
			filepath.Join("etc", "app", "config"),
		}, committed.Files)

		// Shared path carries the new content; the old-only file is gone.
		data, err := os.ReadFile(filepath.Join(h.paths.RootDir, "usr", "bin", "app"))
		require.NoError(t, err)
		assert.Equal(t, "new binary", string(data))
		assert.NoFileExists(t, filepath.Join(h.paths.RootDir, "usr", "share", "app", "legacy"))
	})

	t.Run("postinst failure leaves the previous record active", func(t *testing.T) {
		h := newHarness(t, newEntry())
		seedPrevious(t, h)
		archive := filepath.Join(t.TempDir(), "app_2.0_x64.tar.gz")

		h.fetcher.EXPECT().Prefetch(gomock.Any(), gomock.Any())
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(archive, nil)
		h.fetcher.EXPECT().Verify(archive, gomock.Any()).Return(nil)
		h.archiver.EXPECT().Extract(archive, gomock.Any()).DoAndReturn(extractFixture(t, map[string]string{
			"pms/metadata.json":   "{}",
			"data/etc/app/config": "conf",
		}))

		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePreInst).Return(nil)
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhaseInstall).Return(nil)
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePostInst).Return(domain.ErrScriptFailed)

		// No Commit, no Delete: the 1.0 record stays authoritative.
		report, err := h.engine.Execute(context.Background(), upgradePlan)
		require.ErrorIs(t, err, domain.ErrScriptFailed)
		assert.Equal(t, txn.StateFailed, report.Results[0].State)

		// The previous version's files are untouched, the new ones rolled
		// back.
		for _, rel := range prevRecord().Files {
			assert.FileExists(t, filepath.Join(h.paths.RootDir, rel))
		}
		assert.NoFileExists(t, filepath.Join(h.paths.RootDir, "etc", "app", "config"))
		assert.NoDirExists(t, filepath.Join(h.paths.InfoDir, "app"))
	})
}

func TestExecuteRemove(t *testing.T) {
	removePlan := domain.NewPlan([]domain.Unit{{
		Action:  domain.ActionRemove,
		Name:    "app",
		Version: domain.MustParseVersion("1.0"),
	}})

	record := func(files ...string) *domain.InstalledPackage {
		return &domain.InstalledPackage{
			Name:     "app",
			Version:  "1.0",
			Manifest: appEntry().Manifest,
			Files:    files,
		}
	}

	t.Run("deletes files and the record", func(t *testing.T) {
		h := newHarness(t)
		rel := filepath.Join("usr", "bin", "app")
		require.NoError(t, os.MkdirAll(filepath.Join(h.paths.RootDir, "usr", "bin"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(h.paths.RootDir, rel), []byte("binary"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(h.paths.InfoDir, "app"), 0o750))

		h.store.EXPECT().Get("app").Return(record(rel), nil)
		gomock.InOrder(
			h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePreRm).Return(nil),
			h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhaseRemove).Return(nil),
			h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePostRm).Return(nil),
		)
		h.store.EXPECT().Delete("app").Return(nil)

		report, err := h.engine.Execute(context.Background(), removePlan)
		require.NoError(t, err)
		assert.Equal(t, txn.StateCommitted, report.Results[0].State)

		assert.NoFileExists(t, filepath.Join(h.paths.RootDir, rel))
		assert.NoDirExists(t, filepath.Join(h.paths.RootDir, "usr"))
		assert.NoDirExists(t, filepath.Join(h.paths.InfoDir, "app"))
	})

	t.Run("missing files are tolerated", func(t *testing.T) {
		h := newHarness(t)

		h.store.EXPECT().Get("app").Return(record("usr/bin/gone"), nil)
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)
		h.store.EXPECT().Delete("app").Return(nil)

		_, err := h.engine.Execute(context.Background(), removePlan)
		require.NoError(t, err)
	})

	t.Run("prerm failure keeps the record", func(t *testing.T) {
		h := newHarness(t)

		h.store.EXPECT().Get("app").Return(record(), nil)
		h.scripts.EXPECT().Run(gomock.Any(), gomock.Any(), domain.PhasePreRm).Return(domain.ErrScriptFailed)

		report, err := h.engine.Execute(context.Background(), removePlan)
		require.ErrorIs(t, err, domain.ErrScriptFailed)
		assert.Equal(t, txn.StateFailed, report.Results[0].State)
	})

	t.Run("not installed", func(t *testing.T) {
		h := newHarness(t)

		h.store.EXPECT().Get("app").Return(nil, nil)

		_, err := h.engine.Execute(context.Background(), removePlan)
		assert.ErrorIs(t, err, domain.ErrNotInstalled)
	})
}
