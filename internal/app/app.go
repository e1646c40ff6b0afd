// Package app implements the application layer for pms.
package app

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.trai.ch/pms/internal/adapters/archive"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/adapters/repo"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/pms/internal/engine/resolver"
	"go.trai.ch/pms/internal/engine/txn"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	cfg      *config.Config
	repo     *repo.Loader
	store    ports.InstalledStore
	fetcher  ports.ArchiveFetcher
	scripts  ports.ScriptRunner
	archiver ports.Archiver
	locker   ports.Locker
	logger   ports.Logger
}

// New creates a new App instance.
func New(
	cfg *config.Config,
	loader *repo.Loader,
	store ports.InstalledStore,
	fetcher ports.ArchiveFetcher,
	scripts ports.ScriptRunner,
	archiver ports.Archiver,
	locker ports.Locker,
	logger ports.Logger,
) *App {
	return &App{
		cfg:      cfg,
		repo:     loader,
		store:    store,
		fetcher:  fetcher,
		scripts:  scripts,
		archiver: archiver,
		locker:   locker,
		logger:   logger,
	}
}

// PlanInstall resolves an install request into an executable plan.
func (a *App) PlanInstall(ctx context.Context, names []string) (domain.Plan, error) {
	res, err := a.newResolver(ctx)
	if err != nil {
		return domain.Plan{}, err
	}
	return res.Install(names)
}

// PlanRemove resolves a remove request. Without force, installed
// dependents outside the request block the plan.
func (a *App) PlanRemove(ctx context.Context, names []string, force bool) (domain.Plan, error) {
	res, err := a.newResolver(ctx)
	if err != nil {
		return domain.Plan{}, err
	}
	return res.Remove(names, force)
}

// PlanUpgrade resolves an upgrade of every installed package with a newer
// index version.
func (a *App) PlanUpgrade(ctx context.Context) (domain.Plan, error) {
	res, err := a.newResolver(ctx)
	if err != nil {
		return domain.Plan{}, err
	}
	return res.Upgrade()
}

// Apply executes a plan under the host lock. Confirmation is the caller's
// concern; Apply never prompts.
func (a *App) Apply(ctx context.Context, plan domain.Plan) (txn.Report, error) {
	if plan.Empty() {
		return txn.Report{}, nil
	}

	release, err := a.locker.Acquire()
	if err != nil {
		return txn.Report{}, err
	}
	defer release()

	index, err := a.repo.Load(ctx)
	if err != nil {
		return txn.Report{}, err
	}

	engine := txn.New(index, a.fetcher, a.scripts, a.archiver, a.store, a.logger, txn.Paths{
		RootDir: a.cfg.RootDir,
		InfoDir: a.cfg.InfoDir(),
		TempDir: a.cfg.TempDir(),
	})

	return engine.Execute(ctx, plan)
}

// Update re-downloads every source index and rewrites the local snapshot.
func (a *App) Update(ctx context.Context) error {
	index, err := a.repo.Update(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("index updated", "packages", strconv.Itoa(index.Len()))
	return nil
}

// List returns the installed package records, sorted by name.
func (a *App) List(_ context.Context) ([]domain.InstalledPackage, error) {
	return a.store.All()
}

// Search returns the latest entry of every package whose name or
// description matches the query as a case-insensitive regular expression.
// An empty query matches everything.
func (a *App) Search(ctx context.Context, query string) ([]domain.Entry, error) {
	re, err := regexp.Compile(strings.ToLower(query))
	if err != nil {
		return nil, zerr.Wrap(err, "invalid search pattern")
	}

	index, err := a.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	return index.Search(func(name, description string) bool {
		return re.MatchString(name) || re.MatchString(description)
	}), nil
}

// Status returns the record for an installed package, or nil when the
// package is not installed.
func (a *App) Status(_ context.Context, name string) (*domain.InstalledPackage, error) {
	return a.store.Get(name)
}

// Dependents returns the installed packages whose dependency on name is
// satisfied by the installed version.
func (a *App) Dependents(_ context.Context, name string) ([]string, error) {
	return a.store.DependentsOf(name)
}

// Build validates the package tree at dir and packs it into outDir.
func (a *App) Build(_ context.Context, dir, outDir string) (string, domain.ContentHash, error) {
	return archive.Build(dir, outDir)
}

// Clean empties the archive cache and staging area and drops the local
// index snapshot.
func (a *App) Clean(_ context.Context) error {
	for _, dir := range []string{a.cfg.ArchiveDir(), a.cfg.TempDir()} {
		a.logger.Info("removing directory", "path", dir)
		if err := os.RemoveAll(dir); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to clean cache"), "path", dir)
		}
	}
	return a.repo.Clean()
}

func (a *App) newResolver(ctx context.Context) (*resolver.Resolver, error) {
	index, err := a.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	installed, err := a.store.All()
	if err != nil {
		return nil, err
	}
	return resolver.New(index, installed), nil
}
