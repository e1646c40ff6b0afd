package txn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// installRun tracks one install/upgrade unit through its state machine:
// Pending -> Fetched -> Verified -> PreInstRun -> FilesInstalled ->
// PostInstRun -> Committed. Every completed phase registers its
// compensating action; on failure the compensations run in reverse order
// and the unit ends Failed.
type installRun struct {
	e     *Engine
	unit  domain.Unit
	entry domain.Entry

	archivePath string
	stagingDir  string
	controlDir  string
	files       []string

	undo []func()
}

func (e *Engine) runInstall(ctx context.Context, unit domain.Unit) error {
	entry, ok := e.index.Get(unit.Name, unit.Version.String())
	if !ok {
		return zerr.With(
			zerr.With(domain.ErrPackageNotFound, "package", unit.Name),
			"version", unit.Version.String(),
		)
	}

	run := &installRun{e: e, unit: unit, entry: entry}
	if err := run.execute(ctx); err != nil {
		run.rollback()
		return err
	}

	run.cleanup()
	return nil
}

func (r *installRun) execute(ctx context.Context) error {
	phases := []struct {
		state UnitState
		fn    func(context.Context) error
	}{
		{StateFetched, r.fetch},
		{StateVerified, r.verify},
		{StatePreInstRun, r.preInst},
		{StateFilesInstalled, r.installFiles},
		{StatePostInstRun, r.postInst},
		{StateCommitted, r.commit},
	}

	for _, phase := range phases {
		// Cancellation is honored only between phases: a request arriving
		// mid-phase takes effect once the phase finishes.
		if err := ctx.Err(); err != nil {
			return errors.Join(domain.ErrOperationAborted, err)
		}
		if err := phase.fn(ctx); err != nil {
			return zerr.With(err, "phase", string(phase.state))
		}
	}

	return nil
}

func (r *installRun) fetch(ctx context.Context) error {
	path, err := r.e.fetcher.Fetch(ctx, r.entry)
	if err != nil {
		return err
	}
	r.archivePath = path
	return nil
}

func (r *installRun) verify(_ context.Context) error {
	if err := r.e.fetcher.Verify(r.archivePath, r.entry.Hash); err != nil {
		// A mismatched archive is useless; drop it so an explicit retry
		// fetches a fresh copy. The mismatch itself is never retried.
		_ = os.Remove(r.archivePath)
		return err
	}
	return nil
}

func (r *installRun) preInst(ctx context.Context) error {
	staging := filepath.Join(r.e.paths.TempDir, r.unit.Name)
	if err := r.e.archiver.Extract(r.archivePath, staging); err != nil {
		return err
	}
	r.stagingDir = staging
	r.controlDir = filepath.Join(staging, domain.ControlDirName)

	return r.e.scripts.Run(ctx, r.controlDir, domain.PhasePreInst)
}

// installFiles copies the archive's data payload under the root directory,
// preserves the control files for later removal phases and runs the
// package's install script.
func (r *installRun) installFiles(ctx context.Context) error {
	written, err := copyTree(filepath.Join(r.stagingDir, domain.DataDirName), r.e.paths.RootDir)
	if err != nil {
		r.removeWritten(written)
		return err
	}
	r.undo = append(r.undo, func() { r.removeWritten(written) })
	r.files = written

	infoDir := filepath.Join(r.e.paths.InfoDir, r.unit.Name)
	if _, err := copyTree(r.controlDir, infoDir); err != nil {
		return err
	}
	r.undo = append(r.undo, func() { _ = os.RemoveAll(infoDir) })

	return r.e.scripts.Run(ctx, r.controlDir, domain.PhaseInstall)
}

func (r *installRun) postInst(ctx context.Context) error {
	return r.e.scripts.Run(ctx, r.controlDir, domain.PhasePostInst)
}

// commit replaces the store record. For an upgrade this is the hand-off
// point: until here the previous version's record stays active.
func (r *installRun) commit(_ context.Context) error {
	var stale []string
	if r.unit.Action == domain.ActionUpgrade {
		if prev, err := r.e.store.Get(r.unit.Name); err == nil && prev != nil {
			stale = obsoleteFiles(prev.Files, r.files)
		}
	}

	err := r.e.store.Commit(domain.InstalledPackage{
		Name:        r.unit.Name,
		Version:     r.unit.Version.String(),
		Manifest:    r.entry.Manifest,
		Files:       r.files,
		InstalledAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	// Files owned only by the previous version are removed after the new
	// record is durable; leftovers are a warning, not a failure.
	for _, rel := range stale {
		if err := os.Remove(filepath.Join(r.e.paths.RootDir, rel)); err != nil && !os.IsNotExist(err) {
			r.e.logger.Warn("could not remove stale file", "file", rel)
		}
	}

	return nil
}

func (r *installRun) rollback() {
	for i := len(r.undo) - 1; i >= 0; i-- {
		r.undo[i]()
	}
	r.cleanup()
}

func (r *installRun) cleanup() {
	if r.stagingDir != "" {
		_ = os.RemoveAll(r.stagingDir)
	}
}

func (r *installRun) removeWritten(written []string) {
	for i := len(written) - 1; i >= 0; i-- {
		_ = os.Remove(filepath.Join(r.e.paths.RootDir, written[i]))
	}
}

// obsoleteFiles returns the previous file listing minus everything the new
// version still owns.
func obsoleteFiles(prev, current []string) []string {
	keep := make(map[string]bool, len(current))
	for _, f := range current {
		keep[f] = true
	}
	var stale []string
	for _, f := range prev {
		if !keep[f] {
			stale = append(stale, f)
		}
	}
	return stale
}
