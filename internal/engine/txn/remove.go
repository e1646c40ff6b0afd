package txn

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// removeRun tracks one remove unit through
// Pending -> PreRmRun -> FilesRemoved -> PostRmRun -> Committed.
// Removed files cannot be restored, so the phases carry no compensating
// actions: a failed unit keeps its store record so an explicit retry can
// re-run the (idempotent) scripts from the start.
type removeRun struct {
	e      *Engine
	unit   domain.Unit
	rec    *domain.InstalledPackage
	ctlDir string
}

func (e *Engine) runRemove(ctx context.Context, unit domain.Unit) error {
	rec, err := e.store.Get(unit.Name)
	if err != nil {
		return err
	}
	if rec == nil {
		return zerr.With(domain.ErrNotInstalled, "package", unit.Name)
	}

	run := &removeRun{
		e:      e,
		unit:   unit,
		rec:    rec,
		ctlDir: filepath.Join(e.paths.InfoDir, unit.Name),
	}
	return run.execute(ctx)
}

func (r *removeRun) execute(ctx context.Context) error {
	phases := []struct {
		state UnitState
		fn    func(context.Context) error
	}{
		{StatePreRmRun, r.preRm},
		{StateFilesRemoved, r.removeFiles},
		{StatePostRmRun, r.postRm},
		{StateCommitted, r.commit},
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return errors.Join(domain.ErrOperationAborted, err)
		}
		if err := phase.fn(ctx); err != nil {
			return zerr.With(err, "phase", string(phase.state))
		}
	}

	return nil
}

func (r *removeRun) preRm(ctx context.Context) error {
	return r.e.scripts.Run(ctx, r.ctlDir, domain.PhasePreRm)
}

// removeFiles deletes the package's recorded files in reverse install
// order and runs the remove script. Already-missing files are fine.
func (r *removeRun) removeFiles(ctx context.Context) error {
	for i := len(r.rec.Files) - 1; i >= 0; i-- {
		path := filepath.Join(r.e.paths.RootDir, r.rec.Files[i])
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return zerr.With(zerr.Wrap(err, "failed to remove file"), "file", r.rec.Files[i])
		}
	}
	pruneEmptyDirs(r.e.paths.RootDir, r.rec.Files)

	return r.e.scripts.Run(ctx, r.ctlDir, domain.PhaseRemove)
}

func (r *removeRun) postRm(ctx context.Context) error {
	return r.e.scripts.Run(ctx, r.ctlDir, domain.PhasePostRm)
}

func (r *removeRun) commit(_ context.Context) error {
	if err := r.e.store.Delete(r.unit.Name); err != nil {
		return err
	}
	_ = os.RemoveAll(r.ctlDir)
	return nil
}
