// Package txn executes resolved plans one unit at a time, driving each
// unit through its lifecycle state machine with rollback on failure.
package txn

import (
	"context"
	"errors"
	"fmt"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/zerr"
)

// UnitState is the state of one plan unit's state machine.
type UnitState string

const (
	StatePending        UnitState = "Pending"
	StateFetched        UnitState = "Fetched"
	StateVerified       UnitState = "Verified"
	StatePreInstRun     UnitState = "PreInstRun"
	StateFilesInstalled UnitState = "FilesInstalled"
	StatePostInstRun    UnitState = "PostInstRun"
	StatePreRmRun       UnitState = "PreRmRun"
	StateFilesRemoved   UnitState = "FilesRemoved"
	StatePostRmRun      UnitState = "PostRmRun"
	StateCommitted      UnitState = "Committed"
	StateFailed         UnitState = "Failed"
	StateSkipped        UnitState = "Skipped"
)

// UnitResult is the reported outcome of one plan unit.
type UnitResult struct {
	Unit  domain.Unit
	State UnitState
	Err   error
}

// Report collects per-unit outcomes of a plan execution.
type Report struct {
	Results []UnitResult
}

// Failed reports whether any unit ended in a non-committed state.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.State != StateCommitted {
			return true
		}
	}
	return false
}

// Committed returns the number of committed units.
func (r Report) Committed() int {
	n := 0
	for _, res := range r.Results {
		if res.State == StateCommitted {
			n++
		}
	}
	return n
}

// Paths are the host locations the engine operates on. External
// collaborators decide them; the engine never discovers paths itself.
type Paths struct {
	// RootDir is where package data files are placed.
	RootDir string
	// InfoDir keeps each installed package's control files for later
	// removal phases.
	InfoDir string
	// TempDir is the staging area for extracted archives.
	TempDir string
}

// Engine executes plans. Units run strictly sequentially; each unit is its
// own atomicity boundary. Units committed before a failure stay committed.
type Engine struct {
	index    *domain.Index
	fetcher  ports.ArchiveFetcher
	scripts  ports.ScriptRunner
	archiver ports.Archiver
	store    ports.InstalledStore
	logger   ports.Logger
	paths    Paths
}

// New creates an Engine.
func New(
	index *domain.Index,
	fetcher ports.ArchiveFetcher,
	scripts ports.ScriptRunner,
	archiver ports.Archiver,
	store ports.InstalledStore,
	logger ports.Logger,
	paths Paths,
) *Engine {
	return &Engine{
		index:    index,
		fetcher:  fetcher,
		scripts:  scripts,
		archiver: archiver,
		store:    store,
		logger:   logger,
		paths:    paths,
	}
}

// Execute runs the plan. The first failing unit aborts the remainder;
// committed units are never rolled back. The returned error is nil only if
// every unit committed.
func (e *Engine) Execute(ctx context.Context, plan domain.Plan) (Report, error) {
	units := plan.Units()

	e.prefetch(ctx, units)

	report := Report{Results: make([]UnitResult, 0, len(units))}
	for i, unit := range units {
		res := e.executeUnit(ctx, unit)
		report.Results = append(report.Results, res)

		if res.State != StateCommitted {
			for _, rest := range units[i+1:] {
				report.Results = append(report.Results, UnitResult{
					Unit:  rest,
					State: StateSkipped,
					Err:   domain.ErrOperationAborted,
				})
			}
			return report, zerr.With(
				zerr.With(
					errors.Join(domain.ErrOperationAborted, res.Err),
					"package", unit.Name,
				),
				"version", unit.Version.String(),
			)
		}
	}

	return report, nil
}

// prefetch warms the archive cache for install and upgrade units.
// Fetch failures surface later on the failing unit itself.
func (e *Engine) prefetch(ctx context.Context, units []domain.Unit) {
	var entries []domain.Entry
	for _, unit := range units {
		if unit.Action == domain.ActionRemove {
			continue
		}
		if entry, ok := e.index.Get(unit.Name, unit.Version.String()); ok {
			entries = append(entries, entry)
		}
	}
	if len(entries) > 0 {
		e.fetcher.Prefetch(ctx, entries)
	}
}

func (e *Engine) executeUnit(ctx context.Context, unit domain.Unit) UnitResult {
	e.logger.Info(fmt.Sprintf("%s %s_%s", unit.Action, unit.Name, unit.Version))

	var err error
	switch unit.Action {
	case domain.ActionInstall, domain.ActionUpgrade:
		err = e.runInstall(ctx, unit)
	case domain.ActionRemove:
		err = e.runRemove(ctx, unit)
	default:
		err = zerr.New("unknown plan action: " + string(unit.Action))
	}

	if err != nil {
		e.logger.Error(zerr.With(err, "package", unit.Name))
		return UnitResult{Unit: unit, State: StateFailed, Err: err}
	}

	return UnitResult{Unit: unit, State: StateCommitted}
}
