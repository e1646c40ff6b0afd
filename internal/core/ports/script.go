package ports

import (
	"context"

	"go.trai.ch/pms/internal/core/domain"
)

// ScriptRunner executes maintainer lifecycle scripts. Implementations
// locate the script file for a phase inside a package's control directory
// and dispatch to the interpreter matching its extension.
//
// Scripts are required by the package contract to be idempotent: the
// transaction engine may re-run a failed unit's phases from the start.
//
//go:generate mockgen -source=script.go -destination=mocks/mock_script.go -package=mocks
type ScriptRunner interface {
	// Run executes the lifecycle script for phase from the control
	// directory at controlDir. A missing script file is a successful
	// no-op. Any exit status other than success is ErrScriptFailed.
	Run(ctx context.Context, controlDir string, phase domain.Phase) error
}
