// Package script executes maintainer lifecycle scripts via os/exec.
package script

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/zerr"
)

// interpreters maps a script extension to its argv prefix. Lookup order
// follows domain.ScriptExtensions; the first existing file wins.
var interpreters = map[string][]string{
	".sh":  {"sh"},
	".cmd": {"cmd", "/c"},
	".ps1": {"powershell", "-File"},
	".py":  {"python3"},
}

// Runner implements ports.ScriptRunner.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes the lifecycle script for phase from controlDir. A missing
// script file is a successful no-op. A started script always runs to
// completion: cancellation takes effect between phases, so the command is
// deliberately not bound to ctx.
func (r *Runner) Run(_ context.Context, controlDir string, phase domain.Phase) error {
	path, argv, found := findScript(controlDir, phase)
	if !found {
		return nil
	}

	stdout := &logWriter{logger: r.logger, warn: false}
	stderr := &logWriter{logger: r.logger, warn: true}
	defer func() {
		_ = stdout.Close()
		_ = stderr.Close()
	}()

	argv = append(argv, path)
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- interpreter table is static
	cmd.Dir = controlDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return zerr.With(
				zerr.With(
					zerr.With(domain.ErrScriptFailed, "phase", string(phase)),
					"script", filepath.Base(path),
				),
				"exit_code", strconv.Itoa(exitErr.ExitCode()),
			)
		}
		return zerr.With(
			zerr.With(errors.Join(domain.ErrScriptFailed, err), "phase", string(phase)),
			"script", filepath.Base(path),
		)
	}

	return nil
}

func findScript(controlDir string, phase domain.Phase) (string, []string, bool) {
	for _, ext := range domain.ScriptExtensions {
		path := filepath.Join(controlDir, string(phase)+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, append([]string(nil), interpreters[ext]...), true
		}
	}
	return "", nil, false
}

// logWriter forwards script output to the logger line by line.
type logWriter struct {
	logger ports.Logger
	warn   bool
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := string(bytes.TrimRight(line, "\r"))
	if msg == "" {
		return
	}
	if w.warn {
		w.logger.Warn(msg)
	} else {
		w.logger.Info(msg)
	}
}
