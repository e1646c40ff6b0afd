// Package lock serializes package operations on a host with a pid file.
package lock

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/zerr"
)

// FileLock implements ports.Locker with an exclusively created pid file.
// A lock file naming a process that no longer exists is taken over.
type FileLock struct {
	path   string
	logger ports.Logger
}

// New creates a FileLock at the given path.
func New(path string, logger ports.Logger) *FileLock {
	return &FileLock{path: path, logger: logger}
}

// Acquire takes the host lock. The returned release function must be
// called once the operation completes.
func (l *FileLock) Acquire() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, "failed to create lock directory")
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, domain.FilePerm)
		if err == nil {
			if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
				_ = file.Close()
				_ = os.Remove(l.path)
				return nil, zerr.Wrap(err, "failed to write lock file")
			}
			if err := file.Close(); err != nil {
				_ = os.Remove(l.path)
				return nil, zerr.Wrap(err, "failed to write lock file")
			}
			return func() { _ = os.Remove(l.path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, zerr.Wrap(err, "failed to create lock file")
		}

		holder, stale := l.holder()
		if !stale {
			return nil, zerr.With(zerr.With(domain.ErrLockHeld, "path", l.path), "pid", strconv.Itoa(holder))
		}
		l.logger.Warn("removing stale lock", "pid", strconv.Itoa(holder))
		_ = os.Remove(l.path)
	}

	return nil, zerr.With(domain.ErrLockHeld, "path", l.path)
}

// holder reports the pid recorded in the lock file and whether that
// process is gone. An unreadable or garbled lock file counts as stale.
func (l *FileLock) holder() (int, bool) {
	raw, err := os.ReadFile(l.path) // #nosec G304 -- configured lock path
	if err != nil {
		return 0, true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, true
	}
	return pid, !processAlive(pid)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
