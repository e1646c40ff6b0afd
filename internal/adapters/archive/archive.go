// Package archive packs and unpacks package archives (tar.gz with a
// control directory and an optional data payload).
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// Archiver implements ports.Archiver.
type Archiver struct{}

// New creates an Archiver.
func New() *Archiver {
	return &Archiver{}
}

// Extract unpacks the tar.gz archive at path into dest, creating dest if
// needed. Entries escaping dest are rejected.
func (a *Archiver) Extract(path, dest string) error {
	file, err := os.Open(path) // #nosec G304 -- path produced by the fetcher
	if err != nil {
		return zerr.Wrap(err, "failed to open archive")
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return zerr.With(errors.Join(domain.ErrBadArchiveLayout, err),
			"archive", filepath.Base(path))
	}
	defer func() { _ = gz.Close() }()

	if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create extraction directory")
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return zerr.With(errors.Join(domain.ErrBadArchiveLayout, err),
				"archive", filepath.Base(path))
		}

		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return zerr.Wrap(err, "failed to create directory")
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// Symlinks and specials have no place in a package archive.
			return zerr.With(
				zerr.With(domain.ErrBadArchiveLayout, "entry", hdr.Name),
				"type", string(rune(hdr.Typeflag)),
			)
		}
	}

	return nil
}

func securePath(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", zerr.With(domain.ErrBadArchiveLayout, "entry", name)
	}
	return filepath.Join(dest, clean), nil
}

func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create directory")
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()) // #nosec G304 -- escape-checked
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(out, r); err != nil { // #nosec G110 -- package archives are trusted after hash verification
		_ = out.Close()
		return zerr.Wrap(err, "failed to write file")
	}
	return out.Close()
}
