package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// Build validates the package tree at dir and packs it into outDir,
// returning the archive path and its content hash. The tree must hold a
// control directory with a valid manifest; a data payload additionally
// requires install and remove scripts.
func Build(dir, outDir string) (string, domain.ContentHash, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return "", domain.ContentHash{}, err
	}
	if err := validateLayout(dir); err != nil {
		return "", domain.ContentHash{}, err
	}

	if err := os.MkdirAll(outDir, domain.DirPerm); err != nil {
		return "", domain.ContentHash{}, zerr.Wrap(err, "failed to create output directory")
	}

	path := filepath.Join(outDir, domain.ArchiveFileName(manifest.Name, manifest.Version))
	if err := pack(dir, path); err != nil {
		return "", domain.ContentHash{}, err
	}

	hash, err := hashFile(path)
	if err != nil {
		return "", domain.ContentHash{}, err
	}

	return path, hash, nil
}

func readManifest(dir string) (domain.Manifest, error) {
	raw, err := os.ReadFile(domain.ControlPath(dir, domain.MetadataFileName)) // #nosec G304 -- operator-chosen build dir
	if err != nil {
		return domain.Manifest{}, zerr.With(
			errors.Join(domain.ErrBadArchiveLayout, err),
			"missing", domain.MetadataFileName)
	}
	return domain.ParseManifest(raw)
}

// validateLayout enforces the package tree contract: only the control and
// data directories at the top level, at most one script per phase, and
// mandatory install/remove scripts when a payload is present.
func validateLayout(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to read package directory")
	}
	hasData := false
	for _, entry := range entries {
		switch {
		case entry.Name() == domain.ControlDirName && entry.IsDir():
		case entry.Name() == domain.DataDirName && entry.IsDir():
			hasData = true
		default:
			return zerr.With(domain.ErrBadArchiveLayout, "unexpected", entry.Name())
		}
	}

	control := filepath.Join(dir, domain.ControlDirName)
	for _, phase := range append(domain.InstallPhases, domain.RemovePhases...) {
		var found []string
		for _, ext := range domain.ScriptExtensions {
			if info, err := os.Stat(filepath.Join(control, string(phase)+ext)); err == nil && !info.IsDir() {
				found = append(found, string(phase)+ext)
			}
		}
		if len(found) > 1 {
			return zerr.With(
				zerr.With(domain.ErrBadArchiveLayout, "phase", string(phase)),
				"scripts", found[0]+", "+found[1],
			)
		}
		if hasData && len(found) == 0 &&
			(phase == domain.PhaseInstall || phase == domain.PhaseRemove) {
			return zerr.With(domain.ErrBadArchiveLayout, "missing_script", string(phase))
		}
	}

	return nil
}

func pack(dir, path string) error {
	out, err := os.Create(path) // #nosec G304 -- derived from the manifest name
	if err != nil {
		return zerr.Wrap(err, "failed to create archive")
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(dir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		src, err := os.Open(file) // #nosec G304 -- walked from the build dir
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		_, err = io.Copy(tw, src)
		return err
	})

	if err := firstErr(walkErr, tw.Close(), gz.Close(), out.Close()); err != nil {
		_ = os.Remove(path)
		return zerr.Wrap(err, "failed to write archive")
	}
	return nil
}

func hashFile(path string) (domain.ContentHash, error) {
	f, err := os.Open(path) // #nosec G304 -- just written by pack
	if err != nil {
		return domain.ContentHash{}, zerr.Wrap(err, "failed to open archive for hashing")
	}
	defer func() { _ = f.Close() }()
	return domain.SumContent(f)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
