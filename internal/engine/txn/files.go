package txn

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// copyTree copies every regular file under src into dst, creating
// directories as needed, and returns the relative paths written in copy
// order. A missing src is an empty copy, matching archives without a data
// payload. On error the caller receives the paths written so far.
func copyTree(src, dst string) ([]string, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, nil
	}

	var written []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
			return err
		}
		if err := copyFile(path, target); err != nil {
			return err
		}

		written = append(written, rel)
		return nil
	})
	if err != nil {
		return written, zerr.With(zerr.Wrap(err, "failed to copy files"), "source", src)
	}

	return written, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// pruneEmptyDirs removes directories left empty after the given relative
// files were deleted, deepest first, never touching root itself.
func pruneEmptyDirs(root string, files []string) {
	dirs := make(map[string]bool)
	for _, f := range files {
		for dir := filepath.Dir(f); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
			dirs[dir] = true
		}
	}

	ordered := make([]string, 0, len(dirs))
	for dir := range dirs {
		ordered = append(ordered, dir)
	}
	// Deepest paths sort last; walk in reverse.
	slices.Sort(ordered)
	for i := len(ordered) - 1; i >= 0; i-- {
		// Remove fails on non-empty directories, which is exactly the
		// guard we want.
		_ = os.Remove(filepath.Join(root, ordered[i]))
	}
}
