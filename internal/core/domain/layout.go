package domain

import "path/filepath"

const (
	// ControlDirName is the directory inside a package archive holding the
	// manifest and lifecycle scripts.
	ControlDirName = "pms"

	// DataDirName is the optional payload directory inside a package
	// archive, installed under the configured root directory.
	DataDirName = "data"

	// MetadataFileName is the manifest file inside the control directory.
	MetadataFileName = "metadata.json"

	// IndexFileName is the repository index document served by a source.
	IndexFileName = "packages.json"

	// SourcesFileName is the repository sources list.
	SourcesFileName = "sources.list"

	// StatusFileName is the installed-set store snapshot.
	StatusFileName = "status.json"

	// LockFileName is the host-level operation lock.
	LockFileName = "lock"

	// ArchiveExt is the package archive file extension.
	ArchiveExt = ".tar.gz"

	// Arch is the architecture tag baked into archive file names.
	Arch = "x64"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// Phase identifies one lifecycle script of a package.
type Phase string

const (
	PhasePreInst  Phase = "preinst"
	PhaseInstall  Phase = "install"
	PhasePostInst Phase = "postinst"
	PhasePreRm    Phase = "prerm"
	PhaseRemove   Phase = "remove"
	PhasePostRm   Phase = "postrm"
)

// ScriptExtensions are the recognized lifecycle script extensions, in
// lookup order.
var ScriptExtensions = []string{".sh", ".cmd", ".ps1", ".py"}

// InstallPhases are the lifecycle scripts run for an install or upgrade
// unit, in order.
var InstallPhases = []Phase{PhasePreInst, PhaseInstall, PhasePostInst}

// RemovePhases are the lifecycle scripts run for a remove unit, in order.
var RemovePhases = []Phase{PhasePreRm, PhaseRemove, PhasePostRm}

// ArchiveFileName returns the canonical archive name for a package version,
// e.g. "tool_1.2.0_x64.tar.gz".
func ArchiveFileName(name, version string) string {
	return name + "_" + version + "_" + Arch + ArchiveExt
}

// ControlPath returns the path of a control file inside an extracted
// archive rooted at dir.
func ControlPath(dir, file string) string {
	return filepath.Join(dir, ControlDirName, file)
}
