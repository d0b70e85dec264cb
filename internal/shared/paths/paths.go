// Package paths defines the on-device directory layout of the package manager.
//
// The layout mirrors the image build:
//
//	<preset>/<package>/         prebuilt applications bundled with the OS
//	<installed>/<package>/      user installed applications
//	<installed>/packages.list   persisted package list
//	<data>/<package>/           per-application data
//	<data>/<package>/cache/     per-application cache
//	<data>/tmp/<stem>/          staging area for archive extraction
//
// A Layout is built once from configuration and passed to every component.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Default roots
const (
	DefaultPresetDir    = "/system/app"
	DefaultInstalledDir = "/data/app"
	DefaultDataDir      = "/data/data"
	DefaultConfigFile   = "/etc/package.cfg"

	PackageListFile = "packages.list"
	StagingDirName  = "tmp"
	CacheDirName    = "cache"
)

// Layout resolves every directory the package manager touches
type Layout struct {
	PresetDir    string
	InstalledDir string
	DataDir      string
	PackageList  string
}

// Default returns the stock device layout
func Default() Layout {
	return New(DefaultPresetDir, DefaultInstalledDir, DefaultDataDir, "")
}

// New creates a layout. An empty list path defaults to <installed>/packages.list.
func New(preset, installed, data, list string) Layout {
	if list == "" {
		list = filepath.Join(installed, PackageListFile)
	}
	return Layout{
		PresetDir:    filepath.Clean(preset),
		InstalledDir: filepath.Clean(installed),
		DataDir:      filepath.Clean(data),
		PackageList:  filepath.Clean(list),
	}
}

// InstallDir returns the final location of an installed package
func (l Layout) InstallDir(pkg string) string {
	return filepath.Join(l.InstalledDir, pkg)
}

// AppDataDir returns the data directory of a package
func (l Layout) AppDataDir(pkg string) string {
	return filepath.Join(l.DataDir, pkg)
}

// AppCacheDir returns the cache directory of a package
func (l Layout) AppCacheDir(pkg string) string {
	return filepath.Join(l.DataDir, pkg, CacheDirName)
}

// StagingRoot returns the parent of all staging directories
func (l Layout) StagingRoot() string {
	return filepath.Join(l.DataDir, StagingDirName)
}

// StagingDir returns the extraction target for an archive
func (l Layout) StagingDir(source string) string {
	return filepath.Join(l.StagingRoot(), ArchiveStem(source))
}

// IsPreset reports whether dir lives under the preset root
func (l Layout) IsPreset(dir string) bool {
	return within(l.PresetDir, dir)
}

// IsInstalled reports whether dir lives under the installed root
func (l Layout) IsInstalled(dir string) bool {
	return within(l.InstalledDir, dir)
}

// Directories returns the roots that must exist before serving
func (l Layout) Directories() []string {
	return []string{
		l.InstalledDir,
		l.DataDir,
		filepath.Dir(l.PackageList),
	}
}

// ArchiveStem strips directories and archive extensions from a source path
func ArchiveStem(source string) string {
	base := filepath.Base(filepath.Clean(source))
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tar.zst", ".tgz", ".tzst", ".tar", ".zip", ".rpk"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidateComponent checks that name can be joined under a root without escaping it
func ValidateComponent(name string) error {
	if name == "" {
		return fmt.Errorf("path component cannot be empty")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("path component cannot be absolute")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("path component contains invalid elements")
	}
	return nil
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(dir))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
