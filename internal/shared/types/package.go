package types

import (
	"path/filepath"
	"strings"
)

const (
	// ManifestFile is the manifest name inside every package directory
	ManifestFile = "manifest.json"

	// InstallTimeLayout formats PackageRecord.InstallTime in local time
	InstallTimeLayout = "2006-01-02 15:04:05"
)

// ApplicationType represents the manifest schema variant of a package
type ApplicationType int

const (
	AppTypeUnknown  ApplicationType = -1
	AppTypeNative   ApplicationType = 0
	AppTypeQuickApp ApplicationType = 1
)

// ParseApplicationType resolves a type tag such as "NATIVE/cpp" by its prefix
func ParseApplicationType(tag string) ApplicationType {
	prefix, _, _ := strings.Cut(tag, "/")
	switch prefix {
	case "NATIVE":
		return AppTypeNative
	case "QUICKAPP":
		return AppTypeQuickApp
	default:
		return AppTypeUnknown
	}
}

// String returns the tag prefix for the type
func (t ApplicationType) String() string {
	switch t {
	case AppTypeNative:
		return "NATIVE"
	case AppTypeQuickApp:
		return "QUICKAPP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the type as its tag prefix
func (t ApplicationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tag prefix
func (t *ApplicationType) UnmarshalText(text []byte) error {
	*t = ParseApplicationType(string(text))
	return nil
}

// ActivityDescriptor describes a native activity
type ActivityDescriptor struct {
	Name         string   `json:"name"`
	LaunchMode   string   `json:"launch_mode"`
	TaskAffinity string   `json:"task_affinity"`
	Actions      []string `json:"actions,omitempty"`
}

// ServiceDescriptor describes a declared service.
// Quick apps only fill Name and Path.
type ServiceDescriptor struct {
	Name     string   `json:"name"`
	Path     string   `json:"path,omitempty"`
	Exported bool     `json:"exported"`
	Actions  []string `json:"actions,omitempty"`
}

// Router is the quick app page router
type Router struct {
	Entry string   `json:"entry"`
	Pages []string `json:"pages"`
}

// QuickAppInfo holds quick app specific metadata
type QuickAppInfo struct {
	VersionCode int      `json:"version_code"`
	Features    []string `json:"features"`
	Router      Router   `json:"router"`
}

// PackageRecord represents one installed application
type PackageRecord struct {
	PackageName   string          `json:"package"`
	DisplayName   string          `json:"name"`
	Icon          string          `json:"icon"`
	AppType       string          `json:"app_type"`
	Type          ApplicationType `json:"type"`
	Version       string          `json:"version"`
	InstalledPath string          `json:"installed_path"`
	ManifestPath  string          `json:"manifest"`
	InstallTime   string          `json:"install_time"`
	Checksum      string          `json:"checksum"`
	OwnerID       int32           `json:"owner_id"`
	SizeBytes     int64           `json:"size"`
	Validated     bool            `json:"validated"`

	Entry      string               `json:"entry"`
	ExecFile   string               `json:"execfile"`
	Activities []ActivityDescriptor `json:"activities"`
	Services   []ServiceDescriptor  `json:"services"`

	// For quick apps only
	QuickApp *QuickAppInfo `json:"quickapp,omitempty"`
}

// Summary extracts the persisted fields of a record
func (r *PackageRecord) Summary() PackageSummary {
	return PackageSummary{
		PackageName:   r.PackageName,
		AppType:       r.AppType,
		Version:       r.Version,
		OwnerID:       r.OwnerID,
		InstallTime:   r.InstallTime,
		InstalledPath: r.InstalledPath,
		SizeBytes:     r.SizeBytes,
		Checksum:      r.Checksum,
	}
}

// Clone returns a deep copy so callers never share slices with the registry
func (r *PackageRecord) Clone() *PackageRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Activities != nil {
		c.Activities = make([]ActivityDescriptor, len(r.Activities))
		for i, a := range r.Activities {
			a.Actions = cloneStrings(a.Actions)
			c.Activities[i] = a
		}
	}
	if r.Services != nil {
		c.Services = make([]ServiceDescriptor, len(r.Services))
		for i, s := range r.Services {
			s.Actions = cloneStrings(s.Actions)
			c.Services[i] = s
		}
	}
	if r.QuickApp != nil {
		q := *r.QuickApp
		q.Features = cloneStrings(q.Features)
		q.Router.Pages = cloneStrings(q.Router.Pages)
		c.QuickApp = &q
	}
	return &c
}

// PackageSummary is the subset of a record kept in the package list.
// Keys match the on-disk packages.list format.
type PackageSummary struct {
	PackageName   string `json:"package"`
	AppType       string `json:"appType"`
	OwnerID       int32  `json:"uid"`
	InstallTime   string `json:"installedTime"`
	InstalledPath string `json:"installedPath"`
	SizeBytes     int64  `json:"size"`
	Checksum      string `json:"shasum"`
	Version       string `json:"version"`
}

// ManifestPath returns where the manifest of the summarized package lives
func (s PackageSummary) ManifestPath() string {
	return filepath.Join(s.InstalledPath, ManifestFile)
}

// Stale builds an unvalidated record carrying only the persisted fields
func (s PackageSummary) Stale() *PackageRecord {
	return &PackageRecord{
		PackageName:   s.PackageName,
		AppType:       s.AppType,
		Type:          ParseApplicationType(s.AppType),
		Version:       s.Version,
		InstalledPath: s.InstalledPath,
		ManifestPath:  s.ManifestPath(),
		InstallTime:   s.InstallTime,
		Checksum:      s.Checksum,
		OwnerID:       s.OwnerID,
		SizeBytes:     s.SizeBytes,
	}
}

// PackageStats contains the disk usage of a package
type PackageStats struct {
	CodeSize  int64 `json:"code_size"`
	DataSize  int64 `json:"data_size"`
	CacheSize int64 `json:"cache_size"`
}

// RegistryStats contains registry statistics
type RegistryStats struct {
	TotalPackages int            `json:"total_packages"`
	Validated     int            `json:"validated"`
	Types         map[string]int `json:"types"`
	FirstBoot     bool           `json:"first_boot"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
