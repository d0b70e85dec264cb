package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

type fixedSum string

func (f fixedSum) Sum(string) (string, error) { return string(f), nil }

type failingSum struct{}

func (failingSum) Sum(string) (string, error) { return "", errors.New("disk on fire") }

var fixedNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local)

func newTestParser(opts ...Option) *Parser {
	opts = append([]Option{WithChecksummer(fixedSum("digest")), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewParser(zap.NewNop(), opts...)
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pkg")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, types.ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const nativeManifest = `{
  "package": "com.example.native",
  "appType": "NATIVE/cpp",
  "versionName": "1.2.0",
  "name": "Native Demo",
  "icon": "res/icon.png",
  "entry": "MainActivity",
  "execfile": "bin/demo",
  "activities": [
    {"name": "MainActivity", "intent-filter": {"actions": ["android.intent.action.MAIN"]}},
    {"name": "Settings", "launchMode": "singleTop", "taskAffinity": "com.example.settings"}
  ],
  "services": [
    {"name": "SyncService", "exported": true, "intent-filter": {"actions": ["sync"]}},
    {"name": "Worker"}
  ]
}`

func TestParseFileNative(t *testing.T) {
	path := writeManifest(t, nativeManifest)

	rec, err := newTestParser().ParseFile(path)
	require.NoError(t, err)

	want := &types.PackageRecord{
		PackageName:   "com.example.native",
		DisplayName:   "Native Demo",
		Icon:          "res/icon.png",
		AppType:       "NATIVE/cpp",
		Type:          types.AppTypeNative,
		Version:       "1.2.0",
		InstalledPath: filepath.Dir(path),
		ManifestPath:  path,
		InstallTime:   "2024-03-09 14:05:06",
		Checksum:      "digest",
		SizeBytes:     int64(len(nativeManifest)),
		Validated:     true,
		Entry:         "MainActivity",
		ExecFile:      "bin/demo",
		Activities: []types.ActivityDescriptor{
			{Name: "MainActivity", LaunchMode: "standard", TaskAffinity: "com.example.native", Actions: []string{"android.intent.action.MAIN"}},
			{Name: "Settings", LaunchMode: "singleTop", TaskAffinity: "com.example.settings"},
		},
		Services: []types.ServiceDescriptor{
			{Name: "SyncService", Exported: true, Actions: []string{"sync"}},
			{Name: "Worker"},
		},
	}

	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("ParseFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFileQuickApp(t *testing.T) {
	path := writeManifest(t, `{
  // quick apps default their launch fields
  "package": "com.example.quick",
  "versionCode": 3,
  "features": [{"name": "system.fetch"}, {"name": ""}, {"name": "system.storage"}],
  "router": {
    "entry": "Home",
    "pages": {"Home": {"component": "index"}, "Detail": {}, "About": {}},
  },
  "services": [{"name": "push", "path": "services/push"}],
}`)

	rec, err := newTestParser().ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "QUICKAPP", rec.AppType)
	assert.Equal(t, types.AppTypeQuickApp, rec.Type)
	assert.Equal(t, "vappxms", rec.ExecFile)
	assert.Equal(t, "QuickActivity", rec.Entry)
	assert.Equal(t, []types.ActivityDescriptor{{Name: "QuickActivity", LaunchMode: "singleTask", TaskAffinity: "com.example.quick"}}, rec.Activities)
	require.NotNil(t, rec.QuickApp)
	assert.Equal(t, 3, rec.QuickApp.VersionCode)
	assert.Equal(t, []string{"system.fetch", "system.storage"}, rec.QuickApp.Features)
	assert.Equal(t, "Home", rec.QuickApp.Router.Entry)
	assert.Equal(t, []string{"Home", "Detail", "About"}, rec.QuickApp.Router.Pages)
	assert.Equal(t, []types.ServiceDescriptor{{Name: "push", Path: "services/push"}}, rec.Services)
	assert.True(t, rec.Validated)
}

func TestParseFileErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantKind types.ErrorKind
	}{
		{"missing package", `{"appType": "NATIVE", "entry": "a", "execfile": "b"}`, types.KindMalformedManifest},
		{"empty package", `{"package": ""}`, types.KindMalformedManifest},
		{"unsafe package name", `{"package": "../escape"}`, types.KindMalformedManifest},
		{"unknown app type", `{"package": "com.a", "appType": "WEB/ts"}`, types.KindUnsupportedType},
		{"native without entry", `{"package": "com.a", "appType": "NATIVE", "execfile": "b"}`, types.KindMalformedManifest},
		{"native without execfile", `{"package": "com.a", "appType": "NATIVE", "entry": "a"}`, types.KindMalformedManifest},
		{"activity without name", `{"package": "com.a", "appType": "NATIVE", "entry": "a", "execfile": "b", "activities": [{}]}`, types.KindMalformedManifest},
		{"service without name", `{"package": "com.a", "appType": "NATIVE", "entry": "a", "execfile": "b", "services": [{"exported": true}]}`, types.KindMalformedManifest},
		{"invalid syntax", `{"package": `, types.KindParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newTestParser().ParseFile(writeManifest(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
		})
	}
}

func TestParseFileMissingIsIOError(t *testing.T) {
	_, err := newTestParser().ParseFile(filepath.Join(t.TempDir(), types.ManifestFile))
	assert.Equal(t, types.KindIOError, types.KindOf(err))
}

func TestChecksumFailureLeavesEmptyDigest(t *testing.T) {
	rec, err := newTestParser(WithChecksummer(failingSum{})).ParseFile(writeManifest(t, `{"package": "com.a"}`))
	require.NoError(t, err)
	assert.Empty(t, rec.Checksum)
}

func TestValidateKeepsPersistedFields(t *testing.T) {
	path := writeManifest(t, nativeManifest)
	summary := types.PackageSummary{
		PackageName:   "com.example.native",
		AppType:       "NATIVE/cpp",
		Version:       "0.9.0",
		OwnerID:       10007,
		InstallTime:   "2020-01-01 00:00:00",
		InstalledPath: filepath.Dir(path),
		SizeBytes:     1,
		Checksum:      "persisted",
	}

	rec, err := newTestParser().Validate(summary)
	require.NoError(t, err)

	assert.True(t, rec.Validated)
	assert.Equal(t, summary, rec.Summary())
	assert.Equal(t, "Native Demo", rec.DisplayName)
	assert.Len(t, rec.Activities, 2)
	assert.Equal(t, path, rec.ManifestPath)
}

func TestValidateMissingManifest(t *testing.T) {
	summary := types.PackageSummary{PackageName: "com.gone", AppType: "QUICKAPP", InstalledPath: filepath.Join(t.TempDir(), "gone")}

	_, err := newTestParser().Validate(summary)
	assert.Equal(t, types.KindIOError, types.KindOf(err))
}

func TestValidateUsesPersistedType(t *testing.T) {
	// the persisted tag wins over a manifest edited after install
	path := writeManifest(t, `{"package": "com.a", "appType": "NATIVE", "entry": "a", "execfile": "b"}`)
	summary := types.PackageSummary{PackageName: "com.a", AppType: "QUICKAPP", InstalledPath: filepath.Dir(path)}

	rec, err := newTestParser().Validate(summary)
	require.NoError(t, err)
	assert.Equal(t, types.AppTypeQuickApp, rec.Type)
	assert.Equal(t, "a", rec.Entry)
}

func TestOrderedKeysNonObject(t *testing.T) {
	rec, err := newTestParser().ParseFile(writeManifest(t, `{"package": "com.a", "router": {"pages": ["Home"]}}`))
	require.NoError(t, err)
	assert.Empty(t, rec.QuickApp.Router.Pages)
}
