package installer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/pkglist"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

type fixture struct {
	root     string
	layout   paths.Layout
	store    *pkglist.Store
	registry *registry.Manager
	inst     *Installer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	layout := paths.New(filepath.Join(root, "system/app"), filepath.Join(root, "data/app"), filepath.Join(root, "data/data"), "")
	for _, dir := range layout.Directories() {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	parser := manifest.NewParser(zap.NewNop())
	store := pkglist.NewStore(layout.PackageList, zap.NewNop())
	require.NoError(t, store.Create())
	reg := registry.NewManager(parser, zap.NewNop())

	return &fixture{
		root:     root,
		layout:   layout,
		store:    store,
		registry: reg,
		inst:     New(reg, store, parser, layout, zap.NewNop(), opts...),
	}
}

// source writes an unpacked package under <root>/src/<dir>
func (f *fixture) source(t *testing.T, dir, manifestJSON string) string {
	t.Helper()
	src := filepath.Join(f.root, "src", dir)
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, types.ManifestFile), []byte(manifestJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.js"), []byte("console.log(1)"), 0o644))
	return src
}

func quickApp(name, version string) string {
	return fmt.Sprintf(`{"package": %q, "appType": "QUICKAPP/js", "versionName": %q}`, name, version)
}

func TestInstallFromDirectory(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "demo", quickApp("com.example.demo", "1.0"))

	var percents []int
	res, err := f.inst.Install(context.Background(), InstallRequest{
		Source:   src,
		Progress: func(pkg string, percent int) { percents = append(percents, percent) },
	})
	require.NoError(t, err)

	assert.Equal(t, "com.example.demo", res.Package)
	assert.Equal(t, StateCommitted, res.State)
	assert.False(t, res.Upgrade)
	assert.Equal(t, registry.DefaultOwnerIDBase, res.OwnerID)
	assert.NotEmpty(t, res.TxnID)
	assert.Equal(t, []int{10, 40, 70, 90, 100}, percents)

	final := f.layout.InstallDir("com.example.demo")
	assert.FileExists(t, filepath.Join(final, "app.js"))
	assert.DirExists(t, f.layout.AppDataDir("com.example.demo"))
	assert.NoDirExists(t, f.layout.StagingDir(src))

	rec, err := f.registry.Get("com.example.demo")
	require.NoError(t, err)
	assert.Equal(t, final, rec.InstalledPath)
	assert.True(t, rec.Validated)

	listed, err := f.store.Load()
	require.NoError(t, err)
	require.Contains(t, listed, "com.example.demo")
	assert.Equal(t, final, listed["com.example.demo"].InstalledPath)
	assert.Equal(t, registry.DefaultOwnerIDBase, listed["com.example.demo"].OwnerID)
}

func TestProgressObserverMayReadRegistry(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "reader", quickApp("com.example.reader", "1.0"))

	seen := map[int]int{}
	done := make(chan error, 1)
	go func() {
		_, err := f.inst.Install(context.Background(), InstallRequest{
			Source: src,
			Progress: func(pkg string, percent int) {
				seen[percent] = len(f.registry.GetAll())
			},
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("install blocked on an observer reading the registry")
	}
	assert.Equal(t, 0, seen[70])
	assert.Equal(t, 1, seen[100])
}

func TestUpgradeKeepsOwnerID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.inst.Install(ctx, InstallRequest{Source: f.source(t, "a-v1", quickApp("com.a", "1.0"))})
	require.NoError(t, err)
	_, err = f.inst.Install(ctx, InstallRequest{Source: f.source(t, "b", quickApp("com.b", "1.0"))})
	require.NoError(t, err)

	res, err := f.inst.Install(ctx, InstallRequest{Source: f.source(t, "a-v2", quickApp("com.a", "2.0"))})
	require.NoError(t, err)
	assert.True(t, res.Upgrade)
	assert.Equal(t, registry.DefaultOwnerIDBase, res.OwnerID)

	rec, err := f.registry.Get("com.a")
	require.NoError(t, err)
	assert.Equal(t, "2.0", rec.Version)

	b, err := f.registry.Get("com.b")
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultOwnerIDBase+1, b.OwnerID)

	listed, err := f.store.List()
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestUpgradeRemovesPreviousDirectoryWhenMoved(t *testing.T) {
	f := newFixture(t)
	preset := filepath.Join(f.layout.PresetDir, "legacy")
	require.NoError(t, os.MkdirAll(preset, 0o755))
	f.registry.Upsert(&types.PackageRecord{
		PackageName:   "com.legacy",
		AppType:       "QUICKAPP",
		InstalledPath: preset,
		OwnerID:       10042,
	})
	require.NoError(t, f.store.Append(types.PackageSummary{PackageName: "com.legacy", InstalledPath: preset, OwnerID: 10042}))

	res, err := f.inst.Install(context.Background(), InstallRequest{Source: f.source(t, "legacy", quickApp("com.legacy", "2.0"))})
	require.NoError(t, err)
	assert.Equal(t, int32(10042), res.OwnerID)
	assert.NoDirExists(t, preset)
	assert.DirExists(t, f.layout.InstallDir("com.legacy"))
}

func TestInstallMissingSource(t *testing.T) {
	f := newFixture(t)
	res, err := f.inst.Install(context.Background(), InstallRequest{Source: filepath.Join(f.root, "nope.rpk")})

	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
	assert.Equal(t, StateAborted, res.State)
	assert.NoDirExists(t, f.layout.StagingRoot())
	assert.Equal(t, 0, f.registry.Len())
}

func TestInstallMalformedManifest(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "broken", `{"appType": "QUICKAPP"}`)

	_, err := f.inst.Install(context.Background(), InstallRequest{Source: src})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMalformedManifest))
	assert.Contains(t, err.Error(), "missing package field")
	assert.NoDirExists(t, f.layout.StagingDir(src))
	assert.Equal(t, 0, f.registry.Len())
}

func TestInstallWithoutManifest(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.root, "src", "empty")
	require.NoError(t, os.MkdirAll(src, 0o755))

	_, err := f.inst.Install(context.Background(), InstallRequest{Source: src})
	assert.Equal(t, types.KindMalformedManifest, types.KindOf(err))
}

func TestInstallExtractionFailure(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.root, "garbage.rpk")
	require.NoError(t, os.WriteFile(src, []byte("not a zip"), 0o644))

	_, err := f.inst.Install(context.Background(), InstallRequest{Source: src})
	require.Error(t, err)
	assert.Equal(t, types.KindIllegalState, types.KindOf(err))
	assert.NoDirExists(t, f.layout.StagingDir(src))
}

func TestInstallFromZipArchive(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.root, "demo.rpk")
	writeZip(t, src, map[string]string{
		types.ManifestFile: quickApp("com.zip.demo", "1.0"),
		"pages/index.js":   "export default {}",
	})

	res, err := f.inst.Install(context.Background(), InstallRequest{Source: src})
	require.NoError(t, err)
	assert.Equal(t, "com.zip.demo", res.Package)
	assert.FileExists(t, filepath.Join(f.layout.InstallDir("com.zip.demo"), "pages", "index.js"))
	assert.NoDirExists(t, filepath.Join(f.layout.StagingRoot(), "demo"))
}

func TestListWriteFailureLeavesRegistryEmpty(t *testing.T) {
	root := t.TempDir()
	layout := paths.New(filepath.Join(root, "system/app"), filepath.Join(root, "data/app"), filepath.Join(root, "data/data"), "")
	parser := manifest.NewParser(zap.NewNop())
	reg := registry.NewManager(parser, zap.NewNop())

	store := &mockStore{}
	store.On("Append", mock.Anything).Return(errors.New("disk full"))
	inst := New(reg, store, parser, layout, zap.NewNop())

	src := filepath.Join(root, "src", "demo")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, types.ManifestFile), []byte(quickApp("com.demo", "1.0")), 0o644))

	_, err := inst.Install(context.Background(), InstallRequest{Source: src})
	require.Error(t, err)
	assert.Equal(t, types.KindIOError, types.KindOf(err))
	assert.False(t, reg.Contains("com.demo"))
	assert.DirExists(t, layout.InstallDir("com.demo"))
	store.AssertExpectations(t)
}

func TestUninstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.inst.Install(ctx, InstallRequest{Source: f.source(t, "demo", quickApp("com.demo", "1.0"))})
	require.NoError(t, err)
	dataFile := filepath.Join(f.layout.AppDataDir("com.demo"), "prefs")
	require.NoError(t, os.WriteFile(dataFile, []byte("x"), 0o644))

	res, err := f.inst.Uninstall(ctx, UninstallRequest{Package: "com.demo"})
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
	assert.NoDirExists(t, f.layout.InstallDir("com.demo"))
	assert.FileExists(t, dataFile)
	assert.False(t, f.registry.Contains("com.demo"))

	listed, err := f.store.Load()
	require.NoError(t, err)
	assert.NotContains(t, listed, "com.demo")
}

func TestUninstallClearData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.inst.Install(ctx, InstallRequest{Source: f.source(t, "demo", quickApp("com.demo", "1.0"))})
	require.NoError(t, err)

	_, err = f.inst.Uninstall(ctx, UninstallRequest{Package: "com.demo", ClearData: true})
	require.NoError(t, err)
	assert.NoDirExists(t, f.layout.AppDataDir("com.demo"))
}

func TestUninstallUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Uninstall(context.Background(), UninstallRequest{Package: "com.ghost"})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestUninstallAlreadyRemovedDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.inst.Install(ctx, InstallRequest{Source: f.source(t, "demo", quickApp("com.demo", "1.0"))})
	require.NoError(t, err)
	require.NoError(t, fsutil.RemoveTree(f.layout.InstallDir("com.demo")))

	_, err = f.inst.Uninstall(ctx, UninstallRequest{Package: "com.demo"})
	require.NoError(t, err)
	assert.False(t, f.registry.Contains("com.demo"))
}

func TestUninstallListFailureKeepsRegistryEntry(t *testing.T) {
	root := t.TempDir()
	layout := paths.New(filepath.Join(root, "system/app"), filepath.Join(root, "data/app"), filepath.Join(root, "data/data"), "")
	reg := registry.NewManager(manifest.NewParser(zap.NewNop()), zap.NewNop())
	reg.Upsert(&types.PackageRecord{PackageName: "com.demo", InstalledPath: layout.InstallDir("com.demo")})

	store := &mockStore{}
	store.On("Remove", "com.demo").Return(errors.New("read-only filesystem"))
	inst := New(reg, store, manifest.NewParser(zap.NewNop()), layout, zap.NewNop())

	_, err := inst.Uninstall(context.Background(), UninstallRequest{Package: "com.demo"})
	assert.Equal(t, types.KindIOError, types.KindOf(err))
	assert.True(t, reg.Contains("com.demo"))
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Append(summaries ...types.PackageSummary) error {
	args := m.Called(summaries)
	return args.Error(0)
}

func (m *mockStore) Remove(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}
