package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/installer"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// Transactor runs install and uninstall transactions
type Transactor interface {
	Install(ctx context.Context, req installer.InstallRequest) (*installer.Result, error)
	Uninstall(ctx context.Context, req installer.UninstallRequest) (*installer.Result, error)
}

// Catalog is the read side of the registry
type Catalog interface {
	Get(name string) (*types.PackageRecord, error)
	GetAll() []*types.PackageRecord
	Summaries() []types.PackageSummary
	Lookup(name string) (types.PackageSummary, bool)
	Stats() types.RegistryStats
}

// InstallParam describes an install request
type InstallParam struct {
	Path  string
	TxnID id.TxnID
}

// UninstallParam describes an uninstall request
type UninstallParam struct {
	Package   string
	ClearData bool
	TxnID     id.TxnID
}

// View selects what List returns
type View string

const (
	ViewAll     View = "all"
	ViewNames   View = "names"
	ViewSummary View = "summary"
)

// ListOptions filters List
type ListOptions struct {
	View  View
	Match string
}

// Listing is the result of List. Only the field matching the view is set.
type Listing struct {
	View      View                   `json:"view"`
	Packages  []*types.PackageRecord `json:"packages,omitempty"`
	Names     []string               `json:"names,omitempty"`
	Summaries []types.PackageSummary `json:"summaries,omitempty"`
}

// Stats combines registry and transaction statistics
type Stats struct {
	types.RegistryStats
	InFlight int64               `json:"in_flight"`
	Metrics  monitoring.Snapshot `json:"metrics"`
}

// PackageManager is the facade over the installer and the registry
type PackageManager struct {
	txn       Transactor
	catalog   Catalog
	layout    paths.Layout
	firstBoot bool
	metrics   *monitoring.Metrics
	log       *zap.Logger

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Option configures a PackageManager
type Option func(*PackageManager)

// WithMetrics includes the metrics snapshot in Stats
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(pm *PackageManager) { pm.metrics = metrics }
}

// New creates the facade. firstBoot is what the bootstrap observed.
func New(txn Transactor, catalog Catalog, layout paths.Layout, firstBoot bool, log *zap.Logger, opts ...Option) *PackageManager {
	if log == nil {
		log = zap.NewNop()
	}
	pm := &PackageManager{
		txn:       txn,
		catalog:   catalog,
		layout:    layout,
		firstBoot: firstBoot,
		log:       log,
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// Install accepts an install and runs it in the background.
// The return value only reports acceptance.
func (pm *PackageManager) Install(param InstallParam, observer InstallObserver) int32 {
	if param.Path == "" {
		return types.KindInvalidArgument.Code()
	}

	result := &terminal{}
	var progress installer.ProgressFunc
	if observer != nil {
		result.deliver = observer.OnInstallResult
		progress = observer.OnInstallProgress
	}

	return pm.spawn(param.Path, result, func(ctx context.Context) (string, error) {
		res, err := pm.txn.Install(ctx, installer.InstallRequest{
			TxnID:    param.TxnID,
			Source:   param.Path,
			Progress: progress,
		})
		if res == nil {
			return param.Path, err
		}
		return res.Package, err
	})
}

// Uninstall accepts an uninstall and runs it in the background
func (pm *PackageManager) Uninstall(param UninstallParam, observer UninstallObserver) int32 {
	if param.Package == "" {
		return types.KindInvalidArgument.Code()
	}

	result := &terminal{}
	if observer != nil {
		result.deliver = observer.OnUninstallResult
	}

	return pm.spawn(param.Package, result, func(ctx context.Context) (string, error) {
		_, err := pm.txn.Uninstall(ctx, installer.UninstallRequest{
			TxnID:     param.TxnID,
			Package:   param.Package,
			ClearData: param.ClearData,
		})
		return param.Package, err
	})
}

// spawn runs work on a goroutine unless the facade is closed
func (pm *PackageManager) spawn(subject string, result *terminal, work func(ctx context.Context) (string, error)) int32 {
	pm.mu.RLock()
	if pm.closed {
		pm.mu.RUnlock()
		return types.KindNoService.Code()
	}
	pm.wg.Add(1)
	pm.inFlight.Add(1)
	pm.mu.RUnlock()

	go func() {
		defer pm.wg.Done()
		defer pm.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				pm.log.Error("Transaction panicked", zap.String("subject", subject), zap.Any("panic", r))
				result.fire(subject, types.KindIllegalState.Code(), fmt.Sprintf("internal error: %v", r))
			}
		}()

		pkg, err := work(context.Background())
		result.fire(pkg, types.KindOf(err).Code(), types.Message(err))
	}()
	return types.KindOK.Code()
}

// List returns the installed packages in the requested view
func (pm *PackageManager) List(opts ListOptions) (*Listing, error) {
	const op = "list"

	view := opts.View
	if view == "" {
		view = ViewAll
	}
	if opts.Match != "" && !doublestar.ValidatePattern(opts.Match) {
		return nil, types.Errorf(types.KindInvalidArgument, op, "", "bad match pattern %q", opts.Match)
	}
	match := func(name string) bool {
		if opts.Match == "" {
			return true
		}
		ok, _ := doublestar.Match(opts.Match, name)
		return ok
	}

	listing := &Listing{View: view}
	switch view {
	case ViewAll:
		listing.Packages = []*types.PackageRecord{}
		for _, rec := range pm.catalog.GetAll() {
			if match(rec.PackageName) {
				listing.Packages = append(listing.Packages, rec)
			}
		}
	case ViewNames:
		listing.Names = []string{}
		for _, rec := range pm.catalog.GetAll() {
			if match(rec.PackageName) {
				listing.Names = append(listing.Names, rec.PackageName)
			}
		}
	case ViewSummary:
		listing.Summaries = []types.PackageSummary{}
		for _, s := range pm.catalog.Summaries() {
			if match(s.PackageName) {
				listing.Summaries = append(listing.Summaries, s)
			}
		}
	default:
		return nil, types.Errorf(types.KindInvalidArgument, op, "", "unknown view %q", view)
	}
	return listing, nil
}

// Get returns the validated record of name
func (pm *PackageManager) Get(name string) (*types.PackageRecord, error) {
	if name == "" {
		return nil, types.Errorf(types.KindInvalidArgument, "get", "", "empty package name")
	}
	return pm.catalog.Get(name)
}

// ClearCache deletes everything under the data directory of name
func (pm *PackageManager) ClearCache(name string) error {
	const op = "clear-cache"

	if _, ok := pm.catalog.Lookup(name); !ok {
		return types.Errorf(types.KindNotFound, op, name, "package is not installed")
	}
	if err := fsutil.ClearDir(pm.layout.AppDataDir(name)); err != nil {
		return types.NewError(types.KindIOError, op, name, err)
	}
	pm.log.Info("Cleared package data", zap.String("package", name))
	return nil
}

// SizeStats measures the code, data and cache directories of name
func (pm *PackageManager) SizeStats(name string) (types.PackageStats, error) {
	const op = "size-stats"

	summary, ok := pm.catalog.Lookup(name)
	if !ok {
		return types.PackageStats{}, types.Errorf(types.KindNotFound, op, name, "package is not installed")
	}

	var stats types.PackageStats
	var err error
	if stats.CodeSize, err = fsutil.DirSize(summary.InstalledPath); err != nil {
		return types.PackageStats{}, types.NewError(types.KindIOError, op, name, err)
	}
	if stats.DataSize, err = fsutil.DirSize(pm.layout.AppDataDir(name)); err != nil {
		return types.PackageStats{}, types.NewError(types.KindIOError, op, name, err)
	}
	if stats.CacheSize, err = fsutil.DirSize(pm.layout.AppCacheDir(name)); err != nil {
		return types.PackageStats{}, types.NewError(types.KindIOError, op, name, err)
	}
	return stats, nil
}

// IsFirstBoot reports whether the package list was absent at startup
func (pm *PackageManager) IsFirstBoot() bool {
	return pm.firstBoot
}

// Stats returns registry and transaction statistics
func (pm *PackageManager) Stats() Stats {
	reg := pm.catalog.Stats()
	reg.FirstBoot = pm.firstBoot
	return Stats{
		RegistryStats: reg,
		InFlight:      pm.inFlight.Load(),
		Metrics:       pm.metrics.Snapshot(),
	}
}

// Close stops accepting transactions and waits for running ones
func (pm *PackageManager) Close() {
	pm.mu.Lock()
	pm.closed = true
	pm.mu.Unlock()
	pm.wg.Wait()
}
