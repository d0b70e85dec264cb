package installer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// State is the position of a transaction in the install pipeline
type State string

const (
	StateStaged    State = "staged"
	StateVerified  State = "verified"
	StateParsed    State = "parsed"
	StatePlaced    State = "placed"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// Percent returns the progress reported when a transaction enters s
func (s State) Percent() int {
	switch s {
	case StateStaged:
		return 10
	case StateVerified:
		return 40
	case StateParsed:
		return 70
	case StatePlaced:
		return 90
	case StateCommitted:
		return 100
	default:
		return 0
	}
}

// Parser parses the manifest of a staged package
type Parser interface {
	ParseFile(manifestPath string) (*types.PackageRecord, error)
}

// ListStore is the part of the package list a transaction writes
type ListStore interface {
	Append(summaries ...types.PackageSummary) error
	Remove(name string) error
}

// ProgressFunc receives the package name (the source until parsed) and percent
type ProgressFunc func(pkg string, percent int)

// InstallRequest describes one install
type InstallRequest struct {
	TxnID    id.TxnID
	Source   string
	Progress ProgressFunc
}

// UninstallRequest describes one uninstall
type UninstallRequest struct {
	TxnID     id.TxnID
	Package   string
	ClearData bool
}

// Result is the terminal outcome of a transaction
type Result struct {
	TxnID    id.TxnID      `json:"transaction_id"`
	Op       string        `json:"op"`
	Package  string        `json:"package"`
	State    State         `json:"state"`
	Upgrade  bool          `json:"upgrade"`
	OwnerID  int32         `json:"owner_id,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Installer runs install and uninstall transactions
type Installer struct {
	registry  *registry.Manager
	store     ListStore
	parser    Parser
	extractor Extractor
	layout    paths.Layout
	metrics   *monitoring.Metrics
	log       *zap.Logger

	stagingMu sync.Mutex
	staging   map[string]struct{}
}

// Option configures an Installer
type Option func(*Installer)

// WithExtractor replaces the archive extractor
func WithExtractor(e Extractor) Option {
	return func(i *Installer) { i.extractor = e }
}

// WithMetrics records transaction results
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(i *Installer) { i.metrics = metrics }
}

// New creates an installer
func New(reg *registry.Manager, store ListStore, parser Parser, layout paths.Layout, log *zap.Logger, opts ...Option) *Installer {
	if log == nil {
		log = zap.NewNop()
	}
	i := &Installer{
		registry:  reg,
		store:     store,
		parser:    parser,
		extractor: NewArchiveExtractor(),
		layout:    layout,
		log:       log,
		staging:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install stages, parses, places and commits a package. The returned
// Result is never nil; err carries the kind reported to observers.
func (i *Installer) Install(ctx context.Context, req InstallRequest) (*Result, error) {
	if req.TxnID == "" {
		req.TxnID = id.NewTxnID()
	}
	timer := monitoring.NewTimer(i.metrics, monitoring.OpInstall)
	res := &Result{TxnID: req.TxnID, Op: monitoring.OpInstall, Package: req.Source}
	log := i.log.With(zap.String("txn", string(req.TxnID)), zap.String("source", req.Source))

	err := i.install(ctx, req, res, log)
	if err != nil {
		res.State = StateAborted
		log.Warn("Install aborted", zap.String("package", res.Package), zap.Error(err))
	} else {
		log.Info("Install committed",
			zap.String("package", res.Package),
			zap.Int32("owner_id", res.OwnerID),
			zap.Bool("upgrade", res.Upgrade))
	}
	res.Duration = timer.Stop(types.KindOf(err).Code())
	return res, err
}

func (i *Installer) install(ctx context.Context, req InstallRequest, res *Result, log *zap.Logger) error {
	const op = "install"

	// mark records a state; progress also reports it. Observers are only
	// called with the registry unlocked so they may read it.
	mark := func(s State) {
		res.State = s
		log.Debug("Install state", zap.String("state", string(s)), zap.String("package", res.Package))
	}
	notify := func(s State) {
		if req.Progress != nil {
			req.Progress(res.Package, s.Percent())
		}
	}
	progress := func(s State) {
		mark(s)
		notify(s)
	}

	if req.Source == "" {
		return types.Errorf(types.KindInvalidArgument, op, "", "empty source path")
	}
	if _, err := os.Stat(req.Source); err != nil {
		return types.NewError(types.KindNotFound, op, req.Source, err)
	}

	staging := i.layout.StagingDir(req.Source)
	release, err := i.claimStaging(staging)
	if err != nil {
		return types.NewError(types.KindIllegalState, op, req.Source, err)
	}
	defer release()

	// A leftover from an interrupted run would mix files from two archives
	if err := fsutil.RemoveTree(staging); err != nil {
		return types.NewError(types.KindIllegalState, op, req.Source, err)
	}
	if err := i.extractor.Extract(ctx, req.Source, staging); err != nil {
		i.discard(staging, log)
		return types.Errorf(types.KindIllegalState, op, req.Source, "failed to extract package: %w", err)
	}
	progress(StateStaged)

	manifestPath := filepath.Join(staging, types.ManifestFile)
	if info, err := os.Stat(manifestPath); err != nil || !info.Mode().IsRegular() {
		i.discard(staging, log)
		return types.Errorf(types.KindMalformedManifest, op, req.Source, "package has no %s", types.ManifestFile)
	}
	progress(StateVerified)

	rec, err := i.parser.ParseFile(manifestPath)
	if err != nil {
		i.discard(staging, log)
		return types.NewError(types.KindMalformedManifest, op, req.Source, err)
	}
	res.Package = rec.PackageName
	progress(StateParsed)

	placed := false
	err = i.registry.Update(func(tx *registry.Tx) error {
		previous, upgrade := tx.Lookup(rec.PackageName)
		if upgrade {
			rec.OwnerID = previous.OwnerID
		} else {
			rec.OwnerID = tx.NextOwnerID()
		}
		res.Upgrade = upgrade
		res.OwnerID = rec.OwnerID

		final := i.layout.InstallDir(rec.PackageName)
		if err := fsutil.RemoveTree(final); err != nil {
			i.discard(staging, log)
			return types.NewError(placementKind(err), op, rec.PackageName, err)
		}
		if err := fsutil.EnsureDir(filepath.Dir(final)); err != nil {
			i.discard(staging, log)
			return types.NewError(placementKind(err), op, rec.PackageName, err)
		}
		if err := move(staging, final); err != nil {
			i.discard(staging, log)
			return types.NewError(placementKind(err), op, rec.PackageName, err)
		}
		if err := fsutil.EnsureDir(i.layout.AppDataDir(rec.PackageName)); err != nil {
			log.Warn("Failed to create data directory", zap.String("package", rec.PackageName), zap.Error(err))
		}
		rec.InstalledPath = final
		rec.ManifestPath = filepath.Join(final, types.ManifestFile)
		placed = true
		mark(StatePlaced)

		if upgrade {
			if err := i.store.Remove(rec.PackageName); err != nil {
				return types.NewError(types.KindIOError, op, rec.PackageName, err)
			}
			tx.Remove(rec.PackageName)
			if previous.InstalledPath != final {
				if err := fsutil.RemoveTree(previous.InstalledPath); err != nil {
					log.Warn("Failed to remove previous version",
						zap.String("package", rec.PackageName),
						zap.String("path", previous.InstalledPath),
						zap.Error(err))
				}
			}
		}

		if err := i.store.Append(rec.Summary()); err != nil {
			return types.NewError(types.KindIOError, op, rec.PackageName, err)
		}
		tx.Insert(rec)
		mark(StateCommitted)
		return nil
	})
	if placed {
		notify(StatePlaced)
	}
	if err != nil {
		return err
	}
	notify(StateCommitted)
	return nil
}

// Uninstall removes a package, its list entry and optionally its data.
// The returned Result is never nil.
func (i *Installer) Uninstall(ctx context.Context, req UninstallRequest) (*Result, error) {
	if req.TxnID == "" {
		req.TxnID = id.NewTxnID()
	}
	timer := monitoring.NewTimer(i.metrics, monitoring.OpUninstall)
	res := &Result{TxnID: req.TxnID, Op: monitoring.OpUninstall, Package: req.Package}
	log := i.log.With(zap.String("txn", string(req.TxnID)), zap.String("package", req.Package))

	err := i.uninstall(ctx, req, res, log)
	if err != nil {
		res.State = StateAborted
		log.Warn("Uninstall aborted", zap.Error(err))
	} else {
		res.State = StateCommitted
		log.Info("Uninstall committed", zap.Bool("clear_data", req.ClearData))
	}
	res.Duration = timer.Stop(types.KindOf(err).Code())
	return res, err
}

func (i *Installer) uninstall(ctx context.Context, req UninstallRequest, res *Result, log *zap.Logger) error {
	const op = "uninstall"

	if req.Package == "" {
		return types.Errorf(types.KindInvalidArgument, op, "", "empty package name")
	}

	return i.registry.Update(func(tx *registry.Tx) error {
		summary, ok := tx.Lookup(req.Package)
		if !ok {
			return types.Errorf(types.KindNotFound, op, req.Package, "package is not installed")
		}
		res.OwnerID = summary.OwnerID

		if err := fsutil.RemoveTree(summary.InstalledPath); err != nil {
			return types.NewError(types.KindPermissionDenied, op, req.Package, err)
		}
		if err := i.store.Remove(req.Package); err != nil {
			return types.NewError(types.KindIOError, op, req.Package, err)
		}
		tx.Remove(req.Package)

		if req.ClearData {
			if err := fsutil.RemoveTree(i.layout.AppDataDir(req.Package)); err != nil {
				log.Warn("Failed to clear data directory", zap.Error(err))
			}
		}
		return nil
	})
}

// claimStaging reserves dir for one transaction at a time
func (i *Installer) claimStaging(dir string) (func(), error) {
	i.stagingMu.Lock()
	defer i.stagingMu.Unlock()

	if _, busy := i.staging[dir]; busy {
		return nil, errors.New("another install is staging " + filepath.Base(dir))
	}
	i.staging[dir] = struct{}{}
	return func() {
		i.stagingMu.Lock()
		delete(i.staging, dir)
		i.stagingMu.Unlock()
	}, nil
}

func (i *Installer) discard(dir string, log *zap.Logger) {
	if err := fsutil.RemoveTree(dir); err != nil {
		log.Warn("Failed to remove staging directory", zap.String("path", dir), zap.Error(err))
	}
}

// move renames src to dst, copying when they sit on different filesystems
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := fsutil.CopyTree(src, dst); err != nil {
		_ = fsutil.RemoveTree(dst)
		return err
	}
	return fsutil.RemoveTree(src)
}

func placementKind(err error) types.ErrorKind {
	if errors.Is(err, fs.ErrPermission) {
		return types.KindPermissionDenied
	}
	return types.KindIOError
}
