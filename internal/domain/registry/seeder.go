package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// ManifestParser parses a package seen for the first time
type ManifestParser interface {
	ParseFile(manifestPath string) (*types.PackageRecord, error)
}

// ListStore is the persisted package list
type ListStore interface {
	Path() string
	Exists() (bool, error)
	Create() error
	Delete() error
	Load() (map[string]types.PackageSummary, error)
	Append(summaries ...types.PackageSummary) error
	Remove(name string) error
}

// SeedOptions controls startup scanning
type SeedOptions struct {
	// ScanInstalled adds the installed directory to the first boot scan
	ScanInstalled bool
	// Reconcile compares the loaded index against the disk after loading
	Reconcile bool
}

// BootReport describes what Bootstrap did
type BootReport struct {
	FirstBoot bool `json:"first_boot"`
	Rescanned bool `json:"rescanned"`
	Loaded    int  `json:"loaded"`
	Scanned   int  `json:"scanned"`
	Adopted   int  `json:"adopted"`
	Dropped   int  `json:"dropped"`
}

// Seeder builds the registry at startup
type Seeder struct {
	manager *Manager
	store   ListStore
	parser  ManifestParser
	layout  paths.Layout
	opts    SeedOptions
	log     *zap.Logger
}

// NewSeeder creates a seeder
func NewSeeder(manager *Manager, store ListStore, parser ManifestParser, layout paths.Layout, opts SeedOptions, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{
		manager: manager,
		store:   store,
		parser:  parser,
		layout:  layout,
		opts:    opts,
		log:     log,
	}
}

// Bootstrap loads or creates the package list and fills the registry.
// A list that exists but cannot be read is fatal: deleting it triggers a
// full rescan on the next start.
func (s *Seeder) Bootstrap(ctx context.Context) (*BootReport, error) {
	report := &BootReport{}

	exists, err := s.store.Exists()
	if err != nil {
		return nil, fmt.Errorf("package list %s is unreadable: %w", s.store.Path(), err)
	}

	if !exists {
		report.FirstBoot = true
		s.log.Info("No package list found, scanning for preinstalled packages", zap.String("list", s.store.Path()))

		if err := s.store.Create(); err != nil {
			return nil, fmt.Errorf("create package list: %w", err)
		}

		var dirs []string
		if s.opts.ScanInstalled {
			dirs = append(dirs, s.layout.InstalledDir)
		}
		dirs = append(dirs, s.layout.PresetDir)

		n, err := s.scan(ctx, dirs...)
		if err != nil {
			return nil, err
		}
		report.Scanned = n
	} else {
		summaries, err := s.store.Load()
		if err != nil {
			return nil, fmt.Errorf("package list %s is unusable, delete it to force a rescan: %w", s.store.Path(), err)
		}

		if len(summaries) == 0 {
			report.Rescanned = true
			s.log.Info("Package list is empty, rescanning preset packages", zap.String("list", s.store.Path()))

			if err := s.store.Delete(); err != nil {
				return nil, err
			}
			if err := s.store.Create(); err != nil {
				return nil, fmt.Errorf("recreate package list: %w", err)
			}

			n, err := s.scan(ctx, s.layout.PresetDir)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				s.log.Warn("Rescan found no packages", zap.String("preset", s.layout.PresetDir))
			}
			report.Scanned = n
		} else {
			err := s.manager.Update(func(tx *Tx) error {
				tx.Reset()
				for _, summary := range summaries {
					tx.Insert(summary.Stale())
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			report.Loaded = len(summaries)
		}
	}

	if s.opts.Reconcile {
		if err := s.reconcile(ctx, report); err != nil {
			return nil, err
		}
	}

	s.log.Info("Package registry ready",
		zap.Bool("first_boot", report.FirstBoot),
		zap.Int("packages", s.manager.Len()),
		zap.Int("loaded", report.Loaded),
		zap.Int("scanned", report.Scanned),
		zap.Int("adopted", report.Adopted),
		zap.Int("dropped", report.Dropped))

	return report, nil
}

// scan parses every child directory of roots, registers the packages in
// order and appends them to the list. The first directory claiming a name wins.
func (s *Seeder) scan(ctx context.Context, roots ...string) (int, error) {
	var added []types.PackageSummary

	err := s.manager.Update(func(tx *Tx) error {
		for _, root := range roots {
			dirs, err := fsutil.ChildDirectories(root)
			if err != nil {
				s.log.Warn("Failed to list package directory", zap.String("dir", root), zap.Error(err))
				continue
			}

			for _, dir := range dirs {
				if err := ctx.Err(); err != nil {
					return err
				}

				rec, ok := s.parseDir(dir)
				if !ok {
					continue
				}
				if _, dup := tx.Lookup(rec.PackageName); dup {
					s.log.Warn("Duplicate package, keeping the first",
						zap.String("package", rec.PackageName), zap.String("dir", dir))
					continue
				}

				rec.OwnerID = tx.NextOwnerID()
				tx.Insert(rec)
				s.ensureDataDir(rec.PackageName)
				added = append(added, rec.Summary())

				s.log.Debug("Registered package",
					zap.String("package", rec.PackageName),
					zap.Int32("owner_id", rec.OwnerID),
					zap.String("dir", dir))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(added) > 0 {
		if err := s.store.Append(added...); err != nil {
			return 0, fmt.Errorf("persist scanned packages: %w", err)
		}
	}
	return len(added), nil
}

// reconcile drops entries whose directory vanished, adopts installed
// directories the list does not know about and clears leftover staging.
func (s *Seeder) reconcile(ctx context.Context, report *BootReport) error {
	err := s.manager.Update(func(tx *Tx) error {
		for _, name := range tx.Names() {
			summary, _ := tx.Lookup(name)
			if fsutil.IsDir(summary.InstalledPath) {
				continue
			}
			if err := s.store.Remove(name); err != nil {
				s.log.Warn("Failed to drop missing package from list", zap.String("package", name), zap.Error(err))
				continue
			}
			tx.Remove(name)
			report.Dropped++
			s.log.Warn("Dropped package whose directory is missing",
				zap.String("package", name), zap.String("dir", summary.InstalledPath))
		}

		dirs, err := fsutil.ChildDirectories(s.layout.InstalledDir)
		if err != nil {
			s.log.Warn("Failed to list installed directory", zap.String("dir", s.layout.InstalledDir), zap.Error(err))
			return nil
		}

		for _, dir := range dirs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, known := tx.Lookup(filepath.Base(dir)); known {
				continue
			}

			rec, ok := s.parseDir(dir)
			if !ok {
				continue
			}
			if rec.PackageName != filepath.Base(dir) {
				s.log.Warn("Ignoring directory not named after its package",
					zap.String("dir", dir), zap.String("package", rec.PackageName))
				continue
			}
			if _, known := tx.Lookup(rec.PackageName); known {
				continue
			}

			rec.OwnerID = tx.NextOwnerID()
			if err := s.store.Append(rec.Summary()); err != nil {
				s.log.Warn("Failed to adopt package", zap.String("package", rec.PackageName), zap.Error(err))
				continue
			}
			tx.Insert(rec)
			s.ensureDataDir(rec.PackageName)
			report.Adopted++
			s.log.Info("Adopted untracked package", zap.String("package", rec.PackageName), zap.String("dir", dir))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := fsutil.RemoveTree(s.layout.StagingRoot()); err != nil {
		s.log.Warn("Failed to purge staging area", zap.String("dir", s.layout.StagingRoot()), zap.Error(err))
	}
	return nil
}

func (s *Seeder) parseDir(dir string) (*types.PackageRecord, bool) {
	manifest := filepath.Join(dir, types.ManifestFile)
	if !fsutil.Exists(manifest) {
		s.log.Debug("Skipping directory without manifest", zap.String("dir", dir))
		return nil, false
	}

	rec, err := s.parser.ParseFile(manifest)
	if err != nil {
		s.log.Warn("Skipping package with invalid manifest", zap.String("dir", dir), zap.Error(err))
		return nil, false
	}
	return rec, true
}

func (s *Seeder) ensureDataDir(name string) {
	dir := s.layout.AppDataDir(name)
	if err := fsutil.EnsureDir(dir); err != nil {
		s.log.Warn("Failed to create data directory", zap.String("package", name), zap.String("dir", dir), zap.Error(err))
	}
}
