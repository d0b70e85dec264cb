package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/utils"
)

// Defaults applied by the manifest schemas
const (
	DefaultAppType     = "QUICKAPP"
	DefaultLaunchMode  = "standard"
	QuickActivityName  = "QuickActivity"
	QuickAppExecFile   = "vappxms"
	QuickAppLaunchMode = "singleTask"

	opParse    = "parse manifest"
	opValidate = "validate manifest"
)

// Checksummer digests an installed package directory
type Checksummer interface {
	Sum(dir string) (string, error)
}

// Parser turns manifest files into package records
type Parser struct {
	log *zap.Logger
	sum Checksummer
	now func() time.Time
}

// Option configures a Parser
type Option func(*Parser)

// WithChecksummer replaces the directory checksum
func WithChecksummer(c Checksummer) Option {
	return func(p *Parser) { p.sum = c }
}

// WithClock replaces the clock used for install times
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser creates a parser
func NewParser(log *zap.Logger, opts ...Option) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Parser{
		log: log,
		sum: utils.NewTreeChecksum(nil),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile parses a manifest seen for the first time and derives the
// bookkeeping fields from the directory that holds it.
func (p *Parser) ParseFile(manifestPath string) (*types.PackageRecord, error) {
	doc, err := p.load(opParse, manifestPath)
	if err != nil {
		return nil, err
	}

	if doc.Package == "" {
		return nil, types.Errorf(types.KindMalformedManifest, opParse, "", "%s: missing package field", manifestPath)
	}
	if err := utils.ValidatePackageName(doc.Package); err != nil {
		return nil, types.NewError(types.KindMalformedManifest, opParse, doc.Package, err)
	}

	dir := filepath.Dir(manifestPath)
	rec := &types.PackageRecord{
		PackageName:   doc.Package,
		AppType:       stringOr(doc.AppType, DefaultAppType),
		Version:       doc.VersionName,
		InstalledPath: dir,
		ManifestPath:  manifestPath,
		InstallTime:   p.now().Format(types.InstallTimeLayout),
	}

	if size, err := fsutil.DirSize(dir); err != nil {
		p.log.Warn("Failed to measure package size", zap.String("package", rec.PackageName), zap.Error(err))
	} else {
		rec.SizeBytes = size
	}

	if sum, err := p.sum.Sum(dir); err != nil {
		p.log.Warn("Failed to checksum package", zap.String("package", rec.PackageName), zap.Error(err))
	} else {
		rec.Checksum = sum
	}

	if err := p.fill(opParse, rec, doc); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate re-parses the manifest of a package known only by its persisted
// summary. Identity and bookkeeping fields come from the summary.
func (p *Parser) Validate(summary types.PackageSummary) (*types.PackageRecord, error) {
	if summary.PackageName == "" {
		return nil, types.Errorf(types.KindMalformedManifest, opValidate, "", "summary has no package name")
	}

	rec := summary.Stale()
	doc, err := p.load(opValidate, rec.ManifestPath)
	if err != nil {
		return nil, err
	}

	if err := p.fill(opValidate, rec, doc); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Parser) load(op, manifestPath string) (*document, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.Errorf(types.KindIOError, op, "", "%s does not exist", manifestPath)
		}
		return nil, types.NewError(types.KindIOError, op, "", err)
	}

	var doc document
	if err := sonic.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, types.Errorf(types.KindParseError, op, "", "%s: %v", manifestPath, err)
	}
	return &doc, nil
}

func (p *Parser) fill(op string, rec *types.PackageRecord, doc *document) error {
	rec.DisplayName = doc.Name
	rec.Icon = doc.Icon
	rec.Type = types.ParseApplicationType(rec.AppType)

	var err error
	switch rec.Type {
	case types.AppTypeNative:
		err = fillNative(op, rec, doc)
	case types.AppTypeQuickApp:
		fillQuickApp(rec, doc)
	default:
		err = types.Errorf(types.KindUnsupportedType, op, rec.PackageName, "application type %q", rec.AppType)
	}
	if err != nil {
		return err
	}

	rec.Validated = true
	return nil
}

func fillNative(op string, rec *types.PackageRecord, doc *document) error {
	rec.Entry = stringOr(doc.Entry, "")
	if rec.Entry == "" {
		return types.Errorf(types.KindMalformedManifest, op, rec.PackageName, "missing entry field")
	}
	rec.ExecFile = stringOr(doc.ExecFile, "")
	if rec.ExecFile == "" {
		return types.Errorf(types.KindMalformedManifest, op, rec.PackageName, "missing execfile field")
	}

	rec.Activities = make([]types.ActivityDescriptor, 0, len(doc.Activities))
	for i, a := range doc.Activities {
		if a.Name == "" {
			return types.Errorf(types.KindMalformedManifest, op, rec.PackageName, "activities[%d] missing name", i)
		}
		rec.Activities = append(rec.Activities, types.ActivityDescriptor{
			Name:         a.Name,
			LaunchMode:   stringOr(a.LaunchMode, DefaultLaunchMode),
			TaskAffinity: stringOr(a.TaskAffinity, rec.PackageName),
			Actions:      a.IntentFilter.Actions,
		})
	}

	rec.Services = make([]types.ServiceDescriptor, 0, len(doc.Services))
	for i, s := range doc.Services {
		if s.Name == "" {
			return types.Errorf(types.KindMalformedManifest, op, rec.PackageName, "services[%d] missing name", i)
		}
		rec.Services = append(rec.Services, types.ServiceDescriptor{
			Name:     s.Name,
			Exported: s.Exported,
			Actions:  s.IntentFilter.Actions,
		})
	}
	return nil
}

func fillQuickApp(rec *types.PackageRecord, doc *document) {
	rec.ExecFile = stringOr(doc.ExecFile, QuickAppExecFile)
	rec.Entry = stringOr(doc.Entry, QuickActivityName)
	rec.Activities = []types.ActivityDescriptor{{
		Name:         QuickActivityName,
		LaunchMode:   QuickAppLaunchMode,
		TaskAffinity: rec.PackageName,
	}}

	info := &types.QuickAppInfo{
		VersionCode: doc.VersionCode,
		Features:    []string{},
		Router: types.Router{
			Entry: doc.Router.Entry,
			Pages: []string(doc.Router.Pages),
		},
	}
	for _, f := range doc.Features {
		if f.Name != "" {
			info.Features = append(info.Features, f.Name)
		}
	}
	if info.Router.Pages == nil {
		info.Router.Pages = []string{}
	}
	rec.QuickApp = info

	rec.Services = make([]types.ServiceDescriptor, 0, len(doc.Services))
	for _, s := range doc.Services {
		rec.Services = append(rec.Services, types.ServiceDescriptor{Name: s.Name, Path: s.Path})
	}
}
