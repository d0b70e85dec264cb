package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/pkgmgr/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/installer"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/pkglist"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/service"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
)

// Server wraps the HTTP server and the package manager behind it
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	pm         *service.PackageManager
	boot       *registry.BootReport
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer builds the package manager and its API. The registry is
// bootstrapped before NewServer returns; a corrupt package list is fatal.
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	layout := cfg.Layout()
	logger.Info("Initializing package manager",
		zap.String("preset", layout.PresetDir),
		zap.String("installed", layout.InstalledDir),
		zap.String("data", layout.DataDir),
		zap.String("list", layout.PackageList),
	)

	for _, dir := range layout.Directories() {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	// Metrics first, the registry publishes its size
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promRegistry)

	parser := manifest.NewParser(logger.Component("manifest"))
	store := pkglist.NewStore(layout.PackageList, logger.Component("pkglist"))
	manager := registry.NewManager(parser, logger.Component("registry"),
		registry.WithOwnerIDBase(cfg.Behavior.OwnerIDBase),
		registry.WithMetrics(metrics),
	)

	seeder := registry.NewSeeder(manager, store, parser, layout, registry.SeedOptions{
		ScanInstalled: cfg.Behavior.ScanInstalledOnBoot,
		Reconcile:     cfg.Behavior.Reconcile,
	}, logger.Component("seeder"))
	boot, err := seeder.Bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap registry: %w", err)
	}
	logger.Info("Registry ready",
		zap.Bool("first_boot", boot.FirstBoot),
		zap.Int("packages", manager.Len()),
		zap.Int("adopted", boot.Adopted),
		zap.Int("dropped", boot.Dropped),
	)

	inst := installer.New(manager, store, parser, layout, logger.Component("installer"),
		installer.WithMetrics(metrics),
	)
	pm := service.New(inst, manager, layout, boot.FirstBoot, logger.Component("service"),
		service.WithMetrics(metrics),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(pm, cfg.Server.RequestTimeout, logger.Component("api"))
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		},
		pm:      pm,
		boot:    boot,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// BootReport returns what the startup bootstrap did
func (s *Server) BootReport() *registry.BootReport {
	return s.boot
}

// Run serves until ctx is cancelled or the listener fails
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Close stops the listener, then waits for running transactions
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	s.pm.Close()
	s.logger.Info("Transactions drained")

	_ = s.logger.Sync()
	return err
}
