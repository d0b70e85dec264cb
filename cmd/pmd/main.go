package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	pflag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen host")
	pflag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	pflag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "development logging")
	pflag.Parse()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start package manager", zap.Error(err))
	}

	runErr := srv.Run(ctx)
	if runErr != nil {
		logger.Error("Server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if runErr != nil {
		os.Exit(1)
	}
}
