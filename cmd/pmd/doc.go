// Package main is the entry point of the package manager daemon.
//
// The daemon loads the package registry, then serves the package API over
// HTTP until it receives a signal.
//
// Configuration:
//   - Environment variables (PM_*, LOG_*, RATE_LIMIT_*)
//   - The device file named by PM_CONFIG_FILE (default /etc/package.cfg)
//   - CLI flags (override env vars)
//
// Usage:
//
//	pmd --port 8420
//	pmd --dev
//
// Signals:
//   - SIGINT, SIGTERM: stop accepting requests, drain transactions, exit
package main
