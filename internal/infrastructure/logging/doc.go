// Package logging builds the daemon's zap logger.
//
// Production mode writes JSON lines to stderr for the device log collector;
// development mode writes colored console lines. Either mode can mirror its
// output to a file (LOG_FILE).
//
// Components receive a *zap.Logger from Component and never build their
// own; tests pass zap.NewNop().
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", File: "/data/log/pm.log"})
//	logger.Component("installer").Info("package installed", zap.String("package", name))
package logging
