/*
Package monitoring provides Prometheus metrics for the package manager daemon.

# Overview

Metrics cover the HTTP surface, install and uninstall transactions, and the
registry size. Every collector is registered on the prometheus.Registerer
passed to NewMetrics, so tests can use a private registry.

A nil *Metrics is valid and records nothing.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "install")
	// ... run the transaction ...
	timer.Stop(code)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
