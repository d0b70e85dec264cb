// Package server assembles the package manager daemon: configuration,
// bootstrap, the installer, the facade and the HTTP API.
package server
