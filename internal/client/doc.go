// Package client is the Go client of the package manager daemon, used by
// the pm command.
package client
