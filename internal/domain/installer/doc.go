// Package installer runs install and uninstall transactions.
//
// An install moves through Staged, Verified, Parsed, Placed and Committed.
// Staging and parsing run without the registry lock; placement and commit
// hold the write lock so the directory, the package list and the registry
// change together. A failure before commit leaves the state Aborted and
// removes the staging directory.
//
// Sources may be directories, zip archives (.rpk, .zip) or tarballs, plain
// or compressed with gzip or zstd. Files with unknown extensions are sniffed.
package installer
