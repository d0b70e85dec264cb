// Package registry holds the in-memory index of installed packages.
//
// Components:
//   - Manager: lookups, upserts and removals behind one RWMutex
//   - Tx: the write-locked view handed to Manager.Update
//   - Seeder: builds the index at startup from the package list, the
//     preset directory and, optionally, a reconcile pass over the disk
//
// Entries loaded from the package list start stale: only the persisted
// summary is known. The first read re-parses the manifest and promotes the
// entry to a fully validated record, unless a writer replaced the entry in
// the meantime. A stale entry whose manifest no longer parses stays stale
// and is left out of listings; Get reports it as MalformedManifest.
//
// Example Usage:
//
//	manager := registry.NewManager(parser, logger)
//	seeder := registry.NewSeeder(manager, store, parser, layout, registry.SeedOptions{Reconcile: true}, logger)
//	report, err := seeder.Bootstrap(ctx)
//	rec, err := manager.Get("com.example.app")
package registry
