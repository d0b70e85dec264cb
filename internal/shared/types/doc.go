// Package types provides shared data structures for the package manager.
//
// This package defines the records exchanged between the manifest parser,
// the package list store, the registry, the installer and the service
// facade, together with the error taxonomy every operation reports.
//
// Core Types:
//   - PackageRecord: Fully described installed application
//   - PackageSummary: Persisted subset kept in the package list
//   - ActivityDescriptor, ServiceDescriptor: Declared components
//   - QuickAppInfo, Router: Quick app extras
//   - PackageStats: Code, data and cache sizes
//
// Errors:
//   - ErrorKind: Result codes delivered to observers (0 = success)
//   - Error: Wrapped cause carrying a kind, operation and package
//
// Example Usage:
//
//	rec, err := parser.ParseFile("/data/app/com.example.app/manifest.json")
//	if types.KindOf(err) == types.KindMalformedManifest {
//	    // broken installation, skip it
//	}
package types
