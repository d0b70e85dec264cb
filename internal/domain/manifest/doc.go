// Package manifest parses application manifests into package records.
//
// A manifest is the manifest.json at the root of every package directory.
// Its "appType" tag selects one of two schemas:
//
//   - NATIVE: an executable with explicit activities and services. "entry"
//     and "execfile" are required.
//   - QUICKAPP: a script application run by the quick app host. Launch
//     fields are defaulted and a single QuickActivity is synthesized.
//     Router pages keep their document order.
//
// Comments and trailing commas are accepted in manifests.
//
// ParseFile is used the first time a package is seen and derives the
// bookkeeping fields (install path, time, size, checksum). Validate
// re-parses a package known only from the package list and keeps the
// persisted identity fields.
package manifest
