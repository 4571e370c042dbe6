// Package catalog defines the remote audio catalog schema and its decoder.
//
// The catalog is a single JSON object mapping audio keys to entry metadata,
// with an optional top-level "lastModified" string used as a sync token.
package catalog
