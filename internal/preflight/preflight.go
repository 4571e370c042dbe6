// Package preflight validates the runtime environment before the daemon or
// CLI touch the content store: directory permissions, catalog endpoint
// configuration, and network reachability.
package preflight

import (
	"context"

	"dialtone/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Content directories (always checked)
	results = append(results, CheckDirectoryAccess("Content directory", cfg.Paths.ContentDir))
	results = append(results, CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// Catalog endpoint (when configured)
	if cfg.Catalog.URL != "" {
		results = append(results, CheckCatalogURL(cfg.Catalog.URL))
		results = append(results, CheckCatalogReachable(ctx, cfg))
	}

	return results
}

// Passed reports whether every result in the set succeeded.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
