package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dialtone/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCatalogURL validates the configured catalog endpoint shape without
// touching the network.
func CheckCatalogURL(raw string) Result {
	const name = "Catalog URL"

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{Name: name, Detail: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return Result{Name: name, Detail: "missing host"}
	}
	return Result{Name: name, Passed: true, Detail: trimmed}
}

// CheckCatalogReachable performs a single request against the catalog endpoint.
// A response with any HTTP status counts as reachable; only transport errors
// fail the check.
func CheckCatalogReachable(ctx context.Context, cfg *config.Config) Result {
	const name = "Catalog endpoint"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, cfg.CatalogURL(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}
