package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ContentDir string `toml:"content_dir"`
	AudioDir   string `toml:"audio_dir"`
	LogDir     string `toml:"log_dir"`
}

// Catalog contains configuration for the remote audio catalog.
type Catalog struct {
	URL                  string `toml:"url"`
	Streaming            bool   `toml:"streaming"`
	FetchTimeout         int    `toml:"fetch_timeout"`
	RetryAttempts        int    `toml:"retry_attempts"`
	RetryDelay           int    `toml:"retry_delay"`
	MaxBodyBytes         int64  `toml:"max_body_bytes"`
	FullValidityHours    int    `toml:"full_validity_hours"`
	LightweightCheckMins int    `toml:"lightweight_check_minutes"`
	SyncCheckInterval    int    `toml:"sync_check_interval"`
}

// Downloads contains configuration for the download queue.
type Downloads struct {
	FileTimeout     int     `toml:"file_timeout"`
	ChunkSizeKiB    int     `toml:"chunk_size_kib"`
	Capacity        int     `toml:"capacity"`
	DrainInterval   int     `toml:"drain_interval"`
	DrainsPerSecond float64 `toml:"drains_per_second"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SyncErrors     bool   `toml:"sync_errors"`
	QueueDrained   bool   `toml:"queue_drained"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dialtone.
//
// Configuration sections by subsystem:
//   - Paths: content store and log directories
//   - Catalog: remote catalog endpoint, staleness windows, fetch limits
//   - Downloads: per-file timeouts, queue capacity, drain pacing
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	Downloads     Downloads     `toml:"downloads"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dialtone/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/dialtone/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dialtone.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// AudioDir is created on a best-effort basis so the daemon can run when the
// storage card is temporarily unavailable; the content store degrades to
// memory-only mode in that case.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if strings.TrimSpace(c.Paths.ContentDir) != "" {
		_ = os.MkdirAll(c.Paths.ContentDir, 0o755)
	}
	if strings.TrimSpace(c.Paths.AudioDir) != "" {
		_ = os.MkdirAll(c.Paths.AudioDir, 0o755)
	}
	return nil
}

// FetchTimeout returns the catalog fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Catalog.FetchTimeout) * time.Second
}

// RetryDelay returns the delay between catalog fetch attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Catalog.RetryDelay) * time.Second
}

// FullValidityWindow returns the tier-2 staleness window.
func (c *Config) FullValidityWindow() time.Duration {
	return time.Duration(c.Catalog.FullValidityHours) * time.Hour
}

// LightweightCheckInterval returns the tier-1 staleness check interval.
func (c *Config) LightweightCheckInterval() time.Duration {
	return time.Duration(c.Catalog.LightweightCheckMins) * time.Minute
}

// SyncCheckInterval returns the cadence of the daemon's staleness checks.
func (c *Config) SyncCheckInterval() time.Duration {
	return time.Duration(c.Catalog.SyncCheckInterval) * time.Second
}

// FileTimeout returns the per-file download timeout.
func (c *Config) FileTimeout() time.Duration {
	return time.Duration(c.Downloads.FileTimeout) * time.Second
}

// DrainInterval returns the cadence of download queue drains.
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Downloads.DrainInterval) * time.Second
}

// ChunkSize returns the streaming write chunk size in bytes.
func (c *Config) ChunkSize() int {
	return c.Downloads.ChunkSizeKiB * 1024
}

// CatalogURL returns the catalog endpoint with the streaming query parameter applied.
func (c *Config) CatalogURL() string {
	base := strings.TrimSpace(c.Catalog.URL)
	if base == "" {
		return ""
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	if c.Catalog.Streaming {
		return base + separator + "streaming=true"
	}
	return base + separator + "streaming=false"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
