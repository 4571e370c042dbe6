package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateDownloads(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ContentDir == "" {
		return errors.New("paths.content_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.URL == "" {
		// Catalog-less operation is allowed: the registry then only holds
		// generators and locally provisioned files.
		return nil
	}
	parsed, err := url.Parse(c.Catalog.URL)
	if err != nil {
		return fmt.Errorf("catalog.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("catalog.url: unsupported scheme %q", parsed.Scheme)
	}
	if c.Catalog.LightweightCheckMins*60 > c.Catalog.FullValidityHours*3600 {
		return errors.New("catalog.lightweight_check_minutes must not exceed catalog.full_validity_hours")
	}
	return nil
}

func (c *Config) validateDownloads() error {
	if c.Downloads.Capacity > 4096 {
		return errors.New("downloads.capacity must not exceed 4096")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
