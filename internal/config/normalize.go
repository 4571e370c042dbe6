package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeDownloads()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ContentDir, err = expandPath(c.Paths.ContentDir); err != nil {
		return fmt.Errorf("paths.content_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		c.Paths.AudioDir = filepath.Join(c.Paths.ContentDir, defaultAudioDirName)
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.URL = strings.TrimSpace(c.Catalog.URL)
	if c.Catalog.FetchTimeout <= 0 {
		c.Catalog.FetchTimeout = defaultFetchTimeout
	}
	if c.Catalog.RetryAttempts <= 0 {
		c.Catalog.RetryAttempts = defaultRetryAttempts
	}
	if c.Catalog.RetryDelay < 0 {
		c.Catalog.RetryDelay = defaultRetryDelay
	}
	if c.Catalog.MaxBodyBytes <= 0 {
		c.Catalog.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Catalog.FullValidityHours <= 0 {
		c.Catalog.FullValidityHours = defaultFullValidityHours
	}
	if c.Catalog.LightweightCheckMins <= 0 {
		c.Catalog.LightweightCheckMins = defaultLightweightCheckMins
	}
	if c.Catalog.SyncCheckInterval <= 0 {
		c.Catalog.SyncCheckInterval = defaultSyncCheckInterval
	}
}

func (c *Config) normalizeDownloads() {
	if c.Downloads.FileTimeout <= 0 {
		c.Downloads.FileTimeout = defaultFileTimeout
	}
	if c.Downloads.ChunkSizeKiB <= 0 {
		c.Downloads.ChunkSizeKiB = defaultChunkSizeKiB
	}
	if c.Downloads.Capacity <= 0 {
		c.Downloads.Capacity = defaultQueueCapacity
	}
	if c.Downloads.DrainInterval <= 0 {
		c.Downloads.DrainInterval = defaultDrainInterval
	}
	if c.Downloads.DrainsPerSecond <= 0 {
		c.Downloads.DrainsPerSecond = defaultDrainsPerSecond
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
