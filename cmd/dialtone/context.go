package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"dialtone/internal/config"
	"dialtone/internal/daemon"
	"dialtone/internal/logging"
	"dialtone/internal/service"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	serviceOnce sync.Once
	service     *service.CatalogService
	serviceErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureService builds a one-shot catalog service over the on-disk content
// store. The cached catalog is restored so read commands work offline.
func (c *commandContext) ensureService() (*service.CatalogService, error) {
	c.serviceOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.serviceErr = err
			return
		}
		logger := logging.NewNop()
		svc := service.New(cfg, logger, nil)
		if err := svc.Syncer().LoadCached(); err != nil {
			c.serviceErr = fmt.Errorf("restore cached catalog: %w", err)
			return
		}
		c.service = svc
	})
	return c.service, c.serviceErr
}

// acquireStoreLock takes the daemon lock for the duration of a mutating
// command. Contention means dialtoned owns the content store.
func (c *commandContext) acquireStoreLock() (*flock.Flock, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, daemon.LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("dialtoned is running and owns the content store")
	}
	return lock, nil
}

// daemonRunning probes the daemon lock without holding it.
func (c *commandContext) daemonRunning() bool {
	cfg, err := c.ensureConfig()
	if err != nil {
		return false
	}
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, daemon.LockFileName))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		return true
	}
	_ = lock.Unlock()
	return false
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
