package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"dialtone/internal/config"
	"dialtone/internal/daemon"
	"dialtone/internal/ledger"
	"dialtone/internal/logging"
	"dialtone/internal/notifications"
	"dialtone/internal/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	svc := service.New(cfg, logger, nil)

	history, err := ledger.Open(cfg)
	if err != nil {
		// Downloads still run without the history ledger.
		logger.Warn("open download ledger", logging.Error(err))
	}

	notifier := notifications.NewService(cfg)
	svc.Syncer().SetNotifier(notifier)

	d, err := daemon.New(cfg, svc, notifier, history, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("dialtoned shutting down")
}
