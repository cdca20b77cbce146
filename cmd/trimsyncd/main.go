// Command trimsyncd runs the trimsync background daemon: it owns the job
// store, executes analysis and render stages, and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"trimsync/internal/config"
	"trimsync/internal/daemon"
	"trimsync/internal/deps"
	"trimsync/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ~/.config/trimsync/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	logger.Info("configuration loaded", logging.String("path", resolvedPath))
	if err := deps.Verify(cfg); err != nil {
		// Readiness problems are reported but not fatal: the API still
		// serves status so an operator can see what is missing.
		logger.Warn("environment check failed", logging.Error(err))
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("trimsyncd shutting down")
	d.Stop()
}
