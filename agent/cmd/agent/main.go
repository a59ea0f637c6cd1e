package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fridgekeep/fridgekeep/agent/internal/capture"
	"github.com/fridgekeep/fridgekeep/agent/internal/client"
	"github.com/fridgekeep/fridgekeep/agent/internal/config"
	"github.com/fridgekeep/fridgekeep/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("fridgekeep-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"owner_id", cfg.Agent.OwnerID,
		"spool_dirs", cfg.Agent.SpoolDirs,
		"id_strategy", cfg.Agent.IDStrategy,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []client.Option
	if cfg.Agent.ServerAuth.Mode == "apikey" {
		opts = append(opts, client.WithAPIKey(cfg.Agent.ServerAuth.EffectiveHeader(), cfg.Agent.ServerAuth.Key()))
	}
	c, err := client.New(cfg.Agent.ServerEndpoint, opts...)
	if err != nil {
		slog.Error("failed to build server client", "err", err)
		os.Exit(1)
	}

	sh := shipper.New(c, cfg.Agent.BufferSize)
	go sh.Run(ctx)

	w := capture.New(cfg.Agent)

	// Hot-reload the owner. Endpoint, spool dirs and auth need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, cfg, func(updated *config.Config) {
			if updated.Agent.OwnerID != cfg.Agent.OwnerID {
				slog.Info("owner changed", "old", cfg.Agent.OwnerID, "new", updated.Agent.OwnerID)
				w.SetOwner(updated.Agent.OwnerID)
			}
			cfg = updated
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	if err := w.Run(ctx, sh.Ship); err != nil {
		slog.Error("capture stopped", "err", err)
		os.Exit(1)
	}

	slog.Info("fridgekeep-agent stopped", "pending", sh.Pending())
}
