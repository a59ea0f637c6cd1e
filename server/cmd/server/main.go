package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/fridgekeep/fridgekeep/server/internal/activity"
	"github.com/fridgekeep/fridgekeep/server/internal/analysis"
	"github.com/fridgekeep/fridgekeep/server/internal/api"
	"github.com/fridgekeep/fridgekeep/server/internal/auth"
	"github.com/fridgekeep/fridgekeep/server/internal/config"
	"github.com/fridgekeep/fridgekeep/server/internal/files"
	"github.com/fridgekeep/fridgekeep/server/internal/metrics"
	"github.com/fridgekeep/fridgekeep/server/internal/probe"
	"github.com/fridgekeep/fridgekeep/server/internal/store"
	"github.com/fridgekeep/fridgekeep/server/internal/sweeper"
	"github.com/fridgekeep/fridgekeep/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

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

	slog.Info("fridgekeep-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"sweep_interval", cfg.Server.Sweep.Interval,
		"max_age_hours", cfg.Server.Sweep.MaxAgeHours,
		"remove_files", cfg.Server.Sweep.RemoveFiles,
		"analysis", cfg.Server.Analysis.Enabled(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store and its observers.
	var st *store.Store
	m := metrics.New(func() int { return st.Count() })
	act := activity.New(cfg.Server.Activity.Capacity)
	observers := []store.Option{store.WithObserver(m), store.WithObserver(act)}

	remover := files.NewOSRemover(cfg.Server.Sweep.RootDir)

	// Analysis collaborator: hands each new capture to the analyzer service.
	var disp *analysis.Dispatcher
	if a := cfg.Server.Analysis; a.Enabled() {
		var analysisRemover files.Remover
		if cfg.Server.Sweep.RemoveFiles {
			analysisRemover = remover
		}
		disp = analysis.New(
			analysis.NewHTTPAnalyzer(a.Endpoint, a.Header, a.Key()),
			analysisRemover,
			analysis.Options{
				Workers:     a.Workers,
				QueueSize:   a.QueueSize,
				Timeout:     a.Timeout,
				DeleteAfter: a.DeleteAfter,
			},
			act, m,
		)
		observers = append(observers, store.WithObserver(disp))
	}
	st = store.New(observers...)

	if disp != nil {
		go func() {
			if err := disp.Run(ctx, st); err != nil {
				slog.Error("analysis dispatcher stopped", "err", err)
			}
		}()
	}

	// Cleanup collaborator: periodic eviction plus file removal.
	sw := sweeper.New(st, remover, policyFrom(cfg), m)
	go sw.Run(ctx)

	// Hot-reload the sweep policy. Ports and auth need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			sw.SetPolicy(policyFrom(updated))
			if updated.Server.Sweep.RootDir != cfg.Server.Sweep.RootDir {
				slog.Warn("sweep.root_dir changed; restart to apply",
					"old", cfg.Server.Sweep.RootDir, "new", updated.Server.Sweep.RootDir)
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// gRPC health endpoint with optional API key authentication.
	interceptor := auth.APIKeyInterceptor(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	pr := probe.New(st, grpc.UnaryInterceptor(interceptor))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health endpoint listening", "port", cfg.Server.GRPCPort)
		if err := pr.Server.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// WebSocket hub streams the resource list to dashboards.
	hub := ws.New(st, cfg.Server.Stream.Interval)
	go hub.Run(ctx)

	guard := func(h http.Handler) http.Handler {
		return auth.HTTPMiddleware(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key(), h)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", guard(api.New(st, sw, remover, act)))
	httpMux.Handle("/ws/stream", guard(hub))
	httpMux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	pr.MarkServing()

	<-ctx.Done()
	slog.Info("fridgekeep-server shutting down", "resources", st.Count())

	pr.Shutdown(shutdownTimeout)
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "err", err)
	}
}

func policyFrom(cfg *config.Config) sweeper.Policy {
	return sweeper.Policy{
		Interval:    cfg.Server.Sweep.Interval,
		MaxAgeHours: cfg.Server.Sweep.MaxAgeHours,
		RemoveFiles: cfg.Server.Sweep.RemoveFiles,
	}
}
