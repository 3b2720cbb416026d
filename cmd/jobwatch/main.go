package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jobwatch/jobwatch/internal/api"
	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/engine"
	"github.com/jobwatch/jobwatch/internal/jenkins"
	"github.com/jobwatch/jobwatch/internal/monitor"
	"github.com/jobwatch/jobwatch/internal/notify"
	"github.com/jobwatch/jobwatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("jobwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"job", cfg.Jenkins.Job,
		"domain", cfg.Jenkins.Domain,
		"build_interval", cfg.Poll.BuildInterval,
		"job_interval", cfg.Poll.JobInterval,
		"window", cfg.Limits.Window,
		"webhooks", len(cfg.Notify.Webhooks),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := jenkins.NewClient(cfg.Jenkins)
	eng := engine.New(cfg.Jenkins.Job, cfg.Limits)
	notifier := notify.New(cfg.Notify, cfg.Jenkins.JobURL())
	mon := monitor.New(client, eng, notifier, cfg.Poll.BuildInterval, cfg.Poll.JobInterval)

	// Watch config file for hot-reload (logs only in this phase).
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config hot-reloaded", "job", updated.Jenkins.Job)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Status server: REST API + Prometheus metrics + WebSocket stream.
	var httpSrv *http.Server
	if cfg.Status.HTTPPort > 0 {
		hub := ws.New(eng, notifier, cfg.Status.BroadcastInterval)
		go hub.Run(ctx)

		httpMux := http.NewServeMux()
		httpMux.Handle("/", api.New(eng, notifier, cfg.Jenkins))
		httpMux.Handle("/ws/stream", hub)

		httpSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Status.HTTPPort),
			Handler: httpMux,
		}
		go func() {
			slog.Info("status server listening", "port", cfg.Status.HTTPPort)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status server stopped", "err", err)
			}
		}()
	} else {
		slog.Info("status server disabled")
	}

	// Poll loops — block until ctx is cancelled.
	mon.Run(ctx)

	slog.Info("jobwatch shutting down")
	if httpSrv != nil {
		httpSrv.Shutdown(context.Background()) //nolint:errcheck
	}
}
