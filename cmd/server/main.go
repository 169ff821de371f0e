// Command server runs the difygate chat-completions gateway.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (-config flag, DIFYGATE_CONFIG, ./config.yaml, /etc/difygate/config.yaml),
// then DIFYGATE_* environment variable overrides. See pkg/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/difygate/difygate/pkg/backend"
	"github.com/difygate/difygate/pkg/config"
	"github.com/difygate/difygate/pkg/conversation"
	"github.com/difygate/difygate/pkg/debug"
	"github.com/difygate/difygate/pkg/gateway"
	"github.com/difygate/difygate/pkg/kv"
	"github.com/difygate/difygate/pkg/kv/memory"
	"github.com/difygate/difygate/pkg/kv/postgres"
	"github.com/difygate/difygate/pkg/kv/redis"
	transporthttp "github.com/difygate/difygate/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Observability.Logging.Debug, cfg.Observability.Logging.Level)
	logger := slog.Default()

	// Conversation-record store.
	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	// Engine client.
	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Engine.BaseURL,
		APIKey:  cfg.Engine.APIKey,
		Timeout: cfg.Engine.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating engine client: %w", err)
	}

	// Conversation layer and orchestrator.
	sessions := conversation.NewSessions(store, logger)
	resolver := conversation.NewResolver(cfg.App.MemoryMode, sessions, logger)
	gw := gateway.New(cfg.App.ID, client, resolver, sessions, logger)

	// HTTP server with health and metrics endpoints.
	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithExtraHandler("GET /healthz", healthHandler(store)),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithExtraHandler(
			"GET "+cfg.Observability.Metrics.Path, promhttp.Handler()))
	}

	srv := transporthttp.NewServer(gw, opts...)

	logger.Info("difygate starting",
		"port", cfg.Server.Port,
		"engine", cfg.Engine.BaseURL,
		"app_id", cfg.App.ID,
		"storage", cfg.Storage.Type)

	return srv.ListenAndServe()
}

// newStore builds the configured conversation-record store.
func newStore(cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	switch cfg.Storage.Type {
	case "redis":
		return redis.New(redis.Config{
			URL: cfg.Storage.Redis.URL,
			TTL: cfg.Storage.Redis.TTL,
		})
	case "postgres":
		return postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		logger.Info("using in-memory conversation store", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

// healthHandler reports liveness plus store reachability. A failing
// store degrades the body but not the status: the gateway still serves
// requests without persistence.
func healthHandler(store kv.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if err := store.HealthCheck(r.Context()); err != nil {
			fmt.Fprintln(w, "ok (store degraded)")
			return
		}
		fmt.Fprintln(w, "ok")
	})
}
