// Command server runs the watchtracker ledger over HTTP.
//
// Configuration is read from a YAML file (see -config) and WATCHTRACKER_*
// environment variables:
//
//	WATCHTRACKER_CONFIG       - Config file path
//	WATCHTRACKER_PORT         - Listen port (default: 1234)
//	WATCHTRACKER_STORAGE      - Store type: memory, postgres, mongo or badger (default: memory)
//	WATCHTRACKER_POSTGRES_DSN - PostgreSQL connection string
//	WATCHTRACKER_MONGO_URL    - MongoDB connection string
//	WATCHTRACKER_BADGER_PATH  - Badger data directory
//	WATCHTRACKER_DEBUG        - Comma-separated debug categories
//	WATCHTRACKER_LOG_LEVEL    - DEBUG, INFO, WARN or ERROR
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rhuss/watchtracker/pkg/config"
	"github.com/rhuss/watchtracker/pkg/debug"
	"github.com/rhuss/watchtracker/pkg/ledger"
	"github.com/rhuss/watchtracker/pkg/observability"
	"github.com/rhuss/watchtracker/pkg/storage/badger"
	"github.com/rhuss/watchtracker/pkg/storage/memory"
	"github.com/rhuss/watchtracker/pkg/storage/mongo"
	"github.com/rhuss/watchtracker/pkg/storage/postgres"
	"github.com/rhuss/watchtracker/pkg/transport"
	transporthttp "github.com/rhuss/watchtracker/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	tr := cfg.Observability.Tracing
	shutdownTracing, err := observability.InitTracing(ctx, slog.Default(), observability.TracingConfig{
		Enabled:     tr.Enabled,
		Endpoint:    tr.Endpoint,
		Protocol:    tr.Protocol,
		Insecure:    tr.Insecure,
		Headers:     tr.Headers,
		SampleRatio: tr.SampleRatio,
		ServiceName: tr.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	if shutdownTracing != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Storage.Type, err)
	}
	defer store.Close()

	svc, err := ledger.New(observability.InstrumentStore(store, cfg.Storage.Type))
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithCORS(cfg.Server.CORS.AllowedOrigins, cfg.Server.CORS.MaxAge),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"metrics", cfg.Observability.Metrics.Enabled,
		"tracing", tr.Enabled,
		"debug_categories", debug.Categories(),
	)
	return transporthttp.NewServer(svc, opts...).ListenAndServe()
}

// openStore builds the EntryStore selected by storage.type.
func openStore(ctx context.Context, cfg config.StorageConfig) (transport.EntryStore, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StoragePostgres:
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	case config.StorageMongo:
		return mongo.New(ctx, mongo.Config{
			URL:        cfg.Mongo.URL,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		})
	case config.StorageBadger:
		return badger.New(badger.Config{
			Path:     cfg.Badger.Path,
			InMemory: cfg.Badger.InMemory,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
