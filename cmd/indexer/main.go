package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/stats-indexer/internal/core/config"
	"github.com/aevon-lab/stats-indexer/internal/core/stats"
	"github.com/aevon-lab/stats-indexer/internal/core/storage/postgres"
	"github.com/aevon-lab/stats-indexer/internal/indexer"
	"github.com/aevon-lab/stats-indexer/internal/migrations"
	"github.com/aevon-lab/stats-indexer/internal/observability"
	"github.com/aevon-lab/stats-indexer/internal/scheduler"
	"github.com/aevon-lab/stats-indexer/internal/server"
	"github.com/aevon-lab/stats-indexer/internal/solr"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("Indexer failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 0. Bootstrap logger until config is known
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log))

	// 2. Initialize Storage (PostgreSQL)
	store, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// 3. Initialize search cluster client
	client, err := solr.NewClient(cfg.Solr.URL, cfg.Solr.Core, cfg.Solr.TimeoutDuration())
	if err != nil {
		return fmt.Errorf("initialize search client: %w", err)
	}

	// 4. Wire pipeline
	metrics := observability.NewMetrics(nil)
	pipeline := indexer.New(
		migrations.NewEnsurer(store.DB(), cfg.Database.AutoMigrate, store),
		client,
		indexer.SolrSource{Client: client},
		store,
		metrics,
		indexer.Options{PageSize: stats.DefaultPageSize},
	)

	slog.Info("Indexer initialized",
		"solr_url", cfg.Solr.URL,
		"core", cfg.Solr.Core,
		"page_size", stats.DefaultPageSize,
		"scheduled", cfg.Scheduler.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Scheduler.Enabled {
		// 5a. Single run, then exit
		report, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}
		for _, d := range report.Dimensions {
			if d.Empty {
				slog.Info("Nothing to index for dimension", "dimension", d.Dimension)
			}
		}
		slog.Info("Indexing complete", "duration", report.Duration())
		return nil
	}

	// 5b. Scheduled mode: cron runs plus operational HTTP surface
	sched, err := scheduler.New(cfg.Scheduler.Schedule, pipeline, cfg.Scheduler.RunOnStart)
	if err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}
	srv := server.New(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		store,
		sched,
		metrics.Handler(),
		cfg.Server.Mode,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
