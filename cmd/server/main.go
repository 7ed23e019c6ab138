// Command server runs the full cart service: the decision engine behind
// the HTTP surface, the C4 projection runtime driving the read models,
// the C6 task queue worker, and the C7 inbound Kafka translators.
// Structurally this mirrors the corpus's single-process wiring (teacher's
// internal/web-app/main.go), generalized from one pgxpool+EventStore pair
// into the full set of C1-C9 subsystems this service composes.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cartflow/internal/config"
	"cartflow/internal/decision"
	"cartflow/internal/httpapi"
	"cartflow/internal/inbound"
	"cartflow/internal/logging"
	"cartflow/internal/outbound"
	"cartflow/internal/projection"
	"cartflow/internal/queue"
	"cartflow/internal/readmodel"
	"cartflow/internal/snapshot"
	"cartflow/pkg/eventlog/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	environment := flag.String("environment", "", "configuration overlay to load (e.g. production)")
	configDir := flag.String("config-dir", "config", "directory holding base.yaml and <environment>.yaml")
	resetCartItems := flag.Bool("reset-cart-items", false, "clear the cart_items projection and rewind its cursor, then start normally so it is rebuilt from the log")
	flag.Parse()

	settings, err := config.Load(*configDir, *environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(settings.Application.LogsDirectory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.For(logger, "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectPool(ctx, settings.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	if *resetCartItems {
		if err := resetCartItemsProjection(ctx, pool); err != nil {
			log.WithError(err).Fatal("reset-cart-items failed")
		}
		log.Info("cart_items projection reset")
	}

	store, err := postgres.New(ctx, pool)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize event log")
	}

	snapshots := snapshot.New(pool)
	executor := decision.NewExecutor(store, snapshots, settings.Decision.SnapshotStaleAfterEvents, settings.Decision.MaxConflictRetries, logging.For(logger, "decision"))

	taskQueue := queue.New(pool)
	publisher := outbound.New(settings.Kafka.BootstrapServers)
	worker := queue.NewWorker(taskQueue, store, publisher, logging.For(logger, "queue"))

	runtime := projection.New(store, pool, logging.For(logger, "projection"),
		readmodel.NewInventoriesListener(pool),
		readmodel.NewCartsWithProductsListener(pool, executor, logging.For(logger, "carts_with_products")),
		readmodel.NewCartItemsListener(pool),
		readmodel.NewCartSubmittedListener(taskQueue),
	)

	priceChanges := inbound.New(inbound.NewPriceChangeHandler(executor), []string{settings.Kafka.BootstrapServers}, pool, logging.For(logger, "inbound.price_changes"))
	inventoryChanges := inbound.New(inbound.NewInventoryChangedHandler(executor), []string{settings.Kafka.BootstrapServers}, pool, logging.For(logger, "inbound.inventories"))

	server := httpapi.NewServer(executor, store, pool, logging.For(logger, "httpapi"))
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", settings.Application.Host, settings.Application.Port),
		Handler: server.Handler(),
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); runtime.Run(ctx) }()
	go func() { defer wg.Done(); worker.Run(ctx) }()
	go func() { defer wg.Done(); priceChanges.Run(ctx) }()
	go func() { defer wg.Done(); inventoryChanges.Run(ctx) }()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http server shutdown did not complete cleanly")
		}
	}()

	log.WithField("addr", httpServer.Addr).Info("cart service starting")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("http server stopped")
	}

	wg.Wait()
	log.Info("cart service stopped")
}

// connectPool mirrors the teacher's retry-on-connect loop (main.go):
// Postgres in a container can take a few seconds to accept connections
// after the process starts.
func connectPool(ctx context.Context, db config.DatabaseSettings) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(db.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 5
	cfg.MaxConnLifetime = 10 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	const maxAttempts = 30
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return pool, nil
			} else {
				err = pingErr
				pool.Close()
			}
		}
		if attempt == maxAttempts {
			break
		}
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxAttempts, err)
}

// resetCartItemsProjection implements --reset-cart-items (spec §6's CLI
// contract): truncate the persisted cart_items table and rewind its
// listener cursor so the projection runtime rebuilds it from the log.
func resetCartItemsProjection(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO event_listener (id, last_processed_event_id) VALUES ($1, 0)
		ON CONFLICT (id) DO UPDATE SET last_processed_event_id = 0
	`, "cart_items"); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
