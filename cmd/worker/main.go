// Package main implements the trendscout worker: it drains the Redis work
// queues and runs the agent handlers against the Ollama backend, recording
// task outcomes in PostgreSQL.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/trendscout/trendscout/internal/agent"
	"github.com/trendscout/trendscout/internal/config"
	"github.com/trendscout/trendscout/internal/platform/logger"
	"github.com/trendscout/trendscout/internal/platform/ollama"
	"github.com/trendscout/trendscout/internal/platform/postgres"
	"github.com/trendscout/trendscout/internal/queue"
	"github.com/trendscout/trendscout/internal/worker"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, appLogger)

	db, err := setupDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database connection", "error", err)
		}
	}()

	redisClient, err := queue.NewClient(ctx, cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to connect to queue backend: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("failed to close queue client", "error", err)
		}
	}()

	generator := ollama.NewClient(cfg.Ollama)
	if err := generator.Ping(ctx); err != nil {
		// The backend may still be starting; the first tasks will fail
		// until it comes up, which is recorded per task.
		slog.Warn("text-generation backend not reachable at startup", "error", err)
	}

	dispatcher := worker.NewDispatcher(
		queue.NewRedisQueue(redisClient),
		postgres.NewPostgresTaskStore(db),
		agent.NewRegistry(generator),
		time.Duration(cfg.Queue.PollIntervalSeconds)*time.Second,
	)

	slog.Info("worker starting", "ollama_model", cfg.Ollama.Model)
	return dispatcher.Run(ctx)
}

func setupDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
