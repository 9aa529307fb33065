package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/trendscout/trendscout/internal/agent"
	"github.com/trendscout/trendscout/internal/config"
	"github.com/trendscout/trendscout/internal/platform/ollama"
	"github.com/trendscout/trendscout/internal/platform/postgres"
	"github.com/trendscout/trendscout/internal/queue"
	"github.com/trendscout/trendscout/internal/service"
	"github.com/trendscout/trendscout/internal/service/auth"
	"github.com/trendscout/trendscout/internal/store"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// application holds the server's wired dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger

	db          *sql.DB
	redisClient *redis.Client

	taskStore store.TaskStore
	userStore store.UserStore

	jwtService  auth.JWTService
	userService *service.UserService
	taskService *service.TaskService
}

// newApplication wires the full dependency graph from configuration.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	redisClient, err := queue.NewClient(ctx, cfg.Queue)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to queue backend: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db)
	userStore := postgres.NewPostgresUserStore(db, bcrypt.DefaultCost)
	workQueue := queue.NewRedisQueue(redisClient)

	// The API server never runs handlers; the registry is only consulted
	// for agent type validation on submission.
	registry := agent.NewRegistry(ollama.NewClient(cfg.Ollama))

	return &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		taskStore:   taskStore,
		userStore:   userStore,
		jwtService:  jwtService,
		userService: service.NewUserService(userStore, auth.NewBcryptVerifier()),
		taskService: service.NewTaskService(taskStore, workQueue, registry),
	}, nil
}

// cleanup releases the application's long-lived resources.
func (app *application) cleanup() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("failed to close queue client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
