package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmaster/internal/api"
	"taskmaster/internal/app/service"
	"taskmaster/internal/app/worker"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/repository"
	"taskmaster/internal/platform/cache"
	"taskmaster/internal/platform/config"
	"taskmaster/internal/platform/database"
	"taskmaster/internal/platform/events"
	"taskmaster/internal/platform/logging"

	"github.com/spf13/cobra"
)

const (
	sessionJanitorInterval = time.Minute
	shutdownTimeout        = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the event worker",
	Long: `Start the HTTP API.

Examples:
  taskmaster serve
  taskmaster serve --config config.yaml
  STORAGE_DRIVER=postgres SESSION_STORE=redis taskmaster serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load Configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logging
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("configuration loaded", "storage", cfg.StorageDriver, "sessions", cfg.SessionStore, "events", cfg.EventQueue+"->"+cfg.EventPublisher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Tokens and password hashing
	tokens := security.NewTokenIssuer(cfg.JWTKey, cfg.JWTExp)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	// 4. Storage
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	// 5. Redis, when sessions or events need it
	if cfg.UsesRedis() {
		if _, err := cache.ConnectRedis(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}); err != nil {
			return err
		}
		defer cache.CloseRedis()
	}

	// 6. Sessions
	var sessions repository.SessionStore
	if cfg.SessionStore == config.DriverRedis {
		sessions = repository.NewRedisSessionStore(cache.RDB)
	} else {
		memSessions := repository.NewMemorySessionStore()
		go memSessions.RunJanitor(ctx, sessionJanitorInterval)
		sessions = memSessions
	}

	// 7. Events
	var queue events.Queue
	if cfg.EventQueue == config.DriverRedis {
		queue = events.NewRedisQueue(cache.RDB, cfg.EventQueueName)
	} else {
		queue = events.NewMemoryQueue(cfg.EventQueueSize)
	}
	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()
	bus := events.NewBus(queue, logging.Component("events"))

	// 8. Initialize Services
	authService := service.NewAuthService(store.Users, sessions, tokens, hasher, bus, cfg.ResetTokenTTL)
	userService := service.NewUserService(store, sessions, bus)
	projectService := service.NewProjectService(store, bus)
	taskService := service.NewTaskService(store, bus)
	insightService := service.NewInsightService(store)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	// 9. Event worker (as a goroutine)
	eventWorker := worker.NewEventWorker(queue, publisher, cfg.EventMaxAttempts, logging.Component("event-worker"))
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		eventWorker.Start(workerCtx)
	}()

	// 10. Router & HTTP Server
	router := api.NewRouter(api.Services{
		Tokens:      tokens,
		Auth:        authService,
		Users:       userService,
		Projects:    projectService,
		Tasks:       taskService,
		Insights:    insightService,
		DueSoonDays: cfg.DueSoonDays,
		StartedAt:   time.Now(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 11. Graceful Shutdown
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.APIPort, err)
		}
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	// No request can emit anymore. Stop the polling loop, then flush what
	// is still buffered so in-memory events are not lost.
	workerCancel()
	select {
	case <-workerDone:
		if n := eventWorker.Drain(shutdownCtx); n > 0 {
			logger.Info("flushed queued events", "count", n)
		}
	case <-shutdownCtx.Done():
		logger.Warn("event worker did not stop in time")
	}

	logger.Info("server and worker stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	if cfg.StorageDriver != config.DriverPostgres {
		slog.Info("using in-memory storage")
		return repository.NewMemoryStore(), nil
	}
	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			database.Close()
			return nil, err
		}
	}
	return repository.NewPostgresStore(db), nil
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.EventPublisher == config.DriverKafka {
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
	}
	return events.NewLogPublisher(logging.Component("events")), nil
}
