package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tomlord1122/todo-tracker/internal/blob"
	"github.com/Tomlord1122/todo-tracker/internal/config"
	"github.com/Tomlord1122/todo-tracker/internal/database"
	"github.com/Tomlord1122/todo-tracker/internal/logging"
	"github.com/Tomlord1122/todo-tracker/internal/metrics"
	"github.com/Tomlord1122/todo-tracker/internal/repository"
	"github.com/Tomlord1122/todo-tracker/internal/server"
	"github.com/Tomlord1122/todo-tracker/internal/service"
)

func gracefulShutdown(apiServer *http.Server, dbService database.Service, logger *slog.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	// The server has 5 seconds to finish the requests it is handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	if err := dbService.Close(); err != nil {
		logger.Error("failed to close database connection pool", slog.Any("error", err))
	}

	logger.Info("server exiting")
	done <- true
}

// newBlobStore builds the configured cover store. The files handler is
// non-nil only for the disk driver.
func newBlobStore(ctx context.Context, cfg config.StorageConfig) (blob.Store, http.Handler, error) {
	switch cfg.Driver {
	case "disk":
		store, err := blob.NewDiskStore(cfg.Root, cfg.PublicURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Handler(), nil
	case "s3":
		store, err := blob.NewS3Store(ctx, cfg.S3, cfg.PublicURL)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	// 1. Database
	dbService, err := database.New(cfg.Database, logger)
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		logger.Info("running database auto-migration")
		if err := dbService.Migrate(); err != nil {
			_ = dbService.Close()
			return err
		}
	}

	// 2. Cover storage
	store, files, err := newBlobStore(context.Background(), cfg.Storage)
	if err != nil {
		_ = dbService.Close()
		return fmt.Errorf("failed to initialize cover storage: %w", err)
	}

	// 3. Repositories and services
	collector := metrics.NewCollector()
	todoRepo := repository.NewGormTodoRepository(dbService.GetDB())
	todoService := service.NewTodoService(todoRepo, store, collector)

	// 4. HTTP server
	opts := server.Options{
		TodoService: todoService,
		DB:          dbService,
		Store:       store,
		Auth:        server.NewAuthenticator(cfg.Auth),
		Logger:      logger,
		Metrics:     metrics.Handler(metrics.NewRegistry(collector)),
	}
	if files != nil && strings.HasPrefix(cfg.Storage.PublicURL, "/") {
		opts.Files = files
		opts.FilesPrefix = cfg.Storage.PublicURL
	}
	apiServer := server.NewServer(cfg.Server, opts)

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, dbService, logger, done)

	logger.Info("starting server",
		slog.String("addr", apiServer.Addr),
		slog.String("database", cfg.Database.Driver),
		slog.String("storage", cfg.Storage.Driver),
	)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	logger.Info("graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("todo-tracker failed", slog.Any("error", err))
		os.Exit(1)
	}
}
