package main

import (
	"chatrelay/backend/internal/api/handler"
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("chatrelay: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Config and logger
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)
	logger.Info("Starting chat relay", "addr", cfg.ListenAddr, "db_driver", cfg.Database.Driver)

	// 2. Message store
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	rdb, err := setupRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	store := storage.NewStorageService(db, rdb, logger, cfg.Redis.RecentCacheSize)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// 3. Relay engine and HTTP routes
	engine := chathub.NewEngine(chathub.NewRoomRegistry(), store, logger, cfg.StoreTimeout)
	h := handler.NewHandler(engine, store, cfg, logger)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        handler.NewRouter(h),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("Listening", "addr", cfg.ListenAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown; they end with the process.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// setupRedis connects the recent-history cache. A blank address runs without it.
func setupRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("Redis not configured, history served from the database only")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return rdb, nil
}
