package main

import (
	"context"
	"errors"
	"fmt"
	"mahjong/cache"
	"mahjong/config"
	"mahjong/game"
	httpserver "mahjong/http"
	"mahjong/logging"
	"mahjong/store"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mahjong:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.ServerPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("csrf", cfg.CSRFEnabled),
	)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database initialized")

	lbCache, closeCache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	registry := game.NewRegistry(db, logger)
	ledger := game.NewLedger(db, logger)
	settlement := game.NewSettlement(db, lbCache, logger)
	leaderboard := game.NewLeaderboard(db, lbCache, logger)

	server, err := httpserver.NewServer(registry, ledger, settlement, leaderboard, logger, httpserver.Options{
		CSRFKey:            cfg.CSRFKey,
		CSRFEnabled:        cfg.CSRFEnabled,
		SecureCookies:      cfg.SecureCookies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}
	defer server.Close()
	srv := server.GetHTTPServer(cfg.ServerPort)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
	}

	logger.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBDriver == "postgres" {
		return store.NewGormStore(cfg.DatabaseURL)
	}
	return store.NewSQLiteStore(cfg.DBPath)
}

// openCache connects to Redis when configured; otherwise the leaderboard is
// recomputed on every request.
func openCache(cfg *config.Config, logger *zap.Logger) (game.LeaderboardCache, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("leaderboard cache disabled")
		return cache.Nop{}, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("leaderboard cache enabled", zap.String("redis", cfg.RedisAddr), zap.Duration("ttl", cfg.LeaderboardTTL))
	return cache.NewRedisCache(client, cfg.LeaderboardTTL), func() { client.Close() }, nil
}
