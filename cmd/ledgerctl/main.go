package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-engine/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/ledger-engine/internal/accounting"
	"github.com/odyssey-erp/ledger-engine/internal/app"
	"github.com/odyssey-erp/ledger-engine/internal/platform/cache"
	"github.com/odyssey-erp/ledger-engine/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	// Logs go to stderr so that report output stays parseable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	root := cli.NewRootCommand(cli.Deps{
		Service: func(ctx context.Context) (accounting.StatementService, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				return nil, nil, err
			}
			var redisClient *redis.Client
			if client, err := cache.New(ctx, cfg.RedisAddr); err == nil {
				redisClient = client
			} else {
				logger.Warn("redis unavailable, reading catalog from database", slog.Any("error", err))
			}
			ledger, err := app.NewLedger(cfg, pool, redisClient, logger, nil)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			return ledger.Service, func() {
				if redisClient != nil {
					_ = redisClient.Close()
				}
				pool.Close()
			}, nil
		},
		Jobs: func() (cli.JobQueue, error) {
			return cli.NewJobsCLI(cfg.RedisAddr)
		},
		Catalog: func(ctx context.Context) (cli.CatalogBumper, func(), error) {
			client, err := cache.New(ctx, cfg.RedisAddr)
			if err != nil {
				return nil, nil, err
			}
			return accounting.NewCatalogCache(client, cfg.CatalogCacheTTL, nil), func() { _ = client.Close() }, nil
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
