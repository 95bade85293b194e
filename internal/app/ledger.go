package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-engine/internal/accounting"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
)

// LedgerDeps holds the statement service and the catalog cache in front of it.
type LedgerDeps struct {
	Service *accounting.Service
	Catalog *accounting.CatalogCache
}

// NewLedger wires the repository, optional sources and policy into a service.
// redisClient may be nil, in which case the catalog is read from Postgres every time.
func NewLedger(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger, metrics accounting.MetricsRecorder) (LedgerDeps, error) {
	var policyFile string
	if cfg != nil {
		policyFile = cfg.LedgerPolicyFile
	}
	p, err := policy.Load(policyFile)
	if err != nil {
		return LedgerDeps{}, fmt.Errorf("app: ledger policy: %w", err)
	}
	if logger != nil && policyFile != "" {
		logger.Info("ledger policy loaded", slog.String("path", policyFile))
	}

	repo := accounting.NewRepository(pool)
	ttl := defaultCatalogTTL
	if cfg != nil && cfg.CatalogCacheTTL > 0 {
		ttl = cfg.CatalogCacheTTL
	}
	catalog := accounting.NewCatalogCache(redisClient, ttl, repo)

	svc := accounting.NewService(repo, accounting.Sources{
		CashFlow:    repo,
		FixedAssets: repo,
		Catalog:     catalog,
		Invoices:    repo,
		ContraLinks: repo,
	}, p, logger)
	if metrics != nil {
		svc.WithMetrics(metrics)
	}
	return LedgerDeps{Service: svc, Catalog: catalog}, nil
}
