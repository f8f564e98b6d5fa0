package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinpulse/internal/config"
	"coinpulse/internal/db"
	"coinpulse/internal/market"
)

// The sampler snapshots every company's current share price into history
// on a fixed cadence, independently of user-triggered operations. Inserts
// are idempotent per second, so overlapping runs are harmless.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	svc := market.NewService(pool, logger, cfg.PerTransactionCap)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("COINPULSE_SAMPLER_RUN_ONCE")), "true")
	if runOnce {
		sampled, err := svc.SampleCompanyPrices(ctx)
		if err != nil {
			logger.Error("sample failed", "err", err)
			os.Exit(1)
		}
		logger.Info("sampler run-once completed", "sampled", sampled)
		return
	}

	ticker := time.NewTicker(cfg.SampleEvery)
	defer ticker.Stop()

	logger.Info("sampler started", "every", cfg.SampleEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("sampler shutdown")
			return
		case <-ticker.C:
			sampled, err := svc.SampleCompanyPrices(ctx)
			if err != nil {
				logger.Error("sample failed", "err", err)
				continue
			}
			logger.Info("prices sampled", "companies", sampled)
		}
	}
}
