package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/access"
	"github.com/tradefloor/tradefloor/internal/cache"
	"github.com/tradefloor/tradefloor/internal/config"
	"github.com/tradefloor/tradefloor/internal/jobs"
	"github.com/tradefloor/tradefloor/internal/metrics"
	"github.com/tradefloor/tradefloor/internal/notify"
	"github.com/tradefloor/tradefloor/internal/push"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a standalone background worker",
	Long:  "Process queued jobs (push dispatch, retention purges) without serving HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var accessCache cache.Cache
	if cfg.Redis.Enabled {
		accessCache = cache.NewRedisCacheWithClient(newRedisClient(cfg.Redis), cache.DefaultConfig())
	} else {
		accessCache = cache.NewMemoryCache()
	}
	accessService := access.NewService(pool, accessCache, accessCacheTTL, logger)

	queue := jobs.NewQueue(pool)
	notifyService := notify.NewService(pool, accessService, cfg.Retention.NotificationDays, logger)
	pushService := push.NewService(pool, push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
	}, logger)

	workerPool := jobs.NewWorkerPool(queue, jobs.QueueDefault, cfg.Jobs.Workers, cfg.Jobs.PollInterval)
	workerPool.SetRecorder(metrics.JobRecorder{})
	registerJobHandlers(workerPool, queue, pushService, notifyService, cfg.Retention.JobDays, logger)
	workerPool.Start(ctx)

	logger.Info("worker started",
		zap.Int("workers", cfg.Jobs.Workers),
		zap.Bool("push_enabled", cfg.Push.Enabled()))

	<-ctx.Done()
	logger.Info("worker shutting down")
	workerPool.Stop()
	return nil
}
