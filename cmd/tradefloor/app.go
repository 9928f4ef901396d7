package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/config"
	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/jobs"
	"github.com/tradefloor/tradefloor/internal/notify"
	"github.com/tradefloor/tradefloor/internal/push"
)

// buildLogger creates the process logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// openDatabase opens the connection pool with the configured sizing.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return db.Open(db.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

// newRedisClient connects the shared Redis client used by the cache and
// the rate limiters.
func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// registerJobHandlers binds every background job type the system
// enqueues. Serve and worker register the same set so jobs drain no
// matter which process picks them up.
func registerJobHandlers(pool *jobs.WorkerPool, queue *jobs.Queue, pushSvc *push.Service, notifySvc *notify.Service, jobRetentionDays int, logger *zap.Logger) {
	pool.RegisterHandler(jobs.TypePushDispatch, pushSvc.HandleDispatch)
	pool.RegisterHandler(jobs.TypeNotificationsPurge, notifySvc.HandlePurge)
	pool.RegisterHandler(jobs.TypeJobsPurge, func(ctx context.Context, _ map[string]interface{}) error {
		purged, err := queue.PurgeFinished(ctx, time.Duration(jobRetentionDays)*24*time.Hour)
		if err != nil {
			return err
		}
		if purged > 0 {
			logger.Info("purged finished jobs", zap.Int64("count", purged))
		}
		return nil
	})
}
