package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/access"
	"github.com/tradefloor/tradefloor/internal/account"
	"github.com/tradefloor/tradefloor/internal/billing"
	"github.com/tradefloor/tradefloor/internal/cache"
	"github.com/tradefloor/tradefloor/internal/chat"
	"github.com/tradefloor/tradefloor/internal/config"
	"github.com/tradefloor/tradefloor/internal/httpapi"
	"github.com/tradefloor/tradefloor/internal/jobs"
	"github.com/tradefloor/tradefloor/internal/metrics"
	"github.com/tradefloor/tradefloor/internal/notify"
	"github.com/tradefloor/tradefloor/internal/push"
	"github.com/tradefloor/tradefloor/internal/ratelimit"
	"github.com/tradefloor/tradefloor/internal/web/auth"
	"github.com/tradefloor/tradefloor/internal/web/profiling"
	"github.com/tradefloor/tradefloor/internal/web/server"
	"github.com/tradefloor/tradefloor/internal/web/websocket"
)

// accessCacheTTL bounds how stale a cached visibility answer can be.
// Role changes invalidate eagerly; the TTL only covers missed paths.
const accessCacheTTL = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long:  "Serve the REST and websocket API, run the notification fan-out, and process background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggerMode := cfg.Fanout.Mode == config.FanoutModeTrigger
	if err := notify.EnsureFanoutMode(ctx, pool, triggerMode); err != nil {
		return fmt.Errorf("failed to configure fan-out mode: %w", err)
	}
	logger.Info("fan-out mode configured", zap.String("mode", cfg.Fanout.Mode))

	authService := auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// The cache and both rate limiters share one Redis client when Redis
	// is enabled; otherwise everything runs in process memory.
	var (
		accessCache cache.Cache
		apiLimiter  ratelimit.RateLimiter
		msgLimiter  ratelimit.RateLimiter
	)
	if cfg.Redis.Enabled {
		client := newRedisClient(cfg.Redis)
		accessCache = cache.NewRedisCacheWithClient(client, cache.DefaultConfig())
		apiLimiter, err = ratelimit.NewRedisRateLimiter(ratelimit.RedisRateLimiterConfig{
			Client: client,
			Limit:  cfg.RateLimit.RequestsPerMinute,
			Window: time.Minute,
			Prefix: "ratelimit:api",
		})
		if err != nil {
			return err
		}
		msgLimiter, err = ratelimit.NewRedisRateLimiter(ratelimit.RedisRateLimiterConfig{
			Client: client,
			Limit:  cfg.RateLimit.MessagesPerMinute,
			Window: time.Minute,
			Prefix: "ratelimit:messages",
		})
		if err != nil {
			return err
		}
		logger.Info("redis backend enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		accessCache = cache.NewMemoryCache()
		apiLimiter = ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
			Capacity:        cfg.RateLimit.RequestsPerMinute,
			RefillRate:      time.Minute,
			CleanupInterval: 5 * time.Minute,
		})
		msgLimiter = ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
			Capacity:        cfg.RateLimit.MessagesPerMinute,
			RefillRate:      time.Minute,
			CleanupInterval: 5 * time.Minute,
		})
	}

	accessService := access.NewService(pool, accessCache, accessCacheTTL, logger)

	hub := websocket.NewHub(ctx, accessService)
	hub.SetAuthHandler(func(ctx context.Context, token string) (uuid.UUID, error) {
		return authService.ValidateToken(token)
	})
	go hub.Run()
	upgrader := websocket.NewUpgrader(websocket.DefaultConfig(), hub)

	queue := jobs.NewQueue(pool)
	deliverer := notify.NewDeliverer(pool, queue, hub, cfg.Push.Enabled(), logger)

	chatService := chat.NewService(pool, accessService, msgLimiter, deliverer, triggerMode, logger)
	notifyService := notify.NewService(pool, accessService, cfg.Retention.NotificationDays, logger)
	pushService := push.NewService(pool, push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
	}, logger)
	billingService := billing.NewService(pool, cfg.Billing.WebhookSecret, cfg.Billing.Tolerance, logger)
	accountService := account.NewService(pool, authService, logger)

	// In trigger mode the database inserts notification rows; this
	// process only hears about them to broadcast and enqueue push.
	var listener *notify.Listener
	if triggerMode {
		listener = notify.NewListener(cfg.Database.URL, func(ctx context.Context, ev notify.MessageEvent) {
			if err := deliverer.Deliver(ctx, ev.MessageID); err != nil {
				logger.Error("delivery failed",
					zap.String("message_id", ev.MessageID.String()),
					zap.Error(err))
			}
		}, logger)
		if err := listener.Start(ctx); err != nil {
			return fmt.Errorf("failed to start notify listener: %w", err)
		}
	}

	workerPool := jobs.NewWorkerPool(queue, jobs.QueueDefault, cfg.Jobs.Workers, cfg.Jobs.PollInterval)
	workerPool.SetRecorder(metrics.JobRecorder{})
	registerJobHandlers(workerPool, queue, pushService, notifyService, cfg.Retention.JobDays, logger)
	workerPool.Start(ctx)

	scheduler := jobs.NewScheduler(queue)
	schedules := []*jobs.Schedule{
		{
			ID:       "notifications-purge",
			Queue:    jobs.QueueDefault,
			Type:     jobs.TypeNotificationsPurge,
			Interval: 24 * time.Hour,
		},
		{
			ID:       "jobs-purge",
			Queue:    jobs.QueueDefault,
			Type:     jobs.TypeJobsPurge,
			Interval: 24 * time.Hour,
		},
	}
	for _, s := range schedules {
		if err := scheduler.Add(s); err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", s.ID, err)
		}
	}
	scheduler.Start(ctx)

	api := httpapi.New(httpapi.Deps{
		Accounts:    accountService,
		Access:      accessService,
		Chat:        chatService,
		Notifs:      notifyService,
		Push:        pushService,
		Billing:     billingService,
		AuthService: authService,
		DB:          pool,
		WS:          upgrader,
		APILimiter:  apiLimiter,
		Logger:      logger,
	})

	srvConfig := server.DefaultConfig(api.Router())
	srvConfig.Address = cfg.Server.Addr()
	srvConfig.ReadTimeout = cfg.Server.ReadTimeout
	srvConfig.WriteTimeout = cfg.Server.WriteTimeout
	srvConfig.IdleTimeout = cfg.Server.IdleTimeout

	srv, err := server.New(srvConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	shutdown := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  zap.NewStdLog(logger),
	})
	shutdown.RegisterHook(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	shutdown.RegisterHook(func(ctx context.Context) error {
		workerPool.Stop()
		return nil
	})
	if listener != nil {
		shutdown.RegisterHook(func(ctx context.Context) error {
			listener.Stop()
			return nil
		})
	}
	shutdown.RegisterHook(func(ctx context.Context) error {
		hub.Shutdown()
		return nil
	})
	shutdown.RegisterHook(func(ctx context.Context) error {
		return pool.Close()
	})

	if cfg.Debug.PprofAddr != "" {
		go func() {
			logger.Info("pprof listener started", zap.String("addr", cfg.Debug.PprofAddr))
			if err := profiling.StartProfilingServer(cfg.Debug.PprofAddr, nil); err != nil {
				logger.Error("pprof listener failed", zap.Error(err))
			}
		}()
	}

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("fanout_mode", cfg.Fanout.Mode),
		zap.Bool("push_enabled", cfg.Push.Enabled()),
		zap.Int("job_workers", cfg.Jobs.Workers))

	return shutdown.Start()
}
