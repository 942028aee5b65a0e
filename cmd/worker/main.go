package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"edgepulse/internal/cache"
	appconfig "edgepulse/internal/config"
	"edgepulse/internal/handler/http/respond"
	"edgepulse/internal/infra/alert"
	"edgepulse/internal/infra/kv"
	"edgepulse/internal/infra/source"
	workerPkg "edgepulse/internal/infra/worker"
	"edgepulse/internal/observability/logging"
	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/resilience/circuitbreaker"
	"edgepulse/internal/resilience/retry"
	"edgepulse/internal/usecase/acquire"
	"edgepulse/pkg/config"
	"edgepulse/pkg/requestqueue"
)

// The worker keeps engagement counts warm: on every scheduled pass it walks
// the tracked post set and refreshes each post's engagement through the same
// orchestrator the API uses, sharing rate budgets and breaker state through
// the cache.

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("refresh_schedule", workerConfig.RefreshSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("refresh_max_concurrent", workerConfig.RefreshMaxConcurrent),
		slog.Duration("refresh_timeout", workerConfig.RefreshTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	alerter := initAlerter(logger)

	cacheStore := initCacheStore(logger, alerter)
	go cacheStore.StartHealthProbe(ctx)

	queue, windowStore := initQueue(logger, cacheStore)
	queue.Start(ctx)

	svc := setupOrchestrator(logger, cacheStore, queue, alerter)

	startMetricsServer(ctx, logger, queue, cacheStore)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startScheduler(ctx, cancel, logger, svc, workerConfig, workerMetrics, healthServer, queue, windowStore)
}

// initAlerter mirrors the API's channel selection: Slack, then Discord,
// then no-op.
func initAlerter(logger *slog.Logger) alert.Alerter {
	if url := os.Getenv("ALERT_SLACK_WEBHOOK_URL"); url != "" {
		alerter, err := alert.NewSlackAlerter(alert.SlackConfig{WebhookURL: url})
		if err != nil {
			logger.Error("slack alerter configuration rejected", slog.Any("error", err))
			os.Exit(1)
		}
		return alerter
	}
	if url := os.Getenv("ALERT_DISCORD_WEBHOOK_URL"); url != "" {
		alerter, err := alert.NewDiscordAlerter(alert.DiscordConfig{WebhookURL: url})
		if err != nil {
			logger.Error("discord alerter configuration rejected", slog.Any("error", err))
			os.Exit(1)
		}
		return alerter
	}
	logger.Warn("no alert webhook configured, ops alerts disabled")
	return alert.NewNoopAlerter()
}

func initCacheStore(logger *slog.Logger, alerter alert.Alerter) *cache.Store {
	client := kv.Open()
	backend := circuitbreaker.NewKVCircuitBreaker(client)

	store, err := cache.New(backend, cache.Config{
		FallbackCapacity: config.GetEnvInt("CACHE_FALLBACK_CAPACITY", 1000),
		ProbeInterval:    config.GetEnvDuration("CACHE_PROBE_INTERVAL", 30*time.Second),
	}, nil)
	if err != nil {
		logger.Error("cache store configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}

	store.SetDegradedHook(alert.CacheHook(alerter))
	return store
}

func initQueue(logger *slog.Logger, store *cache.Store) (*requestqueue.Queue, requestqueue.WindowStore) {
	windowStore := requestqueue.NewCacheWindowStore(store, nil)
	queue, err := requestqueue.New(requestqueue.Config{
		DefaultBudget: requestqueue.Budget{
			MaxRequests: config.GetEnvInt("QUEUE_BUDGET_MAX_REQUESTS", 50),
			Window:      config.GetEnvDuration("QUEUE_BUDGET_WINDOW", 15*time.Minute),
		},
		PolitenessDelay: config.GetEnvDuration("QUEUE_POLITENESS_DELAY", time.Second),
		MaxPending:      config.GetEnvInt("QUEUE_MAX_PENDING", 1000),
		IsRetryable:     retry.IsRetryable,
	}, windowStore, requestqueue.NewPrometheusMetrics(), nil)
	if err != nil {
		logger.Error("request queue configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}
	return queue, windowStore
}

// setupOrchestrator builds the same acquisition stack as the API binary so
// refreshes respect the shared breakers, budgets, and cache.
func setupOrchestrator(logger *slog.Logger, cacheStore *cache.Store, queue *requestqueue.Queue, alerter alert.Alerter) *acquire.Service {
	registry, err := breaker.NewRegistry(breaker.RegistryConfig{
		Defaults: breaker.Config{
			FailureThreshold: config.GetEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  config.GetEnvDuration("BREAKER_RECOVERY_TIMEOUT", 5*time.Minute),
			HalfOpenMaxCalls: config.GetEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 1),
		},
	}, cacheStore, nil, alert.BreakerHook(alerter))
	if err != nil {
		logger.Error("breaker registry configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}

	sourcesCfg, err := appconfig.LoadSourcesConfig(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		logger.Error("sources configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}
	sources, err := source.NewChain(sourcesCfg.SourceConfigs())
	if err != nil {
		logger.Error("source chain construction failed", slog.Any("error", err))
		os.Exit(1)
	}

	retries := make(map[string]int, len(sources))
	for _, src := range sources {
		retries[src.Name()] = sourcesCfg.MaxRetriesFor(src.Name())
	}

	svc, err := acquire.NewService(acquire.Config{
		PreferredSource:  os.Getenv("PREFERRED_SOURCE"),
		SourceRetries:    retries,
		CooldownDuration: config.GetEnvDuration("SOURCE_COOLDOWN", 15*time.Minute),
		CommunityTags:    config.GetEnvStringList("COMMUNITY_TAGS", nil),
	}, sources, registry, queue, cacheStore, nil)
	if err != nil {
		logger.Error("orchestrator configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}

	svc.SetDemotionHook(alert.DemotionHook(alerter))
	return svc
}

// startScheduler runs the cron loop and blocks until a shutdown signal.
func startScheduler(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *slog.Logger,
	svc *acquire.Service,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	healthServer *workerPkg.HealthServer,
	queue *requestqueue.Queue,
	windowStore requestqueue.WindowStore,
) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(cfg.RefreshSchedule, func() {
		runRefreshPass(ctx, logger, svc, cfg, metrics)
	}); err != nil {
		logger.Error("failed to add refresh job", slog.Any("error", err))
		os.Exit(1)
	}

	cleanupSchedule := config.GetEnvString("CLEANUP_SCHEDULE", "0 * * * *")
	if _, err := c.AddFunc(cleanupSchedule, func() {
		dropped, err := windowStore.Cleanup(ctx, time.Now())
		if err != nil {
			logger.Warn("window cleanup failed", slog.Any("error", err))
			return
		}
		logger.Info("window cleanup completed", slog.Int("dropped_windows", dropped))
	}); err != nil {
		logger.Error("failed to add cleanup job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", cfg.RefreshSchedule),
		slog.String("timezone", cfg.Timezone))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")

	healthServer.SetReady(false)
	<-c.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("request queue shutdown incomplete", slog.Any("error", err))
	}

	cancel()
	logger.Info("worker stopped")
}

// runRefreshPass refreshes engagement for every tracked post, bounded by the
// configured concurrency. Individual post failures are logged and counted
// but never fail the pass; only a dead context does.
func runRefreshPass(ctx context.Context, logger *slog.Logger, svc *acquire.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordRun("started")

	passCtx, cancelPass := context.WithTimeout(ctx, cfg.RefreshTimeout)
	defer cancelPass()

	tracked := svc.TrackedPosts(passCtx)
	logger.Info("refresh pass started", slog.Int("tracked_posts", len(tracked)))

	sem := semaphore.NewWeighted(int64(cfg.RefreshMaxConcurrent))
	var g errgroup.Group
	var refreshed, failed atomic.Int64

	for _, ref := range tracked {
		if err := sem.Acquire(passCtx, 1); err != nil {
			// Pass timed out or worker is shutting down.
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if _, err := svc.RefreshEngagement(passCtx, ref); err != nil {
				logger.Warn("engagement refresh failed",
					slog.String("post_id", ref.ID),
					slog.String("error", respond.Sanitize(err)))
				failed.Add(1)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	metrics.RecordDuration(time.Since(startTime).Seconds())
	metrics.RecordPostsRefreshed("ok", int(refreshed.Load()))
	metrics.RecordPostsRefreshed("error", int(failed.Load()))

	if passCtx.Err() != nil && ctx.Err() == nil {
		metrics.RecordRun("failure")
		logger.Error("refresh pass timed out",
			slog.Int64("refreshed", refreshed.Load()),
			slog.Int64("failed", failed.Load()),
			slog.Duration("duration", time.Since(startTime)))
		return
	}

	metrics.RecordRun("success")
	if failed.Load() == 0 {
		metrics.RecordLastSuccess()
	}
	logger.Info("refresh pass completed",
		slog.Int("tracked_posts", len(tracked)),
		slog.Int64("refreshed", refreshed.Load()),
		slog.Int64("failed", failed.Load()),
		slog.Duration("duration", time.Since(startTime)))
}
