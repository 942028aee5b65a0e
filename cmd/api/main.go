package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edgepulse/internal/cache"
	appconfig "edgepulse/internal/config"
	"edgepulse/internal/handler/http/admin"
	"edgepulse/internal/handler/http/auth"
	"edgepulse/internal/handler/http/post"
	"edgepulse/internal/handler/http/requestid"
	"edgepulse/internal/infra/alert"
	"edgepulse/internal/infra/kv"
	"edgepulse/internal/infra/source"
	"edgepulse/internal/observability/logging"
	"edgepulse/internal/observability/tracing"
	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/resilience/circuitbreaker"
	"edgepulse/internal/resilience/retry"
	"edgepulse/internal/usecase/acquire"
	"edgepulse/pkg/config"
	"edgepulse/pkg/requestqueue"

	hhttp "edgepulse/internal/handler/http"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	version := config.GetEnvString("VERSION", "dev")

	provider := initAuthProvider(logger)
	alerter := initAlerter(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cacheStore := initCacheStore(logger, alerter)
	go cacheStore.StartHealthProbe(ctx)

	registry := initBreakerRegistry(logger, cacheStore, alerter)

	queue := initQueue(logger, cacheStore)
	queue.Start(ctx)

	sourcesCfg, sources := initSources(logger)

	svc := initOrchestrator(logger, sourcesCfg, sources, registry, queue, cacheStore, alerter)

	limiter := hhttp.NewIPRateLimiter(hhttp.IPRateLimiterConfig{
		RequestsPerSecond: config.GetEnvFloat("IP_RATE_LIMIT_RPS", 10),
		Burst:             config.GetEnvInt("IP_RATE_LIMIT_BURST", 20),
	})
	go limiter.StartCleanup(ctx)

	mux := setupRoutes(logger, svc, registry, queue, cacheStore, limiter, provider, version)
	handler := applyMiddleware(logger, mux, limiter)

	runServer(ctx, cancel, logger, handler, queue, version)
}

// initAuthProvider builds the admin credential provider, refusing to start
// with missing or weak credentials.
func initAuthProvider(logger *slog.Logger) *auth.Provider {
	provider, err := auth.NewProvider(auth.Config{
		AdminUser:     os.Getenv("ADMIN_USER"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
	})
	if err != nil {
		logger.Error("auth configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}
	return provider
}

// initAlerter selects the ops alert channel from the environment: Slack when
// ALERT_SLACK_WEBHOOK_URL is set, Discord when ALERT_DISCORD_WEBHOOK_URL is,
// otherwise a no-op sink.
func initAlerter(logger *slog.Logger) alert.Alerter {
	if url := os.Getenv("ALERT_SLACK_WEBHOOK_URL"); url != "" {
		alerter, err := alert.NewSlackAlerter(alert.SlackConfig{WebhookURL: url})
		if err != nil {
			logger.Error("slack alerter configuration rejected", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("ops alerts routed to slack")
		return alerter
	}
	if url := os.Getenv("ALERT_DISCORD_WEBHOOK_URL"); url != "" {
		alerter, err := alert.NewDiscordAlerter(alert.DiscordConfig{WebhookURL: url})
		if err != nil {
			logger.Error("discord alerter configuration rejected", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("ops alerts routed to discord")
		return alerter
	}
	logger.Warn("no alert webhook configured, ops alerts disabled")
	return alert.NewNoopAlerter()
}

// initCacheStore builds the resilient cache store over the Redis-backed
// circuit breaker. An unreachable Redis starts the store degraded rather
// than failing the boot.
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

// initBreakerRegistry builds the per-source circuit breaker registry.
// Statuses persist through the cache store so breaker state survives
// restarts and is shared with the refresh worker.
func initBreakerRegistry(logger *slog.Logger, store *cache.Store, alerter alert.Alerter) *breaker.Registry {
	registry, err := breaker.NewRegistry(breaker.RegistryConfig{
		Defaults: breaker.Config{
			FailureThreshold: config.GetEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  config.GetEnvDuration("BREAKER_RECOVERY_TIMEOUT", 5*time.Minute),
			HalfOpenMaxCalls: config.GetEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 1),
		},
	}, store, nil, alert.BreakerHook(alerter))
	if err != nil {
		logger.Error("breaker registry configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}
	return registry
}

// initQueue builds the rate-limited request queue. Windows persist through
// the shared cache store so budgets survive restarts and are visible to the
// worker process.
func initQueue(logger *slog.Logger, store *cache.Store) *requestqueue.Queue {
	queue, err := requestqueue.New(requestqueue.Config{
		DefaultBudget: requestqueue.Budget{
			MaxRequests: config.GetEnvInt("QUEUE_BUDGET_MAX_REQUESTS", 50),
			Window:      config.GetEnvDuration("QUEUE_BUDGET_WINDOW", 15*time.Minute),
		},
		PolitenessDelay: config.GetEnvDuration("QUEUE_POLITENESS_DELAY", time.Second),
		MaxPending:      config.GetEnvInt("QUEUE_MAX_PENDING", 1000),
		IsRetryable:     retry.IsRetryable,
	}, requestqueue.NewCacheWindowStore(store, nil), requestqueue.NewPrometheusMetrics(), nil)
	if err != nil {
		logger.Error("request queue configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}
	return queue
}

// initSources loads the ordered source chain, from SOURCES_CONFIG when set
// or the built-in default chain otherwise.
func initSources(logger *slog.Logger) (*appconfig.SourcesConfig, []source.Source) {
	cfg, err := appconfig.LoadSourcesConfig(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		logger.Error("sources configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}

	sources, err := source.NewChain(cfg.SourceConfigs())
	if err != nil {
		logger.Error("source chain construction failed", slog.Any("error", err))
		os.Exit(1)
	}

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}
	logger.Info("source chain configured", slog.Any("order", names))

	return cfg, sources
}

// initOrchestrator wires the fallback orchestrator over the source chain.
func initOrchestrator(
	logger *slog.Logger,
	sourcesCfg *appconfig.SourcesConfig,
	sources []source.Source,
	registry *breaker.Registry,
	queue *requestqueue.Queue,
	cacheStore *cache.Store,
	alerter alert.Alerter,
) *acquire.Service {
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

// setupRoutes registers the public lookup surface, the operational
// endpoints, and the admin surface behind bearer auth.
func setupRoutes(
	logger *slog.Logger,
	svc *acquire.Service,
	registry *breaker.Registry,
	queue *requestqueue.Queue,
	cacheStore *cache.Store,
	limiter *hhttp.IPRateLimiter,
	provider *auth.Provider,
	version string,
) *http.ServeMux {
	mux := http.NewServeMux()

	post.Register(mux, svc)
	mux.Handle("GET /status", hhttp.StatusHandler{Svc: svc})

	mux.Handle("GET /health", &hhttp.HealthHandler{
		Cache:    cacheStore,
		Breakers: registry,
		Limiter:  limiter,
		Version:  version,
	})
	mux.Handle("GET /ready", &hhttp.ReadyHandler{Breakers: registry})
	mux.Handle("GET /live", &hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	mux.Handle("POST /auth/token", auth.TokenHandler(provider))

	admin.Register(mux, registry, queue, logger, auth.RequireAdmin(provider.Secret()))

	return mux
}

// applyMiddleware wraps the router with the shared middleware chain,
// outermost first: request ID, per-IP rate limit, recovery, logging, input
// limits, timeout, tracing, metrics.
func applyMiddleware(logger *slog.Logger, mux *http.ServeMux, limiter *hhttp.IPRateLimiter) http.Handler {
	return hhttp.Chain(mux,
		requestid.Middleware,
		limiter.Limit,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.InputValidation(),
		hhttp.LimitRequestBody(1<<20), // small JSON bodies only
		hhttp.Timeout(config.GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)),
		tracing.Middleware,
		hhttp.MetricsMiddleware,
	)
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *slog.Logger,
	handler http.Handler,
	queue *requestqueue.Queue,
	version string,
) {
	addr := config.GetEnvString("LISTEN_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	// Drain in-flight queued work before stopping the scheduler.
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("request queue shutdown incomplete", slog.Any("error", err))
	}

	cancel()
	logger.Info("server stopped")
}
