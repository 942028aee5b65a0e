// Package main provides a CLI for one-off post lookups through the full
// acquisition stack: cache, breakers, rate budgets, and source fallback.
// Usage: edgepulse-lookup "post-url-or-id" [--engagement] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"edgepulse/internal/cache"
	appconfig "edgepulse/internal/config"
	"edgepulse/internal/domain/entity"
	"edgepulse/internal/infra/alert"
	"edgepulse/internal/infra/kv"
	"edgepulse/internal/infra/source"
	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/resilience/circuitbreaker"
	"edgepulse/internal/resilience/retry"
	"edgepulse/internal/usecase/acquire"
	"edgepulse/pkg/config"
	"edgepulse/pkg/requestqueue"
)

// LookupOutput is the JSON output format for a post lookup.
type LookupOutput struct {
	Post       *entity.Post        `json:"post,omitempty"`
	User       *entity.UserProfile `json:"user,omitempty"`
	Engagement *entity.Engagement  `json:"engagement,omitempty"`
	Source     string              `json:"source,omitempty"`
}

func main() {
	var (
		withEngagement bool
		username       string
		outputFormat   string
		timeout        time.Duration
	)

	flag.BoolVar(&withEngagement, "engagement", false, "Force a fresh engagement fetch alongside the post")
	flag.StringVar(&username, "user", "", "Look up a user profile instead of a post")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Overall lookup timeout")
	flag.Parse()

	if err := config.ValidatePositiveDuration(timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --timeout: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 && username == "" {
		fmt.Fprintln(os.Stderr, "Error: post URL or ID is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: edgepulse-lookup \"post-url-or-id\" [--engagement] [--output json]")
		fmt.Fprintln(os.Stderr, "       edgepulse-lookup --user username [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  edgepulse-lookup \"https://x.com/someone/status/1234567890\"")
		fmt.Fprintln(os.Stderr, "  edgepulse-lookup 1234567890 --engagement")
		fmt.Fprintln(os.Stderr, "  edgepulse-lookup --user someone --output json")
		os.Exit(1)
	}

	logger := initLogger()

	svc, queue, cancelStack := setupStack(logger)
	defer cancelStack()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out LookupOutput
	if username != "" {
		if err := entity.ValidateUsername(username); err != nil {
			fatal(logger, "invalid username", err)
		}
		user, err := svc.FetchUser(ctx, username)
		if err != nil {
			fatal(logger, "user lookup failed", err)
		}
		out.User = user
		out.Source = user.Source
	} else {
		ref, err := parseRef(args[0])
		if err != nil {
			fatal(logger, "invalid post reference", err)
		}

		post, err := svc.FetchPost(ctx, ref)
		if err != nil {
			fatal(logger, "post lookup failed", err)
		}
		out.Post = post
		out.Source = post.Source

		if withEngagement {
			snap, err := svc.RefreshEngagement(ctx, ref)
			if err != nil {
				logger.Warn("engagement refresh failed", slog.Any("error", err))
			} else {
				out.Engagement = &snap.Engagement
				out.Source = snap.Source
			}
		}
	}

	// Let queued background work settle before tearing the stack down.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	_ = queue.Shutdown(drainCtx)

	if outputFormat == "json" {
		outputJSON(out)
	} else {
		outputText(out)
	}
}

// parseRef accepts either a full post URL or a bare numeric post ID.
func parseRef(arg string) (entity.PostRef, error) {
	if ref, err := entity.ParsePostURL(arg); err == nil {
		return ref, nil
	}
	if err := entity.ValidatePostID(arg); err != nil {
		return entity.PostRef{}, err
	}
	return entity.PostRef{ID: arg}, nil
}

// setupStack builds the same acquisition stack the API serves from, minus
// the HTTP surface. Redis being unreachable is fine: the cache starts
// degraded and the lookup goes straight to the sources.
func setupStack(logger *slog.Logger) (*acquire.Service, *requestqueue.Queue, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	backend := circuitbreaker.NewKVCircuitBreaker(kv.Open())
	cacheStore, err := cache.New(backend, cache.Config{
		FallbackCapacity: config.GetEnvInt("CACHE_FALLBACK_CAPACITY", 1000),
	}, nil)
	if err != nil {
		fatal(logger, "cache store configuration rejected", err)
	}

	alerter := alert.NewNoopAlerter()
	registry, err := breaker.NewRegistry(breaker.RegistryConfig{
		Defaults: breaker.Config{
			FailureThreshold: config.GetEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  config.GetEnvDuration("BREAKER_RECOVERY_TIMEOUT", 5*time.Minute),
			HalfOpenMaxCalls: config.GetEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 1),
		},
	}, cacheStore, nil, alert.BreakerHook(alerter))
	if err != nil {
		fatal(logger, "breaker registry configuration rejected", err)
	}

	queue, err := requestqueue.New(requestqueue.Config{
		DefaultBudget: requestqueue.Budget{
			MaxRequests: config.GetEnvInt("QUEUE_BUDGET_MAX_REQUESTS", 50),
			Window:      config.GetEnvDuration("QUEUE_BUDGET_WINDOW", 15*time.Minute),
		},
		PolitenessDelay: config.GetEnvDuration("QUEUE_POLITENESS_DELAY", time.Second),
		MaxPending:      config.GetEnvInt("QUEUE_MAX_PENDING", 1000),
		IsRetryable:     retry.IsRetryable,
	}, requestqueue.NewCacheWindowStore(cacheStore, nil), requestqueue.NewPrometheusMetrics(), nil)
	if err != nil {
		fatal(logger, "request queue configuration rejected", err)
	}
	queue.Start(ctx)

	sourcesCfg, err := appconfig.LoadSourcesConfig(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		fatal(logger, "sources configuration rejected", err)
	}
	sources, err := source.NewChain(sourcesCfg.SourceConfigs())
	if err != nil {
		fatal(logger, "source chain construction failed", err)
	}

	retries := make(map[string]int, len(sources))
	for _, src := range sources {
		retries[src.Name()] = sourcesCfg.MaxRetriesFor(src.Name())
	}

	svc, err := acquire.NewService(acquire.Config{
		PreferredSource: os.Getenv("PREFERRED_SOURCE"),
		SourceRetries:   retries,
		CommunityTags:   config.GetEnvStringList("COMMUNITY_TAGS", nil),
	}, sources, registry, queue, cacheStore, nil)
	if err != nil {
		fatal(logger, "orchestrator configuration rejected", err)
	}

	return svc, queue, cancel
}

func outputText(out LookupOutput) {
	if out.User != nil {
		fmt.Printf("User: @%s (%s)\n", out.User.Username, out.User.DisplayName)
		if out.User.Verified {
			fmt.Printf("  Verified\n")
		}
		fmt.Printf("  Followers: %d | Following: %d\n",
			out.User.FollowersCount, out.User.FollowingCount)
		fmt.Printf("  Served by: %s\n", out.Source)
		return
	}

	post := out.Post
	fmt.Printf("Post %s by @%s\n", post.ID, post.Author.Username)
	fmt.Printf("  %s\n", post.Content)
	fmt.Printf("  Likes: %d | Reposts: %d | Replies: %d\n",
		post.Engagement.Likes, post.Engagement.Reposts, post.Engagement.Replies)
	if !post.CreatedAt.IsZero() {
		fmt.Printf("  Posted: %s\n", post.CreatedAt.Format(time.RFC3339))
	}
	if post.CommunityTagged {
		fmt.Printf("  Community tagged\n")
	}
	if out.Engagement != nil {
		fmt.Printf("Fresh engagement: Likes %d | Reposts %d | Replies %d\n",
			out.Engagement.Likes, out.Engagement.Reposts, out.Engagement.Replies)
	}
	fmt.Printf("  Served by: %s\n", out.Source)
}

func outputJSON(out LookupOutput) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}

// initLogger logs to stderr so stdout stays clean for command output.
func initLogger() *slog.Logger {
	logLevel := slog.LevelWarn
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
