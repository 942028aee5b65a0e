package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgepulse/internal/cache"
	"edgepulse/pkg/requestqueue"
)

// queueStatusResponse reports the shared request queue's backlog.
type queueStatusResponse struct {
	Depth            int            `json:"depth"`
	DepthByOperation map[string]int `json:"depth_by_operation"`
}

// startMetricsServer exposes the worker's Prometheus metrics and two
// operational JSON endpoints:
//   - GET /metrics: Prometheus scrape endpoint
//   - GET /status/queue: request queue backlog by operation
//   - GET /status/cache: cache degradation and fallback usage
//
// The port comes from METRICS_PORT (default 9090). The server shuts down
// gracefully when ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, queue *requestqueue.Queue, cacheStore *cache.Store) *http.Server {
	port := getMetricsPort()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, queueStatusResponse{
			Depth:            queue.Depth(),
			DepthByOperation: queue.DepthByOperation(),
		})
	})
	mux.HandleFunc("/status/cache", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, cacheStore.Snapshot())
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// getMetricsPort reads METRICS_PORT, defaulting to 9090 on absence or an
// invalid value.
func getMetricsPort() int {
	portStr := os.Getenv("METRICS_PORT")
	if portStr == "" {
		return 9090
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 9090
	}

	return port
}
