package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"edgepulse/internal/resilience/retry"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const requestIDKey contextKey = "request_id"

// maxErrorBodyBytes bounds how much of an error response is read for the
// error message.
const maxErrorBodyBytes = 4096

// postJSON marshals payload and POSTs it to the webhook URL, mapping
// non-2xx responses onto the retry error taxonomy: 429 becomes a rate-limit
// HTTPError carrying the Retry-After hint, everything else a plain
// HTTPError whose status code drives retryability.
func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    "webhook rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	}

	return &retry.HTTPError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("webhook error: %s", string(body)),
	}
}

// rateLimitedResponse is the JSON body Discord-style webhooks return on 429.
type rateLimitedResponse struct {
	RetryAfter float64 `json:"retry_after"` // In seconds
}

// extractRetryAfter extracts the retry delay from a 429 response. It tries
// the JSON body first, then the Retry-After header, defaulting to 5s.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var limited rateLimitedResponse
	if err := json.Unmarshal(body, &limited); err == nil && limited.RetryAfter > 0 {
		return time.Duration(limited.RetryAfter * float64(time.Second))
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// deliver sends the payload with retries: rate-limit responses wait out the
// upstream's Retry-After, transient failures back off per cfg, and client
// errors fail immediately. All attempts are logged with a request ID.
func deliver(ctx context.Context, client *http.Client, channel, url string, payload interface{}, cfg retry.Config) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := postJSON(ctx, client, url, payload)
		if err == nil {
			slog.Debug("alert delivered",
				slog.String("request_id", requestID),
				slog.String("channel", channel),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if !retry.IsRetryable(err) {
			slog.Error("alert delivery failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.String("channel", channel),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if hint, ok := retry.RetryAfterHint(err); ok && hint > wait {
			wait = hint
		}
		slog.Warn("alert delivery failed, retrying",
			slog.String("request_id", requestID),
			slog.String("channel", channel),
			slog.Any("error", err),
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%s alert failed after %d attempts: %w", channel, cfg.MaxAttempts, lastErr)
}

// truncate shortens text to maxLength, appending suffix when it had to cut.
func truncate(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}
	cut := maxLength - len(suffix)
	if cut < 0 {
		cut = 0
	}
	return text[:cut] + suffix
}
