package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/resilience/retry"
)

// newHTTPClient builds the hardened client shared by the adapters: TLS 1.2+,
// bounded connection pool, and per-redirect SSRF validation.
func newHTTPClient(cfg Config) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			if err := validateURL(req.URL.String(), cfg.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target rejected: %w", err)
			}
			return nil
		},
	}
}

// fetchBody performs a single GET and returns the response body, applying
// the SSRF check, the configured body size limit, and the shared status
// mapping. Callers own response parsing.
func fetchBody(ctx context.Context, client *http.Client, cfg Config, urlStr string) ([]byte, error) {
	if err := validateURL(urlStr, cfg.DenyPrivateIPs); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := mapStatus(resp); err != nil {
		return nil, err
	}

	limited := io.LimitReader(resp.Body, cfg.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > cfg.MaxBodySize {
		return nil, fmt.Errorf("response exceeds %d byte limit", cfg.MaxBodySize)
	}

	return body, nil
}

// mapStatus translates a non-200 upstream response onto the shared error
// taxonomy: 404 means the post or user does not exist, 429 is a quota
// rejection carrying any Retry-After hint, and everything else surfaces as
// an HTTPError for the retry classifier.
func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: upstream returned %s", entity.ErrNotFound, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		if hint := retryAfter(resp); hint > 0 {
			return fmt.Errorf("%w: %w", entity.ErrRateLimited, &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Message:    resp.Status,
				RetryAfter: hint,
			})
		}
		return fmt.Errorf("%w: upstream returned %s", entity.ErrRateLimited, resp.Status)
	default:
		return &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}
}

// retryAfter parses a seconds-valued Retry-After header, if present.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
