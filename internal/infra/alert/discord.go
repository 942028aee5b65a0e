package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"edgepulse/internal/resilience/retry"
)

// DiscordConfig contains configuration for Discord webhook alerts.
type DiscordConfig struct {
	// WebhookURL is the Discord webhook URL (includes the token).
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls.
	// Default: 10 seconds.
	Timeout time.Duration
}

// DiscordAlerter sends alerts to Discord via webhook.
type DiscordAlerter struct {
	cfg         DiscordConfig
	client      *http.Client
	limiter     *rateLimiter
	retryPolicy retry.Config
}

// NewDiscordAlerter creates a Discord alerter. The rate limiter matches the
// Discord webhook limit of 30 requests per minute.
func NewDiscordAlerter(cfg DiscordConfig) (*DiscordAlerter, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("alert: discord webhook URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DiscordAlerter{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     newRateLimiter(0.5, 3),
		retryPolicy: retry.AlertConfig(),
	}, nil
}

// discordPayload is the JSON payload sent to the Discord webhook.
type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Color       int                `json:"color"`
	Footer      discordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	truncationSuffix     = "..."

	// Discord red (#ED4245) and green (#57F287)
	discordRedColor   = 15548997
	discordGreenColor = 5763719
)

// buildPayload renders an event as a single embed, red for failures and
// green for recoveries.
func (d *DiscordAlerter) buildPayload(event Event) discordPayload {
	color := discordRedColor
	if event.recovery() {
		color = discordGreenColor
	}

	return discordPayload{
		Embeds: []discordEmbed{{
			Title:       truncate(event.title(), maxTitleLength, truncationSuffix),
			Description: truncate(event.Detail, maxDescriptionLength, truncationSuffix),
			Color:       color,
			Footer:      discordEmbedFooter{Text: event.Resource},
			Timestamp:   event.At.Format(time.RFC3339),
		}},
	}
}

// Notify delivers one event to Discord.
func (d *DiscordAlerter) Notify(ctx context.Context, event Event) error {
	if err := d.limiter.wait(ctx); err != nil {
		return fmt.Errorf("alert rate limiter: %w", err)
	}
	return deliver(ctx, d.client, "discord", d.cfg.WebhookURL, d.buildPayload(event), d.retryPolicy)
}
