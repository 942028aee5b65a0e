package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"edgepulse/internal/resilience/retry"
)

// SlackConfig contains configuration for Slack webhook alerts.
type SlackConfig struct {
	// WebhookURL is the Slack Incoming Webhook URL (includes the token).
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls.
	// Default: 10 seconds.
	Timeout time.Duration
}

// SlackAlerter sends alerts to Slack via Incoming Webhook.
type SlackAlerter struct {
	cfg         SlackConfig
	client      *http.Client
	limiter     *rateLimiter
	retryPolicy retry.Config
}

// NewSlackAlerter creates a Slack alerter. The rate limiter matches the
// Slack webhook limit of 1 message per second.
func NewSlackAlerter(cfg SlackConfig) (*SlackAlerter, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("alert: slack webhook URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SlackAlerter{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     newRateLimiter(1.0, 1),
		retryPolicy: retry.AlertConfig(),
	}, nil
}

// slackPayload is the Block Kit payload sent to the Slack webhook.
type slackPayload struct {
	Text   string       `json:"text"` // Fallback text for notifications
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string            `json:"type"` // "section" or "context"
	Text     *slackTextObject  `json:"text,omitempty"`
	Elements []slackTextObject `json:"elements,omitempty"`
}

type slackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

const (
	maxSectionTextLength  = 3000
	maxFallbackLength     = 150
	slackTruncationSuffix = "..."
)

// buildPayload renders an event as a section block with a context footer.
func (s *SlackAlerter) buildPayload(event Event) slackPayload {
	fallback := truncate(event.title(), maxFallbackLength, slackTruncationSuffix)

	sectionText := "*" + event.title() + "*"
	if event.Detail != "" {
		sectionText += "\n" + event.Detail
	}
	sectionText = truncate(sectionText, maxSectionTextLength, slackTruncationSuffix)

	contextText := fmt.Sprintf("%s • %s", event.Resource, event.At.Format(time.RFC3339))

	return slackPayload{
		Text: fallback,
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackTextObject{Type: "mrkdwn", Text: sectionText},
			},
			{
				Type: "context",
				Elements: []slackTextObject{
					{Type: "mrkdwn", Text: contextText},
				},
			},
		},
	}
}

// Notify delivers one event to Slack.
func (s *SlackAlerter) Notify(ctx context.Context, event Event) error {
	if err := s.limiter.wait(ctx); err != nil {
		return fmt.Errorf("alert rate limiter: %w", err)
	}
	return deliver(ctx, s.client, "slack", s.cfg.WebhookURL, s.buildPayload(event), s.retryPolicy)
}
