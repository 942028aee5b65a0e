package alert

import "context"

// NoopAlerter discards all events. It is used when alerting is disabled so
// callers never need nil checks.
type NoopAlerter struct{}

// NewNoopAlerter creates a NoopAlerter.
func NewNoopAlerter() *NoopAlerter {
	return &NoopAlerter{}
}

// Notify does nothing and returns nil immediately.
func (NoopAlerter) Notify(ctx context.Context, event Event) error {
	return nil
}
