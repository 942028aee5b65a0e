package source

import (
	"context"
	"fmt"

	"edgepulse/internal/domain/entity"
)

// NoopSource serves nothing. It holds a slot in the source chain so a
// provider can be disabled by configuration without rewriting the chain,
// and doubles as a stand-in for tests.
type NoopSource struct {
	name string
}

// NewNoopSource creates a noop adapter with the given name.
func NewNoopSource(name string) *NoopSource {
	return &NoopSource{name: name}
}

// Name returns the configured instance name.
func (n *NoopSource) Name() string { return n.name }

// Kind returns KindNoop.
func (n *NoopSource) Kind() Kind { return KindNoop }

// FetchPost always reports the verb as unsupported.
func (n *NoopSource) FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error) {
	return nil, fmt.Errorf("%w: %s is a noop source", entity.ErrNotSupported, n.name)
}

// FetchUser always reports the verb as unsupported.
func (n *NoopSource) FetchUser(ctx context.Context, username string) (*entity.UserProfile, error) {
	return nil, fmt.Errorf("%w: %s is a noop source", entity.ErrNotSupported, n.name)
}
