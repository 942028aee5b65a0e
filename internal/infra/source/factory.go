package source

import "fmt"

// New builds the adapter for a validated config, keyed on its kind.
func New(cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("source config: %w", err)
	}

	switch cfg.Kind {
	case KindAPI:
		return NewSyndicationSource(cfg), nil
	case KindEmbed:
		return NewEmbedSource(cfg), nil
	case KindRSS:
		return NewMirrorSource(cfg), nil
	case KindNoop:
		return NewNoopSource(cfg.Name), nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// NewChain builds adapters for an ordered config list, preserving order.
// The order is the fallback order: earlier sources are tried first.
func NewChain(cfgs []Config) ([]Source, error) {
	sources := make([]Source, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))

	for _, cfg := range cfgs {
		if seen[cfg.Name] {
			return nil, fmt.Errorf("duplicate source name %q", cfg.Name)
		}
		seen[cfg.Name] = true

		src, err := New(cfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}
