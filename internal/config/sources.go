// Package config loads application-level YAML configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"edgepulse/internal/infra/source"
	pkgconfig "edgepulse/pkg/config"
)

// SourcesConfig represents the ordered source chain configuration. The list
// order is the fallback order: the first source is tried first.
type SourcesConfig struct {
	Sources []SourceEntry `yaml:"sources"`
}

// SourceEntry configures one source in the chain. Timeout is a duration
// string ("10s", "1m"); empty means the adapter default.
type SourceEntry struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// timeout parses the entry's timeout, returning zero when unset.
func (e SourceEntry) timeout() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// DefaultSourcesConfig returns the built-in source chain used when no YAML
// file is given: the widget API first, then the embed pages, then the RSS
// mirror.
func DefaultSourcesConfig() *SourcesConfig {
	return &SourcesConfig{
		Sources: []SourceEntry{
			{Name: "syndication", Kind: "api", BaseURL: "https://cdn.syndication.twimg.com", Timeout: "10s", MaxRetries: 3},
			{Name: "embed", Kind: "embed", BaseURL: "https://platform.twitter.com/embed", Timeout: "10s", MaxRetries: 3},
			{Name: "mirror", Kind: "rss", BaseURL: "https://nitter.net", Timeout: "15s", MaxRetries: 2},
		},
	}
}

// LoadSourcesConfig loads the source chain from a YAML file. An empty path
// returns the built-in default chain.
// The path parameter is expected to come from a trusted source (command-line argument or hardcoded default).
func LoadSourcesConfig(path string) (*SourcesConfig, error) {
	if path == "" {
		return DefaultSourcesConfig(), nil
	}

	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}

	var config SourcesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}

	if err := validateSourcesConfig(&config); err != nil {
		return nil, fmt.Errorf("sources config validation failed: %w", err)
	}

	return &config, nil
}

// validateSourcesConfig validates the loaded configuration.
func validateSourcesConfig(config *SourcesConfig) error {
	if len(config.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]bool, len(config.Sources))
	for i, entry := range config.Sources {
		if entry.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[entry.Name] {
			return fmt.Errorf("source %d: duplicate name %q", i, entry.Name)
		}
		seen[entry.Name] = true

		switch source.Kind(entry.Kind) {
		case source.KindAPI, source.KindEmbed, source.KindRSS, source.KindNoop:
		default:
			return fmt.Errorf("source %q: unknown kind %q", entry.Name, entry.Kind)
		}

		if entry.Timeout != "" {
			d, err := time.ParseDuration(entry.Timeout)
			if err != nil {
				return fmt.Errorf("source %q: invalid timeout: %w", entry.Name, err)
			}
			// Outbound source calls are bounded well under the request
			// timeout so one slow source cannot eat the whole walk.
			if err := pkgconfig.ValidateDurationRange(d, time.Second, 2*time.Minute); err != nil {
				return fmt.Errorf("source %q: invalid timeout: %w", entry.Name, err)
			}
		}

		if entry.MaxRetries < 0 || entry.MaxRetries > 10 {
			return fmt.Errorf("source %q: max_retries must be between 0 and 10", entry.Name)
		}
	}

	return nil
}

// SourceConfigs converts the entries into adapter configs with production
// defaults applied. Endpoint-level validation happens in the adapter factory.
func (c *SourcesConfig) SourceConfigs() []source.Config {
	configs := make([]source.Config, 0, len(c.Sources))
	for _, entry := range c.Sources {
		cfg := source.DefaultConfig(entry.Name, source.Kind(entry.Kind))
		cfg.BaseURL = entry.BaseURL
		if d := entry.timeout(); d > 0 {
			cfg.Timeout = d
		}
		configs = append(configs, cfg)
	}
	return configs
}

// MaxRetriesFor returns the configured retry cap for a source name, falling
// back to 3 when the source is unknown.
func (c *SourcesConfig) MaxRetriesFor(name string) int {
	for _, entry := range c.Sources {
		if entry.Name == name {
			return entry.MaxRetries
		}
	}
	return 3
}
