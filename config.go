package ability

import (
	"encoding/json"
	"errors"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a complete ability configuration document: the versioned
// permission envelope plus engine tuning.
type Config struct {
	Version     string         `json:"version" yaml:"version"`
	Permissions []Permission   `json:"permissions" yaml:"permissions"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Engine      EngineConfig   `json:"engine,omitempty" yaml:"engine,omitempty"`
}

// EngineConfig carries decision-cache tuning. Zero values leave caching
// disabled.
type EngineConfig struct {
	DecisionCacheTTL    int64 `json:"decision_cache_ttl_ms,omitempty" yaml:"decision_cache_ttl_ms,omitempty"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter,omitempty" yaml:"ristretto_num_counter,omitempty"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost,omitempty" yaml:"ristretto_max_cost,omitempty"`
	RistrettoBuffer     int64 `json:"ristretto_buffer,omitempty" yaml:"ristretto_buffer,omitempty"`
}

// ConfigLoader loads configuration from the supported formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if errors.Is(err, ErrDecodingFailed) {
			return nil, err
		}
		return nil, decodeErr(err)
	}
	return cfg, l.validate(cfg)
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		if errors.Is(err, ErrDecodingFailed) {
			return nil, err
		}
		return nil, decodeErr(err)
	}
	return cfg, l.validate(cfg)
}

func (l *ConfigLoader) validate(cfg *Config) error {
	if _, ok := supportedVersions[cfg.Version]; !ok {
		return &UnsupportedVersionError{Version: cfg.Version}
	}
	return nil
}

func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

func (c *Config) ToJSON() ([]byte, error) { return json.Marshal(c) }

// Ability builds a query-ready Ability from the config: permissions are
// expanded to rules and the engine section configures the decision cache.
func (c *Config) Ability(opts ...Option) (*Ability, error) {
	if c.Engine.DecisionCacheTTL > 0 {
		opts = append(opts, WithDecisionCache(CacheConfig{
			NumCounters: c.Engine.RistrettoNumCounter,
			MaxCost:     c.Engine.RistrettoMaxCost,
			BufferItems: c.Engine.RistrettoBuffer,
			TTL:         time.Duration(c.Engine.DecisionCacheTTL) * time.Millisecond,
		}))
	}
	return NewAbilityBuilder().FromPermissions(c.Permissions).Build(opts...)
}
