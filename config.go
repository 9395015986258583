package taskpool

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/taskpool/policy"
	"github.com/viant/taskpool/service/coordinator"
	"github.com/viant/taskpool/service/messaging"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the pool configuration.  It can
// be populated from YAML or JSON; the zero value inherits package defaults.
type Config struct {
	Pool    PoolConfig     `json:"pool" yaml:"pool"`
	Events  EventsConfig   `json:"events" yaml:"events"`
	Tracing TracingConfig  `json:"tracing" yaml:"tracing"`
	Policy  *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// PoolConfig configures the coordinator.
type PoolConfig struct {
	Workers        int `json:"workers" yaml:"workers"`
	MaxQueueLength int `json:"maxQueueLength" yaml:"maxQueueLength"`

	// RespawnOnFault is a pointer so an absent key keeps the default (true).
	RespawnOnFault *bool `json:"respawnOnFault,omitempty" yaml:"respawnOnFault,omitempty"`

	DefaultTaskTimeoutMs int `json:"defaultTaskTimeoutMs" yaml:"defaultTaskTimeoutMs"`
}

// EventsConfig selects the lifecycle event queue vendor; an empty vendor
// disables events.
type EventsConfig struct {
	Vendor  string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// TracingConfig enables OpenTelemetry tracing when ServiceName is set.
type TracingConfig struct {
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config mirroring the coordinator defaults.  Callers
// may modify the returned struct before passing it to NewFromConfig.
func DefaultConfig() *Config {
	base := coordinator.DefaultConfig()
	return &Config{
		Pool: PoolConfig{
			Workers:        base.WorkerCount,
			MaxQueueLength: base.MaxQueueLength,
		},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Pool.Workers <= 0 {
		return fmt.Errorf("pool.workers must be > 0")
	}
	if c.Pool.MaxQueueLength < 0 {
		return fmt.Errorf("pool.maxQueueLength must be >= 0")
	}
	if c.Pool.DefaultTaskTimeoutMs < 0 {
		return fmt.Errorf("pool.defaultTaskTimeoutMs must be >= 0")
	}
	switch messaging.Vendor(c.Events.Vendor) {
	case "", messaging.VendorMemory:
	case messaging.VendorFs:
		if c.Events.BaseURL == "" {
			return fmt.Errorf("events.baseURL is required for the fs vendor")
		}
	default:
		return fmt.Errorf("unsupported events.vendor: %v", c.Events.Vendor)
	}
	return nil
}

// poolConfig converts the serialisable form to the coordinator configuration.
func (c *Config) poolConfig() coordinator.Config {
	respawn := true
	if c.Pool.RespawnOnFault != nil {
		respawn = *c.Pool.RespawnOnFault
	}
	return coordinator.Config{
		WorkerCount:        c.Pool.Workers,
		MaxQueueLength:     c.Pool.MaxQueueLength,
		RespawnOnFault:     respawn,
		DefaultTaskTimeout: time.Duration(c.Pool.DefaultTaskTimeoutMs) * time.Millisecond,
	}
}

// ParseConfig decodes YAML (or JSON, a YAML subset) configuration.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig reads configuration from the supplied URL (file path, embed://,
// s3:// and other schemes supported by the afs service).
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %v: %w", URL, err)
	}
	return ParseConfig(data)
}
