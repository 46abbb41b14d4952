// Package config holds all configuration types and loading logic for visq.
// Durations are written as Go duration strings ("1s", "250ms") in YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a visq process.
type Config struct {
	Queue     QueueConfig    `yaml:"queue"`
	Producers ProducerConfig `yaml:"producers"`
	Consumers ConsumerConfig `yaml:"consumers"`
	Log       LogConfig      `yaml:"log"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Run       RunConfig      `yaml:"run"`
}

// QueueConfig controls the visibility queue.
type QueueConfig struct {
	Name string `yaml:"name"`
	// SweepInterval is how often expired messages are made visible again.
	SweepInterval string `yaml:"sweep_interval"`
	// VisibilityTimeout is what consumers pass to Pull.
	VisibilityTimeout string `yaml:"visibility_timeout"`
}

// ProducerConfig controls the demo producers.
type ProducerConfig struct {
	Count int `yaml:"count"`
	// MaxRate is messages per second per producer.
	MaxRate int `yaml:"max_rate"`
	// Burst allows temporary spikes above MaxRate.
	Burst int `yaml:"burst"`
}

// ConsumerConfig controls the demo consumer pool.
type ConsumerConfig struct {
	Count int `yaml:"count"`
	// FailureRate is the fraction of deliveries the demo handler fails, in
	// [0, 1]. Failed deliveries are not deleted and come back after the
	// visibility timeout.
	FailureRate float64 `yaml:"failure_rate"`
	// WorkTime is how long the demo handler spends on each delivery.
	WorkTime string `yaml:"work_time"`
	// PollInterval is how long a consumer waits after an empty pull.
	PollInterval string `yaml:"poll_interval"`
}

// LogConfig controls the slog handler installed by the command.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RunConfig controls how long the demo runs.
type RunConfig struct {
	// Duration of the run. "0s" runs until interrupted.
	Duration string `yaml:"duration"`
	// StatusInterval is how often queue stats are logged.
	StatusInterval string `yaml:"status_interval"`
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Name:              "default",
			SweepInterval:     "1s",
			VisibilityTimeout: "30s",
		},
		Producers: ProducerConfig{
			Count:   1,
			MaxRate: 50,
			Burst:   10,
		},
		Consumers: ConsumerConfig{
			Count:        2,
			FailureRate:  0.1,
			WorkTime:     "20ms",
			PollInterval: "100ms",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Run: RunConfig{
			Duration:       "10s",
			StatusInterval: "2s",
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of Default().
// If the file does not exist the default config is returned without error.
//
// After loading the file, environment variables are applied as overrides:
//
//	VISQ_LOG_LEVEL       — sets log.level
//	VISQ_METRICS_PORT    — sets metrics.port and enables metrics
//	VISQ_SWEEP_INTERVAL  — sets queue.sweep_interval
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VISQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VISQ_METRICS_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Metrics.Port = p
			cfg.Metrics.Enabled = true
		}
	}
	if v := os.Getenv("VISQ_SWEEP_INTERVAL"); v != "" {
		cfg.Queue.SweepInterval = v
	}
}

// Validate checks that the config values are consistent and within acceptable
// ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Queue.Name == "" {
		return errors.New("queue.name must not be empty")
	}
	if d, err := time.ParseDuration(c.Queue.SweepInterval); err != nil || d <= 0 {
		return fmt.Errorf("queue.sweep_interval must be a positive duration, got %q", c.Queue.SweepInterval)
	}
	if d, err := time.ParseDuration(c.Queue.VisibilityTimeout); err != nil || d < 0 {
		return fmt.Errorf("queue.visibility_timeout must be a non-negative duration, got %q", c.Queue.VisibilityTimeout)
	}
	if c.Producers.Count < 0 {
		return errors.New("producers.count must be >= 0")
	}
	if c.Producers.MaxRate < 1 {
		return errors.New("producers.max_rate must be at least 1")
	}
	if c.Producers.Burst < 1 {
		return errors.New("producers.burst must be at least 1")
	}
	if c.Consumers.Count < 0 {
		return errors.New("consumers.count must be >= 0")
	}
	if c.Consumers.FailureRate < 0 || c.Consumers.FailureRate > 1 {
		return errors.New("consumers.failure_rate must be between 0 and 1")
	}
	if d, err := time.ParseDuration(c.Consumers.WorkTime); err != nil || d < 0 {
		return fmt.Errorf("consumers.work_time must be a non-negative duration, got %q", c.Consumers.WorkTime)
	}
	if d, err := time.ParseDuration(c.Consumers.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("consumers.poll_interval must be a positive duration, got %q", c.Consumers.PollInterval)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.New(`log.format must be one of "json", "text"`)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	if d, err := time.ParseDuration(c.Run.Duration); err != nil || d < 0 {
		return fmt.Errorf("run.duration must be a non-negative duration, got %q", c.Run.Duration)
	}
	if d, err := time.ParseDuration(c.Run.StatusInterval); err != nil || d <= 0 {
		return fmt.Errorf("run.status_interval must be a positive duration, got %q", c.Run.StatusInterval)
	}
	return nil
}

// SlogLevel parses Level into a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return lvl, nil
}

// duration parses s, returning 0 for values Validate would have rejected.
func duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// SweepEvery returns the parsed sweep interval.
func (q QueueConfig) SweepEvery() time.Duration { return duration(q.SweepInterval) }

// Timeout returns the parsed visibility timeout.
func (q QueueConfig) Timeout() time.Duration { return duration(q.VisibilityTimeout) }

// Work returns the parsed per-delivery work time.
func (c ConsumerConfig) Work() time.Duration { return duration(c.WorkTime) }

// Poll returns the parsed empty-pull backoff.
func (c ConsumerConfig) Poll() time.Duration { return duration(c.PollInterval) }

// For returns the parsed run duration.
func (r RunConfig) For() time.Duration { return duration(r.Duration) }

// StatusEvery returns the parsed status log interval.
func (r RunConfig) StatusEvery() time.Duration { return duration(r.StatusInterval) }
