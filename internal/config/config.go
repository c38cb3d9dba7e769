// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
)

// metricName matches a Prometheus metric name without colons.
var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Product limits on team sizes.
const (
	MinTeamSizeLimit = 1
	MaxTeamSizeLimit = 64
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory recheck queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recheck workers.
	WorkerCount int `koanf:"worker_count"`

	// CacheSize sets the number of search results kept in memory.
	CacheSize int `koanf:"cache_size"`

	// DataDir is where guild files are kept. Empty keeps guilds in memory.
	DataDir string `koanf:"data_dir"`

	// SearchTimeoutMS bounds a single balance search.
	SearchTimeoutMS int `koanf:"search_timeout_ms"`

	// RecheckIntervalS schedules a recheck of every guild. Zero disables it.
	RecheckIntervalS int `koanf:"recheck_interval_s"`

	// MinTeamSize and MaxTeamSize bound the team sizes a guild may request.
	MinTeamSize int `koanf:"min_team_size"`
	MaxTeamSize int `koanf:"max_team_size"`

	// RatingsLatencyMinMS and RatingsLatencyMaxMS simulate external rating service latency bounds.
	RatingsLatencyMinMS int `koanf:"ratings_latency_min_ms"`
	RatingsLatencyMaxMS int `koanf:"ratings_latency_max_ms"`

	// Metric names are namespace_subsystem_prefix_name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	MetricsPrefix    string `koanf:"metrics_prefix"`

	// MetricsBuckets overrides the latency histogram buckets (milliseconds).
	MetricsBuckets []float64 `koanf:"metrics_buckets"`

	// MetricsLabels are constant labels added to every metric, e.g. env: prod.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1_000,
		WorkerCount:         runtime.NumCPU(),
		CacheSize:           1_024,
		DataDir:             "",
		SearchTimeoutMS:     30_000,
		RecheckIntervalS:    3_600,
		MinTeamSize:         2,
		MaxTeamSize:         10,
		RatingsLatencyMinMS: 20,
		RatingsLatencyMaxMS: 80,
		MetricsNamespace:    "teambalance",
		MetricsSubsystem:    "balancer",
	}
	return c
}

// SearchTimeout returns the search deadline as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMS) * time.Millisecond
}

// RecheckInterval returns the scheduler period. Zero means disabled.
func (c *Config) RecheckInterval() time.Duration {
	return time.Duration(c.RecheckIntervalS) * time.Second
}

// Validate checks the configuration for values the service cannot run with.
// Every problem is reported; each one wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierror.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Addr == "" {
		invalid("addr must not be empty")
	}
	if c.QueueSize <= 0 {
		invalid("queue_size must be positive")
	}
	if c.WorkerCount <= 0 {
		invalid("worker_count must be positive")
	}
	if c.CacheSize < 0 {
		invalid("cache_size must not be negative")
	}
	if c.SearchTimeoutMS <= 0 {
		invalid("search_timeout_ms must be positive")
	}
	if c.RecheckIntervalS < 0 {
		invalid("recheck_interval_s must not be negative")
	}
	if c.MinTeamSize < MinTeamSizeLimit {
		invalid("min_team_size must be at least %d", MinTeamSizeLimit)
	}
	if c.MaxTeamSize < c.MinTeamSize || c.MaxTeamSize > MaxTeamSizeLimit {
		invalid("max_team_size must be between min_team_size and %d", MaxTeamSizeLimit)
	}
	if c.RatingsLatencyMinMS < 0 || c.RatingsLatencyMaxMS < c.RatingsLatencyMinMS {
		invalid("ratings latency range is invalid")
	}
	if !metricName.MatchString(c.MetricsNamespace) {
		invalid("metrics_namespace %q is not a valid metric name", c.MetricsNamespace)
	}
	for _, part := range []string{c.MetricsSubsystem, c.MetricsPrefix} {
		if part != "" && !metricName.MatchString(part) {
			invalid("metrics name part %q is not a valid metric name", part)
		}
	}
	for i := 1; i < len(c.MetricsBuckets); i++ {
		if c.MetricsBuckets[i] <= c.MetricsBuckets[i-1] {
			invalid("metrics_buckets must be strictly increasing")
			break
		}
	}
	return err
}
