// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Field names map to environment variables with TRIALPULSE_ prefix.
// Nested structs use underscore delimiter (e.g. TRIALPULSE_PASSES_DETECTION_INTERVAL_SECONDS).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: TRIALPULSE_HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: TRIALPULSE_PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: TRIALPULSE_DATA_DIR
	// Default: ~/.trialpulse
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: TRIALPULSE_DB_URL
	// Default: sqlite:///{data_dir}/trialpulse.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: TRIALPULSE_LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: TRIALPULSE_LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// SchemaPath is an optional YAML file overriding the built-in
	// per-entity-type comparator schema.
	// Env: TRIALPULSE_SCHEMA_PATH
	SchemaPath string `envconfig:"SCHEMA_PATH"`

	// Detection configures the detection pass.
	Detection DetectionEnv `envconfig:"DETECTION"`

	// Digest configures the digest pass.
	Digest DigestEnv `envconfig:"DIGEST"`

	// Passes configures the interval-driven pass runner in serve mode.
	Passes PassesEnv `envconfig:"PASSES"`

	// Notify configures notification channel senders.
	Notify NotifyEnv `envconfig:"NOTIFY"`
}

// DetectionEnv holds environment configuration for the detection pass.
type DetectionEnv struct {
	// Workers is the number of entities diffed concurrently.
	// Env: TRIALPULSE_DETECTION_WORKERS (default: 4)
	Workers int `envconfig:"WORKERS" default:"4"`

	// ScoreTolerance is the numeric comparator tolerance for score fields.
	// Env: TRIALPULSE_DETECTION_SCORE_TOLERANCE (default: 1.0)
	ScoreTolerance float64 `envconfig:"SCORE_TOLERANCE" default:"1.0"`
}

// DigestEnv holds environment configuration for the digest pass.
type DigestEnv struct {
	// Workers is the number of subscribers compiled concurrently.
	// Env: TRIALPULSE_DIGEST_WORKERS (default: 4)
	Workers int `envconfig:"WORKERS" default:"4"`
}

// PassesEnv holds environment configuration for the serve-mode pass runner.
type PassesEnv struct {
	// Enabled controls whether serve mode runs passes on an internal timer.
	// Deployments with an external scheduler set this to false and trigger
	// passes through the CLI instead.
	// Env: TRIALPULSE_PASSES_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// DetectionIntervalSeconds is the detection pass interval in seconds.
	// Env: TRIALPULSE_PASSES_DETECTION_INTERVAL_SECONDS (default: 3600)
	DetectionIntervalSeconds float64 `envconfig:"DETECTION_INTERVAL_SECONDS" default:"3600"`

	// DigestIntervalSeconds is the digest pass interval in seconds.
	// Env: TRIALPULSE_PASSES_DIGEST_INTERVAL_SECONDS (default: 900)
	DigestIntervalSeconds float64 `envconfig:"DIGEST_INTERVAL_SECONDS" default:"900"`
}

// NotifyEnv holds environment configuration for notification channels.
type NotifyEnv struct {
	// URLs is a comma-separated list of shoutrrr service URLs.
	// Env: TRIALPULSE_NOTIFY_URLS
	URLs string `envconfig:"URLS"`

	// Timeout is the send timeout in seconds.
	// Env: TRIALPULSE_NOTIFY_TIMEOUT (default: 10)
	Timeout float64 `envconfig:"TIMEOUT" default:"10"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("TRIALPULSE", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize cleans up loaded values (trims whitespace, lowercases formats).
func (c EnvConfig) Normalize() EnvConfig {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.DBURL = strings.TrimSpace(c.DBURL)
	return c
}

// ToAppConfig converts environment configuration to the immutable AppConfig.
func (c EnvConfig) ToAppConfig() AppConfig {
	var urls []string
	for _, u := range strings.Split(c.Notify.URLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	return AppConfig{
		host:       c.Host,
		port:       c.Port,
		dataDir:    c.DataDir,
		dbURL:      c.DBURL,
		logLevel:   c.LogLevel,
		logFormat:  LogFormat(c.LogFormat),
		schemaPath: c.SchemaPath,
		detection: DetectionConfig{
			workers:        c.Detection.Workers,
			scoreTolerance: c.Detection.ScoreTolerance,
		},
		digest: DigestConfig{
			workers: c.Digest.Workers,
		},
		passes: PassesConfig{
			enabled:           c.Passes.Enabled,
			detectionInterval: secondsToDuration(c.Passes.DetectionIntervalSeconds),
			digestInterval:    secondsToDuration(c.Passes.DigestIntervalSeconds),
		},
		notify: NotifyConfig{
			urls:    urls,
			timeout: secondsToDuration(c.Notify.Timeout),
		},
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
