package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultLogLevel          = "INFO"
	DefaultDetectionWorkers  = 4
	DefaultDigestWorkers     = 4
	DefaultScoreTolerance    = 1.0
	DefaultDetectionInterval = time.Hour
	DefaultDigestInterval    = 15 * time.Minute
	DefaultNotifyTimeout     = 10 * time.Second
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// DetectionConfig configures the detection pass.
type DetectionConfig struct {
	workers        int
	scoreTolerance float64
}

// Workers returns the number of entities diffed concurrently.
func (c DetectionConfig) Workers() int {
	if c.workers < 1 {
		return DefaultDetectionWorkers
	}
	return c.workers
}

// ScoreTolerance returns the numeric comparator tolerance for score fields.
func (c DetectionConfig) ScoreTolerance() float64 {
	if c.scoreTolerance <= 0 {
		return DefaultScoreTolerance
	}
	return c.scoreTolerance
}

// DigestConfig configures the digest pass.
type DigestConfig struct {
	workers int
}

// Workers returns the number of subscribers compiled concurrently.
func (c DigestConfig) Workers() int {
	if c.workers < 1 {
		return DefaultDigestWorkers
	}
	return c.workers
}

// PassesConfig configures the serve-mode pass runner.
type PassesConfig struct {
	enabled           bool
	detectionInterval time.Duration
	digestInterval    time.Duration
}

// Enabled returns whether serve mode runs passes on an internal timer.
func (c PassesConfig) Enabled() bool { return c.enabled }

// DetectionInterval returns the detection pass interval.
func (c PassesConfig) DetectionInterval() time.Duration {
	if c.detectionInterval <= 0 {
		return DefaultDetectionInterval
	}
	return c.detectionInterval
}

// DigestInterval returns the digest pass interval.
func (c PassesConfig) DigestInterval() time.Duration {
	if c.digestInterval <= 0 {
		return DefaultDigestInterval
	}
	return c.digestInterval
}

// NotifyConfig configures notification channel senders.
type NotifyConfig struct {
	urls    []string
	timeout time.Duration
}

// URLs returns the configured shoutrrr service URLs.
func (c NotifyConfig) URLs() []string {
	result := make([]string, len(c.urls))
	copy(result, c.urls)
	return result
}

// Enabled returns whether any notification URL is configured.
func (c NotifyConfig) Enabled() bool { return len(c.urls) > 0 }

// Timeout returns the send timeout.
func (c NotifyConfig) Timeout() time.Duration {
	if c.timeout <= 0 {
		return DefaultNotifyTimeout
	}
	return c.timeout
}

// AppConfig is the immutable application configuration.
type AppConfig struct {
	host       string
	port       int
	dataDir    string
	dbURL      string
	logLevel   string
	logFormat  LogFormat
	schemaPath string
	detection  DetectionConfig
	digest     DigestConfig
	passes     PassesConfig
	notify     NotifyConfig
}

// Host returns the server host.
func (c AppConfig) Host() string {
	if c.host == "" {
		return DefaultHost
	}
	return c.host
}

// Port returns the server port.
func (c AppConfig) Port() int {
	if c.port == 0 {
		return DefaultPort
	}
	return c.port
}

// Addr returns the host:port bind address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host(), c.Port())
}

// DataDir returns the data directory, defaulting to ~/.trialpulse.
func (c AppConfig) DataDir() (string, error) {
	if c.dataDir != "" {
		return c.dataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".trialpulse"), nil
}

// DBURL returns the database connection URL, defaulting to a sqlite file
// inside the data directory.
func (c AppConfig) DBURL() (string, error) {
	if c.dbURL != "" {
		return c.dbURL, nil
	}
	dataDir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return "sqlite:///" + filepath.Join(dataDir, "trialpulse.db"), nil
}

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string {
	if c.logLevel == "" {
		return DefaultLogLevel
	}
	return c.logLevel
}

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() LogFormat {
	if c.logFormat == "" {
		return LogFormatPretty
	}
	return c.logFormat
}

// SchemaPath returns the optional comparator schema override file.
func (c AppConfig) SchemaPath() string { return c.schemaPath }

// Detection returns the detection pass configuration.
func (c AppConfig) Detection() DetectionConfig { return c.detection }

// Digest returns the digest pass configuration.
func (c AppConfig) Digest() DigestConfig { return c.digest }

// Passes returns the serve-mode pass runner configuration.
func (c AppConfig) Passes() PassesConfig { return c.passes }

// Notify returns the notification channel configuration.
func (c AppConfig) Notify() NotifyConfig { return c.notify }

// WithDBURL returns a copy with the database URL overridden (used by tests
// and CLI flags).
func (c AppConfig) WithDBURL(url string) AppConfig {
	c.dbURL = url
	return c
}

// WithHost returns a copy with the host overridden.
func (c AppConfig) WithHost(host string) AppConfig {
	c.host = host
	return c
}

// WithPort returns a copy with the port overridden.
func (c AppConfig) WithPort(port int) AppConfig {
	c.port = port
	return c
}
