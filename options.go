package trialpulse

import (
	"log/slog"

	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults.
type clientConfig struct {
	dbURL      string
	schemaPath string
	registry   change.Registry
	classifier change.Classifier
	renderer   notify.Renderer
	senders    map[notify.Channel]notify.Sender
	logger     *slog.Logger
	detection  config.DetectionConfig
	digest     config.DigestConfig
	passes     config.PassesConfig
}

// newClientConfig creates a clientConfig with defaults.
func newClientConfig() *clientConfig {
	return &clientConfig{
		registry:   change.DefaultRegistry(change.DefaultScoreTolerance),
		classifier: change.DefaultClassifier(),
		renderer:   notify.PlainRenderer{},
		senders:    map[notify.Channel]notify.Sender{},
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres configures PostgreSQL as the database.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDatabaseURL configures the database from a URL in either
// sqlite:/// or postgresql:// form.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithRegistry replaces the built-in comparator schema registry.
func WithRegistry(registry change.Registry) Option {
	return func(c *clientConfig) {
		c.registry = registry
	}
}

// WithSchemaFile loads the comparator schema registry from a YAML file,
// overriding the built-in registry.
func WithSchemaFile(path string) Option {
	return func(c *clientConfig) {
		c.schemaPath = path
	}
}

// WithClassifier replaces the built-in significance classifier.
func WithClassifier(classifier change.Classifier) Option {
	return func(c *clientConfig) {
		c.classifier = classifier
	}
}

// WithRenderer replaces the plain-text notification renderer.
func WithRenderer(renderer notify.Renderer) Option {
	return func(c *clientConfig) {
		c.renderer = renderer
	}
}

// WithSender registers a sender for a notification channel. Channels
// without a sender never receive immediate alerts or digests.
func WithSender(channel notify.Channel, sender notify.Sender) Option {
	return func(c *clientConfig) {
		c.senders[channel] = sender
	}
}

// WithDetectionConfig sets the detection pass configuration.
func WithDetectionConfig(cfg config.DetectionConfig) Option {
	return func(c *clientConfig) {
		c.detection = cfg
	}
}

// WithDigestConfig sets the digest pass configuration.
func WithDigestConfig(cfg config.DigestConfig) Option {
	return func(c *clientConfig) {
		c.digest = cfg
	}
}

// WithPasses sets the periodic pass runner configuration. Passes are
// disabled by default; deployments with an external scheduler invoke
// the CLI commands instead.
func WithPasses(cfg config.PassesConfig) Option {
	return func(c *clientConfig) {
		c.passes = cfg
	}
}
