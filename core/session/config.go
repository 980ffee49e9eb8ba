package session

import "time"

// Config holds session manager configuration.
type Config struct {
	// TTL is the idle timeout.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h" validate:"gt=0"`
	// TouchInterval is the minimum time between expiration bumps. Zero
	// extends the session on every request.
	TouchInterval time.Duration `env:"SESSION_TOUCH_INTERVAL" envDefault:"5m" validate:"gte=0"`
	// CleanupInterval is how often expired sessions are purged.
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m" validate:"gt=0"`
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:             24 * time.Hour,
		TouchInterval:   5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// Option configures the session manager.
type Option func(*Config)

// WithTTL sets the session time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.TTL = ttl
	}
}

// WithTouchInterval sets the minimum time between session activity updates.
func WithTouchInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.TouchInterval = interval
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}
