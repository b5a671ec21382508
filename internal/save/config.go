package save

import "time"

const (
	// DefaultDebounceInterval is the quiet period after the last update before an automatic write
	DefaultDebounceInterval = 2 * time.Second

	// DefaultStatusThrottle is the minimum spacing between Unsaved announcements
	DefaultStatusThrottle = 500 * time.Millisecond

	// DefaultWriteTimeout bounds a single store write attempt
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxWriteAttempts is the number of store calls per write; 1 means no retry
	DefaultMaxWriteAttempts = 1

	// DefaultRetryInitialInterval is the first backoff delay when retries are enabled
	DefaultRetryInitialInterval = 200 * time.Millisecond

	// maxRetryInterval caps the exponential backoff between attempts
	maxRetryInterval = 2 * time.Second
)

// Config holds the timing and retry policy of a Coordinator. Zero values
// fall back to the package defaults.
type Config struct {
	// DebounceInterval is the quiet period after the last update before an automatic write
	DebounceInterval time.Duration

	// StatusThrottle is the minimum spacing between Unsaved announcements
	StatusThrottle time.Duration

	// DisableAutoSave turns the debounce off; only SaveNow and Dispose write
	DisableAutoSave bool

	// WriteTimeout bounds each store write attempt
	WriteTimeout time.Duration

	// MaxWriteAttempts is the number of store calls made for one write
	MaxWriteAttempts int

	// RetryInitialInterval is the first backoff delay between attempts
	RetryInitialInterval time.Duration
}

// DefaultConfig returns the default save policy
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}
	if c.StatusThrottle <= 0 {
		c.StatusThrottle = DefaultStatusThrottle
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxWriteAttempts <= 0 {
		c.MaxWriteAttempts = DefaultMaxWriteAttempts
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = DefaultRetryInitialInterval
	}
	return c
}
