package realtime

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/hub"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/session"
)

// ListenerConfig holds the configuration for creating a Listener.
// Use NewListenerConfig() to create a new configuration and chain methods
// to set the required parameters before calling Build().
type ListenerConfig struct {
	hub          *hub.Hub
	validator    repository.TokenValidator
	logger       *zap.Logger
	metrics      o11y.MetricsProvider
	tracer       o11y.TracingProvider
	queueSize    int
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	readLimit    int64
	originHosts  []string
}

const (
	DefaultQueueSize = session.DefaultQueueSize

	// DefaultPingInterval is how often idle sessions are pinged.
	DefaultPingInterval = 30 * time.Second

	DefaultWriteTimeout = 10 * time.Second

	// DefaultReadLimit caps the size of one inbound frame.
	DefaultReadLimit = 32768
)

// NewListenerConfig creates a new ListenerConfig for building a Listener.
//
// Example:
//
//	listener, err := realtime.NewListenerConfig().
//	    WithHub(h).
//	    WithValidator(validator).
//	    WithLogger(logger).
//	    WithQueueSize(32).
//	    WithPingInterval(45 * time.Second).
//	    Build()
func NewListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		queueSize:    DefaultQueueSize,
		pingInterval: DefaultPingInterval,
		writeTimeout: DefaultWriteTimeout,
		readLimit:    DefaultReadLimit,
	}
}

// WithHub sets the hub commands are dispatched to. Required.
func (c *ListenerConfig) WithHub(h *hub.Hub) *ListenerConfig {
	c.hub = h
	return c
}

// WithValidator sets the collaborator that turns an access token into a
// user id. Required.
func (c *ListenerConfig) WithValidator(validator repository.TokenValidator) *ListenerConfig {
	c.validator = validator
	return c
}

// WithLogger sets the Logger. Required.
func (c *ListenerConfig) WithLogger(logger *zap.Logger) *ListenerConfig {
	c.logger = logger
	return c
}

func (c *ListenerConfig) WithMetrics(metrics o11y.MetricsProvider) *ListenerConfig {
	c.metrics = metrics
	return c
}

// WithTracing wraps every command in a span named parley.<channel>.<type>.
func (c *ListenerConfig) WithTracing(tracer o11y.TracingProvider) *ListenerConfig {
	c.tracer = tracer
	return c
}

// WithQueueSize sets how many frames may wait for delivery per session
// before further frames are dropped. Must be positive.
//
// Default: 16 frames per session
func (c *ListenerConfig) WithQueueSize(size int) *ListenerConfig {
	if size > 0 {
		c.queueSize = size
	}
	return c
}

// WithPingInterval sets the interval between ping frames. Set to 0 to
// disable pings.
//
// Default: 30 seconds
func (c *ListenerConfig) WithPingInterval(interval time.Duration) *ListenerConfig {
	if interval >= 0 {
		c.pingInterval = interval
	}
	return c
}

// WithReadTimeout closes connections that send nothing for timeout. Zero,
// the default, lets clients stay silent indefinitely.
func (c *ListenerConfig) WithReadTimeout(timeout time.Duration) *ListenerConfig {
	if timeout >= 0 {
		c.readTimeout = timeout
	}
	return c
}

// WithWriteTimeout bounds every frame and ping written to a client.
//
// Default: 10 seconds
func (c *ListenerConfig) WithWriteTimeout(timeout time.Duration) *ListenerConfig {
	if timeout > 0 {
		c.writeTimeout = timeout
	}
	return c
}

// WithReadLimit caps the size of an inbound frame in bytes.
//
// Default: 32KB
func (c *ListenerConfig) WithReadLimit(limit int64) *ListenerConfig {
	if limit > 0 {
		c.readLimit = limit
	}
	return c
}

// WithOriginPatterns allows cross-origin upgrades from the given host
// patterns.
func (c *ListenerConfig) WithOriginPatterns(patterns ...string) *ListenerConfig {
	c.originHosts = append(c.originHosts, patterns...)
	return c
}

// IsValid checks if the configuration has all required parameters set.
func (c *ListenerConfig) IsValid() error {
	var missing []string
	if c.hub == nil {
		missing = append(missing, "Hub")
	}
	if c.validator == nil {
		missing = append(missing, "Validator")
	}
	if c.logger == nil {
		missing = append(missing, "Logger")
	}

	if len(missing) > 0 {
		return fmt.Errorf("invalid listener configuration, missing: %v", missing)
	}

	return nil
}

// Build creates a new Listener from the configuration.
func (c *ListenerConfig) Build() (*Listener, error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}

	return newListener(c), nil
}
