package registry

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/o11y"
)

// ErrInvalidTracePattern is returned by Build for malformed trace patterns.
var ErrInvalidTracePattern = errors.New("invalid trace topic pattern")

// Config builds a Registry.
//
// Example:
//
//	users, err := registry.NewConfig[string]().
//	    WithName("user").
//	    WithLogger(logger).
//	    WithMetrics(metrics).
//	    WithTraceTopics("user/alice").
//	    Build()
type Config[K comparable] struct {
	name        string
	logger      *zap.Logger
	metrics     o11y.MetricsProvider
	traceTopics []string
}

func NewConfig[K comparable]() *Config[K] {
	return &Config[K]{}
}

// WithName sets the name used in logs, metric labels and as the first level
// of trace topics.
func (c *Config[K]) WithName(name string) *Config[K] {
	c.name = name
	return c
}

func (c *Config[K]) WithLogger(logger *zap.Logger) *Config[K] {
	c.logger = logger
	return c
}

// WithMetrics enables broadcast counters and the topic gauge.
func (c *Config[K]) WithMetrics(metrics o11y.MetricsProvider) *Config[K] {
	c.metrics = metrics
	return c
}

// WithTraceTopics logs every broadcast whose "<name>/<key>" topic matches one
// of the MQTT style patterns.
func (c *Config[K]) WithTraceTopics(patterns ...string) *Config[K] {
	c.traceTopics = append(c.traceTopics, patterns...)
	return c
}

// IsValid checks that the required parameters are set.
func (c *Config[K]) IsValid() error {
	var missing []string
	if c.name == "" {
		missing = append(missing, "Name")
	}
	if c.logger == nil {
		missing = append(missing, "Logger")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid registry configuration, missing: %v", missing)
	}

	for _, pattern := range c.traceTopics {
		if err := ValidatePattern(pattern); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config[K]) Build() (*Registry[K], error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}

	r := &Registry[K]{
		name:        c.name,
		logger:      c.logger.With(zap.String("registry", c.name)),
		traceTopics: c.traceTopics,
		topics:      make(map[K]map[Subscriber]struct{}),
		joined:      make(map[Subscriber]map[K]struct{}),
	}

	if c.metrics != nil {
		r.broadcastCounter = c.metrics.Counter("parley_registry_broadcasts_total")
		r.deliveredCounter = c.metrics.Counter("parley_registry_frames_delivered_total")
		r.droppedCounter = c.metrics.Counter("parley_registry_frames_dropped_total")
		r.topicGauge = c.metrics.Gauge("parley_registry_topics")
	}

	return r, nil
}

// ValidatePattern enforces MQTT wildcard placement: "+" fills a whole level
// and "#" may only be the last level.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTracePattern)
	}

	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		if strings.ContainsAny(level, "+#") && len(level) > 1 {
			return fmt.Errorf("%w: %q", ErrInvalidTracePattern, pattern)
		}
		if level == "#" && i != len(levels)-1 {
			return fmt.Errorf("%w: %q", ErrInvalidTracePattern, pattern)
		}
	}
	return nil
}
