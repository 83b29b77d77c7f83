package api

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/hub"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/realtime"
	"github.com/tsarna/parley/pkg/parley/repository"
)

// DefaultBasePath prefixes every route.
const DefaultBasePath = "/PiedPiper/api/v1"

// Config builds the HTTP router.
//
// Example:
//
//	router, err := api.NewConfig().
//	    WithHub(h).
//	    WithListener(listener).
//	    WithValidator(validator).
//	    WithLogger(logger).
//	    Build()
type Config struct {
	hub       *hub.Hub
	listener  *realtime.Listener
	validator repository.TokenValidator
	logger    *zap.Logger
	tracer    o11y.TracingProvider
	basePath  string
}

func NewConfig() *Config {
	return &Config{basePath: DefaultBasePath}
}

// WithHub sets the hub handlers dispatch to. Required.
func (c *Config) WithHub(h *hub.Hub) *Config {
	c.hub = h
	return c
}

// WithListener mounts the websocket channels. Required.
func (c *Config) WithListener(listener *realtime.Listener) *Config {
	c.listener = listener
	return c
}

// WithValidator sets the token validator used by the auth middleware. Required.
func (c *Config) WithValidator(validator repository.TokenValidator) *Config {
	c.validator = validator
	return c
}

func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.logger = logger
	return c
}

// WithTracing starts a span for every request.
func (c *Config) WithTracing(tracer o11y.TracingProvider) *Config {
	c.tracer = tracer
	return c
}

// WithBasePath changes the route prefix. An empty path mounts routes at the root.
func (c *Config) WithBasePath(path string) *Config {
	c.basePath = "/" + strings.Trim(path, "/")
	if c.basePath == "/" {
		c.basePath = ""
	}
	return c
}

func (c *Config) IsValid() error {
	var missing []string
	if c.hub == nil {
		missing = append(missing, "Hub")
	}
	if c.listener == nil {
		missing = append(missing, "Listener")
	}
	if c.validator == nil {
		missing = append(missing, "Validator")
	}

	if len(missing) > 0 {
		return fmt.Errorf("invalid api configuration, missing: %v", missing)
	}

	return nil
}

// Build creates the router.
func (c *Config) Build() (*Router, error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return newRouter(c), nil
}
