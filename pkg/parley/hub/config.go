package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/registry"
	"github.com/tsarna/parley/pkg/parley/repository"
)

// Config builds a Hub.
//
// Example:
//
//	h, err := hub.NewConfig().
//	    WithLogger(logger).
//	    WithChats(store).
//	    WithMessages(store).
//	    WithMembership(store).
//	    WithFriends(friends).
//	    WithUsers(directory).
//	    WithMetrics(metrics).
//	    Build()
type Config struct {
	logger      *zap.Logger
	chats       repository.ChatRepository
	messages    repository.MessageRepository
	friends     repository.FriendRepository
	users       repository.UserDirectory
	membership  repository.MembershipChecker
	metrics     o11y.MetricsProvider
	tracer      o11y.TracingProvider
	traceTopics []string
	now         func() time.Time
	newID       func() string
}

func NewConfig() *Config {
	return &Config{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.logger = logger
	return c
}

func (c *Config) WithChats(chats repository.ChatRepository) *Config {
	c.chats = chats
	return c
}

func (c *Config) WithMessages(messages repository.MessageRepository) *Config {
	c.messages = messages
	return c
}

func (c *Config) WithFriends(friends repository.FriendRepository) *Config {
	c.friends = friends
	return c
}

func (c *Config) WithUsers(users repository.UserDirectory) *Config {
	c.users = users
	return c
}

func (c *Config) WithMembership(membership repository.MembershipChecker) *Config {
	c.membership = membership
	return c
}

// WithMetrics is passed on to the registries.
func (c *Config) WithMetrics(metrics o11y.MetricsProvider) *Config {
	c.metrics = metrics
	return c
}

func (c *Config) WithTracing(tracer o11y.TracingProvider) *Config {
	c.tracer = tracer
	return c
}

// WithTraceTopics sets the patterns logged by the registries, matched
// against "user/<id>", "chat/<id>" and "friend/<id>".
func (c *Config) WithTraceTopics(patterns ...string) *Config {
	c.traceTopics = append(c.traceTopics, patterns...)
	return c
}

// WithClock overrides the time used to stamp new messages.
func (c *Config) WithClock(now func() time.Time) *Config {
	if now != nil {
		c.now = now
	}
	return c
}

// WithIDGenerator overrides the generator of message ids.
func (c *Config) WithIDGenerator(newID func() string) *Config {
	if newID != nil {
		c.newID = newID
	}
	return c
}

// IsValid checks that the required parameters are set.
func (c *Config) IsValid() error {
	var missing []string
	if c.logger == nil {
		missing = append(missing, "Logger")
	}
	if c.chats == nil {
		missing = append(missing, "Chats")
	}
	if c.messages == nil {
		missing = append(missing, "Messages")
	}
	if c.friends == nil {
		missing = append(missing, "Friends")
	}
	if c.users == nil {
		missing = append(missing, "Users")
	}
	if c.membership == nil {
		missing = append(missing, "Membership")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid hub configuration, missing: %v", missing)
	}
	return nil
}

func (c *Config) Build() (*Hub, error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}

	h := &Hub{
		logger:     c.logger,
		chats:      c.chats,
		messages:   c.messages,
		friends:    c.friends,
		users:      c.users,
		membership: c.membership,
		tracer:     c.tracer,
		now:        c.now,
		newID:      c.newID,
	}

	var err error
	if h.userTopics, err = c.registry(UserRegistry); err != nil {
		return nil, err
	}
	if h.chatTopics, err = c.registry(ChatRegistry); err != nil {
		return nil, err
	}
	if h.friendTopics, err = c.registry(FriendRegistry); err != nil {
		return nil, err
	}

	return h, nil
}

func (c *Config) registry(name string) (*registry.Registry[string], error) {
	return registry.NewConfig[string]().
		WithName(name).
		WithLogger(c.logger).
		WithMetrics(c.metrics).
		WithTraceTopics(c.traceTopics...).
		Build()
}
