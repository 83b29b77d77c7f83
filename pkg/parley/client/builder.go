package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/protocol"
)

// AuthorizationProvider returns an Authorization header value such as
// "Bearer eyJhbGciOi...".
type AuthorizationProvider func(ctx context.Context) (string, error)

// Decoder turns a frame into a protocol message.
type Decoder func([]byte) (protocol.Message, error)

// ChatFrames decodes frames from the chats and messages channels.
func ChatFrames(data []byte) (protocol.Message, error) {
	m, err := protocol.DecodeChat(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FriendFrames decodes frames from the friends channel.
func FriendFrames(data []byte) (protocol.Message, error) {
	m, err := protocol.DecodeFriend(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ClientBuilder provides a fluent interface for building WebSocket clients.
type ClientBuilder struct {
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	handler          Handler
	decoder          Decoder
	writeChannelSize int
	authProvider     AuthorizationProvider
	headers          map[string][]string
}

// NewClient creates a new WebSocket client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		dialTimeout:      30 * time.Second,
		logger:           zap.NewNop(),
		decoder:          ChatFrames,
		writeChannelSize: 16,
	}
}

func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing the WebSocket connection.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithHandler sets the receiver of every inbound frame. Required.
func (b *ClientBuilder) WithHandler(handler Handler) *ClientBuilder {
	b.handler = handler
	return b
}

// WithDecoder selects how frames are decoded. Default: ChatFrames.
func (b *ClientBuilder) WithDecoder(decoder Decoder) *ClientBuilder {
	if decoder != nil {
		b.decoder = decoder
	}
	return b
}

// WithWriteChannelSize sets how many outbound frames may be queued.
func (b *ClientBuilder) WithWriteChannelSize(size int) *ClientBuilder {
	if size > 0 {
		b.writeChannelSize = size
	}
	return b
}

// WithToken sends token as a bearer credential on the handshake.
func (b *ClientBuilder) WithToken(token string) *ClientBuilder {
	return b.WithAuthorization("Bearer " + token)
}

// WithAuthorization sets a static Authorization header value.
func (b *ClientBuilder) WithAuthorization(authHeader string) *ClientBuilder {
	b.authProvider = func(ctx context.Context) (string, error) {
		return authHeader, nil
	}
	return b
}

// WithAuthorizationProvider sets a function called on every Connect to
// obtain the Authorization header.
func (b *ClientBuilder) WithAuthorizationProvider(provider AuthorizationProvider) *ClientBuilder {
	b.authProvider = provider
	return b
}

// WithHeader sets a single HTTP header for the WebSocket handshake.
func (b *ClientBuilder) WithHeader(key, value string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// Build creates and returns a new WebSocket client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	return &Client{
		url:              b.url,
		logger:           b.logger,
		dialTimeout:      b.dialTimeout,
		handler:          b.handler,
		decoder:          b.decoder,
		writeChannelSize: b.writeChannelSize,
		authProvider:     b.authProvider,
		headers:          b.headers,
	}, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	if b.handler == nil {
		return fmt.Errorf("handler is required")
	}

	return nil
}
