// Package client connects to one parley channel, delivers every inbound
// frame to a Handler and queues outbound commands.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/protocol"
)

var (
	ErrNotConnected = errors.New("client is not connected")
	ErrWriteFull    = errors.New("write channel is full")
)

// Handler receives inbound frames. msg is nil when the frame could not be
// decoded; raw always holds the frame.
type Handler interface {
	OnMessage(ctx context.Context, msg protocol.Message, raw []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg protocol.Message, raw []byte)

func (f HandlerFunc) OnMessage(ctx context.Context, msg protocol.Message, raw []byte) {
	f(ctx, msg, raw)
}

// Client is a single channel connection.
type Client struct {
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	handler          Handler
	decoder          Decoder
	writeChannelSize int
	authProvider     AuthorizationProvider
	headers          map[string][]string

	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	started  int32
	stopping int32

	writeChannel chan []byte
	done         chan struct{}
	err          error
}

// Connect dials the server and starts the read and write loops.
func (c *Client) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return fmt.Errorf("client is already started")
	}

	if _, err := url.Parse(c.url); err != nil {
		atomic.StoreInt32(&c.started, 0)
		return fmt.Errorf("invalid URL: %w", err)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.done = make(chan struct{})
	c.writeChannel = make(chan []byte, c.writeChannelSize)
	c.err = nil

	dialCtx, dialCancel := context.WithTimeout(ctx, c.dialTimeout)
	defer dialCancel()

	dialOptions := &websocket.DialOptions{}
	if c.headers != nil {
		dialOptions.HTTPHeader = make(map[string][]string)
		for key, values := range c.headers {
			dialOptions.HTTPHeader[key] = values
		}
	}

	if c.authProvider != nil {
		authValue, err := c.authProvider(dialCtx)
		if err != nil {
			c.reset()
			return fmt.Errorf("failed to get authorization: %w", err)
		}
		if authValue != "" {
			if dialOptions.HTTPHeader == nil {
				dialOptions.HTTPHeader = make(map[string][]string)
			}
			dialOptions.HTTPHeader["Authorization"] = []string{authValue}
		}
	}

	conn, _, err := websocket.Dial(dialCtx, c.url, dialOptions)
	if err != nil {
		c.reset()
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("WebSocket client connected", zap.String("url", c.url))

	go c.readLoop()
	go c.writeLoop()

	return nil
}

func (c *Client) reset() {
	c.cancel()
	atomic.StoreInt32(&c.started, 0)
}

// Disconnect closes the connection with a normal closure and waits for the
// read loop to exit.
func (c *Client) Disconnect() error {
	if atomic.LoadInt32(&c.started) == 0 {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.stopping, 0, 1) {
		return nil
	}

	c.cleanupWithStatus(websocket.StatusNormalClosure, "client disconnect")
	c.logger.Debug("WebSocket client disconnected")
	return nil
}

func (c *Client) cleanupWithStatus(status websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close(status, reason)
		c.conn = nil
	}
	c.mu.Unlock()

	c.cancel()
	<-c.done

	atomic.StoreInt32(&c.started, 0)
	atomic.StoreInt32(&c.stopping, 0)
}

// Done is closed when the connection ends for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, once Done is closed. A close sent by
// the server is reported as a websocket.CloseError.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Send queues msg for writing.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(ctx, data)
}

// SendRaw queues a frame as is.
func (c *Client) SendRaw(ctx context.Context, frame []byte) error {
	if atomic.LoadInt32(&c.started) == 0 {
		return ErrNotConnected
	}

	select {
	case c.writeChannel <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	default:
		return ErrWriteFull
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.cancel()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.err = err
				if websocket.CloseStatus(err) == -1 {
					c.logger.Error("Failed to read from WebSocket", zap.Error(err))
				} else {
					c.logger.Debug("WebSocket closed by server", zap.Error(err))
				}
			}
			return
		}

		msg, err := c.decoder(data)
		if err != nil {
			c.logger.Warn("Failed to decode frame", zap.Error(err))
			msg = nil
		}
		c.handler.OnMessage(c.ctx, msg, data)
	}
}

func (c *Client) writeLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.writeChannel:
			if err := conn.Write(c.ctx, websocket.MessageText, data); err != nil {
				if c.ctx.Err() == nil {
					c.logger.Error("Failed to write to WebSocket", zap.Error(err))
					conn.CloseNow()
				}
				return
			}
		}
	}
}
