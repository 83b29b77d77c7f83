package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/hub"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/result"
	"github.com/tsarna/parley/pkg/parley/session"
)

// Connection is one authenticated websocket. It runs the read loop in the
// caller's goroutine; its session owns the delivery goroutine.
type Connection struct {
	ctx     context.Context
	cancel  context.CancelFunc
	conn    *websocket.Conn
	route   *channelRoute
	hub     *hub.Hub
	userID  string
	session *session.Session
	logger  *zap.Logger
	metrics *Metrics
	tracer  o11y.TracingProvider
	config  *ListenerConfig

	cleanupOnce sync.Once
}

func newConnection(ctx context.Context, conn *websocket.Conn, l *Listener, route *channelRoute, userID string, logger *zap.Logger) *Connection {
	ctx, cancel := context.WithCancel(ctx)

	c := &Connection{
		ctx:     ctx,
		cancel:  cancel,
		conn:    conn,
		route:   route,
		hub:     l.config.hub,
		userID:  userID,
		logger:  logger,
		metrics: l.metrics,
		tracer:  l.config.tracer,
		config:  l.config,
	}

	c.session = session.New(userID, &transport{conn: conn, channel: route.name, metrics: l.metrics}, l.config.queueSize).
		WithLogger(logger).
		WithPingInterval(l.config.pingInterval).
		WithWriteTimeout(l.config.writeTimeout).
		WithWriteErrorHandler(c.writeFailed)

	return c
}

// Session returns the connection's session.
func (c *Connection) Session() *session.Session { return c.session }

// Start runs the connection until the client goes away, a write fails or
// the listener shuts down. Cleanup runs on every exit path.
func (c *Connection) Start() {
	defer c.cleanup()

	c.session.Start(c.ctx)
	if c.route.join != nil {
		c.route.join(c)
	}

	c.readLoop()
}

func (c *Connection) readLoop() {
	defer c.logger.Debug("Message reader stopped")

	c.conn.SetReadLimit(c.config.readLimit)

	for {
		if c.ctx.Err() != nil {
			return
		}

		readCtx, cancel := c.ctx, context.CancelFunc(func() {})
		if c.config.readTimeout > 0 {
			readCtx, cancel = context.WithTimeout(c.ctx, c.config.readTimeout)
		}
		kind, data, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.logger.Debug("WebSocket connection closed by client", zap.Int("close_status", int(status)))
			} else if !errors.Is(err, context.Canceled) {
				c.logger.Debug("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if kind != websocket.MessageText {
			c.logger.Debug("Ignoring non-text frame")
			continue
		}
		if len(data) == 0 {
			continue
		}

		c.metrics.RecordFrameReceived(c.ctx, c.route.name, len(data))
		c.handleFrame(data)
	}
}

// handleFrame decodes and dispatches one frame.
func (c *Connection) handleFrame(data []byte) {
	msg, err := c.route.decode(data)
	if err != nil {
		c.logger.Debug("Failed to decode frame", zap.Error(err), zap.Int("data_length", len(data)))
		c.metrics.RecordDecodeError(c.ctx, c.route.name)
		c.reply(protocol.DecodeError(err))
		return
	}

	kind := msg.MessageType()
	ctx, finish := o11y.StartSpan(c.ctx, c.tracer, "parley."+string(c.route.name)+"."+kind,
		o11y.Label{Key: "user_id", Value: c.userID},
	)
	done := c.metrics.RecordRequest(ctx, c.route.name, kind)

	r := c.route.handle(ctx, c, msg)

	done(r.Status)
	finish(statusErr(r))

	if !r.IsSuccess() {
		c.logger.Debug("Command failed", zap.String("type", kind), zap.Int("status", r.Status), zap.String("message", r.Message))
	}
}

// reply queues msg for this connection only.
func (c *Connection) reply(msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Warn("Failed to encode reply", zap.String("type", msg.MessageType()), zap.Error(err))
		return
	}
	if err := c.session.Send(frame); err != nil {
		c.logger.Debug("Reply dropped", zap.String("type", msg.MessageType()), zap.Error(err))
	}
}

// replyResult sends r back as an error_message frame, which also serves as
// the acknowledgement for successful commands that have no event of their
// own.
func (c *Connection) replyResult(r result.Result) result.Result {
	c.reply(protocol.ErrorFromResult(r))
	return r
}

// replyFailure reports r to the sender only when it failed.
func (c *Connection) replyFailure(r result.Result) result.Result {
	if !r.IsSuccess() {
		c.reply(protocol.ErrorFromResult(r))
	}
	return r
}

func (c *Connection) writeFailed(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		c.metrics.RecordWriteTimeout(c.ctx)
	}
	c.logger.Debug("Closing connection after failed write", zap.Error(err))
	c.cancel()
	c.conn.CloseNow()
}

func (c *Connection) cleanup() {
	c.cleanupOnce.Do(func() {
		c.logger.Debug("Cleaning up WebSocket connection")

		removed := c.hub.Release(c.session)
		c.session.Close()
		c.cancel()

		if err := c.conn.Close(websocket.StatusNormalClosure, "Connection closed"); err != nil {
			c.logger.Debug("WebSocket close error (may be expected)", zap.Error(err))
		}

		c.logger.Debug("WebSocket connection cleanup completed",
			zap.Int("subscriptions_removed", removed),
			zap.Uint64("frames_delivered", c.session.Delivered()),
			zap.Uint64("frames_dropped", c.session.Dropped()),
		)
	})
}

// shutdownClose makes the read loop exit, which runs cleanup.
func (c *Connection) shutdownClose(code websocket.StatusCode, reason string) {
	c.logger.Debug("Closing connection for shutdown", zap.Int("close_code", int(code)), zap.String("reason", reason))
	if err := c.conn.Close(code, reason); err != nil {
		c.logger.Debug("Error closing WebSocket during shutdown", zap.Error(err))
	}
}

// transport adapts a websocket to session.Transport.
type transport struct {
	conn    *websocket.Conn
	channel Channel
	metrics *Metrics
}

func (t *transport) WriteFrame(ctx context.Context, frame []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return err
	}
	t.metrics.RecordFrameSent(ctx, t.channel, len(frame))
	return nil
}

func (t *transport) Ping(ctx context.Context) error {
	t.metrics.RecordPingSent(ctx)
	return t.conn.Ping(ctx)
}

func statusErr(r result.Result) error {
	if r.IsSuccess() {
		return nil
	}
	return errors.New(r.Message)
}
