// Package session implements the server side state of one live connection:
// the authenticated user, a bounded outbound queue and the worker that
// drains it onto the connection.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("session queue is full")
	ErrSessionClosed = errors.New("session is closed")
)

const (
	// DefaultQueueSize is the number of frames that may be pending delivery
	// before further sends are dropped.
	DefaultQueueSize = 16

	DefaultWriteTimeout = 10 * time.Second
)

// Transport is the connection a Session delivers frames to.
type Transport interface {
	WriteFrame(ctx context.Context, frame []byte) error
	Ping(ctx context.Context) error
}

// Session owns the outbound side of one connection. Send never blocks: when
// the queue is full the frame is dropped. A single worker goroutine writes
// queued frames in the order they were accepted.
type Session struct {
	id        string
	userID    string
	transport Transport
	logger    *zap.Logger

	queue        chan []byte
	done         chan struct{}
	wg           sync.WaitGroup
	closeOnce    sync.Once
	ticker       *time.Ticker
	writeTimeout time.Duration
	onWriteError func(error)
	broken       atomic.Bool
	dropped      atomic.Uint64
	delivered    atomic.Uint64
}

// New creates a session for userID delivering to transport. Configure it with
// the With methods, then call Start.
func New(userID string, transport Transport, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Session{
		id:           uuid.NewString(),
		userID:       userID,
		transport:    transport,
		logger:       zap.NewNop(),
		queue:        make(chan []byte, queueSize),
		done:         make(chan struct{}),
		writeTimeout: DefaultWriteTimeout,
	}
}

// WithLogger sets the logger. The session adds its own id and user fields.
func (s *Session) WithLogger(logger *zap.Logger) *Session {
	if logger != nil {
		s.logger = logger.With(zap.String("session_id", s.id), zap.String("user_id", s.userID))
	}
	return s
}

// WithPingInterval makes the worker ping the transport periodically. Must be
// called before Start. Zero disables pings.
func (s *Session) WithPingInterval(interval time.Duration) *Session {
	if interval > 0 && s.ticker == nil {
		s.ticker = time.NewTicker(interval)
	}
	return s
}

// WithWriteTimeout bounds every write and ping.
func (s *Session) WithWriteTimeout(timeout time.Duration) *Session {
	if timeout > 0 {
		s.writeTimeout = timeout
	}
	return s
}

// WithWriteErrorHandler registers a callback invoked once, from its own
// goroutine, when a write or ping fails. Frames queued after that are
// discarded.
func (s *Session) WithWriteErrorHandler(handler func(error)) *Session {
	s.onWriteError = handler
	return s
}

// Start launches the delivery worker.
func (s *Session) Start(ctx context.Context) *Session {
	s.wg.Add(1)
	go s.deliver(ctx)
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Send enqueues a pre-encoded frame. It returns ErrQueueFull when the frame
// was dropped and ErrSessionClosed after Close.
func (s *Session) Send(frame []byte) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}

	select {
	case s.queue <- frame:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Debug("Dropping frame for slow session", zap.Int("queue_capacity", cap(s.queue)))
		return ErrQueueFull
	}
}

func (s *Session) deliver(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.ticker != nil {
		tick = s.ticker.C
	}

	for {
		select {
		case frame := <-s.queue:
			s.write(ctx, frame)
		case <-tick:
			s.ping(ctx)
		case <-s.done:
			s.drain(ctx)
			return
		}
	}
}

// drain writes whatever is still queued when the session closes.
func (s *Session) drain(ctx context.Context) {
	for {
		select {
		case frame := <-s.queue:
			s.write(ctx, frame)
		default:
			return
		}
	}
}

func (s *Session) write(ctx context.Context, frame []byte) {
	if s.broken.Load() {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	if err := s.transport.WriteFrame(writeCtx, frame); err != nil {
		s.fail(err)
		return
	}
	s.delivered.Add(1)
}

func (s *Session) ping(ctx context.Context) {
	if s.broken.Load() {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	if err := s.transport.Ping(pingCtx); err != nil {
		s.fail(err)
	}
}

func (s *Session) fail(err error) {
	if !s.broken.CompareAndSwap(false, true) {
		return
	}

	s.logger.Debug("Session write failed", zap.Error(err))
	if s.onWriteError != nil {
		go s.onWriteError(err)
	}
}

// Close stops the worker after it has flushed the queue. It is safe to call
// more than once and from any goroutine except the worker itself.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) QueueSize() int     { return len(s.queue) }
func (s *Session) QueueCapacity() int { return cap(s.queue) }
func (s *Session) Dropped() uint64    { return s.dropped.Load() }
func (s *Session) Delivered() uint64  { return s.delivered.Load() }
