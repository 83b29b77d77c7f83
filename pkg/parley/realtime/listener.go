// Package realtime serves the three live channels. Each accepted websocket
// is authenticated once, bound to a session, subscribed according to its
// channel and then read frame by frame; every frame is decoded and handled
// to completion before the next one is read.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/auth"
)

// Channel names one of the live endpoints.
type Channel string

const (
	ChannelChats    Channel = "chats"
	ChannelMessages Channel = "messages"
	ChannelFriends  Channel = "friends"
)

// Close reasons sent with StatusPolicyViolation.
const (
	ReasonNoToken      = "No token"
	ReasonInvalidToken = "Invalid token"
)

// Listener accepts websocket connections for every channel and tracks them
// for graceful shutdown.
type Listener struct {
	config  *ListenerConfig
	logger  *zap.Logger
	metrics *Metrics

	connections  map[*Connection]struct{}
	connMutex    sync.RWMutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func newListener(config *ListenerConfig) *Listener {
	return &Listener{
		config:      config,
		logger:      config.logger,
		metrics:     NewMetrics(config.metrics),
		connections: make(map[*Connection]struct{}),
		shutdown:    make(chan struct{}),
	}
}

// Handler returns the http.HandlerFunc serving channel.
//
//	http.HandleFunc("/chat/ws/chats", listener.Handler(realtime.ChannelChats))
func (l *Listener) Handler(channel Channel) http.HandlerFunc {
	route, ok := channels[channel]
	if !ok {
		panic("realtime: unknown channel " + string(channel))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		l.serve(w, r, route)
	}
}

func (l *Listener) serve(w http.ResponseWriter, r *http.Request, route *channelRoute) {
	connID := ksuid.New().String()
	logger := l.logger.With(zap.String("connection_id", connID), zap.String("channel", string(route.name)))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
		OriginPatterns:  l.config.originHosts,
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
		)
		return
	}

	select {
	case <-l.shutdown:
		logger.Debug("Rejecting new connection due to shutdown")
		conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	default:
	}

	ctx := r.Context()

	userID, err := auth.Authenticate(ctx, l.config.validator, auth.TokenFromRequest(r))
	if err != nil {
		reason := ReasonInvalidToken
		if errors.Is(err, auth.ErrMissingToken) {
			reason = ReasonNoToken
		}
		logger.Info("Rejecting unauthenticated connection",
			zap.String("reason", reason),
			zap.String("remote_addr", r.RemoteAddr),
		)
		l.metrics.RecordAuthRejected(ctx, route.name, reason)
		conn.Close(websocket.StatusPolicyViolation, reason)
		return
	}

	connection := newConnection(ctx, conn, l, route, userID, logger.With(zap.String("user_id", userID)))

	l.connMutex.Lock()
	l.connections[connection] = struct{}{}
	connCount := len(l.connections)
	l.connMutex.Unlock()

	l.metrics.RecordConnectionStart(ctx, route.name)
	l.metrics.RecordConnectionActive(ctx, connCount)
	logger.Debug("WebSocket connection established",
		zap.String("user_id", userID),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("active_connections", connCount),
	)

	started := time.Now()
	connection.Start()

	l.connMutex.Lock()
	delete(l.connections, connection)
	connCount = len(l.connections)
	l.connMutex.Unlock()

	l.metrics.RecordConnectionEnd(ctx, route.name, time.Since(started))
	l.metrics.RecordConnectionActive(ctx, connCount)
	logger.Debug("WebSocket connection removed from tracking", zap.Int("active_connections", connCount))
}

// Shutdown stops accepting connections, closes the active ones with
// StatusGoingAway and waits until they are cleaned up or ctx is done.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		l.logger.Info("Starting graceful WebSocket shutdown")
		close(l.shutdown)

		l.connMutex.RLock()
		connections := make([]*Connection, 0, len(l.connections))
		for conn := range l.connections {
			connections = append(connections, conn)
		}
		l.connMutex.RUnlock()

		if len(connections) == 0 {
			l.logger.Info("No active connections to close")
			return
		}

		l.logger.Info("Closing active WebSocket connections", zap.Int("connection_count", len(connections)))
		for _, conn := range connections {
			go conn.shutdownClose(websocket.StatusGoingAway, "Server shutting down")
		}
	})

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		remaining := l.ConnectionCount()
		if remaining == 0 {
			l.logger.Info("All WebSocket connections closed successfully")
			return nil
		}

		select {
		case <-ctx.Done():
			l.logger.Warn("Shutdown timeout reached with active connections", zap.Int("remaining_connections", remaining))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ConnectionCount returns the number of authenticated connections.
func (l *Listener) ConnectionCount() int {
	l.connMutex.RLock()
	defer l.connMutex.RUnlock()
	return len(l.connections)
}
