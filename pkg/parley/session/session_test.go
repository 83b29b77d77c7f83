package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingTransport stores every frame written to it. When gate is set each
// write waits for a value on it, which lets tests hold the worker mid-write.
type recordingTransport struct {
	mu      sync.Mutex
	frames  []string
	pings   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
	failing error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{entered: make(chan struct{}, 100)}
}

func (r *recordingTransport) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case r.entered <- struct{}{}:
	default:
	}

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if r.failing != nil {
		return r.failing
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
	return nil
}

func (r *recordingTransport) Ping(ctx context.Context) error {
	r.pings.Add(1)
	return nil
}

func (r *recordingTransport) getFrames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.frames))
	copy(out, r.frames)
	return out
}

func TestNewSessionDefaults(t *testing.T) {
	s := New("alice", newRecordingTransport(), 0)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "alice", s.UserID())
	assert.Equal(t, DefaultQueueSize, s.QueueCapacity())
	assert.False(t, s.IsClosed())
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := New("alice", newRecordingTransport(), 1)
	b := New("alice", newRecordingTransport(), 1)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSendPreservesOrder(t *testing.T) {
	transport := newRecordingTransport()
	s := New("alice", transport, 16).WithLogger(zap.NewNop()).Start(context.Background())
	defer s.Close()

	var expected []string
	for i := 0; i < 10; i++ {
		frame := fmt.Sprintf("frame-%d", i)
		expected = append(expected, frame)
		require.NoError(t, s.Send([]byte(frame)))
	}

	assert.Eventually(t, func() bool {
		return len(transport.getFrames()) == 10
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, expected, transport.getFrames())
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	transport := newRecordingTransport()
	transport.gate = make(chan struct{})
	s := New("alice", transport, 4).Start(context.Background())

	// The worker takes the first frame and blocks inside the write.
	require.NoError(t, s.Send([]byte("0")))
	select {
	case <-transport.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never started writing")
	}

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Send([]byte(fmt.Sprint(i))))
	}

	start := time.Now()
	for i := 5; i < 8; i++ {
		assert.ErrorIs(t, s.Send([]byte(fmt.Sprint(i))), ErrQueueFull)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Send must not block")
	assert.Equal(t, uint64(3), s.Dropped())
	assert.Equal(t, 4, s.QueueSize())

	close(transport.gate)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, transport.getFrames())
	assert.Equal(t, uint64(5), s.Delivered())
}

func TestCloseFlushesQueue(t *testing.T) {
	transport := newRecordingTransport()
	s := New("alice", transport, 16).Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Send([]byte(fmt.Sprint(i))))
	}
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"0", "1", "2"}, transport.getFrames())
	assert.True(t, s.IsClosed())
}

func TestSendAfterClose(t *testing.T) {
	s := New("alice", newRecordingTransport(), 4).Start(context.Background())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Send([]byte("late")), ErrSessionClosed)
}

func TestWriteErrorHandlerCalledOnce(t *testing.T) {
	transport := newRecordingTransport()
	transport.failing = errors.New("broken pipe")

	var calls atomic.Int32
	s := New("alice", transport, 8).
		WithWriteErrorHandler(func(err error) { calls.Add(1) }).
		Start(context.Background())

	for i := 0; i < 5; i++ {
		_ = s.Send([]byte("x"))
	}
	require.NoError(t, s.Close())

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(0), s.Delivered())
}

func TestPingInterval(t *testing.T) {
	transport := newRecordingTransport()
	s := New("alice", transport, 4).WithPingInterval(10 * time.Millisecond).Start(context.Background())
	defer s.Close()

	assert.Eventually(t, func() bool { return transport.pings.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
