package client

import (
	"context"

	"github.com/tsarna/parley/pkg/parley/protocol"
)

// Frame is one received frame.
type Frame struct {
	Message protocol.Message
	Raw     []byte
}

// Inbox is a Handler that buffers frames for Next. Frames arriving while
// the buffer is full block the read loop.
type Inbox struct {
	frames chan Frame
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 64
	}
	return &Inbox{frames: make(chan Frame, size)}
}

func (i *Inbox) OnMessage(ctx context.Context, msg protocol.Message, raw []byte) {
	select {
	case i.frames <- Frame{Message: msg, Raw: raw}:
	case <-ctx.Done():
	}
}

// Next waits for the next frame.
func (i *Inbox) Next(ctx context.Context) (Frame, error) {
	select {
	case f := <-i.frames:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Pending returns how many frames are buffered.
func (i *Inbox) Pending() int {
	return len(i.frames)
}
