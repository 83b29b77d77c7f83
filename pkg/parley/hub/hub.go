// Package hub applies the business rules that sit between a command and its
// notifications: it calls the repositories, decides who must hear about a
// successful change and fans the event out through the topic registries.
//
// Socket handlers and request/response endpoints share one Hub, so a chat
// created over HTTP reaches the same live sessions as one created over a
// socket. Every operation returns the repository's result unchanged; a
// notification that cannot be built is skipped without affecting it.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/registry"
	"github.com/tsarna/parley/pkg/parley/repository"
)

// Registry names, also the first level of trace topics.
const (
	UserRegistry   = "user"
	ChatRegistry   = "chat"
	FriendRegistry = "friend"
)

type Hub struct {
	logger     *zap.Logger
	chats      repository.ChatRepository
	messages   repository.MessageRepository
	friends    repository.FriendRepository
	users      repository.UserDirectory
	membership repository.MembershipChecker
	tracer     o11y.TracingProvider
	now        func() time.Time
	newID      func() string

	// userTopics carries chat membership events, chatTopics live messages
	// and friendTopics friend events.
	userTopics   *registry.Registry[string]
	chatTopics   *registry.Registry[string]
	friendTopics *registry.Registry[string]
}

func (h *Hub) Users() *registry.Registry[string]   { return h.userTopics }
func (h *Hub) Chats() *registry.Registry[string]   { return h.chatTopics }
func (h *Hub) Friends() *registry.Registry[string] { return h.friendTopics }

// Membership exposes the checker used to authorize subscriptions.
func (h *Hub) Membership() repository.MembershipChecker { return h.membership }

// Stats returns a snapshot of every registry.
func (h *Hub) Stats() []registry.Stats {
	return []registry.Stats{h.userTopics.Stats(), h.chatTopics.Stats(), h.friendTopics.Stats()}
}

// Topics is the number of live topics across all registries.
func (h *Hub) Topics() int {
	n := 0
	for _, s := range h.Stats() {
		n += s.Topics
	}
	return n
}

// Release removes sub from every registry it joined. It is the finalizer run
// when a connection closes.
func (h *Hub) Release(sub registry.Subscriber) int {
	return h.userTopics.UnsubscribeAll(sub) +
		h.chatTopics.UnsubscribeAll(sub) +
		h.friendTopics.UnsubscribeAll(sub)
}

func (h *Hub) span(ctx context.Context, op string, labels ...o11y.Label) (context.Context, func(error)) {
	return o11y.StartSpan(ctx, h.tracer, "parley.hub."+op, labels...)
}

func (h *Hub) broadcast(ctx context.Context, reg *registry.Registry[string], key string, msg protocol.Message) {
	if _, err := reg.Broadcast(ctx, key, msg); err != nil {
		h.logger.Warn("Failed to broadcast", zap.String("registry", reg.Name()), zap.String("type", msg.MessageType()), zap.Error(err))
	}
}

func (h *Hub) broadcastToMany(ctx context.Context, reg *registry.Registry[string], keys []string, msg protocol.Message) {
	if _, err := reg.BroadcastToMany(ctx, keys, msg); err != nil {
		h.logger.Warn("Failed to broadcast", zap.String("registry", reg.Name()), zap.String("type", msg.MessageType()), zap.Error(err))
	}
}

// reply sends msg to a single subscriber.
func (h *Hub) reply(sub registry.Subscriber, msg protocol.Message) {
	if sub == nil {
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Warn("Failed to encode reply", zap.String("type", msg.MessageType()), zap.Error(err))
		return
	}
	if err := sub.Send(frame); err != nil {
		h.logger.Debug("Reply not delivered", zap.String("type", msg.MessageType()), zap.Error(err))
	}
}
