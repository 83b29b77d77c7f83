package hub

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/registry"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

var notMember = result.Failure(http.StatusForbidden, "User is not a member of this chat")

// GetMessages pages a chat's log for a member.
func (h *Hub) GetMessages(ctx context.Context, chatID, requesterID string, after *int64, limit int) result.Result {
	if !h.membership.IsMember(ctx, requesterID, chatID) {
		return notMember
	}
	if limit <= 0 {
		limit = repository.DefaultMessageLimit
	}
	return h.messages.GetMessages(ctx, chatID, after, limit)
}

// SendMessage stores a message from requesterID and delivers it to the
// chat's message subscribers. The sender is always the requester; a missing
// id or timestamp is filled in.
func (h *Hub) SendMessage(ctx context.Context, requesterID string, cmd protocol.NewMessage) result.Result {
	msg := cmd.Message
	msg.Sender = requesterID
	if msg.ID == "" {
		msg.ID = h.newID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = h.now().UnixMilli()
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}

	ctx, finish := h.span(ctx, "send_message", o11y.Label{Key: "chat_id", Value: cmd.ChatID})
	r := h.messages.SendMessage(ctx, cmd.ChatID, requesterID, msg)
	finish(resultErr(r))

	if r.IsSuccess() {
		h.broadcast(ctx, h.chatTopics, cmd.ChatID, protocol.NewMessage{ChatID: cmd.ChatID, Message: msg})
	}
	return r
}

// UpdateMessage replaces the requester's own stored message and delivers the
// stored version, which keeps the original timestamp.
func (h *Hub) UpdateMessage(ctx context.Context, requesterID string, cmd protocol.UpdateMessage) result.Result {
	if !h.membership.IsMember(ctx, requesterID, cmd.ChatID) {
		return notMember
	}
	cmd.Message.Sender = requesterID

	ctx, finish := h.span(ctx, "update_message", o11y.Label{Key: "chat_id", Value: cmd.ChatID})
	r := h.messages.UpdateMessage(ctx, cmd.ChatID, cmd.Message)
	finish(resultErr(r))

	if !r.IsSuccess() {
		return r
	}
	if err := r.Decode(&cmd.Message); err != nil && !errors.Is(err, result.ErrNoData) {
		h.logger.Warn("Updated message not broadcast", zap.String("chat_id", cmd.ChatID), zap.Error(err))
		return r
	}
	h.broadcast(ctx, h.chatTopics, cmd.ChatID, cmd)
	return r
}

// DeleteMessage removes a stored message and tells the subscribers.
func (h *Hub) DeleteMessage(ctx context.Context, requesterID string, cmd protocol.DeleteMessage) result.Result {
	if !h.membership.IsMember(ctx, requesterID, cmd.ChatID) {
		return notMember
	}

	ctx, finish := h.span(ctx, "delete_message", o11y.Label{Key: "chat_id", Value: cmd.ChatID})
	r := h.messages.DeleteMessage(ctx, cmd.ChatID, cmd.MessageID)
	finish(resultErr(r))

	if r.IsSuccess() {
		h.broadcast(ctx, h.chatTopics, cmd.ChatID, cmd)
	}
	return r
}

// SubscribeMessages lets a member receive the chat's live messages.
func (h *Hub) SubscribeMessages(ctx context.Context, requesterID, chatID string, sub registry.Subscriber) result.Result {
	if !h.membership.IsMember(ctx, requesterID, chatID) {
		h.logger.Debug("Subscription refused", zap.String("user_id", requesterID), zap.String("chat_id", chatID))
		return notMember
	}
	h.chatTopics.Subscribe(chatID, sub)
	return result.OK("Subscribed to messages", nil)
}

// UnsubscribeMessages always succeeds, even when sub was not subscribed.
func (h *Hub) UnsubscribeMessages(chatID string, sub registry.Subscriber) result.Result {
	h.chatTopics.Unsubscribe(chatID, sub)
	return result.OK("Unsubscribed from messages", nil)
}
