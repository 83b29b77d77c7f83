package hub

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/registry"
	"github.com/tsarna/parley/pkg/parley/result"
)

// SubscribeUser registers sub for the chat membership events of userID.
func (h *Hub) SubscribeUser(userID string, sub registry.Subscriber) {
	h.userTopics.Subscribe(userID, sub)
}

func (h *Hub) GetUserChats(ctx context.Context, requesterID string) result.Result {
	return h.chats.GetUserChats(ctx, requesterID)
}

// CreateChat creates a chat and announces it to every participant.
func (h *Hub) CreateChat(ctx context.Context, requesterID string, req model.CreateChatRequest) result.Result {
	ctx, finish := h.span(ctx, "create_chat", o11y.Label{Key: "user_id", Value: requesterID})
	r := h.chats.CreateChat(ctx, requesterID, req)
	finish(resultErr(r))

	if !r.IsSuccess() {
		return r
	}

	var chat model.Chat
	if err := r.Decode(&chat); err != nil || chat.ID == "" {
		h.logger.Warn("Created chat not announced", zap.String("user_id", requesterID), zap.Error(err))
		return r
	}

	h.broadcastToMany(ctx, h.userTopics, chat.ParticipantIDs(), protocol.NewChat{Chat: chat})
	return r
}

// UpdateChat changes chat metadata and announces the new state to the
// participants.
func (h *Hub) UpdateChat(ctx context.Context, chatID, requesterID string, req model.UpdateChatRequest) result.Result {
	ctx, finish := h.span(ctx, "update_chat", o11y.Label{Key: "chat_id", Value: chatID})
	r := h.chats.UpdateChat(ctx, chatID, requesterID, req)
	finish(resultErr(r))

	if !r.IsSuccess() {
		return r
	}

	var chat model.Chat
	if err := r.Decode(&chat); err != nil {
		h.logger.Warn("Chat update not announced", zap.String("chat_id", chatID), zap.Error(err))
		return r
	}

	h.broadcastToMany(ctx, h.userTopics, chat.ParticipantIDs(), protocol.ChatUpdated{Chat: chat})
	return r
}

// AddUser adds targetID to the chat and tells every participant, including
// the new member.
func (h *Hub) AddUser(ctx context.Context, chatID, requesterID, targetID string) result.Result {
	ctx, finish := h.span(ctx, "add_user", o11y.Label{Key: "chat_id", Value: chatID})
	r := h.chats.AddUser(ctx, chatID, requesterID, targetID)
	finish(resultErr(r))

	if !r.IsSuccess() {
		return r
	}

	var md model.UserMetadata
	if err := r.Decode(&md); err != nil {
		h.logger.Warn("Added user not announced", zap.String("chat_id", chatID), zap.Error(err))
		return r
	}

	chat, ok := h.findChat(ctx, requesterID, chatID)
	if !ok {
		return r
	}

	h.broadcastToMany(ctx, h.userTopics, chat.ParticipantIDs(), protocol.UserAddedToChat{
		ChatID:       chatID,
		UserID:       targetID,
		UserMetadata: md,
	})
	return r
}

// LeaveChat removes requesterID from the chat. The participant list is
// captured before the change: leaving a private chat is confirmed to the
// leaver alone through self, any other chat notifies every pre-leave
// participant. When the chat could not be looked up first, self only gets the
// result as an acknowledgement. self may be nil when there is no live session
// to answer.
func (h *Hub) LeaveChat(ctx context.Context, chatID, requesterID string, self registry.Subscriber) result.Result {
	ctx, finish := h.span(ctx, "leave_chat", o11y.Label{Key: "chat_id", Value: chatID})

	before, known := h.findChat(ctx, requesterID, chatID)

	r := h.chats.LeaveChat(ctx, chatID, requesterID)
	finish(resultErr(r))

	if !r.IsSuccess() {
		return r
	}
	if !known {
		h.reply(self, protocol.ErrorFromResult(r))
		return r
	}

	event := protocol.UserLeftChat{ChatID: chatID, UserID: requesterID, IsPublic: !before.IsPrivate()}
	if before.IsPrivate() {
		h.reply(self, event)
		return r
	}

	h.broadcastToMany(ctx, h.userTopics, before.ParticipantIDs(), event)
	return r
}

// findChat looks chatID up among userID's chats.
func (h *Hub) findChat(ctx context.Context, userID, chatID string) (model.Chat, bool) {
	r := h.chats.GetUserChats(ctx, userID)
	if !r.IsSuccess() {
		h.logger.Debug("Could not list chats", zap.String("user_id", userID), zap.Int("status", r.Status))
		return model.Chat{}, false
	}

	var chats []model.Chat
	if err := r.Decode(&chats); err != nil {
		h.logger.Warn("Could not decode chats", zap.String("user_id", userID), zap.Error(err))
		return model.Chat{}, false
	}

	for _, chat := range chats {
		if chat.ID == chatID {
			return chat, true
		}
	}
	return model.Chat{}, false
}

// resultErr turns a failed result into an error for span status.
func resultErr(r result.Result) error {
	if r.IsSuccess() {
		return nil
	}
	return &statusError{r}
}

type statusError struct{ r result.Result }

func (e *statusError) Error() string {
	return http.StatusText(e.r.Status) + ": " + e.r.Message
}
