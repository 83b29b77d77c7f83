// Package repository declares the collaborators the real-time core and the
// request/response endpoints call into. Every operation reports its outcome
// as a result.Result; implementations never return raw errors for domain or
// infrastructure failures.
package repository

import (
	"context"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/result"
)

// DefaultMessageLimit is the page size used when none is requested.
const DefaultMessageLimit = 50

// ChatRepository manages chats and their membership.
//
// Successful results carry:
//   - GetUserChats: []model.Chat
//   - CreateChat, UpdateChat: model.Chat
//   - AddUser: model.UserMetadata of the added user
//   - LeaveChat: no data
type ChatRepository interface {
	GetUserChats(ctx context.Context, requesterID string) result.Result
	CreateChat(ctx context.Context, requesterID string, req model.CreateChatRequest) result.Result
	UpdateChat(ctx context.Context, chatID, requesterID string, req model.UpdateChatRequest) result.Result
	AddUser(ctx context.Context, chatID, requesterID, targetID string) result.Result
	LeaveChat(ctx context.Context, chatID, requesterID string) result.Result
}

// MessageRepository stores chat messages. GetMessages returns a
// model.MessagesResponse with messages newer than afterTimestamp (when
// non-nil) in ascending timestamp order.
type MessageRepository interface {
	GetMessages(ctx context.Context, chatID string, afterTimestamp *int64, limit int) result.Result
	SendMessage(ctx context.Context, chatID, requesterID string, msg model.Message) result.Result
	UpdateMessage(ctx context.Context, chatID string, msg model.Message) result.Result
	DeleteMessage(ctx context.Context, chatID, messageID string) result.Result
}

// FriendRepository manages friend lists and pending requests. GetFriends and
// GetFriendRequests return []model.UserMetadata; a successful
// AcceptFriendRequest carries the target's model.UserMetadata.
type FriendRepository interface {
	GetFriends(ctx context.Context, requesterID string) result.Result
	GetFriendRequests(ctx context.Context, requesterID string) result.Result
	SendFriendRequest(ctx context.Context, requesterID, targetID string) result.Result
	AcceptFriendRequest(ctx context.Context, requesterID, targetID string) result.Result
	DeclineFriendRequest(ctx context.Context, requesterID, targetID string) result.Result
	RemoveFriend(ctx context.Context, requesterID, targetID string) result.Result
}

// MembershipChecker authorizes live-message subscriptions.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, chatID string) bool
}

// UserDirectory resolves user profiles. A successful result carries a
// model.User.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID string) result.Result
}

// TokenValidator turns an access credential into a user id. A successful
// result carries the user id as a JSON string.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) result.Result
}

// UserID extracts the user id from a token validation result. It reports
// false for any failed or malformed result.
func UserID(r result.Result) (string, bool) {
	if !r.IsSuccess() {
		return "", false
	}

	var id string
	if err := r.Decode(&id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// LookupMetadata fetches a user and reduces it to chat metadata.
func LookupMetadata(ctx context.Context, users UserDirectory, userID string) (model.UserMetadata, bool) {
	r := users.GetUserByID(ctx, userID)
	if !r.IsSuccess() {
		return model.UserMetadata{}, false
	}

	var user model.User
	if err := r.Decode(&user); err != nil || user.ID == "" {
		return model.UserMetadata{}, false
	}
	return user.Metadata(), true
}
