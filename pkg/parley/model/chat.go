// Package model contains the data carried by chat, message and friend
// operations, in the JSON shape clients and the user service exchange.
package model

// UserMetadata is the minimal view of a user embedded in chats and friend lists.
type UserMetadata struct {
	UserID    string  `json:"userId"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Chat is a conversation between two or more users.
type Chat struct {
	ID          string         `json:"id"`
	Users       []UserMetadata `json:"users"`
	ChatName    *string        `json:"chatName,omitempty"`
	Description *string        `json:"description,omitempty"`
	AvatarURL   *string        `json:"avatarUrl,omitempty"`
}

// IsPrivate reports whether the chat has exactly two participants.
func (c Chat) IsPrivate() bool {
	return len(c.Users) == 2
}

// ParticipantIDs returns the user ids of every participant, in chat order.
func (c Chat) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Users))
	for _, u := range c.Users {
		ids = append(ids, u.UserID)
	}
	return ids
}

// HasParticipant reports whether userID is one of the chat's users.
func (c Chat) HasParticipant(userID string) bool {
	for _, u := range c.Users {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

// UserInChat links a user to a chat they joined.
type UserInChat struct {
	ID       string `json:"id"`
	ChatID   string `json:"chatId"`
	JoinedAt int64  `json:"joinedAt"`
}

// CreateChatRequest is the body of the create endpoint.
type CreateChatRequest struct {
	ParticipantUserIDs []string `json:"participantUserIds" binding:"required"`
	ChatName           *string  `json:"chatName,omitempty"`
	Description        *string  `json:"description,omitempty"`
	AvatarURL          *string  `json:"avatarUrl,omitempty"`
}

// UpdateChatRequest is the body of the update endpoint. Nil fields are left
// unchanged.
type UpdateChatRequest struct {
	ChatName    *string `json:"chatName,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateChatRequest) IsEmpty() bool {
	return r.ChatName == nil && r.Description == nil && r.AvatarURL == nil
}
