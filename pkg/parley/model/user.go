package model

// UserRole is the role assigned by the user service.
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// User is the record the user service returns. Unknown fields are ignored.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	FullName    string   `json:"fullName,omitempty"`
	Role        UserRole `json:"role,omitempty"`
	AvatarURL   *string  `json:"avatarUrl,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// Metadata returns the chat-facing view of the user.
func (u User) Metadata() UserMetadata {
	return UserMetadata{UserID: u.ID, AvatarURL: u.AvatarURL}
}

// FriendList holds a user's accepted friends and the requests waiting for
// their answer.
type FriendList struct {
	UserID         string         `json:"userId"`
	Friends        []UserMetadata `json:"friends"`
	FriendRequests []UserMetadata `json:"friendRequests"`
}

// HasFriend reports whether userID is an accepted friend.
func (f FriendList) HasFriend(userID string) bool {
	return containsUser(f.Friends, userID)
}

// HasRequestFrom reports whether userID has a pending request in this list.
func (f FriendList) HasRequestFrom(userID string) bool {
	return containsUser(f.FriendRequests, userID)
}

func containsUser(users []UserMetadata, userID string) bool {
	for _, u := range users {
		if u.UserID == userID {
			return true
		}
	}
	return false
}
