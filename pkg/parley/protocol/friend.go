package protocol

import (
	"fmt"

	"github.com/tsarna/parley/pkg/parley/model"
)

// Friend channel discriminants.
const (
	TypeSendFriendRequest     = "send_friend_request"
	TypeAcceptFriendRequest   = "accept_friend_request"
	TypeDeclineFriendRequest  = "decline_friend_request"
	TypeRemoveFriend          = "remove_friend"
	TypeFriendRequestSent     = "friend_request_sent"
	TypeFriendRequestAccepted = "friend_request_accepted"
	TypeFriendRemoved         = "friend_removed"
)

type SendFriendRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type AcceptFriendRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type DeclineFriendRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type RemoveFriend struct {
	TargetUserID string `json:"targetUserId"`
}

// FriendRequestSent tells the target that FromUserID asked to be friends.
type FriendRequestSent struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

// FriendRequestAccepted is delivered to both sides of a new friendship, each
// carrying the other side's metadata.
type FriendRequestAccepted struct {
	FriendMetadata model.UserMetadata `json:"friendMetadata"`
}

// FriendRemoved names the user who is no longer a friend of the recipient.
type FriendRemoved struct {
	UserID string `json:"userId"`
}

func (SendFriendRequest) MessageType() string     { return TypeSendFriendRequest }
func (AcceptFriendRequest) MessageType() string   { return TypeAcceptFriendRequest }
func (DeclineFriendRequest) MessageType() string  { return TypeDeclineFriendRequest }
func (RemoveFriend) MessageType() string          { return TypeRemoveFriend }
func (FriendRequestSent) MessageType() string     { return TypeFriendRequestSent }
func (FriendRequestAccepted) MessageType() string { return TypeFriendRequestAccepted }
func (FriendRemoved) MessageType() string         { return TypeFriendRemoved }

func (SendFriendRequest) friendMessage()     {}
func (AcceptFriendRequest) friendMessage()   {}
func (DeclineFriendRequest) friendMessage()  {}
func (RemoveFriend) friendMessage()          {}
func (FriendRequestSent) friendMessage()     {}
func (FriendRequestAccepted) friendMessage() {}
func (FriendRemoved) friendMessage()         {}

func (m SendFriendRequest) validate() error    { return requireField("targetUserId", m.TargetUserID) }
func (m AcceptFriendRequest) validate() error  { return requireField("targetUserId", m.TargetUserID) }
func (m DeclineFriendRequest) validate() error { return requireField("targetUserId", m.TargetUserID) }
func (m RemoveFriend) validate() error         { return requireField("targetUserId", m.TargetUserID) }

var friendDecoders = map[string]func([]byte) (FriendMessage, error){
	TypeSendFriendRequest:     friendDecoder[SendFriendRequest](),
	TypeAcceptFriendRequest:   friendDecoder[AcceptFriendRequest](),
	TypeDeclineFriendRequest:  friendDecoder[DeclineFriendRequest](),
	TypeRemoveFriend:          friendDecoder[RemoveFriend](),
	TypeFriendRequestSent:     friendDecoder[FriendRequestSent](),
	TypeFriendRequestAccepted: friendDecoder[FriendRequestAccepted](),
	TypeFriendRemoved:         friendDecoder[FriendRemoved](),
	TypeError:                 friendDecoder[ErrorMessage](),
}

func friendDecoder[T FriendMessage]() func([]byte) (FriendMessage, error) {
	return func(data []byte) (FriendMessage, error) {
		v, err := decodeAs[T](data)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// DecodeFriend decodes one friend channel frame.
func DecodeFriend(data []byte) (FriendMessage, error) {
	kind, err := peekType(data)
	if err != nil {
		return nil, err
	}

	decode, ok := friendDecoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}

	return decode(data)
}
