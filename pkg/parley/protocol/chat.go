package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tsarna/parley/pkg/parley/model"
)

// Chat channel discriminants.
const (
	TypeNewMessage              = "new_message"
	TypeUpdateMessage           = "update_message"
	TypeDeleteMessage           = "delete_message"
	TypeUserLeftChat            = "user_left_chat"
	TypeNewChat                 = "new_chat"
	TypeChatUpdated             = "chat_updated"
	TypeUserAddedToChat         = "user_added_to_chat"
	TypeSubscribeToMessages     = "subscribe_to_messages"
	TypeUnsubscribeFromMessages = "unsubscribe_from_messages"
)

// NewMessage is sent by a client to post a message, and broadcast to the
// chat's message subscribers once stored.
type NewMessage struct {
	ChatID  string        `json:"chatId"`
	Message model.Message `json:"message"`
}

// UpdateMessage replaces a stored message with the same id.
type UpdateMessage struct {
	ChatID  string        `json:"chatId"`
	Message model.Message `json:"message"`
}

// DeleteMessage removes a stored message.
type DeleteMessage struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// UserLeftChat is both the leave command and the resulting notification.
// IsPublic defaults to true when absent.
type UserLeftChat struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsPublic bool   `json:"isPublic"`
}

// NewChat is server-originated.
type NewChat struct {
	Chat model.Chat `json:"chat"`
}

// ChatUpdated is server-originated.
type ChatUpdated struct {
	Chat model.Chat `json:"chat"`
}

// UserAddedToChat is server-originated.
type UserAddedToChat struct {
	ChatID       string             `json:"chatId"`
	UserID       string             `json:"userId"`
	UserMetadata model.UserMetadata `json:"userMetadata"`
}

type SubscribeToMessages struct {
	ChatID string `json:"chatId"`
}

type UnsubscribeFromMessages struct {
	ChatID string `json:"chatId"`
}

func (NewMessage) MessageType() string              { return TypeNewMessage }
func (UpdateMessage) MessageType() string           { return TypeUpdateMessage }
func (DeleteMessage) MessageType() string           { return TypeDeleteMessage }
func (UserLeftChat) MessageType() string            { return TypeUserLeftChat }
func (NewChat) MessageType() string                 { return TypeNewChat }
func (ChatUpdated) MessageType() string             { return TypeChatUpdated }
func (UserAddedToChat) MessageType() string         { return TypeUserAddedToChat }
func (SubscribeToMessages) MessageType() string     { return TypeSubscribeToMessages }
func (UnsubscribeFromMessages) MessageType() string { return TypeUnsubscribeFromMessages }

func (NewMessage) chatMessage()              {}
func (UpdateMessage) chatMessage()           {}
func (DeleteMessage) chatMessage()           {}
func (UserLeftChat) chatMessage()            {}
func (NewChat) chatMessage()                 {}
func (ChatUpdated) chatMessage()             {}
func (UserAddedToChat) chatMessage()         {}
func (SubscribeToMessages) chatMessage()     {}
func (UnsubscribeFromMessages) chatMessage() {}

func (m NewMessage) validate() error {
	return errors.Join(requireField("chatId", m.ChatID), validateMessage(m.Message, false))
}

func (m UpdateMessage) validate() error {
	return errors.Join(requireField("chatId", m.ChatID), validateMessage(m.Message, true))
}

func (m DeleteMessage) validate() error {
	return errors.Join(requireField("chatId", m.ChatID), requireField("messageId", m.MessageID))
}

func (m UserLeftChat) validate() error {
	return requireField("chatId", m.ChatID)
}

func (m SubscribeToMessages) validate() error {
	return requireField("chatId", m.ChatID)
}

func (m UnsubscribeFromMessages) validate() error {
	return requireField("chatId", m.ChatID)
}

func validateMessage(msg model.Message, needID bool) error {
	if needID && msg.ID == "" {
		return fmt.Errorf("field %q is required", "message.id")
	}
	switch msg.Type {
	case "", model.MessageTypeText, model.MessageTypeWebRTCSignal:
		return nil
	default:
		return fmt.Errorf("unknown message kind %q", msg.Type)
	}
}

// UnmarshalJSON applies the isPublic default.
func (m *UserLeftChat) UnmarshalJSON(data []byte) error {
	type plain UserLeftChat
	p := plain{IsPublic: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = UserLeftChat(p)
	return nil
}

var chatDecoders = map[string]func([]byte) (ChatMessage, error){
	TypeNewMessage:              chatDecoder[NewMessage](),
	TypeUpdateMessage:           chatDecoder[UpdateMessage](),
	TypeDeleteMessage:           chatDecoder[DeleteMessage](),
	TypeUserLeftChat:            chatDecoder[UserLeftChat](),
	TypeNewChat:                 chatDecoder[NewChat](),
	TypeChatUpdated:             chatDecoder[ChatUpdated](),
	TypeUserAddedToChat:         chatDecoder[UserAddedToChat](),
	TypeSubscribeToMessages:     chatDecoder[SubscribeToMessages](),
	TypeUnsubscribeFromMessages: chatDecoder[UnsubscribeFromMessages](),
	TypeError:                   chatDecoder[ErrorMessage](),
}

func chatDecoder[T ChatMessage]() func([]byte) (ChatMessage, error) {
	return func(data []byte) (ChatMessage, error) {
		v, err := decodeAs[T](data)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// DecodeChat decodes one chat channel frame.
func DecodeChat(data []byte) (ChatMessage, error) {
	kind, err := peekType(data)
	if err != nil {
		return nil, err
	}

	decode, ok := chatDecoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}

	return decode(data)
}
