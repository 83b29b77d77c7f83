// Package protocol defines the frames exchanged over the chat, message and
// friend channels.
//
// Every frame is a JSON object whose "type" member names the variant, for
// example:
//
//	{"type":"subscribe_to_messages","chatId":"c1"}
//
// The chat and friend channels each accept a closed set of variants.
// DecodeChat and DecodeFriend reject anything outside their set with
// ErrUnknownType, and Encode works for any variant.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tsarna/parley/pkg/parley/result"
)

var (
	ErrMissingType = errors.New("missing message type")
	ErrUnknownType = errors.New("unknown message type")
	ErrNotObject   = errors.New("message must be a JSON object")
)

// TypeError is the discriminant shared by both channels.
const TypeError = "error_message"

// Message is implemented by every frame variant.
type Message interface {
	MessageType() string
}

// ChatMessage is a variant of the chat and message channels.
type ChatMessage interface {
	Message
	chatMessage()
}

// FriendMessage is a variant of the friend channel.
type FriendMessage interface {
	Message
	friendMessage()
}

// validator is implemented by client-originated variants that have
// required fields.
type validator interface {
	validate() error
}

// ErrorMessage carries a failed (or acknowledged) operation result back to
// the client that issued the command. It belongs to both channels.
type ErrorMessage struct {
	SimpleResponse result.Result `json:"simpleResponse"`
}

func (ErrorMessage) MessageType() string { return TypeError }
func (ErrorMessage) chatMessage()        {}
func (ErrorMessage) friendMessage()      {}

// NewErrorMessage builds an error frame for status and message.
func NewErrorMessage(status int, message string) ErrorMessage {
	return ErrorMessage{SimpleResponse: result.Failure(status, message)}
}

// ErrorFromResult echoes a result's status and message, without its payload.
func ErrorFromResult(r result.Result) ErrorMessage {
	return ErrorMessage{SimpleResponse: r.WithoutData()}
}

// DecodeError builds the frame sent when an inbound frame cannot be decoded.
func DecodeError(err error) ErrorMessage {
	return NewErrorMessage(http.StatusBadRequest, "Invalid message format: "+err.Error())
}

// Encode serializes m with its discriminant as the first member.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("cannot encode nil message")
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.MessageType(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("failed to encode %s: %w", m.MessageType(), ErrNotObject)
	}

	tag, err := json.Marshal(m.MessageType())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// MustEncode is Encode for variants that cannot fail to marshal. It panics
// on error and is intended for tests and constant frames.
func MustEncode(m Message) []byte {
	data, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return data
}

func peekType(data []byte) (string, error) {
	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", err
	}
	if envelope.Type == nil || *envelope.Type == "" {
		return "", ErrMissingType
	}
	return *envelope.Type, nil
}

func decodeAs[T Message](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	if val, ok := any(v).(validator); ok {
		if err := val.validate(); err != nil {
			return v, err
		}
	}
	return v, nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("field %q is required", name)
	}
	return nil
}
