package model

// MessageType distinguishes ordinary text from call signalling payloads.
type MessageType string

const (
	MessageTypeText         MessageType = "TEXT"
	MessageTypeWebRTCSignal MessageType = "WEBRTC_SIGNAL"
)

// FileMetadata describes an attachment referenced by a message.
type FileMetadata struct {
	FileName         string  `json:"fileName"`
	FileExtension    string  `json:"fileExtension"`
	FileSize         int64   `json:"fileSize"`
	ExtraInformation *string `json:"extraInformation,omitempty"`
}

// Message is one entry of a chat's message log. Timestamp is in milliseconds
// since the epoch.
type Message struct {
	ID              string        `json:"id"`
	Sender          string        `json:"sender"`
	Payload         string        `json:"payload"`
	Timestamp       int64         `json:"timestamp"`
	Type            MessageType   `json:"type,omitempty"`
	ReplyText       *string       `json:"replyText,omitempty"`
	FileMetadata    *FileMetadata `json:"fileMetadata,omitempty"`
	IsUpdateMessage bool          `json:"isUpdateMessage"`
}

// MessagesResponse is one page of a chat's message log.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
