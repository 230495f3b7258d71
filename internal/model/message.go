package model

import (
	"time"
)

// MessageType is the direction of a transcript entry.
type MessageType string

const (
	MessageTypeIncoming MessageType = "incoming"
	MessageTypeOutgoing MessageType = "outgoing"
	MessageTypeActivity MessageType = "activity"
	MessageTypeTemplate MessageType = "template"
)

// Message is a transcript entry of a conversation.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	Private        bool        `json:"private"`
	SenderName     string      `json:"sender_name,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ErrorEvent is sent on the event stream when something fails.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent keeps the event stream alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
