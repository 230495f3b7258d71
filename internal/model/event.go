package model

import (
	"time"
)

// EventType represents the type of inbox event.
type EventType string

const (
	EventTypeLabelAdded         EventType = "label_added"
	EventTypeLabelRemoved       EventType = "label_removed"
	EventTypeLabelCreated       EventType = "label_created"
	EventTypeTemperatureChanged EventType = "temperature_changed"
	EventTypeRolledBack         EventType = "rolled_back"
	EventTypeDeleted            EventType = "deleted"
)

// ConversationEvent records a mutation applied to a conversation through the
// gateway. Conversation holds the state after the mutation, or after the
// rollback for EventTypeRolledBack.
type ConversationEvent struct {
	ID             string        `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	TenantID       string        `json:"tenant_id"`
	Subject        string        `json:"subject"`
	Type           EventType     `json:"type"`
	Reason         string        `json:"reason,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
