// Package model defines data structures for the console gateway.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the provider-side state of a conversation.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusPending  Status = "pending"
	StatusSnoozed  Status = "snoozed"
)

// Stage is the sales stage of a conversation.
type Stage string

const (
	StagePreSale Stage = "pre_sale"
	StageSale    Stage = "sale"
)

// Temperature is the lead-qualification classifier attached to a conversation.
// The zero value means no temperature and is encoded as JSON null.
type Temperature string

const (
	TemperatureNone Temperature = ""
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

// Temperatures lists the selectable values in display order.
var Temperatures = []Temperature{TemperatureCold, TemperatureWarm, TemperatureHot}

// Valid reports whether t is none or one of the selectable values.
func (t Temperature) Valid() bool {
	switch t {
	case TemperatureNone, TemperatureCold, TemperatureWarm, TemperatureHot:
		return true
	}
	return false
}

// MarshalJSON encodes TemperatureNone as null.
func (t Temperature) MarshalJSON() ([]byte, error) {
	if t == TemperatureNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON accepts null, "" and the selectable values.
func (t *Temperature) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = TemperatureNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := Temperature(s)
	if !v.Valid() {
		return fmt.Errorf("invalid temperature %q", s)
	}
	*t = v
	return nil
}

// Contact is the customer side of a conversation. Every field may be unknown.
type Contact struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	Email       *string `json:"email"`
}

// Agent is a business user a conversation can be assigned to.
type Agent struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Team groups agents.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Conversation is a thread between a contact and the business.
type Conversation struct {
	ID           int64       `json:"id"`
	InboxID      int64       `json:"inbox_id,omitempty"`
	Status       Status      `json:"status"`
	Stage        Stage       `json:"stage,omitempty"`
	Temperature  Temperature `json:"temperature"`
	Contact      Contact     `json:"contact"`
	Assignee     *Agent      `json:"assignee"`
	Team         *Team       `json:"team"`
	Labels       []Label     `json:"labels"`
	MessageCount int         `json:"message_count"`
	LastMessage  string      `json:"last_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	// unknownTemperature keeps a temperature value the backend sent that is
	// not one of the selectable values.
	unknownTemperature string
}

// UnmarshalJSON decodes a backend conversation. An unrecognised temperature
// does not fail the decode; it is read as none and reported by
// UnknownTemperature.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	aux := struct {
		*plain
		Temperature json.RawMessage `json:"temperature"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Temperature = TemperatureNone
	c.unknownTemperature = ""
	if len(aux.Temperature) == 0 {
		return nil
	}
	var t Temperature
	if err := json.Unmarshal(aux.Temperature, &t); err != nil {
		c.unknownTemperature = string(aux.Temperature)
		return nil
	}
	c.Temperature = t
	return nil
}

// UnknownTemperature returns the raw temperature the backend sent when it was
// not recognised.
func (c Conversation) UnknownTemperature() (string, bool) {
	return c.unknownTemperature, c.unknownTemperature != ""
}

// Clone returns a copy that shares no slices or pointers with c.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Labels != nil {
		out.Labels = append([]Label(nil), c.Labels...)
	}
	if c.Assignee != nil {
		a := *c.Assignee
		out.Assignee = &a
	}
	if c.Team != nil {
		t := *c.Team
		out.Team = &t
	}
	return out
}

// HasLabel reports whether a label with the given id is attached.
func (c Conversation) HasLabel(labelID int64) bool {
	for _, l := range c.Labels {
		if l.ID == labelID {
			return true
		}
	}
	return false
}

// ConversationFilter narrows a conversation listing.
type ConversationFilter struct {
	Status      Status      `json:"status,omitempty"`
	InboxID     int64       `json:"inbox_id,omitempty"`
	Label       string      `json:"label,omitempty"`
	Temperature Temperature `json:"temperature,omitempty"`
	Page        int         `json:"page,omitempty"`
}

// ConversationUpdate carries the partial fields of a conversation update.
// A non-nil Temperature pointing at TemperatureNone clears the temperature.
type ConversationUpdate struct {
	Status      *Status      `json:"status,omitempty"`
	Stage       *Stage       `json:"stage,omitempty"`
	Temperature *Temperature `json:"temperature,omitempty"`
}

// Inbox is a communication channel of the messaging provider.
type Inbox struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ChannelType string `json:"channel_type"`
}
