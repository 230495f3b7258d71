package model

import "encoding/json"

// Envelope is the backend response wrapper. Some endpoints answer with a bare
// array or object instead.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *Meta           `json:"meta,omitempty"`
}

// Meta carries pagination information.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalCount int `json:"total_count,omitempty"`
}

// ErrorResponse is the uniform error body returned to browsers.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Meta          *Meta          `json:"meta,omitempty"`
}
