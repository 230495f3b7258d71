package model

// Label tags a conversation. System labels are reserved by the messaging
// provider and cannot be created or deleted by users.
type Label struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
	System      bool   `json:"system,omitempty"`
}

// CreateLabelRequest is the request to create a label.
type CreateLabelRequest struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// AddLabelRequest attaches an existing label to a conversation.
type AddLabelRequest struct {
	LabelID int64 `json:"label_id"`
}
