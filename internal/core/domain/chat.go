package domain

import "time"

// ChatRequest is an inbound question delivered by an upstream channel adapter.
type ChatRequest struct {
	TenantID   string   `json:"tenant_id"`
	SessionID  string   `json:"session_id"`
	Message    string   `json:"message"`
	Channel    Channel  `json:"channel"`
	DatasetIDs []string `json:"dataset_ids"`
}

// ChatReply is the pipeline's response to one ChatRequest. ErrorCode is set
// only when Success is false; Warning only annotates successful replies.
type ChatReply struct {
	Success       bool             `json:"success"`
	Text          string           `json:"text"`
	Sources       []FusedResult    `json:"sources,omitempty"`
	PointsBalance *int64           `json:"points_balance,omitempty"`
	Warning       AdmissionWarning `json:"warning,omitempty"`
	ErrorCode     ErrorCode        `json:"error_code,omitempty"`
}

// Conversation tracks one tenant session's exchange history.
type Conversation struct {
	TenantID     string
	SessionID    string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationMessage is a single persisted exchange message.
type ConversationMessage struct {
	ID        string
	TenantID  string
	SessionID string
	Role      string
	Content   string
	Channel   Channel
	CreatedAt time.Time
}
