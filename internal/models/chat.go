package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is a single transcript entry. Transcripts are kept for display only
// and are never sent back to the model.
type ChatTurn struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply for one turn.
type ChatResponse struct {
	Reply    string          `json:"reply"`
	Outcome  Outcome         `json:"outcome"`
	Category Category        `json:"category"`
	Sources  []PassageSource `json:"sources"`
}

type PassageSource struct {
	SourceURI string  `json:"source_uri,omitempty"`
	Score     float64 `json:"score"`
}

type TranscriptResponse struct {
	SessionID uuid.UUID  `json:"session_id"`
	Turns     []ChatTurn `json:"turns"`
}
