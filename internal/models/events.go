package models

import "github.com/google/uuid"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TurnStage string

const (
	StageClassifying TurnStage = "classifying"
	StageRetrieving  TurnStage = "retrieving"
	StageGenerating  TurnStage = "generating"
	StageCompleted   TurnStage = "completed"
	StageDeclined    TurnStage = "declined"
	StageFailed      TurnStage = "failed"
)

type TurnStatus struct {
	TurnID  uuid.UUID `json:"turn_id"`
	Stage   TurnStage `json:"stage"`
	Detail  string    `json:"detail,omitempty"`
	Sources int       `json:"sources,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
