package models

import (
	"strings"

	"github.com/google/uuid"
)

// PlaceholderKnowledgeBaseID is the value the settings form ships with. It is
// only interpreted by ResolveMode.
const PlaceholderKnowledgeBaseID = "your-knowledge-base-id"

type Mode string

const (
	ModeDemo          Mode = "demo"
	ModeKnowledgeBase Mode = "knowledge_base"
)

func (m Mode) Valid() bool {
	return m == ModeDemo || m == ModeKnowledgeBase
}

// ResolveMode decides the mode once, when settings are loaded. An empty or
// placeholder id selects demo mode; every other id selects the knowledge base.
func ResolveMode(knowledgeBaseID string) Mode {
	id := strings.TrimSpace(knowledgeBaseID)
	if id == "" || id == PlaceholderKnowledgeBaseID {
		return ModeDemo
	}
	return ModeKnowledgeBase
}

type SessionSettings struct {
	ModelID         string  `json:"model_id"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	KnowledgeBaseID string  `json:"knowledge_base_id"`
	Mode            Mode    `json:"mode"`
}

// SessionSettingsRequest is used for both session creation and updates. Nil
// fields keep their current value.
type SessionSettingsRequest struct {
	ModelID         *string  `json:"model_id"`
	Temperature     *float64 `json:"temperature"`
	TopP            *float64 `json:"top_p"`
	KnowledgeBaseID *string  `json:"knowledge_base_id"`
}

type SessionResponse struct {
	SessionID uuid.UUID       `json:"session_id"`
	Token     string          `json:"token,omitempty"`
	Settings  SessionSettings `json:"settings"`
}

type StatusResponse struct {
	CredentialsAvailable bool     `json:"credentials_available"`
	CredentialDetail     string   `json:"credential_detail"`
	GenerationProvider   string   `json:"generation_provider"`
	RetrievalProvider    string   `json:"retrieval_provider"`
	DefaultMode          Mode     `json:"default_mode"`
	ModelOptions         []string `json:"model_options"`
}
