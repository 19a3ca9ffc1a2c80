package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"machinery-assistant/internal/middleware"
	"machinery-assistant/internal/models"
)

type turnAnswerer interface {
	Answer(ctx context.Context, req models.TurnRequest) (*models.TurnResult, error)
}

type transcriptStore interface {
	Append(sessionID uuid.UUID, role models.Role, text string) models.ChatTurn
	List(sessionID uuid.UUID) []models.ChatTurn
}

type ChatHandler struct {
	orchestrator turnAnswerer
	transcripts  transcriptStore
}

func NewChatHandler(orchestrator turnAnswerer, transcripts transcriptStore) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		transcripts:  transcripts,
	}
}

// Send answers one user turn with the session's current settings.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	settings, ok := middleware.GetSettings(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing session", r))
		return
	}
	sessionID := middleware.GetSessionID(r.Context())

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	h.transcripts.Append(sessionID, models.RoleUser, req.Message)

	result, err := h.orchestrator.Answer(r.Context(), models.TurnRequest{
		SessionID: sessionID,
		UserText:  req.Message,
		Settings:  settings,
	})
	if err != nil {
		// The failure text becomes the assistant turn so the transcript
		// never ends on an unanswered question.
		message := handleServiceError(w, r, err, settings.KnowledgeBaseID)
		h.transcripts.Append(sessionID, models.RoleAssistant, message)
		return
	}

	h.transcripts.Append(sessionID, models.RoleAssistant, result.Reply)

	sources := make([]models.PassageSource, 0, len(result.Passages))
	for _, p := range result.Passages {
		sources = append(sources, models.PassageSource{SourceURI: p.SourceURI, Score: p.Score})
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:    result.Reply,
		Outcome:  result.Outcome,
		Category: result.Category,
		Sources:  sources,
	})
}

// Messages returns the session transcript, oldest first.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	writeJSON(w, http.StatusOK, models.TranscriptResponse{
		SessionID: sessionID,
		Turns:     h.transcripts.List(sessionID),
	})
}
