package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"machinery-assistant/internal/middleware"
	"machinery-assistant/internal/models"
)

type tokenIssuer interface {
	GenerateSessionToken(sessionID uuid.UUID, settings models.SessionSettings) (string, error)
}

type SessionHandler struct {
	tokens       tokenIssuer
	defaults     models.SessionSettings
	modelOptions []string
}

func NewSessionHandler(tokens tokenIssuer, defaults models.SessionSettings, modelOptions []string) *SessionHandler {
	return &SessionHandler{
		tokens:       tokens,
		defaults:     defaults,
		modelOptions: modelOptions,
	}
}

// Create starts a chat session. The body is optional; omitted fields take the
// server defaults.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SessionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	settings, fields := applySettings(h.defaults, req, h.modelOptions)
	if fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	h.issue(w, r, http.StatusCreated, uuid.New(), settings)
}

// UpdateSettings changes the session's settings and returns a fresh token
// carrying them. The transcript is kept.
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.GetSettings(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing session", r))
		return
	}

	var req models.SessionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	settings, fields := applySettings(current, req, h.modelOptions)
	if fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	h.issue(w, r, http.StatusOK, middleware.GetSessionID(r.Context()), settings)
}

func (h *SessionHandler) issue(w http.ResponseWriter, r *http.Request, status int, sessionID uuid.UUID, settings models.SessionSettings) {
	token, err := h.tokens.GenerateSessionToken(sessionID, settings)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}
	writeJSON(w, status, models.SessionResponse{
		SessionID: sessionID,
		Token:     token,
		Settings:  settings,
	})
}

// applySettings overlays req on current. A new knowledge-base id re-resolves
// the mode; nothing else does.
func applySettings(current models.SessionSettings, req models.SessionSettingsRequest, modelOptions []string) (models.SessionSettings, map[string]string) {
	next := current
	fields := map[string]string{}

	if req.ModelID != nil {
		if !slices.Contains(modelOptions, *req.ModelID) {
			fields["model_id"] = "must be one of " + strings.Join(modelOptions, ", ")
		}
		next.ModelID = *req.ModelID
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 1 {
			fields["temperature"] = "must be within [0,1]"
		}
		next.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		if *req.TopP < 0 || *req.TopP > 1 {
			fields["top_p"] = "must be within [0,1]"
		}
		next.TopP = *req.TopP
	}
	if req.KnowledgeBaseID != nil {
		next.KnowledgeBaseID = strings.TrimSpace(*req.KnowledgeBaseID)
		next.Mode = models.ResolveMode(next.KnowledgeBaseID)
	}

	if len(fields) > 0 {
		return current, fields
	}
	return next, nil
}
