package handlers

import (
	"net/http"

	"machinery-assistant/internal/models"
	"machinery-assistant/internal/services"
)

type credentialReporter interface {
	Credentials() services.CredentialStatus
}

type StatusHandler struct {
	credentials        credentialReporter
	generationProvider string
	retrievalProvider  string
	defaultMode        models.Mode
	modelOptions       []string
}

func NewStatusHandler(credentials credentialReporter, generationProvider, retrievalProvider string, defaultMode models.Mode, modelOptions []string) *StatusHandler {
	return &StatusHandler{
		credentials:        credentials,
		generationProvider: generationProvider,
		retrievalProvider:  retrievalProvider,
		defaultMode:        defaultMode,
		modelOptions:       modelOptions,
	}
}

// Get reports what the settings panel needs: whether live answers are
// possible and which models can be picked.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := h.credentials.Credentials()
	writeJSON(w, http.StatusOK, models.StatusResponse{
		CredentialsAvailable: status.Available,
		CredentialDetail:     status.Detail,
		GenerationProvider:   h.generationProvider,
		RetrievalProvider:    h.retrievalProvider,
		DefaultMode:          h.defaultMode,
		ModelOptions:         h.modelOptions,
	})
}
