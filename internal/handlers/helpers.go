package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"machinery-assistant/internal/middleware"
	"machinery-assistant/internal/models"
	"machinery-assistant/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return errorRespWithFields(code, message, nil, r)
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}
}

// handleServiceError writes the HTTP response for a pipeline error and
// returns the user-facing message it carried.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, knowledgeBaseID string) string {
	status, code, message, fields := mapServiceError(err, knowledgeBaseID)
	writeJSON(w, status, errorRespWithFields(code, message, fields, r))
	return message
}

// mapServiceError maps pipeline errors onto HTTP statuses. Knowledge-base
// faults get a message naming the id the session is using.
func mapServiceError(err error, knowledgeBaseID string) (int, string, string, map[string]string) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", validationErr.Fields
	}

	var remoteErr *services.RemoteError
	if !errors.As(err, &remoteErr) {
		log.Printf("chat turn failed: %v", err)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil
	}

	log.Printf("chat turn failed: service=%s code=%s: %v", remoteErr.Service, remoteErr.Code, err)
	retrieval := remoteErr.Service == "retrieval"

	switch remoteErr.Code {
	case services.CodeNotFound:
		if retrieval {
			return http.StatusNotFound, "KNOWLEDGE_BASE_NOT_FOUND",
				fmt.Sprintf("The Knowledge Base ID '%s' doesn't exist or isn't accessible. Please check the ID and region.", knowledgeBaseID), nil
		}
		return http.StatusBadGateway, "MODEL_NOT_FOUND", "The selected model is not available.", nil
	case services.CodeAccessDenied:
		if retrieval {
			return http.StatusForbidden, "ACCESS_DENIED",
				fmt.Sprintf("No permission to access Knowledge Base '%s'. Please check the access policy for knowledge base retrieval.", knowledgeBaseID), nil
		}
		return http.StatusForbidden, "ACCESS_DENIED", "No permission to invoke the selected model.", nil
	case services.CodeAuthentication:
		return http.StatusServiceUnavailable, "CREDENTIALS_INVALID", "The service credentials were rejected. Please check the configured credentials.", nil
	case services.CodeTimeout:
		return http.StatusGatewayTimeout, "TIMEOUT", "The assistant took too long to answer. Please try again.", nil
	case services.CodeInvalidRequest:
		return http.StatusBadGateway, "REMOTE_REJECTED", "The request was rejected by the model service.", nil
	default:
		return http.StatusBadGateway, "REMOTE_ERROR", "The assistant could not answer right now. Please try again.", nil
	}
}
