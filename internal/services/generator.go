package services

import (
	"context"

	"machinery-assistant/internal/metrics"
	"machinery-assistant/internal/models"
)

// TextGenerator is a remote text-generation endpoint. Implementations send
// the prompt as a single user turn and return the first text segment.
type TextGenerator interface {
	GenerateText(ctx context.Context, req models.GenerationRequest) (string, error)
}

// ResponseGenerator produces the final answer for a turn.
type ResponseGenerator struct {
	backend         TextGenerator
	maxOutputTokens int
}

func NewResponseGenerator(backend TextGenerator, maxOutputTokens int) *ResponseGenerator {
	if maxOutputTokens <= 0 {
		maxOutputTokens = 500
	}
	return &ResponseGenerator{backend: backend, maxOutputTokens: maxOutputTokens}
}

func (g *ResponseGenerator) Generate(ctx context.Context, prompt, modelID string, temperature, topP float64) (string, error) {
	req := models.GenerationRequest{
		Prompt:          prompt,
		ModelID:         modelID,
		Temperature:     temperature,
		TopP:            topP,
		MaxOutputTokens: g.maxOutputTokens,
	}
	if fields := req.Validate(); fields != nil {
		return "", &ValidationError{Fields: fields}
	}

	done := metrics.ObserveRemoteCall("generation")
	text, err := g.backend.GenerateText(ctx, req)
	done(err)
	if err != nil {
		return "", err
	}
	return text, nil
}
