package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"machinery-assistant/internal/models"
)

// GeminiService talks to Google Gemini for generation, embeddings and the
// startup identity probe.
type GeminiService struct {
	client         *genai.Client
	embeddingModel string
	rateChan       chan struct{} // Token bucket
}

func NewGeminiService(ctx context.Context, apiKey, embeddingModel string, concurrentReqs int) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:         client,
		embeddingModel: embeddingModel,
		rateChan:       rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return newRemoteError("generation", CodeTimeout, "waiting for Gemini rate slot", ctx.Err())
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// GenerateText sends the prompt as a single user turn.
func (s *GeminiService) GenerateText(ctx context.Context, req models.GenerationRequest) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	model := s.client.GenerativeModel(req.ModelID)
	model.SetTemperature(float32(req.Temperature))
	model.SetTopP(float32(req.TopP))
	model.SetMaxOutputTokens(int32(req.MaxOutputTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classifyGeminiError("generation", err)
	}

	text, ok := firstText(resp)
	if !ok {
		return "", newRemoteError("generation", CodeRemote, "Gemini returned no text", nil)
	}
	return text, nil
}

// Embed returns the embedding vector for text.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	em := s.client.EmbeddingModel(s.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classifyGeminiError("embedding", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, newRemoteError("embedding", CodeRemote, "Gemini returned an empty embedding", nil)
	}
	return res.Embedding.Values, nil
}

// ProbeIdentity lists a single model, which fails fast on a bad API key.
func (s *GeminiService) ProbeIdentity(ctx context.Context) (string, error) {
	it := s.client.ListModels(ctx)
	info, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return "", classifyGeminiError("identity", err)
	}
	if info == nil {
		return "gemini", nil
	}
	return "gemini (" + strings.TrimPrefix(info.Name, "models/") + " reachable)", nil
}

// firstText returns the first text part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t), true
			}
		}
	}
	return "", false
}

func classifyGeminiError(service string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return newRemoteError(service, CodeAuthentication, "Gemini rejected the API key", err)
		case http.StatusForbidden:
			return newRemoteError(service, CodeAccessDenied, "Gemini denied access", err)
		case http.StatusNotFound:
			return newRemoteError(service, CodeNotFound, "Gemini model not found", err)
		case http.StatusBadRequest:
			return newRemoteError(service, CodeInvalidRequest, "Gemini rejected the request", err)
		}
	}

	switch status.Code(err) {
	case codes.Unauthenticated:
		return newRemoteError(service, CodeAuthentication, "Gemini rejected the API key", err)
	case codes.PermissionDenied:
		return newRemoteError(service, CodeAccessDenied, "Gemini denied access", err)
	case codes.NotFound:
		return newRemoteError(service, CodeNotFound, "Gemini model not found", err)
	case codes.InvalidArgument:
		return newRemoteError(service, CodeInvalidRequest, "Gemini rejected the request", err)
	case codes.DeadlineExceeded:
		return newRemoteError(service, CodeTimeout, "Gemini call timed out", err)
	}

	return newRemoteError(service, CodeRemote, "Gemini API error", err)
}
