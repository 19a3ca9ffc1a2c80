package models

import (
	"fmt"
	"strings"
)

// GenerationRequest is built fresh for every remote generation call.
type GenerationRequest struct {
	Prompt          string
	ModelID         string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

func (r GenerationRequest) Validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(r.Prompt) == "" {
		fields["prompt"] = "must not be empty"
	}
	if strings.TrimSpace(r.ModelID) == "" {
		fields["model_id"] = "must not be empty"
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		fields["temperature"] = fmt.Sprintf("must be within [0,1], got %g", r.Temperature)
	}
	if r.TopP < 0 || r.TopP > 1 {
		fields["top_p"] = fmt.Sprintf("must be within [0,1], got %g", r.TopP)
	}
	if r.MaxOutputTokens <= 0 {
		fields["max_output_tokens"] = "must be positive"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
