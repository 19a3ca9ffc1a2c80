package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"machinery-assistant/internal/models"
)

type stubConverse struct {
	out  *bedrockruntime.ConverseOutput
	err  error
	last *bedrockruntime.ConverseInput
}

func (s *stubConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.last = params
	return s.out, s.err
}

type stubRetrieve struct {
	out  *bedrockagentruntime.RetrieveOutput
	err  error
	last *bedrockagentruntime.RetrieveInput
}

func (s *stubRetrieve) Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	s.last = params
	return s.out, s.err
}

type stubIdentity struct {
	arn string
	err error
}

func (s *stubIdentity) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String(s.arn)}, nil
}

func textReply(texts ...string) *bedrockruntime.ConverseOutput {
	blocks := make([]runtimetypes.ContentBlock, len(texts))
	for i, t := range texts {
		blocks[i] = &runtimetypes.ContentBlockMemberText{Value: t}
	}
	return &bedrockruntime.ConverseOutput{
		Output: &runtimetypes.ConverseOutputMemberMessage{
			Value: runtimetypes.Message{Role: runtimetypes.ConversationRoleAssistant, Content: blocks},
		},
	}
}

func TestBedrockGenerateText_SingleUserTurn(t *testing.T) {
	runtime := &stubConverse{out: textReply("first", "second")}
	s := &BedrockService{runtime: runtime}

	got, err := s.GenerateText(context.Background(), models.GenerationRequest{
		Prompt: "ctx\nquestion", ModelID: "anthropic.claude-3-haiku-20240307-v1:0",
		Temperature: 0, TopP: 0.1, MaxOutputTokens: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first" {
		t.Errorf("expected first text block, got %q", got)
	}

	in := runtime.last
	if aws.ToString(in.ModelId) != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("unexpected model %q", aws.ToString(in.ModelId))
	}
	if len(in.Messages) != 1 || in.Messages[0].Role != runtimetypes.ConversationRoleUser {
		t.Fatalf("expected one user message, got %+v", in.Messages)
	}
	text, ok := in.Messages[0].Content[0].(*runtimetypes.ContentBlockMemberText)
	if !ok || text.Value != "ctx\nquestion" {
		t.Errorf("unexpected content %+v", in.Messages[0].Content)
	}
	cfg := in.InferenceConfig
	if aws.ToInt32(cfg.MaxTokens) != 10 || aws.ToFloat32(cfg.Temperature) != 0 || aws.ToFloat32(cfg.TopP) != float32(0.1) {
		t.Errorf("unexpected inference config %+v", cfg)
	}
}

func TestBedrockGenerateText_NoText(t *testing.T) {
	s := &BedrockService{runtime: &stubConverse{out: textReply()}}

	_, err := s.GenerateText(context.Background(), models.GenerationRequest{Prompt: "p", ModelID: "m", MaxOutputTokens: 1})
	if RemoteErrorCode(err) != CodeRemote {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestBedrockGenerateText_ClassifiesErrors(t *testing.T) {
	s := &BedrockService{runtime: &stubConverse{err: &smithy.GenericAPIError{Code: "AccessDeniedException"}}}

	_, err := s.GenerateText(context.Background(), models.GenerationRequest{Prompt: "p", ModelID: "m", MaxOutputTokens: 1})
	if !IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestBedrockSearchPassages(t *testing.T) {
	agent := &stubRetrieve{out: &bedrockagentruntime.RetrieveOutput{
		RetrievalResults: []agenttypes.KnowledgeBaseRetrievalResult{
			{
				Content: &agenttypes.RetrievalResultContent{Text: aws.String("MC750 lifts 75 tons")},
				Score:   aws.Float64(0.91),
				Location: &agenttypes.RetrievalResultLocation{
					Type:       agenttypes.RetrievalResultLocationTypeS3,
					S3Location: &agenttypes.RetrievalResultS3Location{Uri: aws.String("s3://docs/mc750.pdf")},
				},
			},
			{
				Content: &agenttypes.RetrievalResultContent{Text: aws.String("telescopic boom")},
				Score:   aws.Float64(0.42),
			},
		},
	}}
	s := &BedrockService{agent: agent}

	got, err := s.SearchPassages(context.Background(), "KB123", "crane capacity", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Text != "MC750 lifts 75 tons" || got[0].Score != 0.91 || got[0].SourceURI != "s3://docs/mc750.pdf" {
		t.Errorf("unexpected first passage %+v", got[0])
	}
	if got[1].Text != "telescopic boom" || got[1].SourceURI != "" {
		t.Errorf("unexpected second passage %+v", got[1])
	}

	in := agent.last
	if aws.ToString(in.KnowledgeBaseId) != "KB123" || aws.ToString(in.RetrievalQuery.Text) != "crane capacity" {
		t.Errorf("unexpected input %+v", in)
	}
	if aws.ToInt32(in.RetrievalConfiguration.VectorSearchConfiguration.NumberOfResults) != 3 {
		t.Errorf("expected 3 results requested")
	}
}

func TestBedrockSearchPassages_NotFound(t *testing.T) {
	s := &BedrockService{agent: &stubRetrieve{err: &smithy.GenericAPIError{Code: "ResourceNotFoundException"}}}

	_, err := s.SearchPassages(context.Background(), "missing", "q", 3)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var re *RemoteError
	if !errors.As(err, &re) || re.Service != "retrieval" {
		t.Errorf("expected retrieval service in error, got %v", err)
	}
}

func TestBedrockProbeIdentity(t *testing.T) {
	s := &BedrockService{identity: &stubIdentity{arn: "arn:aws:iam::123456789012:user/demo"}}

	got, err := s.ProbeIdentity(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "arn:aws:iam::123456789012:user/demo" {
		t.Errorf("unexpected identity %q", got)
	}

	s = &BedrockService{identity: &stubIdentity{err: &smithy.GenericAPIError{Code: "ExpiredToken"}}}
	if _, err := s.ProbeIdentity(context.Background()); !IsAuthentication(err) {
		t.Errorf("expected authentication error, got %v", err)
	}
}

func TestNewBedrockService_ClientsAttemptOnce(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_MAX_ATTEMPTS", "")

	svc, err := NewBedrockService(context.Background(), "us-west-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runtime, ok := svc.runtime.(*bedrockruntime.Client)
	if !ok {
		t.Fatalf("unexpected runtime client %T", svc.runtime)
	}
	agent, ok := svc.agent.(*bedrockagentruntime.Client)
	if !ok {
		t.Fatalf("unexpected agent client %T", svc.agent)
	}
	identity, ok := svc.identity.(*sts.Client)
	if !ok {
		t.Fatalf("unexpected identity client %T", svc.identity)
	}

	attempts := map[string]int{
		"converse": runtime.Options().Retryer.MaxAttempts(),
		"retrieve": agent.Options().Retryer.MaxAttempts(),
		"identity": identity.Options().Retryer.MaxAttempts(),
	}
	for name, n := range attempts {
		if n != 1 {
			t.Errorf("%s client: expected 1 attempt, got %d", name, n)
		}
	}
}
