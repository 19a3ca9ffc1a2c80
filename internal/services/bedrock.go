package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"machinery-assistant/internal/models"
)

// The three Bedrock-facing clients are narrowed to the calls we make so tests
// can substitute them.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type retrieveAPI interface {
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

type callerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// BedrockService wraps Amazon Bedrock model invocation, knowledge-base
// retrieval and the STS identity probe.
type BedrockService struct {
	runtime  converseAPI
	agent    retrieveAPI
	identity callerIdentityAPI
}

// NewBedrockService builds the clients with SDK retries disabled: every
// remote call is attempted exactly once within the turn deadline.
func NewBedrockService(ctx context.Context, region string) (*BedrockService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &BedrockService{
		runtime:  bedrockruntime.NewFromConfig(cfg),
		agent:    bedrockagentruntime.NewFromConfig(cfg),
		identity: sts.NewFromConfig(cfg),
	}, nil
}

// GenerateText calls the Converse API with one user message and returns the
// first text block of the reply.
func (s *BedrockService) GenerateText(ctx context.Context, req models.GenerationRequest) (string, error) {
	out, err := s.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.ModelID),
		Messages: []runtimetypes.Message{
			{
				Role: runtimetypes.ConversationRoleUser,
				Content: []runtimetypes.ContentBlock{
					&runtimetypes.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: &runtimetypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.MaxOutputTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
			TopP:        aws.Float32(float32(req.TopP)),
		},
	})
	if err != nil {
		return "", classifyAWSError("generation", err)
	}

	msg, ok := out.Output.(*runtimetypes.ConverseOutputMemberMessage)
	if !ok {
		return "", newRemoteError("generation", CodeRemote, "Bedrock returned no message", nil)
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*runtimetypes.ContentBlockMemberText); ok {
			return text.Value, nil
		}
	}
	return "", newRemoteError("generation", CodeRemote, "Bedrock returned no text content", nil)
}

// SearchPassages runs one vector search against a Bedrock knowledge base.
func (s *BedrockService) SearchPassages(ctx context.Context, knowledgeBaseID, query string, topK int) ([]models.RetrievedPassage, error) {
	out, err := s.agent.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		RetrievalQuery:  &agenttypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &agenttypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &agenttypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(topK)),
			},
		},
	})
	if err != nil {
		return nil, classifyAWSError("retrieval", err)
	}

	passages := make([]models.RetrievedPassage, 0, len(out.RetrievalResults))
	for _, r := range out.RetrievalResults {
		p := models.RetrievedPassage{Metadata: map[string]any{}}
		if r.Content != nil {
			p.Text = aws.ToString(r.Content.Text)
		}
		p.Score = aws.ToFloat64(r.Score)
		if r.Location != nil && r.Location.S3Location != nil {
			p.SourceURI = aws.ToString(r.Location.S3Location.Uri)
		}
		for key, doc := range r.Metadata {
			if doc == nil {
				continue
			}
			var v any
			if err := doc.UnmarshalSmithyDocument(&v); err == nil {
				p.Metadata[key] = v
			}
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// ProbeIdentity calls STS GetCallerIdentity.
func (s *BedrockService) ProbeIdentity(ctx context.Context) (string, error) {
	out, err := s.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", classifyAWSError("identity", err)
	}
	return aws.ToString(out.Arn), nil
}

func classifyAWSError(service string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return newRemoteError(service, CodeRemote, "AWS call failed", err)
	}

	switch apiErr.ErrorCode() {
	case "UnrecognizedClientException", "InvalidClientTokenId", "ExpiredTokenException",
		"ExpiredToken", "InvalidSignatureException", "IncompleteSignature":
		return newRemoteError(service, CodeAuthentication, "AWS rejected the credentials", err)
	case "AccessDeniedException", "AccessDenied":
		return newRemoteError(service, CodeAccessDenied, "AWS denied access", err)
	case "ResourceNotFoundException", "NotFoundException":
		return newRemoteError(service, CodeNotFound, "AWS resource not found", err)
	case "ValidationException":
		return newRemoteError(service, CodeInvalidRequest, "AWS rejected the request", err)
	}
	return newRemoteError(service, CodeRemote, "AWS call failed: "+apiErr.ErrorCode(), err)
}
