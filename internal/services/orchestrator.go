package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"machinery-assistant/internal/metrics"
	"machinery-assistant/internal/models"
)

// DeclineMessage is returned for every utterance the classifier rejects.
const DeclineMessage = "I specialize in heavy machinery equipment. Please ask about bulldozers, excavators, dump trucks, forklifts, mobile cranes, or related construction equipment."

// DemoContext is the built-in equipment description used when no knowledge
// base is attached.
const DemoContext = `You are a helpful assistant specializing in heavy machinery and construction equipment.
You have detailed knowledge about these specific equipment models and their spec sheets:

1. Bulldozer BD850 - Heavy-duty bulldozer for earthmoving operations
2. Dump Truck DT1000 - Large capacity dump truck for material transport
3. Excavator X950 - Hydraulic excavator for digging and material handling
4. Forklift FL250 - Industrial forklift for warehouse and construction use
5. Mobile Crane MC750 - Mobile crane for lifting and positioning heavy loads

When users ask about these specific models, provide detailed technical information.
For other equipment, provide general but accurate information about specifications, operations, maintenance, and safety.`

const noMatchesMessage = "I couldn't find specific information about that in the knowledge base documents. The knowledge base contains specifications for the BD850 Bulldozer, DT1000 Dump Truck, X950 Excavator, FL250 Forklift, and MC750 Mobile Crane. Please ask about these specific models or general heavy machinery topics."

const offlineDemoMessage = `**Heavy Machinery Assistant (offline overview)**

Live answers are unavailable because no cloud credentials are configured. Here is what the equipment catalogue covers:

- **BD850 Bulldozer**: 850HP, GPS-guided blade, advanced hydraulics
- **DT1000 Dump Truck**: 100-ton capacity, off-road capable
- **X950 Excavator**: 95-ton class, 360° rotation, precision controls
- **FL250 Forklift**: 2.5-ton lift capacity, warehouse and construction use
- **MC750 Mobile Crane**: 75-ton capacity, telescopic boom, all-terrain

Configure credentials to get generated answers for your question.`

const offlineKnowledgeBaseMessage = "A knowledge base is configured, but live answers need valid cloud credentials. Configure credentials, or switch back to demo mode."

type Gate interface {
	Categorize(ctx context.Context, utterance, modelID string) (models.Category, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query, knowledgeBaseID string, topK int) ([]models.RetrievedPassage, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt, modelID string, temperature, topP float64) (string, error)
}

// StatusPublisher receives turn progress events for the UI.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, sessionID uuid.UUID, status models.TurnStatus)
}

type OrchestratorOptions struct {
	TopK            int
	MaxContextChars int
	TurnTimeout     time.Duration
}

// ChatOrchestrator runs one turn: classify, build context, assemble the
// prompt, generate. No state survives between turns.
type ChatOrchestrator struct {
	gate        Gate
	retriever   Retriever
	generator   Generator
	publisher   StatusPublisher
	credentials CredentialStatus
	opts        OrchestratorOptions
}

func NewChatOrchestrator(
	gate Gate,
	retriever Retriever,
	generator Generator,
	publisher StatusPublisher,
	credentials CredentialStatus,
	opts OrchestratorOptions,
) *ChatOrchestrator {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 60 * time.Second
	}
	return &ChatOrchestrator{
		gate:        gate,
		retriever:   retriever,
		generator:   generator,
		publisher:   publisher,
		credentials: credentials,
		opts:        opts,
	}
}

func (o *ChatOrchestrator) Credentials() CredentialStatus {
	return o.credentials
}

// Answer runs a single turn. Remote failures are returned as errors, never
// replaced with demo content.
func (o *ChatOrchestrator) Answer(ctx context.Context, req models.TurnRequest) (*models.TurnResult, error) {
	if strings.TrimSpace(req.UserText) == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "must not be empty"}}
	}
	if !req.Settings.Mode.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"mode": fmt.Sprintf("unknown mode %q", req.Settings.Mode)}}
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.TurnTimeout)
	defer cancel()

	turnID := uuid.New()
	result, err := o.answer(ctx, turnID, req)
	if err != nil {
		o.publish(ctx, req.SessionID, models.TurnStatus{TurnID: turnID, Stage: models.StageFailed, Detail: RemoteErrorCode(err)})
		metrics.RecordTurn(string(req.Settings.Mode), "error")
		return nil, err
	}

	metrics.RecordTurn(string(req.Settings.Mode), string(result.Outcome))
	return result, nil
}

func (o *ChatOrchestrator) answer(ctx context.Context, turnID uuid.UUID, req models.TurnRequest) (*models.TurnResult, error) {
	settings := req.Settings

	if !o.credentials.Available {
		reply := offlineDemoMessage
		if settings.Mode == models.ModeKnowledgeBase {
			reply = offlineKnowledgeBaseMessage
		}
		return &models.TurnResult{Reply: reply, Outcome: models.OutcomeOffline, Category: models.CategoryUnknown}, nil
	}

	// Classify
	o.publish(ctx, req.SessionID, models.TurnStatus{TurnID: turnID, Stage: models.StageClassifying})
	category, err := o.gate.Categorize(ctx, req.UserText, settings.ModelID)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if category != models.CategoryInDomain {
		o.publish(ctx, req.SessionID, models.TurnStatus{TurnID: turnID, Stage: models.StageDeclined})
		return &models.TurnResult{Reply: DeclineMessage, Outcome: models.OutcomeDeclined, Category: category}, nil
	}

	// BuildContext
	var (
		contextText string
		passages    []models.RetrievedPassage
	)
	switch settings.Mode {
	case models.ModeDemo:
		contextText = DemoContext
	case models.ModeKnowledgeBase:
		o.publish(ctx, req.SessionID, models.TurnStatus{TurnID: turnID, Stage: models.StageRetrieving})
		passages, err = o.retriever.Retrieve(ctx, req.UserText, settings.KnowledgeBaseID, o.opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("retrieve from knowledge base %s: %w", settings.KnowledgeBaseID, err)
		}
		if len(passages) == 0 {
			return &models.TurnResult{Reply: noMatchesMessage, Outcome: models.OutcomeNoMatches, Category: category, Passages: passages}, nil
		}
		passages = fitPassages(passages, o.opts.MaxContextChars)
		contextText = joinPassages(passages)
	}

	// Assemble
	prompt := assemblePrompt(contextText, req.UserText)

	// Generate
	o.publish(ctx, req.SessionID, models.TurnStatus{TurnID: turnID, Stage: models.StageGenerating, Sources: len(passages)})
	reply, err := o.generator.Generate(ctx, prompt, settings.ModelID, settings.Temperature, settings.TopP)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	o.publish(ctx, req.SessionID, models.TurnStatus{TurnID: turnID, Stage: models.StageCompleted, Sources: len(passages)})
	return &models.TurnResult{
		Reply:    reply,
		Outcome:  models.OutcomeAnswered,
		Category: category,
		Passages: passages,
		Prompt:   prompt,
	}, nil
}

func (o *ChatOrchestrator) publish(ctx context.Context, sessionID uuid.UUID, status models.TurnStatus) {
	if o.publisher == nil || sessionID == uuid.Nil {
		return
	}
	// Status events still go out after the turn deadline has fired.
	o.publisher.PublishStatus(context.WithoutCancel(ctx), sessionID, status)
}

func assemblePrompt(contextText, userText string) string {
	return contextText + "\n" + userText
}

func joinPassages(passages []models.RetrievedPassage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

// fitPassages keeps passages in rank order while their newline-joined text
// fits within budget characters. Lower-ranked passages are dropped first; a
// lone top passage that is too long is cut to the budget.
func fitPassages(passages []models.RetrievedPassage, budget int) []models.RetrievedPassage {
	if budget <= 0 || len(passages) == 0 {
		return passages
	}

	kept := make([]models.RetrievedPassage, 0, len(passages))
	used := 0
	for i, p := range passages {
		size := len(p.Text)
		if i > 0 {
			size++ // separator
		}
		if used+size > budget {
			break
		}
		kept = append(kept, p)
		used += size
	}

	if len(kept) == 0 {
		first := passages[0]
		first.Text = truncateRunes(first.Text, budget)
		kept = append(kept, first)
	}
	return kept
}

func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}
