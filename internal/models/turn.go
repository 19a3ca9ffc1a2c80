package models

import "github.com/google/uuid"

// Category is the label the classifier assigns to an utterance.
type Category string

const (
	CategoryArchitecture     Category = "Category A"
	CategoryDisallowed       Category = "Category B"
	CategoryOffTopic         Category = "Category C"
	CategoryInstructionProbe Category = "Category D"
	CategoryInDomain         Category = "Category E"
	CategoryUnknown          Category = "unknown"
)

var categories = []Category{
	CategoryArchitecture,
	CategoryDisallowed,
	CategoryOffTopic,
	CategoryInstructionProbe,
	CategoryInDomain,
}

// ParseCategory maps a raw classifier reply onto a category. The reply is
// case-folded and trimmed; anything else is CategoryUnknown.
func ParseCategory(reply string) Category {
	normalized := normalizeLabel(reply)
	for _, c := range categories {
		if normalized == normalizeLabel(string(c)) {
			return c
		}
	}
	return CategoryUnknown
}

// Outcome describes how a turn ended.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeDeclined  Outcome = "declined"
	OutcomeNoMatches Outcome = "no_matches"
	OutcomeOffline   Outcome = "offline"
)

// TurnRequest carries one user utterance plus the session settings that apply
// to it.
type TurnRequest struct {
	SessionID uuid.UUID
	UserText  string
	Settings  SessionSettings
}

type TurnResult struct {
	Reply    string
	Outcome  Outcome
	Category Category
	Passages []RetrievedPassage
	Prompt   string
}
