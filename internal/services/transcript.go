package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"machinery-assistant/internal/models"
)

// TranscriptStore keeps each session's turns for display. Nothing here is
// ever sent to a remote service, and it is lost when the process exits.
type TranscriptStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]models.ChatTurn
	maxTurns int
}

func NewTranscriptStore(maxTurns int) *TranscriptStore {
	return &TranscriptStore{
		sessions: make(map[uuid.UUID][]models.ChatTurn),
		maxTurns: maxTurns,
	}
}

func (s *TranscriptStore) Append(sessionID uuid.UUID, role models.Role, text string) models.ChatTurn {
	turn := models.ChatTurn{
		ID:        uuid.New(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], turn)
	if s.maxTurns > 0 && len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[sessionID] = turns
	return turn
}

// List returns a copy of the session's turns, oldest first.
func (s *TranscriptStore) List(sessionID uuid.UUID) []models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out
}

func (s *TranscriptStore) Clear(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}
