package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/repertoire/internal/model"
)

// MemoryAttempts is an AttemptRepository held in process memory.
type MemoryAttempts struct {
	mu       sync.Mutex
	attempts []model.TrainingAttempt
}

var _ AttemptRepository = (*MemoryAttempts)(nil)

// NewMemoryAttempts returns a log seeded with attempts.
func NewMemoryAttempts(attempts ...model.TrainingAttempt) *MemoryAttempts {
	return &MemoryAttempts{attempts: append([]model.TrainingAttempt(nil), attempts...)}
}

// List returns a copy of the log.
func (m *MemoryAttempts) List(context.Context) ([]model.TrainingAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TrainingAttempt(nil), m.attempts...), nil
}

// Append adds an attempt, assigning an ID and timestamp when missing.
func (m *MemoryAttempts) Append(_ context.Context, attempt model.TrainingAttempt) (model.TrainingAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}
	m.attempts = append(m.attempts, attempt)
	return attempt, nil
}

// Clear drops every attempt.
func (m *MemoryAttempts) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = nil
	return nil
}

// MemoryDeck is a DeckProgressRepository held in process memory.
type MemoryDeck struct {
	mu  sync.Mutex
	ids map[model.Category][]string
}

var _ DeckProgressRepository = (*MemoryDeck)(nil)

// NewMemoryDeck returns empty deck progress.
func NewMemoryDeck() *MemoryDeck {
	return &MemoryDeck{ids: map[model.Category][]string{}}
}

// Completed returns the IDs completed for category.
func (m *MemoryDeck) Completed(_ context.Context, category model.Category) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids[category]...), nil
}

// Add records id once.
func (m *MemoryDeck) Add(_ context.Context, category model.Category, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ids[category] {
		if existing == id {
			return append([]string(nil), m.ids[category]...), nil
		}
	}
	m.ids[category] = append(m.ids[category], id)
	return append([]string(nil), m.ids[category]...), nil
}

// Clear empties the set for category.
func (m *MemoryDeck) Clear(_ context.Context, category model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, category)
	return nil
}
