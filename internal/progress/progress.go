// Package progress persists the attempt log and per-deck cycle progress.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/store"
)

// Storage keys.
const (
	AttemptsKey = "chess_trainer_analytics_v1"
	ProgressKey = "chess_trainer_progress_v1"
)

// AttemptRepository is an append-only log of training attempts.
type AttemptRepository interface {
	List(ctx context.Context) ([]model.TrainingAttempt, error)
	Append(ctx context.Context, attempt model.TrainingAttempt) (model.TrainingAttempt, error)
	Clear(ctx context.Context) error
}

// DeckProgressRepository tracks variations completed in the current cycle.
type DeckProgressRepository interface {
	Completed(ctx context.Context, category model.Category) ([]string, error)
	Add(ctx context.Context, category model.Category, id string) ([]string, error)
	Clear(ctx context.Context, category model.Category) error
}

func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Attempts stores the attempt log as one JSON array under AttemptsKey.
type Attempts struct {
	mu     sync.Mutex
	kv     store.KV
	logger *slog.Logger
	now    func() time.Time
}

var _ AttemptRepository = (*Attempts)(nil)

// NewAttempts returns an attempt log backed by kv.
func NewAttempts(kv store.KV, logger *slog.Logger) *Attempts {
	return &Attempts{kv: kv, logger: discardLogger(logger), now: time.Now}
}

// List returns every attempt in insertion order. Unreadable content yields an empty log.
func (a *Attempts) List(ctx context.Context) ([]model.TrainingAttempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	attempts, err := a.load(ctx)
	if err != nil {
		a.logger.Warn("failed to read attempt log", "err", err)
		return nil, nil
	}
	return attempts, nil
}

// Append assigns an ID and timestamp when missing and stores the attempt.
func (a *Attempts) Append(ctx context.Context, attempt model.TrainingAttempt) (model.TrainingAttempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = a.now()
	}
	stored, err := a.load(ctx)
	if err != nil {
		return attempt, fmt.Errorf("failed to read attempt log: %w", err)
	}
	data, err := json.Marshal(append(stored, attempt))
	if err != nil {
		return attempt, err
	}
	if err := a.kv.Put(ctx, AttemptsKey, data); err != nil {
		a.logger.Error("failed to save attempt", "id", attempt.ID, "err", err)
		return attempt, err
	}
	return attempt, nil
}

// Clear removes the whole log.
func (a *Attempts) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kv.Delete(ctx, AttemptsKey)
}

// load returns an error only when the store cannot be read.
// Malformed content is logged and reads as empty.
func (a *Attempts) load(ctx context.Context) ([]model.TrainingAttempt, error) {
	data, ok, err := a.kv.Get(ctx, AttemptsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var attempts []model.TrainingAttempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		a.logger.Warn("attempt log is malformed, treating as empty", "err", err)
		return nil, nil
	}
	return attempts, nil
}

// Deck stores both category sets as one JSON object under ProgressKey.
type Deck struct {
	mu     sync.Mutex
	kv     store.KV
	logger *slog.Logger
}

var _ DeckProgressRepository = (*Deck)(nil)

// NewDeck returns deck progress backed by kv.
func NewDeck(kv store.KV, logger *slog.Logger) *Deck {
	return &Deck{kv: kv, logger: discardLogger(logger)}
}

// Completed returns the IDs completed in the current cycle for category.
func (d *Deck) Completed(ctx context.Context, category model.Category) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.load(ctx)
	if err != nil {
		d.logger.Warn("failed to read deck progress", "err", err)
		return nil, nil
	}
	return append([]string(nil), p.IDs(category)...), nil
}

// Add records id as completed. Adding an ID twice is a no-op.
func (d *Deck) Add(ctx context.Context, category model.Category, id string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck progress: %w", err)
	}
	ids := p.IDs(category)
	for _, existing := range ids {
		if existing == id {
			return append([]string(nil), ids...), nil
		}
	}
	ids = append(ids, id)
	p.SetIDs(category, ids)
	if err := d.save(ctx, p); err != nil {
		return nil, err
	}
	return append([]string(nil), ids...), nil
}

// Clear empties the set for category.
func (d *Deck) Clear(ctx context.Context, category model.Category) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read deck progress: %w", err)
	}
	p.SetIDs(category, []string{})
	return d.save(ctx, p)
}

func (d *Deck) save(ctx context.Context, p model.DeckProgress) error {
	if p.Book == nil {
		p.Book = []string{}
	}
	if p.Trap == nil {
		p.Trap = []string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := d.kv.Put(ctx, ProgressKey, data); err != nil {
		d.logger.Error("failed to save deck progress", "err", err)
		return err
	}
	return nil
}

func (d *Deck) load(ctx context.Context) (model.DeckProgress, error) {
	data, ok, err := d.kv.Get(ctx, ProgressKey)
	if err != nil {
		return model.DeckProgress{}, err
	}
	if !ok {
		return model.DeckProgress{}, nil
	}
	var p model.DeckProgress
	if err := json.Unmarshal(data, &p); err != nil {
		d.logger.Warn("deck progress is malformed, treating as empty", "err", err)
		return model.DeckProgress{}, nil
	}
	return p, nil
}
