// Package trainer ties variation selection to the attempt log and deck progress.
package trainer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/verte-zerg/repertoire/internal/drill"
	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
	"github.com/verte-zerg/repertoire/internal/selection"
)

// Outcome describes what a finished drill changed.
type Outcome struct {
	Attempt       model.TrainingAttempt
	CycleComplete bool
}

// Trainer records drill results and hands out the next variation.
type Trainer struct {
	attempts progress.AttemptRepository
	deck     progress.DeckProgressRepository
	selector *selection.Engine
	logger   *slog.Logger
}

// New returns a Trainer. A nil logger discards output.
func New(attempts progress.AttemptRepository, deck progress.DeckProgressRepository, selector *selection.Engine, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Trainer{attempts: attempts, deck: deck, selector: selector, logger: logger}
}

// Next returns the variation to drill in mode.
func (t *Trainer) Next(ctx context.Context, mode model.Mode, category model.Category) (model.OpeningVariation, error) {
	return t.selector.Next(ctx, mode, category)
}

// Pick jumps to a specific variation.
func (t *Trainer) Pick(category model.Category, id string) (model.OpeningVariation, error) {
	return t.selector.Pick(category, id)
}

// Finish appends attempt to the log and, for scripted drills, updates deck progress.
// Sparring attempts are logged only.
func (t *Trainer) Finish(ctx context.Context, attempt model.TrainingAttempt) (Outcome, error) {
	stored, err := t.attempts.Append(ctx, attempt)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to record attempt: %w", err)
	}
	out := Outcome{Attempt: stored}
	t.logger.Debug("attempt recorded",
		"variation", stored.VariationID,
		"success", stored.Success,
		"mistakes", stored.MistakeCount,
		"duration_ms", stored.DurationMs)
	if stored.VariationID == drill.SparringID {
		return out, nil
	}
	done, err := t.selector.RecordOutcome(ctx, stored.VariationID, stored.Category, stored.Success)
	if err != nil {
		return out, err
	}
	out.CycleComplete = done
	return out, nil
}

// Completed returns the IDs completed in the current cycle of category.
func (t *Trainer) Completed(ctx context.Context, category model.Category) ([]string, error) {
	return t.deck.Completed(ctx, category)
}

// ResetDeck clears cycle progress for category.
func (t *Trainer) ResetDeck(ctx context.Context, category model.Category) error {
	if err := t.deck.Clear(ctx, category); err != nil {
		return fmt.Errorf("failed to reset deck: %w", err)
	}
	return nil
}

// ClearHistory deletes the whole attempt log.
func (t *Trainer) ClearHistory(ctx context.Context) error {
	if err := t.attempts.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Attempts returns the full attempt log.
func (t *Trainer) Attempts(ctx context.Context) ([]model.TrainingAttempt, error) {
	return t.attempts.List(ctx)
}
