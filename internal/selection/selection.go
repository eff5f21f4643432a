// Package selection decides which opening variation to drill next.
package selection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
)

// Weight bounds for a variation with success rate r.
const (
	BaseWeight = 10.0
	SpanWeight = 100.0
)

// DefaultRepeatDamping scales the weight of the variation shown last.
const DefaultRepeatDamping = 0.1

// ErrUnknownVariation is returned by Pick for IDs outside the category.
var ErrUnknownVariation = errors.New("unknown variation")

// Source yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Catalog is the read side of the opening catalog.
type Catalog interface {
	ByCategory(category model.Category) ([]model.OpeningVariation, error)
}

// Options tune an Engine.
type Options struct {
	RepeatDamping float64
	Rand          Source
	Logger        *slog.Logger
}

// Engine selects variations in training or challenge mode.
type Engine struct {
	mu       sync.Mutex
	catalog  Catalog
	attempts progress.AttemptRepository
	deck     progress.DeckProgressRepository
	rnd      Source
	damping  float64
	logger   *slog.Logger

	cursor    map[model.Category]int
	lastShown map[model.Category]string
}

// New returns an Engine. Zero options fall back to defaults.
func New(catalog Catalog, attempts progress.AttemptRepository, deck progress.DeckProgressRepository, opts Options) *Engine {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.RepeatDamping <= 0 {
		opts.RepeatDamping = DefaultRepeatDamping
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		catalog:   catalog,
		attempts:  attempts,
		deck:      deck,
		rnd:       opts.Rand,
		damping:   opts.RepeatDamping,
		logger:    opts.Logger,
		cursor:    map[model.Category]int{},
		lastShown: map[model.Category]string{},
	}
}

// Weight maps a success rate in [0, 1] to a draw weight in [10, 110].
func Weight(rate float64) float64 {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return BaseWeight + SpanWeight*(1-rate)
}

// SuccessRates returns the fraction of successful attempts per variation.
func SuccessRates(attempts []model.TrainingAttempt) map[string]float64 {
	total := map[string]int{}
	wins := map[string]int{}
	for _, a := range attempts {
		total[a.VariationID]++
		if a.Success {
			wins[a.VariationID]++
		}
	}
	rates := make(map[string]float64, len(total))
	for id, n := range total {
		rates[id] = float64(wins[id]) / float64(n)
	}
	return rates
}

// Next returns the variation to drill.
// Training mode starts at the first entry by name and advances one entry per call.
// Challenge mode draws at random, favoring variations with weak history.
func (e *Engine) Next(ctx context.Context, mode model.Mode, category model.Category) (model.OpeningVariation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mode == model.ModeChallenge {
		return e.nextChallenge(ctx, category)
	}
	return e.nextTraining(category)
}

// Pick jumps training mode to a specific variation.
func (e *Engine) Pick(category model.Category, id string) (model.OpeningVariation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list, err := e.catalog.ByCategory(category)
	if err != nil {
		return model.OpeningVariation{}, err
	}
	for i, v := range list {
		if v.ID == id {
			e.cursor[category] = i
			e.lastShown[category] = v.ID
			return v, nil
		}
	}
	return model.OpeningVariation{}, fmt.Errorf("%w %q in %s", ErrUnknownVariation, id, category)
}

// LastShown returns the ID most recently returned for category.
func (e *Engine) LastShown(category model.Category) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastShown[category]
}

func (e *Engine) nextTraining(category model.Category) (model.OpeningVariation, error) {
	list, err := e.catalog.ByCategory(category)
	if err != nil {
		return model.OpeningVariation{}, err
	}
	idx, started := e.cursor[category]
	if started {
		idx = (idx + 1) % len(list)
	} else {
		idx = 0
	}
	e.cursor[category] = idx
	e.lastShown[category] = list[idx].ID
	return list[idx], nil
}

type candidate struct {
	variation model.OpeningVariation
	weight    float64
}

func (e *Engine) nextChallenge(ctx context.Context, category model.Category) (model.OpeningVariation, error) {
	candidates, err := e.challengeCandidates(ctx, category)
	if err != nil {
		return model.OpeningVariation{}, err
	}
	chosen := candidates[e.draw(candidates)].variation
	e.lastShown[category] = chosen.ID
	return chosen, nil
}

// challengeCandidates returns the weighted incomplete pool, rolling the cycle over when it is empty.
func (e *Engine) challengeCandidates(ctx context.Context, category model.Category) ([]candidate, error) {
	all, err := e.catalog.ByCategory(category)
	if err != nil {
		return nil, err
	}
	completed, err := e.deck.Completed(ctx, category)
	if err != nil {
		e.logger.Warn("failed to read deck progress", "category", category, "err", err)
		completed = nil
	}
	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}
	pool := make([]model.OpeningVariation, 0, len(all))
	for _, v := range all {
		if _, ok := done[v.ID]; !ok {
			pool = append(pool, v)
		}
	}
	if len(pool) == 0 {
		if err := e.deck.Clear(ctx, category); err != nil {
			e.logger.Warn("failed to clear deck progress", "category", category, "err", err)
		}
		pool = all
	}

	history, err := e.attempts.List(ctx)
	if err != nil {
		e.logger.Warn("failed to read attempt log", "err", err)
		history = nil
	}
	rates := SuccessRates(history)
	last := e.lastShown[category]
	candidates := make([]candidate, len(pool))
	for i, v := range pool {
		w := Weight(rates[v.ID])
		if v.ID == last && len(pool) > 1 {
			w *= e.damping
		}
		candidates[i] = candidate{variation: v, weight: w}
	}
	return candidates, nil
}

// draw picks an index by cumulative-weight roulette. Degenerate weights fall back to the first.
func (e *Engine) draw(candidates []candidate) int {
	total := 0.0
	for _, c := range candidates {
		if c.weight > 0 {
			total += c.weight
		}
	}
	if total <= 0 {
		return 0
	}
	r := e.rnd.Float64() * total
	acc := 0.0
	for i, c := range candidates {
		if c.weight <= 0 {
			continue
		}
		acc += c.weight
		if r <= acc {
			return i
		}
	}
	return 0
}

// RecordOutcome marks a successful variation complete for the cycle.
// It reports true when the cycle completed and the deck was cleared.
func (e *Engine) RecordOutcome(ctx context.Context, id string, category model.Category, success bool) (bool, error) {
	if !success {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	all, err := e.catalog.ByCategory(category)
	if err != nil {
		return false, err
	}
	members := make(map[string]struct{}, len(all))
	for _, v := range all {
		members[v.ID] = struct{}{}
	}
	if _, ok := members[id]; !ok {
		return false, fmt.Errorf("%w %q in %s", ErrUnknownVariation, id, category)
	}
	ids, err := e.deck.Add(ctx, category, id)
	if err != nil {
		return false, fmt.Errorf("failed to record progress: %w", err)
	}
	done := 0
	for _, completed := range ids {
		if _, ok := members[completed]; ok {
			done++
		}
	}
	if done < len(all) {
		return false, nil
	}
	if err := e.deck.Clear(ctx, category); err != nil {
		return true, fmt.Errorf("failed to reset deck: %w", err)
	}
	e.logger.Info("deck cycle complete", "category", category, "size", len(all))
	return true, nil
}
