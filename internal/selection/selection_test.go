package selection

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/verte-zerg/repertoire/internal/catalog"
	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
)

type seqSource struct {
	values []float64
	idx    int
}

func (s *seqSource) Float64() float64 {
	v := s.values[s.idx%len(s.values)]
	s.idx++
	return v
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]model.OpeningVariation{
		{ID: "b", Name: "B", Moves: []string{"e4"}, Category: model.CategoryBook},
		{ID: "c", Name: "C", Moves: []string{"e4"}, Category: model.CategoryBook},
		{ID: "a", Name: "A", Moves: []string{"e4"}, Category: model.CategoryBook},
		{ID: "x", Name: "X", Moves: []string{"e4"}, Category: model.CategoryTrap},
		{ID: "y", Name: "Y", Moves: []string{"e4"}, Category: model.CategoryTrap},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestWeightBounds(t *testing.T) {
	if Weight(0) != 110 || Weight(1) != 10 {
		t.Fatalf("unexpected endpoints: %v %v", Weight(0), Weight(1))
	}
	prev := math.Inf(1)
	for r := 0.0; r <= 1.0; r += 0.05 {
		w := Weight(r)
		if w < 10 || w > 110 {
			t.Fatalf("weight %v out of bounds for r=%v", w, r)
		}
		if w >= prev {
			t.Fatalf("weight not strictly decreasing at r=%v", r)
		}
		prev = w
	}
}

func TestTrainingModeCyclesByName(t *testing.T) {
	ctx := context.Background()
	e := New(testCatalog(t), progress.NewMemoryAttempts(), progress.NewMemoryDeck(), Options{})
	want := []string{"A", "B", "C", "A"}
	for i, name := range want {
		v, err := e.Next(ctx, model.ModeTraining, model.CategoryBook)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if v.Name != name {
			t.Fatalf("step %d: expected %s, got %s", i, name, v.Name)
		}
	}
}

func TestTrainingModePick(t *testing.T) {
	ctx := context.Background()
	e := New(testCatalog(t), progress.NewMemoryAttempts(), progress.NewMemoryDeck(), Options{})
	v, err := e.Pick(model.CategoryBook, "c")
	if err != nil || v.ID != "c" {
		t.Fatalf("pick: %v %v", v, err)
	}
	v, _ = e.Next(ctx, model.ModeTraining, model.CategoryBook)
	if v.ID != "a" {
		t.Fatalf("expected wrap to a after pick c, got %s", v.ID)
	}
	if _, err := e.Pick(model.CategoryBook, "x"); !errors.Is(err, ErrUnknownVariation) {
		t.Fatalf("expected ErrUnknownVariation, got %v", err)
	}
}

func TestEmptyCategoryIsError(t *testing.T) {
	cat, err := catalog.New([]model.OpeningVariation{{ID: "a", Name: "A", Moves: []string{"e4"}}})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	e := New(cat, progress.NewMemoryAttempts(), progress.NewMemoryDeck(), Options{})
	for _, mode := range []model.Mode{model.ModeTraining, model.ModeChallenge} {
		if _, err := e.Next(context.Background(), mode, model.CategoryTrap); !errors.Is(err, catalog.ErrEmptyCategory) {
			t.Fatalf("%s: expected ErrEmptyCategory, got %v", mode, err)
		}
	}
}

func TestChallengeDistribution(t *testing.T) {
	ctx := context.Background()
	attempts := progress.NewMemoryAttempts(model.TrainingAttempt{VariationID: "y", Success: true})
	deck := progress.NewMemoryDeck()
	e := New(testCatalog(t), attempts, deck, Options{Rand: rand.New(rand.NewSource(42))})

	counts := map[string]int{}
	const draws = 10000
	for i := 0; i < draws; i++ {
		e.lastShown = map[model.Category]string{}
		v, err := e.Next(ctx, model.ModeChallenge, model.CategoryTrap)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		counts[v.ID]++
	}
	share := float64(counts["x"]) / draws
	if share < 0.89 || share > 0.94 {
		t.Fatalf("expected x share near 0.917, got %.3f", share)
	}
}

func TestChallengeAntiRepeatDamping(t *testing.T) {
	ctx := context.Background()
	e := New(testCatalog(t), progress.NewMemoryAttempts(), progress.NewMemoryDeck(), Options{})
	e.lastShown[model.CategoryTrap] = "x"
	candidates, err := e.challengeCandidates(ctx, model.CategoryTrap)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	weights := map[string]float64{}
	for _, c := range candidates {
		weights[c.variation.ID] = c.weight
	}
	if math.Abs(weights["x"]-11) > 1e-9 || weights["y"] != 110 {
		t.Fatalf("unexpected weights: %v", weights)
	}
}

func TestChallengeNoDampingForSingleCandidate(t *testing.T) {
	ctx := context.Background()
	deck := progress.NewMemoryDeck()
	if _, err := deck.Add(ctx, model.CategoryTrap, "y"); err != nil {
		t.Fatalf("add: %v", err)
	}
	e := New(testCatalog(t), progress.NewMemoryAttempts(), deck, Options{})
	e.lastShown[model.CategoryTrap] = "x"
	candidates, err := e.challengeCandidates(ctx, model.CategoryTrap)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].weight != 110 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}

func TestChallengeSkipsCompleted(t *testing.T) {
	ctx := context.Background()
	deck := progress.NewMemoryDeck()
	if _, err := deck.Add(ctx, model.CategoryTrap, "x"); err != nil {
		t.Fatalf("add: %v", err)
	}
	e := New(testCatalog(t), progress.NewMemoryAttempts(), deck, Options{Rand: &seqSource{values: []float64{0, 0.5, 0.99}}})
	for i := 0; i < 3; i++ {
		v, err := e.Next(ctx, model.ModeChallenge, model.CategoryTrap)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if v.ID != "y" {
			t.Fatalf("expected only y, got %s", v.ID)
		}
	}
}

func TestChallengeRollsOverFullDeck(t *testing.T) {
	ctx := context.Background()
	deck := progress.NewMemoryDeck()
	_, _ = deck.Add(ctx, model.CategoryTrap, "x")
	_, _ = deck.Add(ctx, model.CategoryTrap, "y")
	e := New(testCatalog(t), progress.NewMemoryAttempts(), deck, Options{Rand: &seqSource{values: []float64{0.99}}})
	v, err := e.Next(ctx, model.ModeChallenge, model.CategoryTrap)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if v.ID != "y" {
		t.Fatalf("expected draw from full pool, got %s", v.ID)
	}
	if ids, _ := deck.Completed(ctx, model.CategoryTrap); len(ids) != 0 {
		t.Fatalf("expected deck cleared, got %v", ids)
	}
}

func TestRecordOutcomeCycle(t *testing.T) {
	ctx := context.Background()
	deck := progress.NewMemoryDeck()
	e := New(testCatalog(t), progress.NewMemoryAttempts(), deck, Options{})

	done, err := e.RecordOutcome(ctx, "x", model.CategoryTrap, false)
	if err != nil || done {
		t.Fatalf("failure must not progress: %v %v", done, err)
	}
	if ids, _ := deck.Completed(ctx, model.CategoryTrap); len(ids) != 0 {
		t.Fatalf("failure must not add, got %v", ids)
	}
	done, err = e.RecordOutcome(ctx, "x", model.CategoryTrap, true)
	if err != nil || done {
		t.Fatalf("unexpected: %v %v", done, err)
	}
	done, err = e.RecordOutcome(ctx, "y", model.CategoryTrap, true)
	if err != nil || !done {
		t.Fatalf("expected cycle complete: %v %v", done, err)
	}
	if ids, _ := deck.Completed(ctx, model.CategoryTrap); len(ids) != 0 {
		t.Fatalf("expected deck cleared, got %v", ids)
	}
	candidates, err := e.challengeCandidates(ctx, model.CategoryTrap)
	if err != nil || len(candidates) != 2 {
		t.Fatalf("expected both variations again, got %d %v", len(candidates), err)
	}
	if _, err := e.RecordOutcome(ctx, "a", model.CategoryTrap, true); !errors.Is(err, ErrUnknownVariation) {
		t.Fatalf("expected ErrUnknownVariation, got %v", err)
	}
}

func TestDrawDegenerateFallsBackToFirst(t *testing.T) {
	e := New(testCatalog(t), progress.NewMemoryAttempts(), progress.NewMemoryDeck(), Options{Rand: &seqSource{values: []float64{0.7}}})
	got := e.draw([]candidate{{weight: 0}, {weight: 0}})
	if got != 0 {
		t.Fatalf("expected fallback to 0, got %d", got)
	}
}

func TestSuccessRates(t *testing.T) {
	rates := SuccessRates([]model.TrainingAttempt{
		{VariationID: "a", Success: true},
		{VariationID: "a", Success: false},
		{VariationID: "b", Success: true},
	})
	if rates["a"] != 0.5 || rates["b"] != 1 || rates["c"] != 0 {
		t.Fatalf("unexpected rates: %v", rates)
	}
}
