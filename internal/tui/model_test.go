package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/repertoire/internal/analysis"
	"github.com/verte-zerg/repertoire/internal/catalog"
	"github.com/verte-zerg/repertoire/internal/drill"
	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
	"github.com/verte-zerg/repertoire/internal/selection"
	"github.com/verte-zerg/repertoire/internal/trainer"
)

func newTestModel(t *testing.T, variations ...model.OpeningVariation) (*Model, *progress.MemoryAttempts) {
	t.Helper()
	cat, err := catalog.New(variations)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	attempts := progress.NewMemoryAttempts()
	deck := progress.NewMemoryDeck()
	tr := trainer.New(attempts, deck, selection.New(cat, attempts, deck, selection.Options{}), nil)
	m := NewModel(Options{
		Config:   model.Config{Mode: model.ModeTraining, Category: model.CategoryBook},
		Trainer:  tr,
		Session:  analysis.NewSession(nil, analysis.Options{}),
		DeckSize: cat.Count,
	})
	return m, attempts
}

func enterMove(m *Model, move string) tea.Cmd {
	m.input.SetValue(move)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestModelDrillFlow(t *testing.T) {
	m, attempts := newTestModel(t, model.OpeningVariation{ID: "W", Name: "White line", Moves: []string{"e4", "e5", "Nf3"}})
	if m.drill == nil || m.drill.State() != drill.AwaitingUserMove {
		t.Fatalf("expected drill awaiting the first move")
	}
	if cmd := enterMove(m, "e4"); cmd == nil {
		t.Fatalf("expected opponent move to be scheduled")
	}
	if m.status != "Correct!" {
		t.Fatalf("unexpected status %q", m.status)
	}
	m.Update(opponentMsg{seq: m.drill.Seq()})
	if m.drill.State() != drill.AwaitingUserMove || m.drill.Ply() != 2 {
		t.Fatalf("expected scripted reply, state %s ply %d", m.drill.State(), m.drill.Ply())
	}
	enterMove(m, "d4")
	if !strings.HasPrefix(m.status, "Incorrect!") {
		t.Fatalf("expected rejection, got %q", m.status)
	}
	enterMove(m, "Nf3")
	if m.drill.State() != drill.Completed {
		t.Fatalf("expected completion, got %s", m.drill.State())
	}
	logged, _ := attempts.List(context.Background())
	if len(logged) != 1 || logged[0].Success || logged[0].MistakeCount != 1 {
		t.Fatalf("unexpected attempt log %+v", logged)
	}
	if !strings.Contains(m.View(), "White line") {
		t.Fatalf("expected variation name in view")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.drill.State() != drill.AwaitingUserMove || m.drill.Ply() != 0 {
		t.Fatalf("expected the next drill to start")
	}
}

func TestModelIgnoresStaleOpponentTick(t *testing.T) {
	m, _ := newTestModel(t, model.OpeningVariation{ID: "W", Name: "White line", Moves: []string{"e4", "e5", "Nf3"}})
	enterMove(m, "e4")
	stale := m.drill.Seq()
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlZ})
	if m.drill.Ply() != 0 {
		t.Fatalf("expected undo to the start, got ply %d", m.drill.Ply())
	}
	m.Update(opponentMsg{seq: stale})
	if m.drill.Ply() != 0 {
		t.Fatalf("stale opponent move must be ignored")
	}
}

func TestModelOpponentFirstAndIllegalInput(t *testing.T) {
	m, _ := newTestModel(t, model.OpeningVariation{ID: "B", Name: "Black line", PlayerSide: model.SideBlack, Moves: []string{"e4", "e5"}})
	if m.drill.State() != drill.AwaitingOpponentMove {
		t.Fatalf("expected opponent to move first")
	}
	if m.startCmd == nil {
		t.Fatalf("expected the first opponent move to be scheduled")
	}
	m.Update(opponentMsg{seq: m.drill.Seq()})
	enterMove(m, "e2e5")
	if !strings.HasPrefix(m.status, "Illegal move") {
		t.Fatalf("expected illegal move status, got %q", m.status)
	}
	if m.drill.Mistakes() != 0 {
		t.Fatalf("illegal input must not count as a mistake")
	}
}

func TestModelSkipRecordsFailure(t *testing.T) {
	m, attempts := newTestModel(t, model.OpeningVariation{ID: "W", Name: "White line", Moves: []string{"e4", "e5", "Nf3"}})
	enterMove(m, "e4")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	logged, _ := attempts.List(context.Background())
	if len(logged) != 1 || logged[0].Success {
		t.Fatalf("expected a failed attempt, got %+v", logged)
	}
	if m.drill.Ply() != 0 {
		t.Fatalf("expected a fresh drill after skip")
	}
}

func TestModelEmptyCategory(t *testing.T) {
	m, _ := newTestModel(t, model.OpeningVariation{ID: "W", Name: "White line", Moves: []string{"e4"}})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if m.drill != nil || !strings.Contains(m.errMsg, "no variations") {
		t.Fatalf("expected empty category error, got %q", m.errMsg)
	}
}

func TestModelIgnoresStreamForOtherPosition(t *testing.T) {
	m, _ := newTestModel(t, model.OpeningVariation{ID: "W", Name: "White line", Moves: []string{"e4", "e5"}})
	eval := model.Evaluation{Kind: model.EvalCentipawn, Value: 40}
	m.Update(streamMsg{fen: "8/8/8/8/8/8/8/8 w - - 0 1", update: analysis.Update{Evaluation: &eval}})
	if m.eval != nil {
		t.Fatalf("stale stream update must be ignored")
	}
	m.Update(streamMsg{fen: m.drill.Board().FEN(), update: analysis.Update{Evaluation: &eval, Candidates: []string{"e2e4"}}})
	if m.eval == nil || m.eval.Value != 40 || len(m.candidates) != 1 {
		t.Fatalf("expected stream update applied, got %+v %v", m.eval, m.candidates)
	}
}

func TestModelUndoKeepsBlackDrillPlayable(t *testing.T) {
	m, _ := newTestModel(t, model.OpeningVariation{ID: "B", Name: "Black line", PlayerSide: model.SideBlack, Moves: []string{"e4", "e5", "Nf3", "Nc6"}})
	m.Update(opponentMsg{seq: m.drill.Seq()})
	if m.drill.State() != drill.AwaitingUserMove || m.drill.Ply() != 1 {
		t.Fatalf("expected the user to answer e4, state %s ply %d", m.drill.State(), m.drill.Ply())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlZ})
	if m.drill.State() != drill.AwaitingUserMove || m.drill.Ply() != 1 {
		t.Fatalf("undo before the first user move must leave the drill waiting for the user, state %s ply %d", m.drill.State(), m.drill.Ply())
	}
	enterMove(m, "e5")
	if m.status != "Correct!" {
		t.Fatalf("expected e5 to be accepted, got %q", m.status)
	}
}

func TestModelUndoAfterCompletionRecordsOnce(t *testing.T) {
	m, attempts := newTestModel(t, model.OpeningVariation{ID: "W", Name: "White line", Moves: []string{"e4", "e5", "Nf3"}})
	enterMove(m, "e4")
	m.Update(opponentMsg{seq: m.drill.Seq()})
	enterMove(m, "Nf3")
	if m.drill.State() != drill.Completed {
		t.Fatalf("expected completion, got %s", m.drill.State())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlZ})
	if m.drill.State() != drill.Completed {
		t.Fatalf("undo must not reopen a recorded drill, got %s", m.drill.State())
	}
	enterMove(m, "Nf3")
	logged, _ := attempts.List(context.Background())
	if len(logged) != 1 {
		t.Fatalf("expected one attempt for one drill, got %d", len(logged))
	}
}
