package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
)

type failingAttempts struct {
	*progress.MemoryAttempts
}

func (failingAttempts) List(context.Context) ([]model.TrainingAttempt, error) {
	return nil, errors.New("log unavailable")
}

func seededAttempts() *progress.MemoryAttempts {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	return progress.NewMemoryAttempts(
		model.TrainingAttempt{ID: "1", VariationID: "ruy", VariationName: "Ruy Lopez: Main", ParentOpening: "Ruy Lopez", Category: model.CategoryBook, Success: true, DurationMs: 8000, AvgTimePerMoveMs: 2000, Timestamp: base},
		model.TrainingAttempt{ID: "2", VariationID: "ruy", VariationName: "Ruy Lopez: Main", ParentOpening: "Ruy Lopez", Category: model.CategoryBook, Success: false, DurationMs: 12000, AvgTimePerMoveMs: 3000, MistakeCount: 1, Timestamp: base.Add(time.Hour)},
		model.TrainingAttempt{ID: "3", VariationID: "fried", VariationName: "Fried Liver", ParentOpening: "Italian", Category: model.CategoryTrap, Success: true, DurationMs: 6000, AvgTimePerMoveMs: 1500, Timestamp: base.Add(48 * time.Hour)},
	)
}

func sized(m *Model) *Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(*Model)
}

func TestModelBuildsReport(t *testing.T) {
	m := sized(NewModel(seededAttempts(), model.StatsConfig{}))
	if m.loadErr != nil {
		t.Fatalf("unexpected error: %v", m.loadErr)
	}
	if m.report.Summary.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", m.report.Summary.Attempts)
	}
	if m.cfg.TrendWindow <= 0 {
		t.Fatalf("expected default trend window, got %d", m.cfg.TrendWindow)
	}
	view := m.View()
	if !strings.Contains(view, "Success rate") {
		t.Fatalf("expected summary cards in overview:\n%s", view)
	}
	rows := m.openings.Rows()
	if len(rows) != 2 || rows[0][0] != "Ruy Lopez" {
		t.Fatalf("unexpected opening rows: %v", rows)
	}
}

func TestModelTabsWrap(t *testing.T) {
	m := sized(NewModel(seededAttempts(), model.StatsConfig{}))
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.active != tabHistory {
		t.Fatalf("expected wrap to history tab, got %d", m.active)
	}
	if !strings.Contains(m.View(), "Fried Liver") {
		t.Fatalf("expected history to list recent attempts")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.active != tabOverview {
		t.Fatalf("expected wrap to overview, got %d", m.active)
	}
}

func TestModelFilterByCategory(t *testing.T) {
	m := sized(NewModel(seededAttempts(), model.StatsConfig{}))
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.editing {
		t.Fatalf("expected filter mode")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("trap")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing {
		t.Fatalf("expected filter to apply, error %q", m.formError)
	}
	if m.cfg.Category != model.CategoryTrap {
		t.Fatalf("expected trap filter, got %q", m.cfg.Category)
	}
	if m.report.Summary.Attempts != 1 {
		t.Fatalf("expected 1 trap attempt, got %d", m.report.Summary.Attempts)
	}
}

func TestModelFilterRejectsBadInput(t *testing.T) {
	m := sized(NewModel(seededAttempts(), model.StatsConfig{}))
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("yesterday")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing {
		t.Fatalf("expected filter form to stay open")
	}
	if !strings.Contains(m.formError, "since") {
		t.Fatalf("expected since error, got %q", m.formError)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.editing || m.cfg.Since != nil {
		t.Fatalf("expected cancel to keep previous filters")
	}
}

func TestModelReportsLoadError(t *testing.T) {
	m := sized(NewModel(failingAttempts{progress.NewMemoryAttempts()}, model.StatsConfig{}))
	if m.loadErr == nil || m.loadErr.Error() != "log unavailable" {
		t.Fatalf("expected load error, got %v", m.loadErr)
	}
	if !strings.Contains(m.View(), "Failed to load stats.") {
		t.Fatalf("expected failure placeholder in view")
	}
}

func TestModelTrendWindowKeys(t *testing.T) {
	m := sized(NewModel(seededAttempts(), model.StatsConfig{TrendWindow: 2}))
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	if m.cfg.TrendWindow != 1 {
		t.Fatalf("expected window to stop at 1, got %d", m.cfg.TrendWindow)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	if m.cfg.TrendWindow != 2 {
		t.Fatalf("expected window 2, got %d", m.cfg.TrendWindow)
	}
	if !strings.Contains(m.View(), "window=2") {
		t.Fatalf("expected filter summary to show the window")
	}
}

func TestFilterFieldsRoundTrip(t *testing.T) {
	since := time.Date(2026, 4, 5, 0, 0, 0, 0, time.Local)
	cfg := model.StatsConfig{Category: model.CategoryBook, Since: &since, Last: 7, TrendWindow: 4}
	var next model.StatsConfig
	for _, f := range newFilterFields() {
		if err := f.apply(f.show(cfg), &next); err != nil {
			t.Fatalf("apply %q: %v", f.input.Prompt, err)
		}
	}
	if next.Category != cfg.Category || next.Last != 7 || next.TrendWindow != 4 {
		t.Fatalf("unexpected config: %+v", next)
	}
	if next.Since == nil || !next.Since.Equal(since) {
		t.Fatalf("unexpected since: %v", next.Since)
	}
}
