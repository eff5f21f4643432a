package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/repertoire/internal/model"
)

func TestTextTableAlignsColumns(t *testing.T) {
	tbl := newTable(left("Opening"), right("Attempts"), right("Rate"))
	tbl.add("Ruy Lopez", "12", "50.0%")
	tbl.add("Italian", "3", "100.0%")

	lines := tbl.lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Opening    Attempts    Rate" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Ruy Lopez        12   50.0%" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "Italian           3  100.0%" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestTextTableWideRunes(t *testing.T) {
	tbl := newTable(left("Name"), right("N"))
	tbl.add("象棋", "1")
	tbl.add("ab", "22")
	lines := tbl.lines()
	want := runewidth.StringWidth(lines[0])
	for _, line := range lines[1:] {
		if got := runewidth.StringWidth(line); got != want {
			t.Fatalf("expected display width %d, got %d for %q", want, got, line)
		}
	}
}

func TestRenderCatalogIncludesRecord(t *testing.T) {
	variations := []model.OpeningVariation{
		{ID: "fried", Name: "Fried Liver", ECOCode: "C57", PlayerSide: model.SideWhite, Moves: []string{"e4", "e5", "Nf3", "Nc6"}},
		{ID: "legal", Name: "Legal Trap", ECOCode: "C41", PlayerSide: model.SideWhite, Moves: []string{"e4", "e5"}},
	}
	attempts := []model.TrainingAttempt{
		{VariationID: "fried", Success: true},
		{VariationID: "fried", Success: false},
	}
	var buf bytes.Buffer
	if err := RenderCatalog(&buf, model.CategoryTrap, variations, attempts); err != nil {
		t.Fatalf("render catalog: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "trap (2)" {
		t.Fatalf("unexpected title: %q", lines[0])
	}
	if !strings.HasSuffix(lines[2], "2  50.0%") {
		t.Fatalf("expected attempts and rate on fried row: %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], "0      -") {
		t.Fatalf("expected placeholder rate on untried row: %q", lines[3])
	}
}
