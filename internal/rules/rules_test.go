package rules

import (
	"errors"
	"testing"

	"github.com/verte-zerg/repertoire/internal/model"
)

func TestPlaySANSequence(t *testing.T) {
	b := NewBoard()
	for _, san := range []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Bxc6", "dxc6", "O-O", "f6"} {
		if _, err := b.PlaySAN(san); err != nil {
			t.Fatalf("play %s: %v", san, err)
		}
	}
	want := "r1bqkbnr/1pp3pp/p1p2p2/4p3/4P3/5N2/PPPP1PPP/RNBQ1RK1 w kq - 0 6"
	if b.FEN() != want {
		t.Fatalf("unexpected fen:\n got %s\nwant %s", b.FEN(), want)
	}
	if b.Ply() != 10 || b.Turn() != model.SideWhite {
		t.Fatalf("unexpected ply/turn: %d %s", b.Ply(), b.Turn())
	}
}

func TestCastleCoordinatesMatchSAN(t *testing.T) {
	b := NewBoard()
	for _, san := range []string{"e4", "e5", "Nf3", "Nc6", "Bc4", "Bc5"} {
		if _, err := b.PlaySAN(san); err != nil {
			t.Fatalf("play %s: %v", san, err)
		}
	}
	expected, err := b.ParseSAN("O-O")
	if err != nil {
		t.Fatalf("parse castle: %v", err)
	}
	dragged, err := b.Resolve("e1", "g1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !expected.SameSquares(dragged) {
		t.Fatalf("castle mismatch: %+v vs %+v", expected, dragged)
	}
	if expected.UCI != "e1g1" {
		t.Fatalf("unexpected uci %q", expected.UCI)
	}
	if b.Ply() != 6 {
		t.Fatalf("resolve must not commit, ply=%d", b.Ply())
	}
}

func TestParseAcceptsBothNotations(t *testing.T) {
	b := NewBoard()
	a, err := b.Parse("Nf3")
	if err != nil {
		t.Fatalf("parse san: %v", err)
	}
	c, err := b.Parse("g1f3")
	if err != nil {
		t.Fatalf("parse uci: %v", err)
	}
	if !a.SameSquares(c) || a.SAN != "Nf3" || c.UCI != "g1f3" {
		t.Fatalf("unexpected moves: %+v %+v", a, c)
	}
	if _, err := b.Parse("Nf4"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := b.Parse("e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestCheckSuffixIgnored(t *testing.T) {
	b := NewBoard()
	for _, san := range []string{"e4", "d5", "exd5", "Qxd5", "Nc3"} {
		if _, err := b.PlaySAN(san); err != nil {
			t.Fatalf("play %s: %v", san, err)
		}
	}
	if _, err := b.ParseSAN("Qe5"); err != nil {
		t.Fatalf("parse without suffix: %v", err)
	}
	m, err := b.ParseSAN("Qe5+")
	if err != nil {
		t.Fatalf("parse with suffix: %v", err)
	}
	if m.From != "d5" || m.To != "e5" {
		t.Fatalf("unexpected move %+v", m)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	b, err := FromFEN("8/4P3/8/8/8/8/k7/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	m, err := b.Resolve("e7", "e8", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m.Promotion != "q" || m.UCI != "e7e8q" {
		t.Fatalf("expected queen promotion, got %+v", m)
	}
	n, err := b.ParseUCI("e7e8n")
	if err != nil || n.Promotion != "n" {
		t.Fatalf("expected knight promotion, got %+v %v", n, err)
	}
}

func TestUndo(t *testing.T) {
	b := NewBoard()
	start := b.FEN()
	if b.Undo() {
		t.Fatalf("undo at start must fail")
	}
	if _, err := b.PlayUCI("e2e4"); err != nil {
		t.Fatalf("play: %v", err)
	}
	clone := b.Clone()
	if !b.Undo() || b.FEN() != start {
		t.Fatalf("undo did not restore start position")
	}
	if clone.Ply() != 1 {
		t.Fatalf("clone must be independent")
	}
}

func TestSideToMove(t *testing.T) {
	if SideToMove("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1") != model.SideBlack {
		t.Fatalf("expected black to move")
	}
	if SideToMove("garbage") != model.SideWhite {
		t.Fatalf("expected white default")
	}
}

func TestGrid(t *testing.T) {
	grid := NewBoard().Grid()
	if grid[0][4].Piece != 'K' || grid[0][4].White {
		t.Fatalf("expected black king on e8, got %+v", grid[0][4])
	}
	if grid[7][3].Piece != 'Q' || !grid[7][3].White {
		t.Fatalf("expected white queen on d1, got %+v", grid[7][3])
	}
	if !grid[4][4].Empty {
		t.Fatalf("expected e4 empty")
	}
}
