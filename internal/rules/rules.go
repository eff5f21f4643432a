// Package rules adapts the chess rule engine to the trainer's needs.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/notnil/chess"

	"github.com/verte-zerg/repertoire/internal/model"
)

// ErrIllegalMove is returned when input maps to no legal transition.
var ErrIllegalMove = errors.New("illegal move")

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Move is a resolved legal move.
type Move struct {
	From      string
	To        string
	Promotion string
	SAN       string
	UCI       string
}

// SameSquares reports whether two moves share origin, destination and promotion.
func (m Move) SameSquares(other Move) bool {
	return m.From == other.From && m.To == other.To && m.Promotion == other.Promotion
}

// Board is a position with undo history.
type Board struct {
	history []*chess.Position
	played  []Move
}

// NewBoard returns a board at the standard starting position.
func NewBoard() *Board {
	return &Board{history: []*chess.Position{chess.NewGame().Position()}}
}

// FromFEN returns a board at the given position.
func FromFEN(fen string) (*Board, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid fen: %w", err)
	}
	return &Board{history: []*chess.Position{chess.NewGame(opt).Position()}}, nil
}

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	return &Board{
		history: append([]*chess.Position(nil), b.history...),
		played:  append([]Move(nil), b.played...),
	}
}

func (b *Board) pos() *chess.Position {
	return b.history[len(b.history)-1]
}

// FEN returns the current position.
func (b *Board) FEN() string {
	return b.pos().String()
}

// Turn returns the side to move.
func (b *Board) Turn() model.Side {
	if b.pos().Turn() == chess.Black {
		return model.SideBlack
	}
	return model.SideWhite
}

// Ply returns how many moves have been played on this board.
func (b *Board) Ply() int {
	return len(b.played)
}

// History returns the moves played so far.
func (b *Board) History() []Move {
	return append([]Move(nil), b.played...)
}

// LastMove returns the most recent move, if any.
func (b *Board) LastMove() (Move, bool) {
	if len(b.played) == 0 {
		return Move{}, false
	}
	return b.played[len(b.played)-1], true
}

// GameOver reports whether the side to move has no legal moves.
func (b *Board) GameOver() bool {
	return len(b.pos().ValidMoves()) == 0
}

// LegalMoves lists every legal move in the current position.
func (b *Board) LegalMoves() []Move {
	pos := b.pos()
	valid := pos.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, m := range valid {
		out = append(out, describe(pos, m))
	}
	return out
}

// Parse resolves SAN or coordinate input without playing it.
// Coordinate input without a promotion piece promotes to a queen.
func (b *Board) Parse(input string) (Move, error) {
	input = strings.TrimSpace(input)
	if uciPattern.MatchString(strings.ToLower(input)) {
		if m, err := b.ParseUCI(input); err == nil {
			return m, nil
		}
	}
	return b.ParseSAN(input)
}

// ParseSAN resolves a SAN string against the current position.
func (b *Board) ParseSAN(san string) (Move, error) {
	want := normalizeSAN(san)
	if want == "" {
		return Move{}, fmt.Errorf("%w: empty", ErrIllegalMove)
	}
	pos := b.pos()
	for _, m := range pos.ValidMoves() {
		got := normalizeSAN(chess.AlgebraicNotation{}.Encode(pos, m))
		if got == want || got == want+"=Q" {
			return describe(pos, m), nil
		}
	}
	return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, san)
}

// ParseUCI resolves coordinate notation against the current position.
func (b *Board) ParseUCI(uci string) (Move, error) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if !uciPattern.MatchString(uci) {
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	promo := ""
	if len(uci) == 5 {
		promo = uci[4:]
	}
	return b.Resolve(uci[0:2], uci[2:4], promo)
}

// Resolve turns a from/to square pair into a legal move without playing it.
func (b *Board) Resolve(from, to, promo string) (Move, error) {
	pos := b.pos()
	var fallback *chess.Move
	for _, m := range pos.ValidMoves() {
		if m.S1().String() != from || m.S2().String() != to {
			continue
		}
		p := promoLetter(m.Promo())
		if p == promo {
			return describe(pos, m), nil
		}
		if promo == "" && p == "q" {
			fallback = m
		}
	}
	if fallback != nil {
		return describe(pos, fallback), nil
	}
	return Move{}, fmt.Errorf("%w: %s%s%s", ErrIllegalMove, from, to, promo)
}

// Play commits a move previously resolved on this position.
func (b *Board) Play(m Move) error {
	pos := b.pos()
	for _, vm := range pos.ValidMoves() {
		if vm.S1().String() == m.From && vm.S2().String() == m.To && promoLetter(vm.Promo()) == m.Promotion {
			b.history = append(b.history, pos.Update(vm))
			b.played = append(b.played, describe(pos, vm))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI)
}

// PlaySAN resolves and commits a SAN move.
func (b *Board) PlaySAN(san string) (Move, error) {
	m, err := b.ParseSAN(san)
	if err != nil {
		return Move{}, err
	}
	return m, b.Play(m)
}

// PlayUCI resolves and commits a coordinate move.
func (b *Board) PlayUCI(uci string) (Move, error) {
	m, err := b.ParseUCI(uci)
	if err != nil {
		return Move{}, err
	}
	return m, b.Play(m)
}

// Undo takes back the last move. It returns false at the initial position.
func (b *Board) Undo() bool {
	if len(b.played) == 0 {
		return false
	}
	b.history = b.history[:len(b.history)-1]
	b.played = b.played[:len(b.played)-1]
	return true
}

// SANToUCI converts a SAN move in the current position to coordinate notation.
func (b *Board) SANToUCI(san string) (string, error) {
	m, err := b.ParseSAN(san)
	if err != nil {
		return "", err
	}
	return m.UCI, nil
}

// UCIToSAN converts a coordinate move in the current position to SAN.
func (b *Board) UCIToSAN(uci string) (string, error) {
	m, err := b.ParseUCI(uci)
	if err != nil {
		return "", err
	}
	return m.SAN, nil
}

// Square describes the piece on a square for rendering.
type Square struct {
	Piece rune
	White bool
	Empty bool
}

// Grid returns the board ranks 8..1, files a..h.
func (b *Board) Grid() [8][8]Square {
	var grid [8][8]Square
	board := b.pos().Board()
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			sq := chess.NewSquare(chess.File(f), chess.Rank(7-r))
			p := board.Piece(sq)
			if p == chess.NoPiece {
				grid[r][f] = Square{Empty: true}
				continue
			}
			grid[r][f] = Square{Piece: pieceLetter(p.Type()), White: p.Color() == chess.White}
		}
	}
	return grid
}

func describe(pos *chess.Position, m *chess.Move) Move {
	return Move{
		From:      m.S1().String(),
		To:        m.S2().String(),
		Promotion: promoLetter(m.Promo()),
		SAN:       chess.AlgebraicNotation{}.Encode(pos, m),
		UCI:       chess.UCINotation{}.Encode(pos, m),
	}
}

func normalizeSAN(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "0-0-0", "O-O-O")
	s = strings.ReplaceAll(s, "0-0", "O-O")
	return strings.TrimRight(s, "+#!?")
}

func promoLetter(p chess.PieceType) string {
	switch p {
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	}
	return ""
}

func pieceLetter(p chess.PieceType) rune {
	switch p {
	case chess.King:
		return 'K'
	case chess.Queen:
		return 'Q'
	case chess.Rook:
		return 'R'
	case chess.Bishop:
		return 'B'
	case chess.Knight:
		return 'N'
	}
	return 'P'
}

// SideToMove reads the active color from a FEN string.
func SideToMove(fen string) model.Side {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return model.SideBlack
	}
	return model.SideWhite
}
