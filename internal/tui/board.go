package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
)

const files = "abcdefgh"

var pieceGlyphs = map[rune]string{
	'K': "♚", 'Q': "♛", 'R': "♜", 'B': "♝", 'N': "♞", 'P': "♟",
}

var (
	lightSquare     = lipgloss.NewStyle().Background(lipgloss.Color("#B8A27A"))
	darkSquare      = lipgloss.NewStyle().Background(lipgloss.Color("#7A5C3A"))
	highlightSquare = lipgloss.NewStyle().Background(lipgloss.Color("#C89A3A"))
	whitePiece      = lipgloss.Color("#FFFFFF")
	blackPiece      = lipgloss.Color("#101010")
	coordStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// squareName returns the algebraic name of grid cell (row, col), row 0 being rank 8.
func squareName(row, col int) string {
	return string(files[col]) + string(rune('8'-row))
}

// renderBoard draws the position from the point of view of orientation.
// Squares in highlight are drawn in the accent color.
func renderBoard(b *rules.Board, orientation model.Side, highlight map[string]bool) string {
	grid := b.Grid()
	lines := make([]string, 0, 9)
	for i := 0; i < 8; i++ {
		row := i
		if orientation == model.SideBlack {
			row = 7 - i
		}
		var line strings.Builder
		line.WriteString(coordStyle.Render(string(rune('8'-row)) + " "))
		for j := 0; j < 8; j++ {
			col := j
			if orientation == model.SideBlack {
				col = 7 - j
			}
			line.WriteString(renderSquare(grid[row][col], (row+col)%2 == 0, highlight[squareName(row, col)]))
		}
		lines = append(lines, line.String())
	}
	var footer strings.Builder
	footer.WriteString("  ")
	for j := 0; j < 8; j++ {
		col := j
		if orientation == model.SideBlack {
			col = 7 - j
		}
		footer.WriteString(" " + string(files[col]) + " ")
	}
	lines = append(lines, coordStyle.Render(footer.String()))
	return strings.Join(lines, "\n")
}

func renderSquare(sq rules.Square, light, highlighted bool) string {
	style := darkSquare
	if light {
		style = lightSquare
	}
	if highlighted {
		style = highlightSquare
	}
	glyph := " "
	if !sq.Empty {
		glyph = pieceGlyphs[sq.Piece]
		if sq.White {
			style = style.Foreground(whitePiece)
		} else {
			style = style.Foreground(blackPiece)
		}
	}
	return style.Render(" " + runewidth.FillRight(glyph, 2))
}

// lastMoveSquares returns the origin and destination of the last move.
func lastMoveSquares(b *rules.Board) map[string]bool {
	m, ok := b.LastMove()
	if !ok {
		return nil
	}
	return map[string]bool{m.From: true, m.To: true}
}
