package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/repertoire/internal/rules"
)

// moveChunk is one full move ("3. Bb5 a6") rendered with styles.
// width is the display width without ANSI sequences.
type moveChunk struct {
	text  string
	width int
}

func (c *moveChunk) push(styled, plain string) {
	if c.width > 0 {
		c.text += " "
		c.width++
	}
	c.text += styled
	c.width += runewidth.StringWidth(plain)
}

// moveChunks groups history into numbered full moves, highlighting the last ply.
func moveChunks(history []rules.Move) []moveChunk {
	chunks := make([]moveChunk, 0, (len(history)+1)/2)
	for i, m := range history {
		if i%2 == 0 {
			num := fmt.Sprintf("%d.", i/2+1)
			chunks = append(chunks, moveChunk{})
			chunks[len(chunks)-1].push(moveNumberStyle.Render(num), num)
		}
		style := playedStyle
		if i == len(history)-1 {
			style = lastMoveStyle
		}
		chunks[len(chunks)-1].push(style.Render(m.SAN), m.SAN)
	}
	return chunks
}

// layoutMoves packs whole moves into lines no wider than width.
// A move wider than width gets a line of its own.
func layoutMoves(chunks []moveChunk, width int) string {
	var lines []string
	var cur moveChunk
	for _, c := range chunks {
		if width > 0 && cur.width > 0 && cur.width+1+c.width > width {
			lines = append(lines, cur.text)
			cur = moveChunk{}
		}
		cur.push(c.text, strings.Repeat(" ", c.width))
	}
	if cur.width > 0 {
		lines = append(lines, cur.text)
	}
	return strings.Join(lines, "\n")
}

func moveList(history []rules.Move, width int) string {
	return layoutMoves(moveChunks(history), width)
}
