// Package tui provides the Bubble Tea drill and sparring screens.
package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/repertoire/internal/analysis"
	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
)

var (
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	correctStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7BC47F"))
	incorrectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	accentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	moveNumberStyle = footerStyle
	playedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	lastMoveStyle   = accentStyle.Underline(true)
	barWhiteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	barBlackStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))
)

const (
	sidePanelWidth = 44
	evalBarWidth   = 30
)

// streamMsg carries a throttled analysis update for the position fen.
type streamMsg struct {
	fen    string
	update analysis.Update
}

// opponentMsg fires when the scheduled opponent move is due.
// seq guards against moves scheduled before an undo or reset.
type opponentMsg struct {
	seq int
}

// feed hands stream updates to the Bubble Tea loop. A pending update is merged
// with newer ones so the loop never falls behind the engine.
type feed struct {
	ch chan streamMsg
}

func newFeed() *feed {
	return &feed{ch: make(chan streamMsg, 1)}
}

// push must only be called from one goroutine at a time; stream callbacks satisfy this.
func (f *feed) push(msg streamMsg) {
	select {
	case old := <-f.ch:
		if old.fen == msg.fen {
			msg.update = mergeUpdates(old.update, msg.update)
		}
	default:
	}
	select {
	case f.ch <- msg:
	default:
	}
}

func (f *feed) wait() tea.Cmd {
	return func() tea.Msg {
		return <-f.ch
	}
}

func mergeUpdates(older, newer analysis.Update) analysis.Update {
	if newer.Evaluation == nil {
		newer.Evaluation = older.Evaluation
	}
	if newer.Candidates == nil {
		newer.Candidates = older.Candidates
	}
	if newer.Depth == 0 {
		newer.Depth = older.Depth
	}
	newer.Done = newer.Done || older.Done
	return newer
}

// startStream begins continuous analysis of b and routes updates into f.
func startStream(session *analysis.Session, f *feed, b *rules.Board) *analysis.Stream {
	if session == nil || !session.Ready() {
		return nil
	}
	fen := b.FEN()
	return session.StartStream(fen, func(u analysis.Update) {
		f.push(streamMsg{fen: fen, update: u})
	})
}

// renderEvalBar draws White's share of a horizontal bar with the score next to it.
func renderEvalBar(eval *model.Evaluation, width int) string {
	if eval == nil {
		return pendingStyle.Render(strings.Repeat("░", width) + " --")
	}
	white := int(math.Round(analysis.BarPercent(*eval) / 100 * float64(width)))
	white = max(0, min(white, width))
	bar := barWhiteStyle.Render(strings.Repeat("█", white)) + barBlackStyle.Render(strings.Repeat("█", width-white))
	return fmt.Sprintf("%s %s", bar, analysis.FormatEval(*eval))
}

// candidatesSAN converts engine moves to SAN for display.
func candidatesSAN(b *rules.Board, moves []string) []string {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		if san, err := b.UCIToSAN(m); err == nil {
			out = append(out, san)
		}
	}
	return out
}

func feedbackLine(text string) string {
	switch {
	case text == "":
		return ""
	case strings.HasPrefix(text, "Incorrect") || strings.HasPrefix(text, "Illegal"):
		return incorrectStyle.Render(text)
	case strings.HasPrefix(text, "Correct") || strings.HasSuffix(text, "Complete!") || strings.HasPrefix(text, "Good"):
		return correctStyle.Render(text)
	}
	return accentStyle.Render(text)
}

func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		return string(runes[:width])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

// layout places the board next to the side panel and centers the result.
func layout(width, height int, header, board, panel, footer string) string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, board, "   ", panel)
	content := lipgloss.JoinVertical(lipgloss.Left, header, "", body)
	if width == 0 || height == 0 {
		return content + "\n" + footer
	}
	if height < 3 {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
	}
	main := lipgloss.Place(width, height-1, lipgloss.Center, lipgloss.Center, content)
	return main + "\n" + lipgloss.Place(width, 1, lipgloss.Center, lipgloss.Center, footerStyle.Render(truncateLine(footer, width)))
}
