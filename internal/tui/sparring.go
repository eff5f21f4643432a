package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/repertoire/internal/analysis"
	"github.com/verte-zerg/repertoire/internal/drill"
	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
	"github.com/verte-zerg/repertoire/internal/trainer"
)

// aiMoveMsg carries the engine's answer for the opponent's move.
type aiMoveMsg struct {
	seq    int
	fen    string
	result model.AnalysisResult
	err    error
}

// readyMsg re-renders once the candidate set may have stabilized.
type readyMsg struct{}

// SparringModel implements the Bubble Tea screen for open drills against the engine.
type SparringModel struct {
	opts    Options
	logger  *slog.Logger
	trainer *trainer.Trainer
	session *analysis.Session

	width  int
	height int

	game     *drill.Sparring
	input    textinput.Model
	status   string
	errMsg   string
	startCmd tea.Cmd
	thinking bool

	feed     *feed
	stream   *analysis.Stream
	smoother *analysis.Smoother
	eval     *model.Evaluation
	depth    int
	lastRun  *model.TrainingAttempt
}

// NewSparringModel constructs the sparring screen and starts a game.
func NewSparringModel(opts Options) *SparringModel {
	input := textinput.New()
	input.Placeholder = "e5, Nf6, g8f6..."
	input.Prompt = "Move: "
	input.CharLimit = 10
	input.Width = 16
	m := &SparringModel{
		opts:     opts,
		logger:   opts.logger(),
		trainer:  opts.Trainer,
		session:  opts.Session,
		input:    input,
		feed:     newFeed(),
		smoother: analysis.NewSmoother(analysis.DefaultSmoothingWindow),
	}
	m.startCmd = m.newGame()
	return m
}

// Init implements tea.Model.
func (m *SparringModel) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), textinput.Blink, m.feed.wait(), m.startCmd)
}

// Update implements tea.Model.
func (m *SparringModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case streamMsg:
		return m, tea.Batch(m.applyStream(msg), m.feed.wait())
	case opponentMsg:
		return m, m.requestOpponent(msg.seq)
	case aiMoveMsg:
		m.applyOpponent(msg)
		return m, nil
	case readyMsg:
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.stopStream()
			return m, tea.Quit
		case "enter":
			if m.game.State() == drill.Completed {
				return m, m.newGame()
			}
			return m, m.submit()
		case "ctrl+n":
			if attempt, ok := m.game.Skip(); ok {
				m.record(attempt)
			}
			return m, m.newGame()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *SparringModel) sparringOptions() drill.SparringOptions {
	sc := m.opts.Config.Sparring
	return drill.SparringOptions{
		Moves:     sc.Moves,
		Stabilize: time.Duration(sc.StabilizeMs) * time.Millisecond,
		AILines:   m.opts.Config.Engine.EvalLines,
	}
}

func (m *SparringModel) newGame() tea.Cmd {
	m.stopStream()
	m.errMsg = ""
	m.status = ""
	m.thinking = false
	m.input.Reset()
	m.game = drill.NewSparring(m.opts.Config.Sparring.PlayerSide, m.session, m.sparringOptions())
	first, aiNext, err := m.game.Start()
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.logger.Debug("sparring started", "opening", first.SAN, "side", m.game.Side())
	m.status = fmt.Sprintf("Opening: %s", first.SAN)
	if aiNext {
		return m.scheduleOpponent()
	}
	m.restartStream()
	return nil
}

func (m *SparringModel) scheduleOpponent() tea.Cmd {
	seq := m.game.Seq()
	return tea.Tick(drill.DefaultOpponentDelay, func(time.Time) tea.Msg {
		return opponentMsg{seq: seq}
	})
}

// requestOpponent runs the engine search off the update loop.
func (m *SparringModel) requestOpponent(seq int) tea.Cmd {
	if seq != m.game.Seq() || m.game.State() != drill.AwaitingOpponentMove {
		return nil
	}
	m.stopStream()
	m.thinking = true
	session := m.session
	fen := m.game.Board().FEN()
	lines := m.game.OpponentLines()
	return func() tea.Msg {
		res, err := session.Evaluate(context.Background(), fen, lines)
		return aiMoveMsg{seq: seq, fen: fen, result: res, err: err}
	}
}

func (m *SparringModel) applyOpponent(msg aiMoveMsg) {
	if msg.seq != m.game.Seq() {
		return
	}
	m.thinking = false
	if msg.err != nil {
		m.logger.Warn("engine evaluation failed, playing a random move", "err", msg.err)
	}
	res, err := m.game.ApplyOpponent(msg.fen, msg.result)
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	if res.Completed {
		m.finish()
		return
	}
	m.restartStream()
}

func (m *SparringModel) submit() tea.Cmd {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return nil
	}
	res, err := m.game.Submit(input)
	switch {
	case errors.Is(err, drill.ErrNotReady):
		m.status = "Engine is still thinking..."
		return nil
	case errors.Is(err, rules.ErrIllegalMove):
		m.input.Reset()
		m.status = fmt.Sprintf("Illegal move: %s", input)
		return nil
	case err != nil:
		m.input.Reset()
		m.status = err.Error()
		return nil
	}
	m.input.Reset()
	m.status = res.Feedback
	if !res.Accepted {
		return nil
	}
	if res.Completed {
		m.stopStream()
		m.finish()
		return nil
	}
	return m.scheduleOpponent()
}

func (m *SparringModel) finish() {
	attempt, err := m.game.Attempt()
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.record(attempt)
}

func (m *SparringModel) record(attempt model.TrainingAttempt) {
	out, err := m.trainer.Finish(context.Background(), attempt)
	if err != nil {
		m.errMsg = err.Error()
		m.logger.Error("failed to record sparring attempt", "err", err)
	}
	stored := out.Attempt
	m.lastRun = &stored
}

func (m *SparringModel) restartStream() {
	m.stopStream()
	m.stream = startStream(m.session, m.feed, m.game.Board())
}

func (m *SparringModel) stopStream() {
	if m.stream != nil {
		m.stream.Cancel()
		m.stream = nil
	}
	m.smoother.Reset()
	m.eval = nil
	m.depth = 0
}

func (m *SparringModel) applyStream(msg streamMsg) tea.Cmd {
	if msg.fen != m.game.Board().FEN() {
		return nil
	}
	u := msg.update
	if u.Evaluation != nil {
		e := m.smoother.Add(*u.Evaluation)
		m.eval = &e
	}
	if u.Depth > 0 {
		m.depth = u.Depth
	}
	wasReady := m.game.Ready()
	m.game.SetCandidates(msg.fen, u.Candidates, u.Done)
	if wasReady || m.game.Ready() || m.game.State() != drill.AwaitingUserMove {
		return nil
	}
	stabilize := time.Duration(m.opts.Config.Sparring.StabilizeMs) * time.Millisecond
	if stabilize <= 0 {
		stabilize = drill.DefaultStabilize
	}
	return tea.Tick(stabilize, func(time.Time) tea.Msg { return readyMsg{} })
}

// View implements tea.Model.
func (m *SparringModel) View() string {
	header := titleStyle.Render("Repertoire") + footerStyle.Render("  AI sparring")
	board := renderBoard(m.game.Board(), m.game.Side(), lastMoveSquares(m.game.Board()))
	return layout(m.width, m.height, header, board, m.renderPanel(), m.renderFooter())
}

func (m *SparringModel) renderPanel() string {
	lines := []string{
		titleStyle.Render(drill.SparringName),
		footerStyle.Render(fmt.Sprintf("as %s · move %d/%d", m.game.Side(), m.game.UserMoves(), m.game.MoveLimit())),
		"",
		renderEvalBar(m.eval, evalBarWidth),
	}
	if m.game.State() == drill.AwaitingUserMove {
		if m.game.Ready() {
			lines = append(lines, correctStyle.Render(fmt.Sprintf("Engine ready (%d candidates, d%d)", len(m.game.Candidates()), m.depth)))
		} else {
			lines = append(lines, pendingStyle.Render("Engine is analyzing..."))
		}
	}
	lines = append(lines, "", moveList(m.game.Board().History(), sidePanelWidth), "")
	switch {
	case m.game.State() == drill.Completed:
		lines = append(lines, feedbackLine(m.game.Feedback()))
		if m.lastRun != nil {
			lines = append(lines, renderResult(*m.lastRun))
		}
		lines = append(lines, pendingStyle.Render("Press enter for a new game"))
	case m.thinking || m.game.State() == drill.AwaitingOpponentMove:
		lines = append(lines, feedbackLine(m.status), pendingStyle.Render("Opponent is thinking..."))
	default:
		lines = append(lines, feedbackLine(m.status), m.input.View())
	}
	if m.errMsg != "" {
		lines = append(lines, incorrectStyle.Render(m.errMsg))
	}
	return lipgloss.NewStyle().Width(sidePanelWidth).Render(strings.Join(lines, "\n"))
}

func (m *SparringModel) renderFooter() string {
	return fmt.Sprintf("Mistakes %g  ctrl+n new game · esc quit", m.game.Mistakes())
}
