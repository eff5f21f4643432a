package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
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

// Options wire a screen to the trainer core.
type Options struct {
	Config  model.Config
	Trainer *trainer.Trainer
	Session *analysis.Session
	// DeckSize returns the number of variations in a category.
	DeckSize func(model.Category) int
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// Model implements the Bubble Tea scripted drill screen.
type Model struct {
	opts    Options
	cfg     model.Config
	logger  *slog.Logger
	trainer *trainer.Trainer
	session *analysis.Session

	width  int
	height int

	drill    *drill.Scripted
	input    textinput.Model
	status   string
	errMsg   string
	startCmd tea.Cmd

	feed       *feed
	stream     *analysis.Stream
	smoother   *analysis.Smoother
	eval       *model.Evaluation
	candidates []string
	depth      int

	completed int
	lastRun   *model.TrainingAttempt
}

// NewModel constructs the drill screen and loads the first variation.
func NewModel(opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "e4, Nf3, e2e4..."
	input.Prompt = "Move: "
	input.CharLimit = 10
	input.Width = 16
	m := &Model{
		opts:     opts,
		cfg:      opts.Config,
		logger:   opts.logger(),
		trainer:  opts.Trainer,
		session:  opts.Session,
		input:    input,
		feed:     newFeed(),
		smoother: analysis.NewSmoother(analysis.DefaultSmoothingWindow),
	}
	m.startCmd = m.loadNext()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), textinput.Blink, m.feed.wait(), m.startCmd)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case streamMsg:
		m.applyStream(msg)
		return m, m.feed.wait()
	case opponentMsg:
		return m, m.playOpponent(msg.seq)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.stopStream()
			return m, tea.Quit
		case "enter":
			if m.drill == nil || m.drill.State() == drill.Completed {
				return m, m.loadNext()
			}
			return m, m.submit()
		case "tab":
			return m, m.hint()
		case "ctrl+z":
			m.undo()
			return m, nil
		case "ctrl+r":
			return m, m.reset()
		case "ctrl+n":
			return m, m.skip()
		case "ctrl+t":
			m.cfg.Mode = toggleMode(m.cfg.Mode)
			m.status = fmt.Sprintf("Mode: %s", m.cfg.Mode)
			return m, nil
		case "ctrl+g":
			m.cfg.Category = toggleCategory(m.cfg.Category)
			m.status = fmt.Sprintf("Category: %s (applies to the next variation)", m.cfg.Category)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func toggleMode(mode model.Mode) model.Mode {
	if mode == model.ModeChallenge {
		return model.ModeTraining
	}
	return model.ModeChallenge
}

func toggleCategory(c model.Category) model.Category {
	if c == model.CategoryTrap {
		return model.CategoryBook
	}
	return model.CategoryTrap
}

func (m *Model) ctx() context.Context {
	return context.Background()
}

// loadNext asks the trainer for a variation and starts drilling it.
func (m *Model) loadNext() tea.Cmd {
	m.stopStream()
	m.errMsg = ""
	v, err := m.trainer.Next(m.ctx(), m.cfg.Mode, m.cfg.Category)
	if err != nil {
		m.drill = nil
		m.errMsg = err.Error()
		m.logger.Warn("failed to select variation", "category", m.cfg.Category, "err", err)
		return nil
	}
	m.logger.Debug("variation selected", "id", v.ID, "mode", m.cfg.Mode)
	m.drill = drill.NewScripted(v, drill.ScriptedOptions{HintPenalty: m.cfg.HintPenalty})
	m.refreshProgress()
	return m.begin(m.drill.Start())
}

func (m *Model) begin(opponentFirst bool) tea.Cmd {
	m.input.Reset()
	m.restartStream()
	if opponentFirst {
		return m.scheduleOpponent()
	}
	return nil
}

func (m *Model) refreshProgress() {
	ids, err := m.trainer.Completed(m.ctx(), m.cfg.Category)
	if err != nil {
		m.logger.Warn("failed to load deck progress", "err", err)
		return
	}
	m.completed = len(ids)
}

func (m *Model) scheduleOpponent() tea.Cmd {
	seq := m.drill.Seq()
	return tea.Tick(m.drill.OpponentDelay(), func(time.Time) tea.Msg {
		return opponentMsg{seq: seq}
	})
}

func (m *Model) playOpponent(seq int) tea.Cmd {
	if m.drill == nil || seq != m.drill.Seq() || m.drill.State() != drill.AwaitingOpponentMove {
		return nil
	}
	res, err := m.drill.PlayOpponent()
	if err != nil {
		m.errMsg = err.Error()
		m.logger.Error("scripted opponent move failed", "variation", m.drill.Variation().ID, "err", err)
		return nil
	}
	m.restartStream()
	if res.Completed {
		m.finish()
	}
	return nil
}

func (m *Model) submit() tea.Cmd {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return nil
	}
	m.input.Reset()
	res, err := m.drill.Submit(input)
	switch {
	case errors.Is(err, rules.ErrIllegalMove):
		m.status = fmt.Sprintf("Illegal move: %s", input)
		return nil
	case err != nil:
		m.status = err.Error()
		return nil
	}
	m.status = res.Feedback
	if !res.Accepted {
		return nil
	}
	m.restartStream()
	if res.Completed {
		m.finish()
		return nil
	}
	if res.OpponentDue {
		return m.scheduleOpponent()
	}
	return nil
}

func (m *Model) hint() tea.Cmd {
	if m.drill == nil {
		return nil
	}
	res, err := m.drill.Hint()
	if err != nil {
		m.status = err.Error()
		return nil
	}
	m.status = fmt.Sprintf("Hint: %s", res.Move.SAN)
	m.restartStream()
	if res.Completed {
		m.finish()
		return nil
	}
	if res.OpponentDue {
		return m.scheduleOpponent()
	}
	return nil
}

func (m *Model) undo() {
	// a completed drill is already recorded
	if m.drill == nil || m.drill.State() == drill.Completed {
		return
	}
	if err := m.drill.Undo(); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "Move undone"
	m.restartStream()
}

func (m *Model) reset() tea.Cmd {
	if m.drill == nil || m.drill.State() == drill.Completed {
		return nil
	}
	m.status = ""
	return m.begin(m.drill.Reset())
}

func (m *Model) skip() tea.Cmd {
	if m.drill != nil {
		if attempt, ok := m.drill.Skip(); ok {
			m.record(attempt)
		}
	}
	m.status = ""
	return m.loadNext()
}

func (m *Model) finish() {
	attempt, err := m.drill.Attempt()
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.record(attempt)
}

func (m *Model) record(attempt model.TrainingAttempt) {
	out, err := m.trainer.Finish(m.ctx(), attempt)
	if err != nil {
		m.errMsg = err.Error()
		m.logger.Error("failed to record attempt", "variation", attempt.VariationID, "err", err)
	}
	stored := out.Attempt
	m.lastRun = &stored
	if out.CycleComplete {
		m.status = "Deck complete! Starting a new cycle."
	}
	m.refreshProgress()
}

func (m *Model) restartStream() {
	m.stopStream()
	if m.drill == nil {
		return
	}
	m.stream = startStream(m.session, m.feed, m.drill.Board())
}

func (m *Model) stopStream() {
	if m.stream != nil {
		m.stream.Cancel()
		m.stream = nil
	}
	m.smoother.Reset()
	m.eval = nil
	m.candidates = nil
	m.depth = 0
}

func (m *Model) applyStream(msg streamMsg) {
	if m.drill == nil || msg.fen != m.drill.Board().FEN() {
		return
	}
	if msg.update.Evaluation != nil {
		e := m.smoother.Add(*msg.update.Evaluation)
		m.eval = &e
	}
	if msg.update.Candidates != nil {
		m.candidates = msg.update.Candidates
	}
	if msg.update.Depth > 0 {
		m.depth = msg.update.Depth
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	header := titleStyle.Render("Repertoire") + footerStyle.Render(fmt.Sprintf("  %s · %s", m.cfg.Mode, m.cfg.Category))
	if m.drill == nil {
		body := incorrectStyle.Render(m.errMsg)
		return layout(m.width, m.height, header, body, "", m.renderFooter())
	}
	v := m.drill.Variation()
	board := renderBoard(m.drill.Board(), v.PlayerSide, lastMoveSquares(m.drill.Board()))
	return layout(m.width, m.height, header, board, m.renderPanel(), m.renderFooter())
}

func (m *Model) renderPanel() string {
	v := m.drill.Variation()
	lines := []string{titleStyle.Render(truncateLine(v.Name, sidePanelWidth))}
	meta := []string{}
	if v.ECOCode != "" {
		meta = append(meta, v.ECOCode)
	}
	meta = append(meta, v.ParentOpening, "as "+string(v.PlayerSide))
	lines = append(lines, footerStyle.Render(truncateLine(strings.Join(meta, " · "), sidePanelWidth)))
	if v.Profile != nil {
		lines = append(lines, footerStyle.Render(fmt.Sprintf("W %.0f%%  D %.0f%%  B %.0f%%", v.Profile.WhiteWinPct, v.Profile.DrawPct, v.Profile.BlackWinPct)))
	}
	if len(v.Themes) > 0 {
		lines = append(lines, footerStyle.Render(truncateLine(strings.Join(v.Themes, ", "), sidePanelWidth)))
	}
	lines = append(lines, "", renderEvalBar(m.eval, evalBarWidth))
	if len(m.candidates) > 0 {
		lines = append(lines, pendingStyle.Render(fmt.Sprintf("Engine d%d: %s", m.depth, strings.Join(candidatesSAN(m.drill.Board(), m.candidates), "  "))))
	}
	lines = append(lines, "", moveList(m.drill.Board().History(), sidePanelWidth), "")

	switch m.drill.State() {
	case drill.Completed:
		lines = append(lines, feedbackLine(m.drill.Feedback()))
		if m.lastRun != nil {
			lines = append(lines, renderResult(*m.lastRun))
		}
		if v.Description != "" {
			lines = append(lines, "", lipgloss.NewStyle().Width(sidePanelWidth).Render(v.Description))
		}
		if v.FollowupAdvice != "" {
			lines = append(lines, "", accentStyle.Width(sidePanelWidth).Render(v.FollowupAdvice))
		}
		lines = append(lines, "", pendingStyle.Render("Press enter for the next variation"))
	case drill.AwaitingOpponentMove:
		lines = append(lines, feedbackLine(m.status), pendingStyle.Render("Opponent is moving..."))
	default:
		lines = append(lines, feedbackLine(m.status), m.input.View())
	}
	if m.errMsg != "" {
		lines = append(lines, incorrectStyle.Render(m.errMsg))
	}
	return lipgloss.NewStyle().Width(sidePanelWidth).Render(strings.Join(lines, "\n"))
}

func renderResult(a model.TrainingAttempt) string {
	verdict := correctStyle.Render("Success")
	if !a.Success {
		verdict = incorrectStyle.Render("Needs work")
	}
	return fmt.Sprintf("%s  %.1fs  %.1fs/move  mistakes %g", verdict, float64(a.DurationMs)/1000, float64(a.AvgTimePerMoveMs)/1000, a.MistakeCount)
}

func (m *Model) renderFooter() string {
	segments := []string{}
	if m.opts.DeckSize != nil {
		segments = append(segments, fmt.Sprintf("Deck %d/%d", m.completed, m.opts.DeckSize(m.cfg.Category)))
	}
	if m.drill != nil {
		segments = append(segments, fmt.Sprintf("Mistakes %g", m.drill.Mistakes()))
	}
	segments = append(segments, "tab hint · ctrl+z undo · ctrl+r reset · ctrl+n skip · ctrl+t mode · ctrl+g category · esc quit")
	return strings.Join(segments, "  ")
}
