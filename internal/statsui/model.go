// Package statsui provides the Bubble Tea analytics screen.
package statsui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
	"github.com/verte-zerg/repertoire/internal/stats"
)

type tab int

const (
	tabOverview tab = iota
	tabOpenings
	tabWeak
	tabHistory
	tabCount
)

var tabTitles = [tabCount]string{"Overview", "Openings", "Needs Work", "History"}

const trendHeight = 10

var (
	tabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F5F1E6")).
			Background(lipgloss.Color("#7A5C3E")).
			Padding(0, 2)
	tabIdle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#A39B8B")).
		Padding(0, 2)
	mutedText = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorText = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7A5C3E")).
			Padding(0, 1).
			Width(18)
	cardLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#A39B8B"))
	cardValue = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5F1E6"))
)

type keyMap struct {
	Prev   key.Binding
	Next   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Wider  key.Binding
	Narrow key.Binding
	Filter key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Narrow, k.Wider, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Top, k.Bottom}}
}

var keys = keyMap{
	Prev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev tab")),
	Next:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next tab")),
	Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Wider:  key.NewBinding(key.WithKeys("="), key.WithHelp("=", "wider trend")),
	Narrow: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "narrower trend")),
	Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filters")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// filterField is one editable line of the filter form.
// apply parses the trimmed input into cfg.
type filterField struct {
	input textinput.Model
	show  func(model.StatsConfig) string
	apply func(raw string, cfg *model.StatsConfig) error
}

func newFilterFields() []filterField {
	field := func(prompt string, show func(model.StatsConfig) string, apply func(string, *model.StatsConfig) error) filterField {
		in := textinput.New()
		in.Prompt = prompt
		return filterField{input: in, show: show, apply: apply}
	}
	return []filterField{
		field("Category (book/trap): ",
			func(c model.StatsConfig) string { return string(c.Category) },
			func(raw string, c *model.StatsConfig) error {
				if raw == "" {
					c.Category = ""
					return nil
				}
				category, err := model.ParseCategory(raw)
				if err != nil {
					return errors.New("invalid category (use book or trap)")
				}
				c.Category = category
				return nil
			}),
		field("Since (YYYY-MM-DD): ",
			func(c model.StatsConfig) string {
				if c.Since == nil {
					return ""
				}
				return c.Since.Format(time.DateOnly)
			},
			func(raw string, c *model.StatsConfig) error {
				if raw == "" {
					c.Since = nil
					return nil
				}
				since, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
				if err != nil {
					return errors.New("invalid since date (expected YYYY-MM-DD)")
				}
				c.Since = &since
				return nil
			}),
		field("Last: ",
			func(c model.StatsConfig) string {
				if c.Last <= 0 {
					return ""
				}
				return strconv.Itoa(c.Last)
			},
			func(raw string, c *model.StatsConfig) error {
				if raw == "" {
					c.Last = 0
					return nil
				}
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					return errors.New("invalid last value (use 0 or a positive integer)")
				}
				c.Last = n
				return nil
			}),
		field("Trend window: ",
			func(c model.StatsConfig) string { return strconv.Itoa(c.TrendWindow) },
			func(raw string, c *model.StatsConfig) error {
				if raw == "" {
					c.TrendWindow = stats.DefaultTrendWindow
					return nil
				}
				n, err := strconv.Atoi(raw)
				if err != nil || n < 1 {
					return errors.New("invalid trend window (use an integer >= 1)")
				}
				c.TrendWindow = n
				return nil
			}),
	}
}

// Model implements the Bubble Tea analytics screen.
type Model struct {
	attempts progress.AttemptRepository
	cfg      model.StatsConfig
	report   stats.Report
	loadErr  error

	active   tab
	pages    [tabCount]viewport.Model
	openings table.Model
	help     help.Model

	width, height int

	editing   bool
	fields    []filterField
	focused   int
	formError string
}

// NewModel builds the screen and loads the first report from attempts.
func NewModel(attempts progress.AttemptRepository, cfg model.StatsConfig) *Model {
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = stats.DefaultTrendWindow
	}
	m := &Model{
		attempts: attempts,
		cfg:      cfg,
		fields:   newFilterFields(),
		help:     help.New(),
		openings: table.New(
			table.WithColumns([]table.Column{
				{Title: "Opening", Width: 32},
				{Title: "Attempts", Width: 9},
				{Title: "Success", Width: 8},
				{Title: "Rate", Width: 7},
			}),
			table.WithStyles(openingStyles()),
		),
	}
	for i := range m.pages {
		m.pages[i] = viewport.New(0, 0)
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.fillPages()
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m, m.updateForm(msg)
		}
		return m, m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Prev):
		m.switchTab(-1)
		return tea.ClearScreen
	case key.Matches(msg, keys.Next):
		m.switchTab(1)
		return tea.ClearScreen
	case key.Matches(msg, keys.Wider):
		m.cfg.TrendWindow++
		m.fillPages()
		return nil
	case key.Matches(msg, keys.Narrow):
		m.cfg.TrendWindow = max(1, m.cfg.TrendWindow-1)
		m.fillPages()
		return nil
	case key.Matches(msg, keys.Filter):
		return m.openForm()
	case key.Matches(msg, keys.Top):
		if m.active == tabOpenings {
			m.openings.GotoTop()
		} else {
			m.pages[m.active].GotoTop()
		}
		return nil
	case key.Matches(msg, keys.Bottom):
		if m.active == tabOpenings {
			m.openings.GotoBottom()
		} else {
			m.pages[m.active].GotoBottom()
		}
		return nil
	}
	var cmd tea.Cmd
	if m.active == tabOpenings {
		m.openings, cmd = m.openings.Update(msg)
	} else {
		m.pages[m.active], cmd = m.pages[m.active].Update(msg)
	}
	return cmd
}

func (m *Model) switchTab(delta int) {
	m.active = (m.active + tab(delta) + tabCount) % tabCount
	if m.active == tabOpenings {
		m.openings.Focus()
	} else {
		m.openings.Blur()
	}
}

func (m *Model) openForm() tea.Cmd {
	m.editing = true
	m.formError = ""
	for i := range m.fields {
		m.fields[i].input.SetValue(m.fields[i].show(m.cfg))
	}
	return m.focusField(0)
}

func (m *Model) focusField(i int) tea.Cmd {
	m.focused = (i + len(m.fields)) % len(m.fields)
	var cmd tea.Cmd
	for j := range m.fields {
		if j == m.focused {
			cmd = m.fields[j].input.Focus()
		} else {
			m.fields[j].input.Blur()
		}
	}
	return cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEsc:
		m.editing = false
		return nil
	case tea.KeyTab, tea.KeyDown:
		return m.focusField(m.focused + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m.focusField(m.focused - 1)
	case tea.KeyEnter:
		next := m.cfg
		for _, f := range m.fields {
			if err := f.apply(strings.TrimSpace(f.input.Value()), &next); err != nil {
				m.formError = err.Error()
				return nil
			}
		}
		m.cfg = next
		m.editing = false
		m.reload()
		return nil
	}
	var cmd tea.Cmd
	m.fields[m.focused].input, cmd = m.fields[m.focused].input.Update(msg)
	return cmd
}

func (m *Model) reload() {
	m.report, m.loadErr = stats.BuildReport(context.Background(), m.attempts, m.cfg)
	rows := make([]table.Row, 0, len(m.report.Openings))
	for _, o := range m.report.Openings {
		rows = append(rows, table.Row{
			o.Name,
			strconv.Itoa(o.Attempts),
			strconv.Itoa(o.Successes),
			fmt.Sprintf("%.1f%%", o.Rate*100),
		})
	}
	m.openings.SetRows(rows)
	m.openings.GotoTop()
	m.resize()
	m.fillPages()
}

func (m *Model) bodyHeight() int {
	footer := 1
	if m.loadErr != nil && !m.editing {
		footer++
	}
	// tab bar and filter summary
	return max(1, m.height-2-footer)
}

func (m *Model) resize() {
	h := m.bodyHeight()
	for i := range m.pages {
		m.pages[i].Width = m.width
		m.pages[i].Height = h
	}
	m.openings.SetWidth(m.width)
	m.openings.SetHeight(h)
	m.help.Width = m.width
	for i := range m.fields {
		m.fields[i].input.Width = max(10, m.width-lipgloss.Width(m.fields[i].input.Prompt)-2)
	}
}

func (m *Model) fillPages() {
	if m.loadErr != nil {
		for i := range m.pages {
			m.pages[i].SetContent("Failed to load stats.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.pages[tabOverview].SetContent(overview(m.report, m.cfg.TrendWindow, width))
	m.pages[tabWeak].SetContent(section(len(m.report.Weak), "No variation has enough attempts yet.", func(buf *bytes.Buffer) error {
		return stats.RenderWeak(buf, m.report.Weak)
	}))
	m.pages[tabHistory].SetContent(section(len(m.report.Recent), "No attempts found.", func(buf *bytes.Buffer) error {
		return stats.RenderHistory(buf, m.report.Recent)
	}))
}

func section(n int, empty string, render func(*bytes.Buffer) error) string {
	if n == 0 {
		return empty
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Sprintf("Failed to render: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func overview(report stats.Report, window, width int) string {
	s := report.Summary
	if s.Attempts == 0 {
		return "No attempts found."
	}
	cards := []string{
		card("Training time", stats.Minutes(s.TotalTime)),
		card("Attempts", strconv.Itoa(s.Attempts)),
		card("Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100)),
		card("Avg move", fmt.Sprintf("%.1fs", s.AvgMoveMs/1000)),
	}
	row := lipgloss.JoinVertical(lipgloss.Left, cards...)
	if width >= lipgloss.Width(cards[0])*len(cards) {
		row = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	var buf bytes.Buffer
	if err := stats.RenderTrend(&buf, report.Durations, window, width, trendHeight, true); err != nil {
		return fmt.Sprintf("Failed to render trend: %v", err)
	}
	return strings.TrimRight(row+"\n\n"+buf.String(), "\n")
}

func card(label, value string) string {
	return cardBox.Render(cardLabel.Render(label) + "\n" + cardValue.Render(value))
}

func openingStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("#7A5C3E")).
		Bold(true).
		PaddingLeft(0)
	s.Cell = s.Cell.PaddingLeft(0)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#F5F1E6")).
		Background(lipgloss.Color("#3B2F24"))
	return s
}

func (m *Model) filterSummary() string {
	category, since, last := "any", "any", "all"
	if m.cfg.Category != "" {
		category = string(m.cfg.Category)
	}
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format(time.DateOnly)
	}
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return fmt.Sprintf("category=%s  since=%s  last=%s  window=%d", category, since, last, m.cfg.TrendWindow)
}

func (m *Model) body() string {
	if m.editing {
		lines := []string{"Filters (tab: next field, enter: apply, esc: cancel)", ""}
		for _, f := range m.fields {
			lines = append(lines, f.input.View())
		}
		if m.formError != "" {
			lines = append(lines, "", errorText.Render(m.formError))
		}
		return strings.Join(lines, "\n")
	}
	if m.active == tabOpenings {
		if m.loadErr != nil {
			return "Failed to load stats."
		}
		if len(m.report.Openings) == 0 {
			return "No attempts found."
		}
		return m.openings.View()
	}
	return m.pages[m.active].View()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	titles := make([]string, 0, tabCount)
	for i, title := range tabTitles {
		style := tabIdle
		if tab(i) == m.active {
			style = tabActive
		}
		titles = append(titles, style.Render(title))
	}
	frame := lipgloss.NewStyle().Width(m.width).MaxWidth(m.width)
	header := frame.Render(lipgloss.JoinHorizontal(lipgloss.Top, titles...)) + "\n" +
		frame.Render(mutedText.Render(m.filterSummary()))
	body := frame.Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(m.body())
	footer := m.help.View(keys)
	if m.loadErr != nil && !m.editing {
		footer += "\n" + errorText.Render(m.loadErr.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, frame.Render(footer))
}
