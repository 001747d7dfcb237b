// Package ui is the full-screen confirmation shown with --tui. It lists the
// plan in a scrollable view and waits for an explicit yes or no.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/ui/styles"
)

// RiskLevel grades how much a plan can destroy
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// riskFor grades a plan. Archiving is recoverable; deleting is not.
func riskFor(plan *planner.Plan) RiskLevel {
	switch {
	case plan.Mode == planner.ModeDelete && plan.Count > 500:
		return RiskHigh
	case plan.Mode == planner.ModeDelete || plan.Count >= 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

// button indexes
const (
	buttonYes = iota
	buttonNo
)

type keyMap struct {
	Yes   key.Binding
	No    key.Binding
	Left  key.Binding
	Right key.Binding
	Enter key.Binding
	Up    key.Binding
	Down  key.Binding
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No, k.Left, k.Enter, k.Up}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Yes, k.No}, {k.Left, k.Right, k.Enter}, {k.Up, k.Down}}
}

func defaultKeys() keyMap {
	return keyMap{
		Yes:   key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
		No:    key.NewBinding(key.WithKeys("n", "N", "q", "esc", "ctrl+c"), key.WithHelp("n", "cancel")),
		Left:  key.NewBinding(key.WithKeys("left", "h", "tab", "shift+tab"), key.WithHelp("←/→", "choose")),
		Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "choose")),
		Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Up:    key.NewBinding(key.WithKeys("up", "k", "pgup"), key.WithHelp("↑/↓", "scroll")),
		Down:  key.NewBinding(key.WithKeys("down", "j", "pgdown"), key.WithHelp("↓", "scroll")),
	}
}

// confirmModel is the confirmation screen. It starts on "No" so that a stray
// enter never approves a plan.
type confirmModel struct {
	plan      *planner.Plan
	risk      RiskLevel
	cursor    int
	list      viewport.Model
	keys      keyMap
	help      help.Model
	width     int
	height    int
	confirmed bool
	done      bool
}

func newConfirmModel(plan *planner.Plan) *confirmModel {
	m := &confirmModel{
		plan:   plan,
		risk:   riskFor(plan),
		cursor: buttonNo,
		keys:   defaultKeys(),
		help:   help.New(),
		width:  MinTerminalWidth,
		height: MinTerminalHeight,
	}
	m.list = viewport.New(m.width, listHeight(m.height))
	m.list.SetContent(m.fileLines())
	return m
}

// Init initializes the confirm view
func (m *confirmModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.list.Width = msg.Width
		m.list.Height = listHeight(msg.Height)
		m.list.SetContent(m.fileLines())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Yes):
			return m.decide(true)
		case key.Matches(msg, m.keys.No):
			return m.decide(false)
		case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
			m.cursor = 1 - m.cursor
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			return m.decide(m.cursor == buttonYes)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *confirmModel) decide(ok bool) (tea.Model, tea.Cmd) {
	m.confirmed = ok
	m.done = true
	return m, tea.Quit
}

// View renders the confirmation view
func (m *confirmModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	b.WriteString(sizeWarning(m.width, m.height))

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Confirm %s", m.plan.Verb)))
	b.WriteString("\n")

	b.WriteString(styles.BoldStyle.Render(fmt.Sprintf("You are about to %s %d file(s) (%s)",
		m.plan.Verb, m.plan.Count, humanize.Bytes(uint64(m.plan.TotalSize)))))
	b.WriteString("\n")
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("Modified before %s in %s",
		m.plan.Cutoff.Format("2006-01-02 15:04"), m.plan.Root)))
	b.WriteString("\n")
	if m.plan.ArchiveDir != "" {
		b.WriteString(styles.DimStyle.Render("Destination: " + m.plan.ArchiveDir))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(styles.PanelStyle.Render(m.list.View()))
	b.WriteString("\n")
	if m.plan.Count > m.list.Height {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("%3.0f%% of list shown", m.list.ScrollPercent()*100)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Risk Level: %s\n", m.riskText()))
	if m.plan.Mode == planner.ModeDelete {
		b.WriteString(styles.WarningStyle.Render("This action cannot be undone!"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	yesBtn := fmt.Sprintf("[ Yes, %s ]", m.plan.Verb)
	noBtn := "[ No ]"
	if m.cursor == buttonYes {
		yesBtn = styles.HighlightStyle.Render(yesBtn)
	} else {
		noBtn = styles.HighlightStyle.Render(noBtn)
	}
	b.WriteString(yesBtn + "  " + noBtn)
	b.WriteString("\n\n")

	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m *confirmModel) riskText() string {
	switch m.risk {
	case RiskHigh:
		return styles.ErrorStyle.Render("HIGH (permanent delete of many files)")
	case RiskMedium:
		return styles.WarningStyle.Render("MEDIUM")
	default:
		return styles.SuccessStyle.Render("LOW (files are moved, not deleted)")
	}
}

// fileLines renders one row per planned file, sized to the current width
func (m *confirmModel) fileLines() string {
	pathWidth := m.width - 16
	if pathWidth < 20 {
		pathWidth = 20
	}

	var b strings.Builder
	for i, f := range m.plan.Files {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s",
			styles.FileSizeStyle.Render(fmt.Sprintf("%9s", humanize.Bytes(uint64(f.Size)))),
			styles.FilePathStyle.Render(truncateMiddle(f.Path, pathWidth)))
	}
	return b.String()
}

// Confirmer asks for confirmation on a full-screen terminal UI. It implements
// planner.Confirmer.
type Confirmer struct {
	in  io.Reader
	out io.Writer
}

// NewConfirmer creates a Confirmer. Nil in and out use the process terminal.
func NewConfirmer(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{in: in, out: out}
}

// Confirm shows plan and blocks until the user answers or ctx ends. Closing
// the screen without answering declines.
func (c *Confirmer) Confirm(ctx context.Context, plan *planner.Plan) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m := newConfirmModel(plan)
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.in != nil {
		opts = append(opts, tea.WithInput(c.in))
	}
	if c.out != nil {
		opts = append(opts, tea.WithOutput(c.out))
	}

	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation screen: %w", err)
	}
	return m.done && m.confirmed, nil
}
