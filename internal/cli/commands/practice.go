package commands

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/locale"
	"github.com/mytalk-labs/mytalk/internal/script"
	"github.com/mytalk-labs/mytalk/internal/stats"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// NewPracticeCommand creates the practice command.
func NewPracticeCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "practice <script>",
		Short: "Practice a script line by line",
		Long: `Step through a script one line at a time in the terminal. Each line
can reveal its Korean translation. The session is recorded in your
study stats.

Keys: enter/n next line, p previous, space reveal, q quit.`,
		Example: `  mytalk practice coffee
  mytalk practice 3f2a81c0 --kind podcast`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPractice(cmd, args[0], kind)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Version to practice (original, ted, podcast, daily)")

	return cmd
}

func runPractice(cmd *cobra.Command, ref, kindFlag string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if !r.IsTTY() {
		return errors.New("practice needs an interactive terminal")
	}

	sc, err := findScript(cmdCtx.Store, ref)
	if err != nil {
		return err
	}

	kind := core.KindOriginal
	if kindFlag != "" {
		kind = core.VersionKind(strings.ToLower(kindFlag))
		if !kind.Valid() {
			return fmt.Errorf("unknown version kind %q (available: original, ted, podcast, daily)", kindFlag)
		}
	}
	version, err := cmdCtx.Store.GetVersion(sc.ID, kind)
	if err != nil {
		return fmt.Errorf("script %q has no %s version", sc.Title, kind)
	}

	lines := script.PracticeLines(version.Content)
	if len(lines) == 0 {
		return fmt.Errorf("script %q has no practice lines", sc.Title)
	}
	korean := script.PracticeLines(version.Translation)

	model := newPracticeModel(sc, lines, korean, version.Translation, cmdCtx.Loc)
	start := time.Now()

	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("practice session failed: %w", err)
	}

	pm, ok := final.(practiceModel)
	if !ok || !pm.advanced {
		return nil
	}

	recorder := stats.NewRecorder(cmdCtx.Store)
	if err := recorder.ScriptPracticed(); err != nil {
		cmdCtx.Logger.Warn("failed to record practice", "error", err)
	}
	minutes := int(math.Ceil(time.Since(start).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	if err := recorder.AddStudyMinutes(minutes); err != nil {
		cmdCtx.Logger.Warn("failed to record study minutes", "error", err)
	}

	if pm.done {
		r.Success(cmdCtx.Loc.T("practice_done", nil))
	}
	r.Muted(fmt.Sprintf("+%d study minutes (%s)", minutes, sc.Title))
	return nil
}

// practiceKeyMap defines the practice session key bindings.
type practiceKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Reveal key.Binding
	Quit   key.Binding
}

func (k practiceKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reveal, k.Next, k.Prev, k.Quit}
}

func (k practiceKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Reveal, k.Next}, {k.Prev, k.Quit}}
}

func newPracticeKeyMap(loc *locale.Localizer) practiceKeyMap {
	return practiceKeyMap{
		Next: key.NewBinding(
			key.WithKeys("n", "enter", "right", "l"),
			key.WithHelp("n", loc.T("practice_next", nil)),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "left", "h"),
			key.WithHelp("p", loc.T("practice_prev", nil)),
		),
		Reveal: key.NewBinding(
			key.WithKeys(" ", "tab"),
			key.WithHelp("space", loc.T("practice_reveal", nil)),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", loc.T("practice_quit", nil)),
		),
	}
}

var (
	practiceTitleStyle  = lipgloss.NewStyle().Bold(true)
	practiceKoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	practiceMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	practiceLineStyle   = lipgloss.NewStyle().Bold(true).PaddingLeft(2)
	practiceRevealStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).PaddingLeft(2)
)

// practiceModel is the bubbletea model for a practice session.
type practiceModel struct {
	title       string
	titleKo     string
	lines       []string
	korean      []string // per-line translations when they align
	translation string   // full translation fallback
	loc         *locale.Localizer

	idx      int
	revealed bool
	advanced bool
	done     bool
	quitting bool

	keys  practiceKeyMap
	help  help.Model
	width int
}

func newPracticeModel(sc *core.Script, lines, korean []string, translation string, loc *locale.Localizer) practiceModel {
	if len(korean) != len(lines) {
		korean = nil
	}
	return practiceModel{
		title:       sc.Title,
		titleKo:     sc.TitleKo,
		lines:       lines,
		korean:      korean,
		translation: strings.TrimSpace(translation),
		loc:         loc,
		keys:        newPracticeKeyMap(loc),
		help:        help.New(),
		width:       80,
	}
}

func (m practiceModel) Init() tea.Cmd {
	return nil
}

func (m practiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Reveal):
			m.revealed = !m.revealed

		case key.Matches(msg, m.keys.Next):
			if m.idx+1 < len(m.lines) {
				m.idx++
				m.revealed = false
				m.advanced = true
			} else {
				m.done = true
				m.advanced = true
				m.quitting = true
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Prev):
			if m.idx > 0 {
				m.idx--
				m.revealed = false
			}
		}
	}
	return m, nil
}

func (m practiceModel) View() string {
	if m.quitting {
		return ""
	}

	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}

	var b strings.Builder
	b.WriteString(practiceTitleStyle.Render(m.title))
	b.WriteString("\n")
	if m.titleKo != "" {
		b.WriteString(practiceKoStyle.Render(m.titleKo))
		b.WriteString("\n")
	}
	b.WriteString(practiceMutedStyle.Render(m.loc.T("practice_progress", map[string]any{
		"Current": m.idx + 1,
		"Total":   len(m.lines),
	})))
	b.WriteString("\n\n")

	b.WriteString(practiceLineStyle.Width(wrap).Render(m.lines[m.idx]))
	b.WriteString("\n")

	if m.revealed {
		b.WriteString("\n")
		b.WriteString(practiceRevealStyle.Width(wrap).Render(m.koreanFor(m.idx)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// koreanFor returns the aligned translation line, falling back to the
// whole translation when line counts differ.
func (m practiceModel) koreanFor(idx int) string {
	if m.korean != nil {
		return m.korean[idx]
	}
	if m.translation == "" {
		return "(no translation)"
	}
	return m.translation
}
