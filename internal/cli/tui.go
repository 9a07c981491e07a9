package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/notify"
	"github.com/raphaelgruber/mooddine/internal/quota"
	"github.com/raphaelgruber/mooddine/internal/session"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive search page",
	Long: `Open the interactive search page.

Keys:
  enter        search for the current text
  tab          complete from the example searches
  alt+1..8     use a mood suggestion or example search
  ctrl+l       clear the search box
  esc, ctrl+c  quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

// stateMsg carries a new session state into the update loop.
type stateMsg struct {
	state models.SessionState
}

// noticeMsg carries a notification into the update loop.
type noticeMsg struct {
	kind    models.NotifyKind
	title   string
	message string
}

// quotaMsg carries a refreshed quota status.
type quotaMsg struct {
	status quota.Status
	err    error
}

// submitMsg reports the synchronous part of a submission.
type submitMsg struct {
	err error
}

// statusFunc reads the quota without consuming it.
type statusFunc func(ctx context.Context, now time.Time) (quota.Status, error)

// tuiModel is the bubbletea model for the search page.
type tuiModel struct {
	ctx     context.Context
	ctrl    *session.Controller
	status  statusFunc
	changed <-chan struct{}
	notices <-chan noticeMsg

	input       textinput.Model
	focusCmd    tea.Cmd
	spinner     spinner.Model
	suggestions []string
	theme       Theme

	state    models.SessionState
	notice   *noticeMsg
	quota    *quota.Status
	quotaErr error
	quitting bool
}

func newTUIModel(ctx context.Context, ctrl *session.Controller, status statusFunc, changed <-chan struct{}, notices <-chan noticeMsg, theme Theme) tuiModel {
	suggestions := models.Suggestions()

	input := textinput.New()
	input.Placeholder = "Describe your mood... (e.g. cozy cafe with great coffee)"
	input.Prompt = "🔍 "
	input.ShowSuggestions = true
	input.SetSuggestions(models.ExampleSearches)
	input.SetWidth(60)
	input.SetValue(ctrl.Query())
	focusCmd := input.Focus()

	return tuiModel{
		focusCmd:    focusCmd,
		ctx:         ctx,
		ctrl:        ctrl,
		status:      status,
		changed:     changed,
		notices:     notices,
		input:       input,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		suggestions: suggestions,
		theme:       theme,
		state:       ctrl.State(),
	}
}

// Init starts the spinner and the session listeners.
func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		m.focusCmd,
		m.spinner.Tick,
		m.waitForChange(),
		m.waitForNotice(),
		m.refreshQuota(),
	)
}

// Update handles messages and returns the updated model.
func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.ctrl.SetQuery(m.input.Value())
			m.notice = nil
			return m, m.submit()
		case "ctrl+l":
			m.ctrl.ClearQuery()
			m.input.SetValue("")
			return m, nil
		default:
			if i, ok := suggestionIndex(key); ok && i < len(m.suggestions) {
				m.ctrl.ApplySuggestion(m.suggestions[i])
				m.input.SetValue(m.suggestions[i])
				m.input.CursorEnd()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.ctrl.SetQuery(m.input.Value())
		return m, cmd

	case stateMsg:
		m.state = msg.state
		cmds := []tea.Cmd{m.waitForChange()}
		if msg.state.Phase() != models.PhaseLoading {
			cmds = append(cmds, m.refreshQuota())
		}
		return m, tea.Batch(cmds...)

	case noticeMsg:
		m.notice = &msg
		return m, m.waitForNotice()

	case quotaMsg:
		m.quotaErr = msg.err
		if msg.err == nil {
			st := msg.status
			m.quota = &st
		}
		return m, nil

	case submitMsg:
		// Denials arrive as notices; an empty query is silently ignored.
		if msg.err != nil && !errors.Is(msg.err, session.ErrEmptyQuery) && !errors.Is(msg.err, session.ErrQuotaExceeded) {
			m.notice = &noticeMsg{kind: models.NotifyError, title: "Search not started", message: msg.err.Error()}
		}
		return m, m.refreshQuota()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the search page.
func (m tuiModel) View() tea.View {
	v := tea.NewView(m.renderContent())
	v.AltScreen = true
	return v
}

func (m tuiModel) renderContent() string {
	if m.quitting {
		return ""
	}
	t := m.theme

	var b strings.Builder
	b.WriteString(t.titleStyle().Render("MoodDine"))
	b.WriteString(t.hintStyle().Render("  find dining spots that match your mood"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch st := m.state.(type) {
	case models.Idle:
		b.WriteString(m.renderSuggestions())
	case models.Loading:
		b.WriteString(m.spinner.View())
		b.WriteString(renderState(t, st))
	default:
		b.WriteString(renderState(t, st))
	}
	b.WriteString("\n")

	if m.notice != nil {
		style := t.successStyle()
		if m.notice.kind == models.NotifyError {
			style = t.errorStyle()
		}
		b.WriteString("\n")
		b.WriteString(style.Render(m.notice.title))
		if m.notice.message != "" {
			b.WriteString(" " + t.hintStyle().Render(m.notice.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m tuiModel) renderSuggestions() string {
	th := m.theme
	var b strings.Builder
	b.WriteString(th.accentStyle().Render("What's your mood?"))
	b.WriteString("\n")
	for i, s := range m.suggestions {
		if i == len(models.MoodSuggestions) {
			b.WriteString("\n")
			b.WriteString(th.accentStyle().Render("Try searching for"))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %s %s\n", th.hintStyle().Render(fmt.Sprintf("alt+%d", i+1)), s)
	}
	return b.String()
}

func (m tuiModel) renderFooter() string {
	var parts []string
	switch {
	case m.quotaErr != nil:
		parts = append(parts, m.theme.errorStyle().Render("quota unavailable: searches are blocked"))
	case m.quota != nil:
		parts = append(parts, renderQuota(m.theme, *m.quota, time.Now()))
	}
	parts = append(parts, m.theme.hintStyle().Render("enter search · tab complete · ctrl+l clear · esc quit"))
	return strings.Join(parts, "\n")
}

// suggestionIndex maps alt+1..alt+9 to a zero-based index.
func suggestionIndex(key string) (int, bool) {
	if len(key) != 5 || !strings.HasPrefix(key, "alt+") {
		return 0, false
	}
	d := key[4]
	if d < '1' || d > '9' {
		return 0, false
	}
	return int(d - '1'), true
}

// submit runs the quota check off the update loop; Loading arrives as a stateMsg.
func (m tuiModel) submit() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return submitMsg{err: ctrl.SubmitDraft(ctx)}
	}
}

func (m tuiModel) waitForChange() tea.Cmd {
	changed, ctrl := m.changed, m.ctrl
	return func() tea.Msg {
		if _, ok := <-changed; !ok {
			return nil
		}
		return stateMsg{state: ctrl.State()}
	}
}

func (m tuiModel) waitForNotice() tea.Cmd {
	notices := m.notices
	return func() tea.Msg {
		n, ok := <-notices
		if !ok {
			return nil
		}
		return n
	}
}

func (m tuiModel) refreshQuota() tea.Cmd {
	if m.status == nil {
		return nil
	}
	ctx, status := m.ctx, m.status
	return func() tea.Msg {
		st, err := status(ctx, time.Now())
		return quotaMsg{status: st, err: err}
	}
}

// runTUI runs the interactive search page until the user quits.
func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Listeners run under the controller lock, so they only signal.
	changed := make(chan struct{}, 1)
	notices := make(chan noticeMsg, 8)

	ctrl := newController(notify.Func(func(kind models.NotifyKind, title, message string) {
		select {
		case notices <- noticeMsg{kind: kind, title: title, message: message}:
		default:
		}
	}))
	unsubscribe := ctrl.Subscribe(func(models.SessionState) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	model := newTUIModel(ctx, ctrl, gate.Status, changed, notices, defaultTheme)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err := p.Run()

	unsubscribe()
	ctrl.Close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		// Cancelled from outside, e.g. SIGINT delivered to the parent context.
		return nil
	}
	return err
}
