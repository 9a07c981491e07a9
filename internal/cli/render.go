package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/mooddine/internal/metrics"
	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/notify"
	"github.com/raphaelgruber/mooddine/internal/quota"
)

// Theme holds the color scheme for result cards and notices.
type Theme struct {
	Title   lipgloss.Color
	Accent  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Border  lipgloss.Color
	plain   bool
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Title:   lipgloss.Color("#D7875F"), // warm orange
	Accent:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Border:  lipgloss.Color("#3A3A3A"), // dark gray
}

// plainTheme renders without colors or borders, for pipes and tests.
var plainTheme = Theme{plain: true}

func themeFor(w io.Writer) Theme {
	if f, ok := w.(interface{ Fd() uintptr }); ok && isTerminalFd(f.Fd()) {
		return defaultTheme
	}
	return plainTheme
}

func (t Theme) style(c lipgloss.Color) lipgloss.Style {
	if t.plain {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(c)
}

func (t Theme) titleStyle() lipgloss.Style   { return t.style(t.Title).Bold(!t.plain) }
func (t Theme) accentStyle() lipgloss.Style  { return t.style(t.Accent) }
func (t Theme) successStyle() lipgloss.Style { return t.style(t.Success).Bold(!t.plain) }
func (t Theme) errorStyle() lipgloss.Style   { return t.style(t.Error).Bold(!t.plain) }
func (t Theme) hintStyle() lipgloss.Style    { return t.style(t.Hint).Italic(!t.plain) }

func (t Theme) cardStyle() lipgloss.Style {
	if t.plain {
		return lipgloss.NewStyle().PaddingLeft(3)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
}

// notifyStyles maps the theme onto notifier styles.
func (t Theme) notifyStyles() notify.Styles {
	return notify.Styles{
		Success: t.successStyle(),
		Error:   t.errorStyle(),
		Message: t.hintStyle(),
	}
}

// renderState renders any session state.
func renderState(t Theme, s models.SessionState) string {
	switch st := s.(type) {
	case models.Loading:
		return t.accentStyle().Render(fmt.Sprintf("Searching for %q...", st.Query))
	case models.Results:
		return renderResults(t, st)
	case models.Failed:
		return renderFailed(t, st)
	default:
		return t.hintStyle().Render("Tell us what you're craving.")
	}
}

// renderResults renders ranked cards in backend order.
func renderResults(t Theme, r models.Results) string {
	if len(r.Results) == 0 {
		return t.hintStyle().Render(fmt.Sprintf("No places found for %q. Try describing the mood differently.", r.Query))
	}

	var b strings.Builder
	b.WriteString(t.titleStyle().Render(fmt.Sprintf("Perfect matches for %q", r.Query)))
	b.WriteString("\n\n")
	for i, res := range r.Results {
		b.WriteString(renderCard(t, i+1, res))
		b.WriteString("\n")
	}
	return b.String()
}

// renderCard renders one result. Optional fields are omitted when absent.
func renderCard(t Theme, rank int, r models.SearchResult) string {
	var lines []string

	header := fmt.Sprintf("%d. %s", rank, r.Name)
	meta := fmt.Sprintf("★ %.1f", r.Rating)
	switch r.Availability() {
	case models.AvailabilityOpen:
		meta += "  " + t.successStyle().Render(r.Availability().String())
	case models.AvailabilityClosed:
		meta += "  " + t.errorStyle().Render(r.Availability().String())
	}
	lines = append(lines, t.titleStyle().Render(header)+"  "+meta)

	if r.Address != "" {
		lines = append(lines, "📍 "+r.Address)
	}
	if r.RedditSummary != "" {
		lines = append(lines, t.hintStyle().Render(fmt.Sprintf("Reddit (%+d): %s", r.RedditScore, r.RedditSummary)))
	}

	var links []string
	if r.MapLink != "" {
		links = append(links, "map: "+r.MapLink)
	}
	if r.RedditURL != "" {
		links = append(links, "thread: "+r.RedditURL)
	}
	if r.Image != "" {
		links = append(links, "photo: "+r.Image)
	}
	if len(links) > 0 {
		lines = append(lines, t.accentStyle().Render(strings.Join(links, "  ")))
	}
	lines = append(lines, t.hintStyle().Render(fmt.Sprintf("match score %.2f", r.FinalScore)))

	return t.cardStyle().Render(strings.Join(lines, "\n"))
}

func renderFailed(t Theme, f models.Failed) string {
	msg := t.errorStyle().Render(fmt.Sprintf("✗ Search for %q failed (%s)", f.Query, f.Reason))
	return msg + "\n" + t.hintStyle().Render("Please try again.")
}

// renderQuota renders usage; now is used for the relative reset time.
func renderQuota(t Theme, st quota.Status, now time.Time) string {
	line := fmt.Sprintf("%d of %d searches left today", st.Remaining, st.Limit)
	style := t.successStyle()
	if st.Remaining == 0 {
		style = t.errorStyle()
	}
	out := style.Render(line)
	if !st.ResetAt.IsZero() {
		out += t.hintStyle().Render(fmt.Sprintf(" · resets in %s", st.ResetAt.Sub(now).Round(time.Minute)))
	}
	return out
}

// printStats displays session statistics.
func printStats(w io.Writer, s metrics.Snapshot) {
	fmt.Fprintf(w, "\nSession Statistics\n")
	fmt.Fprintf(w, "══════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", s.UptimeSeconds)

	if s.QuotaCheck != nil {
		fmt.Fprintf(w, "\nQuota checks:\n")
		printOpStats(w, s.QuotaCheck)
	}
	if s.Recommend != nil {
		fmt.Fprintf(w, "\nRecommend calls:\n")
		printOpStats(w, s.Recommend)
	}
	if len(s.Outcomes) > 0 {
		fmt.Fprintf(w, "\nOutcomes:\n")
		for _, name := range []string{
			metrics.OutcomeAllowed, metrics.OutcomeDenied,
			metrics.OutcomeSucceeded, metrics.OutcomeFailed, metrics.OutcomeDiscarded,
		} {
			if n := s.Outcomes[name]; n > 0 {
				fmt.Fprintf(w, "  %-10s %d\n", name, n)
			}
		}
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
