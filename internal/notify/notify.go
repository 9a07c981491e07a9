// Package notify implements the fire-and-forget notification side-channel
// used by the search session.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/mooddine/internal/models"
)

// Notifier receives user-facing notifications. Implementations must not block.
type Notifier interface {
	Notify(kind models.NotifyKind, title, message string)
}

// Func adapts a function to Notifier.
type Func func(kind models.NotifyKind, title, message string)

// Notify calls f.
func (f Func) Notify(kind models.NotifyKind, title, message string) {
	f(kind, title, message)
}

// Discard drops every notification.
var Discard Notifier = Func(func(models.NotifyKind, string, string) {})

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(kind models.NotifyKind, title, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(kind, title, message)
		}
	}
}

// LogNotifier records notifications in the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(kind models.NotifyKind, title, message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if kind == models.NotifyError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "notification", "kind", kind.String(), "title", title, "message", message)
}

// Styles controls how WriterNotifier renders each kind.
type Styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Message lipgloss.Style
}

// DefaultStyles matches the CLI theme colors.
func DefaultStyles() Styles {
	return Styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F")).Bold(true),
		Message: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
	}
}

// WriterNotifier prints one styled line per notification.
type WriterNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
}

// NewWriterNotifier writes notifications to w. Pass plain lipgloss styles
// (lipgloss.NewStyle()) to disable colors.
func NewWriterNotifier(w io.Writer, styles Styles) *WriterNotifier {
	return &WriterNotifier{w: w, styles: styles}
}

// Notify implements Notifier.
func (n *WriterNotifier) Notify(kind models.NotifyKind, title, message string) {
	icon, style := "✓", n.styles.Success
	if kind == models.NotifyError {
		icon, style = "✗", n.styles.Error
	}

	line := style.Render(icon + " " + title)
	if message != "" {
		line += " " + n.styles.Message.Render(message)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, line)
}
