package notify_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/notify"
)

type recorded struct {
	kind           models.NotifyKind
	title, message string
}

func TestMultiFansOutInOrder(t *testing.T) {
	var got []string
	a := notify.Func(func(k models.NotifyKind, title, _ string) { got = append(got, "a:"+title) })
	b := notify.Func(func(k models.NotifyKind, title, _ string) { got = append(got, "b:"+title) })

	notify.Multi{a, nil, b}.Notify(models.NotifySuccess, "Found 2 places", "")

	assert.Equal(t, []string{"a:Found 2 places", "b:Found 2 places"}, got)
}

func TestFuncReceivesArguments(t *testing.T) {
	var got recorded
	n := notify.Func(func(k models.NotifyKind, title, message string) {
		got = recorded{k, title, message}
	})
	n.Notify(models.NotifyError, "Search failed", "timeout")
	assert.Equal(t, recorded{models.NotifyError, "Search failed", "timeout"}, got)

	// Discard must be safe to call.
	notify.Discard.Notify(models.NotifyError, "x", "y")
}

func TestWriterNotifierPlain(t *testing.T) {
	var buf bytes.Buffer
	plain := notify.Styles{Success: lipgloss.NewStyle(), Error: lipgloss.NewStyle(), Message: lipgloss.NewStyle()}
	n := notify.NewWriterNotifier(&buf, plain)

	n.Notify(models.NotifySuccess, "Found 2 places", "")
	n.Notify(models.NotifyError, "Daily limit reached", "try again tomorrow")

	assert.Equal(t, "✓ Found 2 places\n✗ Daily limit reached try again tomorrow\n", buf.String())
}

func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	n := notify.LogNotifier{Logger: logger}

	n.Notify(models.NotifyError, "Search failed", "boom")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "error", entry["kind"])
	assert.Equal(t, "Search failed", entry["title"])
	assert.Equal(t, "boom", entry["message"])
}
