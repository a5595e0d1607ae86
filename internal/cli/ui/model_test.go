package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stackvity/eol-converter/internal/cli/hooks"
	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// update runs one Update cycle and returns the mutated model.
func update(t *testing.T, m *Model, msg tea.Msg) *Model {
	t.Helper()
	updated, _ := m.Update(msg)
	result, ok := updated.(*Model)
	require.True(t, ok, "Update must return *Model")
	return result
}

func newSizedModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel("1.2.3")
	return update(t, &m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func TestModel_WindowSizeInitializes(t *testing.T) {
	m := NewModel("dev")
	assert.False(t, m.initialized)

	result := update(t, &m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.True(t, result.initialized)
	assert.Equal(t, 80, result.width)
	assert.Equal(t, 24, result.height)
}

func TestModel_FileDiscoveredAddsItem(t *testing.T) {
	m := newSizedModel(t)

	m = update(t, m, hooks.FileDiscoveredMsg{Path: "a.txt"})
	m = update(t, m, hooks.FileDiscoveredMsg{Path: "b.txt"})
	// Duplicate discovery must not double-count.
	m = update(t, m, hooks.FileDiscoveredMsg{Path: "a.txt"})

	assert.Equal(t, 2, m.summary.TotalFilesScanned)
	assert.Len(t, m.fileItems, 2)
	assert.Equal(t, "Scanning...", m.phaseMessage)
}

func TestModel_StatusUpdateTransitions(t *testing.T) {
	m := newSizedModel(t)
	m = update(t, m, hooks.FileDiscoveredMsg{Path: "a.txt"})

	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "a.txt", Status: converter.StatusProcessing})
	assert.Equal(t, "Converting...", m.phaseMessage)
	assert.Equal(t, 0, m.summary.ConvertedCount)

	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "a.txt", Status: converter.StatusDone})
	assert.Equal(t, 1, m.summary.ConvertedCount)
	assert.Equal(t, converter.StatusDone, m.fileItems[0].status)
}

func TestModel_StatusUpdateCountsByFinalState(t *testing.T) {
	m := newSizedModel(t)
	for _, path := range []string{"done.txt", "skip.txt", "cached.txt", "fail.txt"} {
		m = update(t, m, hooks.FileDiscoveredMsg{Path: path})
	}

	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "done.txt", Status: converter.StatusDone})
	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "skip.txt", Status: converter.StatusSkipped, Message: "binary_file: skipped"})
	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "cached.txt", Status: converter.StatusCached})
	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "fail.txt", Status: converter.StatusFailed, Message: "read failed"})

	assert.Equal(t, 1, m.summary.ConvertedCount)
	assert.Equal(t, 1, m.summary.SkippedCount)
	assert.Equal(t, 1, m.summary.CachedCount)
	assert.Equal(t, 1, m.summary.ErrorCount)
}

func TestModel_StatusUpdateForUnknownItemAddsIt(t *testing.T) {
	m := newSizedModel(t)

	m = update(t, m, hooks.FileStatusUpdateMsg{Path: "surprise.txt", Status: converter.StatusDone})

	assert.Equal(t, 1, m.summary.TotalFilesScanned)
	assert.Equal(t, 1, m.summary.ConvertedCount)
	require.Len(t, m.fileItems, 1)
	assert.Equal(t, "surprise.txt", m.fileItems[0].path)
}

func TestModel_RunCompleteUsesReportCounts(t *testing.T) {
	m := newSizedModel(t)

	report := converter.Report{
		Summary: converter.ReportSummary{
			ConvertedCount: 5,
			CachedCount:    2,
			SkippedCount:   1,
			ErrorCount:     1,
		},
	}
	m = update(t, m, hooks.RunCompleteMsg{Report: report})

	assert.Equal(t, "Complete", m.phaseMessage)
	assert.Equal(t, 5, m.summary.ConvertedCount)
	assert.Equal(t, 2, m.summary.CachedCount)
	assert.Equal(t, 1, m.summary.SkippedCount)
	assert.Equal(t, 1, m.summary.ErrorCount)
	assert.Empty(t, m.fatalError)
}

func TestModel_RunCompleteSurfacesFatalError(t *testing.T) {
	m := newSizedModel(t)

	report := converter.Report{
		Summary: converter.ReportSummary{FatalErrorOccurred: true, ErrorCount: 1},
		Errors: []converter.ErrorInfo{
			{Path: "broken.txt", Error: "disk full", IsFatal: true},
		},
	}
	m = update(t, m, hooks.RunCompleteMsg{Report: report})

	assert.Contains(t, m.fatalError, "disk full")
	assert.Contains(t, m.fatalError, "broken.txt")
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := newSizedModel(t)

			var msg tea.KeyMsg
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			} else {
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}
			updated, cmd := m.Update(msg)
			result := updated.(*Model)

			assert.True(t, result.quitting)
			require.NotNil(t, cmd)
		})
	}
}

func TestModel_UpdateListMsgSyncsItems(t *testing.T) {
	m := newSizedModel(t)
	m = update(t, m, hooks.FileDiscoveredMsg{Path: "a.txt"})

	m = update(t, m, UpdateListMsg{})
	assert.Len(t, m.list.Items(), 1)
}

func TestIsFinalStatus(t *testing.T) {
	assert.True(t, isFinalStatus(converter.StatusDone))
	assert.True(t, isFinalStatus(converter.StatusFailed))
	assert.True(t, isFinalStatus(converter.StatusSkipped))
	assert.True(t, isFinalStatus(converter.StatusCached))
	assert.False(t, isFinalStatus(converter.StatusPending))
	assert.False(t, isFinalStatus(converter.StatusProcessing))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "", formatDuration(0))
	assert.Equal(t, "500µs", formatDuration(500*time.Microsecond))
	assert.Equal(t, "42ms", formatDuration(42*time.Millisecond))
	assert.Equal(t, "1.50s", formatDuration(1500*time.Millisecond))
}
