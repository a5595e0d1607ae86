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

func TestView_Uninitialized(t *testing.T) {
	m := NewModel("dev")
	assert.Equal(t, "Initializing...", m.View())
}

func TestView_Quitting(t *testing.T) {
	m := newSizedModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Equal(t, "Exiting...\n", m.View())
}

func TestView_HeaderAndFooter(t *testing.T) {
	m := newSizedModel(t)

	view := m.View()
	assert.Contains(t, view, "EOL Converter v1.2.3")
	assert.Contains(t, view, "q: quit")
	assert.Contains(t, view, "Converted: 0")
}

func TestView_SummaryCountsRendered(t *testing.T) {
	m := newSizedModel(t)

	report := converter.Report{
		Summary: converter.ReportSummary{
			ConvertedCount: 7,
			CachedCount:    3,
			SkippedCount:   2,
			ErrorCount:     1,
		},
	}
	m = update(t, m, hooks.RunCompleteMsg{Report: report})

	view := m.View()
	assert.Contains(t, view, "Converted: 7 (Cached: 3)")
	assert.Contains(t, view, "Skipped: 2")
	assert.Contains(t, view, "Failed: 1")
	assert.Contains(t, view, "Complete")
}

func TestView_FatalErrorRendered(t *testing.T) {
	m := newSizedModel(t)

	report := converter.Report{
		Summary: converter.ReportSummary{FatalErrorOccurred: true},
		Errors:  []converter.ErrorInfo{{Path: "x.txt", Error: "boom", IsFatal: true}},
	}
	m = update(t, m, hooks.RunCompleteMsg{Report: report})

	assert.Contains(t, m.View(), "boom")
}

func TestListItem_Description(t *testing.T) {
	testCases := []struct {
		name     string
		item     listItem
		contains string
	}{
		{"done with duration", listItem{path: "a.txt", status: converter.StatusDone, duration: 10 * time.Millisecond}, "10ms"},
		{"failed shows message", listItem{path: "a.txt", status: converter.StatusFailed, message: "read failed"}, "read failed"},
		{"skipped shows reason", listItem{path: "a.txt", status: converter.StatusSkipped, message: "binary_file: looks binary"}, "binary_file"},
		{"done icon", listItem{path: "a.txt", status: converter.StatusDone}, "✓"},
		{"failed icon", listItem{path: "a.txt", status: converter.StatusFailed}, "✗"},
		{"cached icon", listItem{path: "a.txt", status: converter.StatusCached}, "C"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, tc.item.Description(), tc.contains)
		})
	}
}

func TestListItem_TitleAndFilterValue(t *testing.T) {
	item := listItem{path: "dir/file.txt"}
	require.Equal(t, "dir/file.txt", item.Title())
	require.Equal(t, "dir/file.txt", item.FilterValue())
}
