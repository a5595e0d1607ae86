package hooks

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTUIProgram struct {
	mu   sync.Mutex
	msgs []interface{}
}

func (m *mockTUIProgram) Send(msg tea.Msg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *mockTUIProgram) messages() []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}(nil), m.msgs...)
}

type mockProgressBar struct {
	mu        sync.Mutex
	added     int
	closed    bool
	described []string
}

func (m *mockProgressBar) Add(num int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added += num
	return nil
}

func (m *mockProgressBar) Describe(description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.described = append(m.described, description)
	return nil
}

func (m *mockProgressBar) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCLIHooks_TUIModeSendsMessages(t *testing.T) {
	prog := &mockTUIProgram{}
	h := NewCLIHooks(discardLogger(), true, false, prog, nil)

	require.NoError(t, h.OnFileDiscovered("a.txt"))
	require.NoError(t, h.OnFileStatusUpdate("a.txt", converter.StatusDone, "", 5*time.Millisecond))
	require.NoError(t, h.OnRunComplete(converter.Report{}))

	msgs := prog.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, FileDiscoveredMsg{Path: "a.txt"}, msgs[0])
	assert.Equal(t, FileStatusUpdateMsg{Path: "a.txt", Status: converter.StatusDone, Duration: 5 * time.Millisecond}, msgs[1])
	assert.IsType(t, RunCompleteMsg{}, msgs[2])
}

func TestCLIHooks_ProgressBarCountsFinalStates(t *testing.T) {
	bar := &mockProgressBar{}
	h := NewCLIHooks(discardLogger(), false, false, nil, bar)

	require.NoError(t, h.OnFileStatusUpdate("a.txt", converter.StatusDone, "", 0))
	require.NoError(t, h.OnFileStatusUpdate("b.txt", converter.StatusSkipped, "binary_file", 0))
	require.NoError(t, h.OnFileStatusUpdate("c.txt", converter.StatusCached, "", 0))
	require.NoError(t, h.OnFileStatusUpdate("d.txt", converter.StatusFailed, "boom", 0))
	// Intermediate states must not advance the bar.
	require.NoError(t, h.OnFileStatusUpdate("e.txt", converter.StatusProcessing, "", 0))

	assert.Equal(t, 4, bar.added)
}

func TestCLIHooks_RunCompleteClosesBar(t *testing.T) {
	bar := &mockProgressBar{}
	h := NewCLIHooks(discardLogger(), false, false, nil, bar)

	require.NoError(t, h.OnRunComplete(converter.Report{}))
	assert.True(t, bar.closed)
}

func TestCLIHooks_VerboseModeLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewCLIHooks(logger, false, true, nil, nil)

	require.NoError(t, h.OnFileDiscovered("a.txt"))
	require.NoError(t, h.OnFileStatusUpdate("a.txt", converter.StatusDone, "", 2*time.Millisecond))
	require.NoError(t, h.OnFileStatusUpdate("b.txt", converter.StatusFailed, "read error", 0))

	out := buf.String()
	assert.Contains(t, out, "File discovered")
	assert.Contains(t, out, "File status updated")
	assert.Contains(t, out, "File processing failed")
	assert.Contains(t, out, "read error")
}

func TestCLIHooks_FailureLoggedInBarMode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	bar := &mockProgressBar{}
	h := NewCLIHooks(logger, false, false, nil, bar)

	require.NoError(t, h.OnFileStatusUpdate("a.txt", converter.StatusFailed, "permission denied", 0))

	assert.Contains(t, buf.String(), "permission denied")
	assert.Equal(t, 1, bar.added)
}

func TestCLIHooks_NilDependenciesAreSafe(t *testing.T) {
	h := NewCLIHooks(discardLogger(), false, false, nil, nil)

	assert.NoError(t, h.OnFileDiscovered("a.txt"))
	assert.NoError(t, h.OnFileStatusUpdate("a.txt", converter.StatusDone, "", 0))
	assert.NoError(t, h.OnRunComplete(converter.Report{}))
}

func TestCLIHooks_ConcurrentStatusUpdates(t *testing.T) {
	bar := &mockProgressBar{}
	h := NewCLIHooks(discardLogger(), false, false, nil, bar)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = h.OnFileStatusUpdate("f.txt", converter.StatusDone, "", 0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16*25, bar.added)
}
