// Package hooks bridges converter events to the CLI's output surfaces: the
// TUI, the progress bar, or the structured logger.
package hooks

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stackvity/eol-converter/pkg/converter"
)

// --- TUI Message Structs ---

// FileDiscoveredMsg signals that a file/directory was found by the walker.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a file's processing status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   converter.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg signals the completion of the entire conversion run.
type RunCompleteMsg struct{ Report converter.Report }

// --- Hook Implementation ---

// CLIHooks implements the converter.Hooks interface, bridging library events
// to the CLI's UI layer (TUI, Logger, Progress Bar).
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
	progressBar    ProgressBar
	hasBar         bool
	mu             sync.Mutex // Protects concurrent access to progressBar
}

// TUIProgram defines the interface needed to interact with the Bubble Tea program.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// ProgressBar defines the interface needed to interact with the progress bar.
type ProgressBar interface {
	Add(num int) error
	Describe(description string) error
	Close() error
}

// NoOpTUIProgram provides a default null implementation.
type NoOpTUIProgram struct{}

// Send implements TUIProgram.
func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// NoOpProgressBar provides a default null implementation.
type NoOpProgressBar struct{}

// Add implements ProgressBar.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe implements ProgressBar.
func (n *NoOpProgressBar) Describe(description string) error { return nil }

// Close implements ProgressBar.
func (n *NoOpProgressBar) Close() error { return nil }

// NewCLIHooks creates a new CLIHooks instance. Pass nil for tuiProgram or
// progressBar if not applicable; NoOp versions will be used.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, progBar ProgressBar) converter.Hooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	hasBar := progBar != nil
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:         logger,
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
		progressBar:    progBar,
		hasBar:         hasBar,
	}
}

// OnFileDiscovered handles the event when a file or directory is found by the walker.
func (h *CLIHooks) OnFileDiscovered(path string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileDiscoveredMsg{Path: path})
	} else if h.verboseEnabled {
		h.logger.Debug("File discovered", "path", path)
	}
	return nil // Library ignores hook errors
}

// OnFileStatusUpdate handles events when a file's processing status changes.
// This method MUST be thread-safe.
func (h *CLIHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileStatusUpdateMsg{
			Path:     path,
			Status:   status,
			Message:  message,
			Duration: duration,
		})
		return nil
	}

	if h.verboseEnabled {
		logLevel := slog.LevelDebug
		logMsg := "File status updated"
		attrs := []any{
			slog.String("path", path),
			slog.String("status", string(status)),
		}
		if duration > 0 {
			attrs = append(attrs, slog.Duration("duration", duration))
		}
		if message != "" {
			logKey := "message"
			if status == converter.StatusFailed {
				logKey = "error"
			}
			attrs = append(attrs, slog.String(logKey, message))
		}

		switch status {
		case converter.StatusDone, converter.StatusCached, converter.StatusSkipped:
			logLevel = slog.LevelInfo
		case converter.StatusFailed:
			logLevel = slog.LevelError
			logMsg = "File processing failed"
		}
		h.logger.Log(nil, logLevel, logMsg, attrs...)
		return nil
	}

	// Progress bar mode.
	h.mu.Lock()
	defer h.mu.Unlock()

	isFinalState := status == converter.StatusDone ||
		status == converter.StatusFailed ||
		status == converter.StatusSkipped ||
		status == converter.StatusCached

	if isFinalState {
		_ = h.progressBar.Add(1)
	}

	// Failures surface even when only the bar is visible.
	if status == converter.StatusFailed {
		h.logger.Error("File processing failed", "path", path, "error", message)
	}

	return nil // Library ignores hook errors
}

// OnRunComplete handles the event when the entire conversion process finishes.
// Sends the final report to the TUI or finalizes the progress bar.
func (h *CLIHooks) OnRunComplete(report converter.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
	} else if h.hasBar {
		h.mu.Lock()
		_ = h.progressBar.Close()
		h.mu.Unlock()
		// Newline after the bar so the report does not overlap it.
		_, _ = fmt.Fprintf(os.Stderr, "\n")
	}
	return nil // Library ignores hook errors
}
