// Package cli orchestrates a conversion run after configuration loading: it
// wires the UI surface (TUI, progress bar, or plain logs), the Git client,
// and the cache, invokes the converter library, and renders the final report.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/stackvity/eol-converter/internal/cli/git"
	"github.com/stackvity/eol-converter/internal/cli/hooks"
	"github.com/stackvity/eol-converter/internal/cli/ui"
	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/encoding"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
)

// ErrRunHadErrors indicates the run completed but one or more files failed.
var ErrRunHadErrors = errors.New("run completed with errors")

// Run orchestrates the main application logic after configuration loading.
// With no path arguments and piped stdin it acts as a classic filter:
// converted bytes go to stdout. Otherwise it runs the batch engine.
func Run(ctx context.Context, opts converter.Options, logger *slog.Logger) error {
	if len(opts.Paths) == 0 && len(opts.NewFilePairs) == 0 {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return ConvertStream(os.Stdin, os.Stdout, opts)
		}
		return fmt.Errorf("%w: no input files given and stdin is a terminal", converter.ErrConfigValidation)
	}

	if opts.GitDiffMode != converter.GitDiffModeNone {
		if err := populateGitChangedFiles(&opts, logger); err != nil {
			return err
		}
	}

	// Pick the UI surface. The TUI needs a terminal and quiet logs; the
	// progress bar needs a terminal; everything else logs plainly.
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))
	useTUI := opts.TuiEnabled && isTTY && !opts.Verbose

	var program *tea.Program
	if useTUI {
		model := ui.NewModel(opts.AppVersion)
		program = tea.NewProgram(&model, tea.WithOutput(os.Stderr))
		opts.EventHooks = hooks.NewCLIHooks(logger, true, false, program, nil)
	} else {
		var bar hooks.ProgressBar
		if isTTY && !opts.Quiet && !opts.Verbose {
			bar = newProgressBar()
		}
		opts.EventHooks = hooks.NewCLIHooks(logger, false, opts.Verbose, nil, bar)
	}

	var report converter.Report
	var runErr error

	if useTUI {
		done := make(chan struct{})
		go func() {
			defer close(done)
			report, runErr = converter.Convert(ctx, opts)
			program.Quit()
		}()
		if _, teaErr := program.Run(); teaErr != nil {
			logger.Error("TUI terminated abnormally", slog.Any("error", teaErr))
		}
		<-done
	} else {
		report, runErr = converter.Convert(ctx, opts)
	}

	if runErr != nil {
		logger.Error("Conversion run failed", slog.Any("error", runErr))
		return runErr
	}

	if err := RenderReport(os.Stdout, report, opts.OutputFormat, opts.Quiet); err != nil {
		return err
	}

	if report.Summary.ErrorCount > 0 {
		return fmt.Errorf("%w: %d file(s) failed", ErrRunHadErrors, report.Summary.ErrorCount)
	}
	return nil
}

// populateGitChangedFiles resolves the changed-file set once up front. The
// walker filters by absolute path, so repository-relative results are joined
// against each root.
func populateGitChangedFiles(opts *converter.Options, logger *slog.Logger) error {
	client := git.NewGoGitClient(opts.Logger)
	opts.GitClient = client
	opts.GitChangedFiles = make(map[string]struct{})

	for _, root := range opts.Paths {
		changed, err := client.GetChangedFiles(root, string(opts.GitDiffMode), opts.GitSinceRef)
		if err != nil {
			return err
		}
		for _, rel := range changed {
			absPath, absErr := filepath.Abs(filepath.Join(root, filepath.FromSlash(rel)))
			if absErr != nil {
				continue
			}
			opts.GitChangedFiles[absPath] = struct{}{}
		}
	}
	logger.Debug("Resolved git changed files", slog.Int("count", len(opts.GitChangedFiles)), slog.String("mode", string(opts.GitDiffMode)))
	return nil
}

// ConvertStream converts a single stream, the dos2unix filter mode. The whole
// input is buffered: UTF-16 detection and the BOM policy need the full
// content before the first output byte.
func ConvertStream(r io.Reader, w io.Writer, opts converter.Options) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %w", converter.ErrReadFailed, err)
	}

	enc, auto, err := encoding.Parse(opts.EncodingOverride)
	if err != nil {
		return fmt.Errorf("%w: %w", converter.ErrConfigValidation, err)
	}
	var bomLen int
	if auto {
		enc, bomLen = encoding.Detect(content)
	} else {
		bomLen = encoding.BOMLen(content, enc)
	}

	if !opts.Force && encoding.LooksBinary(content, enc, bomLen) {
		return fmt.Errorf("input looks binary, use --force to convert anyway")
	}

	output, _ := eol.Convert(content, enc, bomLen, eol.Options{
		Target:     opts.Target,
		ConvertMac: opts.ConvertMac,
		AddEOL:     opts.AddEOL,
		KeepBOM:    opts.KeepBOM,
		RemoveBOM:  opts.RemoveBOM,
	})

	if _, err := w.Write(output); err != nil {
		return fmt.Errorf("failed to write converted stream: %w", err)
	}
	return nil
}

// RenderReport writes the final run report to w in the requested format.
// Quiet suppresses the text report but never the structured formats.
func RenderReport(w io.Writer, report converter.Report, format converter.OutputFormat, quiet bool) error {
	switch format {
	case converter.OutputFormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case converter.OutputFormatYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report to YAML: %w", err)
		}
		_, err = w.Write(data)
		return err

	default:
		if quiet {
			return nil
		}
		return renderTextReport(w, report)
	}
}

func renderTextReport(w io.Writer, report converter.Report) error {
	s := report.Summary
	fmt.Fprintf(w, "Target:    %s\n", s.Target)
	fmt.Fprintf(w, "Scanned:   %d\n", s.TotalFilesScanned)
	fmt.Fprintf(w, "Converted: %d\n", s.ConvertedCount)
	fmt.Fprintf(w, "Unchanged: %d\n", s.UnchangedCount)
	if s.CacheEnabled {
		fmt.Fprintf(w, "Cached:    %d\n", s.CachedCount)
	}
	fmt.Fprintf(w, "Skipped:   %d\n", s.SkippedCount)
	fmt.Fprintf(w, "Errors:    %d\n", s.ErrorCount)
	fmt.Fprintf(w, "Duration:  %.3fs\n", s.DurationSeconds)

	for _, skipped := range report.Skipped {
		fmt.Fprintf(w, "skipped %s (%s)\n", skipped.Path, skipped.Reason)
	}
	for _, e := range report.Errors {
		marker := "error"
		if e.IsFatal {
			marker = "fatal"
		}
		fmt.Fprintf(w, "%s %s: %s\n", marker, e.Path, e.Error)
	}
	if s.FatalErrorOccurred {
		fmt.Fprintln(w, "Run halted early due to a fatal error.")
	}
	return nil
}

// newProgressBar builds the spinner-style bar used when the total file count
// is unknown up front.
func newProgressBar() hooks.ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
	)
	return &barAdapter{bar: bar}
}

// barAdapter adapts progressbar.ProgressBar to the hooks.ProgressBar
// interface (Describe returns no error upstream).
type barAdapter struct {
	bar *progressbar.ProgressBar
}

func (a *barAdapter) Add(num int) error {
	return a.bar.Add(num)
}

func (a *barAdapter) Describe(description string) error {
	a.bar.Describe(description)
	return nil
}

func (a *barAdapter) Close() error {
	return a.bar.Close()
}
