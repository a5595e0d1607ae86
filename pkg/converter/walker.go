package converter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stackvity/eol-converter/pkg/util"
)

// Walker traverses a directory root, applies ignore rules and the Git diff
// filter, and dispatches eligible files to the worker pool as in-place
// conversion requests. One Walker serves all roots of a run; the request
// channel is owned and closed by the engine's feeder, not the walker.
type Walker struct {
	opts                 *Options
	requests             chan<- Request
	hooks                Hooks
	logger               *slog.Logger
	gitDiffMap           map[string]struct{}
	dispatchWarnDuration time.Duration
}

// NewWalker creates a new Walker instance.
func NewWalker(opts *Options, requests chan<- Request, logger *slog.Logger, hooks Hooks) WalkerAPI {
	gitDiffMap := make(map[string]struct{})
	if opts.GitDiffMode == GitDiffModeDiffOnly || opts.GitDiffMode == GitDiffModeSince {
		if opts.GitChangedFiles == nil {
			logger.Warn("Git diff mode active but no changed files map provided via Options.GitChangedFiles")
		} else {
			logger.Debug("Git diff mode active, using provided filter map",
				slog.String("mode", string(opts.GitDiffMode)),
				slog.Int("files_in_diff", len(opts.GitChangedFiles)))
			gitDiffMap = opts.GitChangedFiles
		}
	}
	dispatchWarnDuration := opts.DispatchWarnThreshold
	if dispatchWarnDuration <= 0 {
		dispatchWarnDuration = 1 * time.Second
	}
	return &Walker{
		opts:                 opts,
		requests:             requests,
		hooks:                hooks,
		logger:               logger.With(slog.String("component", "walker")),
		gitDiffMap:           gitDiffMap,
		dispatchWarnDuration: dispatchWarnDuration,
	}
}

// StartWalk traverses one root directory. Ignore patterns come from the
// configuration plus the nearest ignore file found walking up from the root.
func (w *Walker) StartWalk(ctx context.Context, root string) error {
	w.logger.Info("Starting directory walk", slog.String("path", root))
	matcher, err := newIgnoreMatcher(root, w.opts.IgnorePatterns, w.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ignore patterns: %w", err)
	}
	w.logger.Debug("Ignore patterns loaded", slog.Int("count", matcher.patternCount()))

	walkErr := filepath.WalkDir(root, w.walkFunc(ctx, root, matcher))
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			w.logger.Info("Directory walk cancelled", slog.String("reason", walkErr.Error()))
			return walkErr
		}
		w.logger.Error("Directory walk encountered an error during traversal", slog.String("error", walkErr.Error()))
		return fmt.Errorf("directory walk failed: %w", walkErr)
	}
	w.logger.Info("Directory walk completed", slog.String("path", root))
	return nil
}

// walkFunc returns the WalkDirFunc used by filepath.WalkDir for one root.
func (w *Walker) walkFunc(ctx context.Context, root string, matcher *ignoreMatcher) fs.WalkDirFunc {
	isGitDiffActive := w.opts.GitDiffMode == GitDiffModeDiffOnly || w.opts.GitDiffMode == GitDiffModeSince
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Error accessing path during walk", slog.String("path", path), slog.String("error", err.Error()))
			if path == root && os.IsPermission(err) {
				return fmt.Errorf("permission denied reading directory %q: %w", path, err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// Symlinks are never followed; a link to a directory could otherwise
		// pull files from outside the requested tree into the rewrite.
		if d.Type()&fs.ModeSymlink != 0 {
			w.logger.Debug("Skipping symbolic link", slog.String("path", path))
			return nil
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			w.logger.Warn("Could not get absolute path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		relativePath, err := filepath.Rel(root, absPath)
		if err != nil {
			w.logger.Warn("Could not calculate relative path", slog.String("path", absPath), slog.String("root", root), slog.String("error", err.Error()))
			return nil
		}
		relativePath = filepath.ToSlash(relativePath)
		if relativePath == "." {
			return nil
		}
		if hookErr := w.hooks.OnFileDiscovered(relativePath); hookErr != nil {
			w.logger.Warn("Event hook OnFileDiscovered failed", slog.String("path", relativePath), slog.String("error", hookErr.Error()))
		}
		isDir := d.IsDir()
		if matcher.Match(relativePath, isDir) {
			matchedPattern := matcher.LastMatchPattern(relativePath, isDir)
			w.logger.Debug("Path ignored", slog.String("path", relativePath), slog.Bool("isDir", isDir), slog.String("pattern", matchedPattern))
			statusMsg := fmt.Sprintf("Ignored by pattern: %s", matchedPattern)
			if hookErr := w.hooks.OnFileStatusUpdate(relativePath, StatusSkipped, statusMsg, 0); hookErr != nil {
				w.logger.Warn("Event hook OnFileStatusUpdate (Ignored) failed", slog.String("path", relativePath), slog.String("error", hookErr.Error()))
			}
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}
		if isDir {
			return nil
		}
		if isGitDiffActive {
			if _, found := w.gitDiffMap[absPath]; !found {
				w.logger.Debug("Path excluded by Git diff", slog.String("path", relativePath))
				statusMsg := fmt.Sprintf("Excluded by Git diff mode %s", w.opts.GitDiffMode)
				if hookErr := w.hooks.OnFileStatusUpdate(relativePath, StatusSkipped, statusMsg, 0); hookErr != nil {
					w.logger.Warn("Event hook OnFileStatusUpdate (Git Skipped) failed", slog.String("path", relativePath), slog.String("error", hookErr.Error()))
				}
				return nil
			}
			w.logger.Debug("Path included by Git diff", slog.String("path", relativePath))
		}
		w.logger.Debug("Dispatching file to worker channel", slog.String("path", relativePath))
		timer := time.NewTimer(w.dispatchWarnDuration)
		defer timer.Stop()
		req := Request{Source: absPath}
		select {
		case w.requests <- req:
		case <-timer.C:
			w.logger.Warn("Worker channel dispatch blocked, workers might be busy or pool too small", slog.String("path", relativePath), slog.Duration("threshold", w.dispatchWarnDuration))
			select {
			case w.requests <- req:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
}

// --- ignoreMatcher ---

type ignoreMatcher struct {
	patterns []ignorePattern
	basePath string // Absolute path to the walk root
	logger   *slog.Logger
}

type ignorePattern struct {
	pattern     string // Cleaned pattern string for matching (using '/' separators)
	origPattern string // Original pattern string for reporting
	negated     bool
	isDirOnly   bool
	isRooted    bool   // Pattern started with '/' relative to its base
	baseAbsPath string // Absolute path of the dir containing the defining ignore file or the walk root
}

// newIgnoreMatcher creates an ignoreMatcher by loading patterns.
func newIgnoreMatcher(root string, configPatterns []string, logger *slog.Logger) (*ignoreMatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for root: %w", err)
	}
	matcher := &ignoreMatcher{
		patterns: make([]ignorePattern, 0),
		basePath: absRoot,
		logger:   logger.With(slog.String("component", "ignoreMatcher")),
	}
	ignoreFilePath, err := findIgnoreFile(absRoot)
	if err != nil {
		matcher.logger.Warn("Error searching for ignore file", slog.String("error", err.Error()))
	}
	if ignoreFilePath != "" {
		matcher.logger.Debug("Loading ignore patterns from file", slog.String("path", ignoreFilePath))
		filePatterns, err := loadPatternsFromFile(ignoreFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file %s: %w", ignoreFilePath, err)
		}
		ignoreFileBaseDir := filepath.Dir(ignoreFilePath)
		matcher.addPatterns(filePatterns, ignoreFileBaseDir)
		matcher.logger.Debug("Loaded patterns from ignore file", slog.Int("count", len(filePatterns)))
	} else {
		matcher.logger.Debug("No ignore file found walking up from root", slog.String("file", IgnoreFileName))
	}
	matcher.addPatterns(configPatterns, absRoot)
	matcher.logger.Debug("Total processed ignore patterns", slog.Int("count", len(matcher.patterns)))
	return matcher, nil
}

// findIgnoreFile walks up from startPath looking for the ignore file.
func findIgnoreFile(absStartPath string) (string, error) {
	currentPath := absStartPath
	for {
		potentialPath := filepath.Join(currentPath, IgnoreFileName)
		if _, err := os.Stat(potentialPath); err == nil {
			return potentialPath, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("error checking for ignore file at %s: %w", potentialPath, err)
		}
		parent := filepath.Dir(currentPath)
		if parent == currentPath || parent == "" {
			break
		}
		currentPath = parent
	}
	return "", nil
}

// loadPatternsFromFile reads an ignore file and returns its pattern lines.
func loadPatternsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open ignore file %s: %w", filePath, err)
	}
	defer file.Close()
	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", filePath, err)
	}
	return patterns, nil
}

// addPatterns processes raw string patterns into ignorePattern structs.
func (m *ignoreMatcher) addPatterns(rawPatterns []string, baseAbsPath string) {
	for _, rawPattern := range rawPatterns {
		p := ignorePattern{origPattern: rawPattern, baseAbsPath: baseAbsPath}
		trimmedPattern := rawPattern
		if strings.HasPrefix(trimmedPattern, "!") {
			p.negated = true
			trimmedPattern = trimmedPattern[1:]
		}
		trimmedPattern = strings.TrimSpace(trimmedPattern)
		if strings.HasPrefix(trimmedPattern, "/") {
			p.isRooted = true
			trimmedPattern = strings.TrimPrefix(trimmedPattern, "/")
		}
		if strings.HasSuffix(trimmedPattern, "/") {
			p.isDirOnly = true
			trimmedPattern = strings.TrimSuffix(trimmedPattern, "/")
		}
		p.pattern = filepath.ToSlash(trimmedPattern)
		if p.pattern == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
}

// Match checks if a given path (relative to the walk root) matches any ignore
// patterns. The last matching pattern wins, so negations can re-include paths.
func (m *ignoreMatcher) Match(relativePath string, isDir bool) bool {
	lastMatchResult := false
	for _, p := range m.patterns {
		if util.MatchesGitignore(p.pattern, p.baseAbsPath, m.basePath, relativePath, p.isRooted) {
			if p.isDirOnly && !isDir {
				continue
			}
			lastMatchResult = !p.negated
		}
	}
	return lastMatchResult
}

// LastMatchPattern returns the original pattern string that determined the final match decision.
func (m *ignoreMatcher) LastMatchPattern(relativePath string, isDir bool) string {
	lastPattern := ""
	matched := false
	lastMatchResult := false
	for _, p := range m.patterns {
		if util.MatchesGitignore(p.pattern, p.baseAbsPath, m.basePath, relativePath, p.isRooted) {
			if p.isDirOnly && !isDir {
				continue
			}
			matched = true
			lastPattern = p.origPattern
			lastMatchResult = !p.negated
		}
	}
	if matched && lastMatchResult {
		return lastPattern
	}
	return ""
}

// patternCount returns the number of processed patterns.
func (m *ignoreMatcher) patternCount() int {
	return len(m.patterns)
}
