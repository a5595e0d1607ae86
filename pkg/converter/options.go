package converter

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackvity/eol-converter/pkg/converter/cache"
	"github.com/stackvity/eol-converter/pkg/converter/encoding"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
	"github.com/stackvity/eol-converter/pkg/converter/fileio"
)

// GitConfig holds settings related to Git integration.
type GitConfig struct {
	DiffOnly bool   `mapstructure:"diffOnly"`
	SinceRef string `mapstructure:"sinceRef"`
}

// Request names one unit of work for the engine: a source file and the path
// its converted content goes to. Destination equal to Source means an
// in-place replacement.
type Request struct {
	Source      string
	Destination string
}

// InPlace reports whether the request replaces its source file.
func (r Request) InPlace() bool {
	return r.Destination == "" || r.Destination == r.Source
}

// Hooks defines callbacks for status updates during the conversion process.
// Implementations MUST be thread-safe as methods may be called concurrently.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnFileDiscovered implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

// OnFileStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// GitClient defines methods for interacting with Git repositories.
type GitClient interface {
	// GetChangedFiles returns repository-relative paths that differ from HEAD
	// (mode "diffOnly") or from the named ref (mode "since").
	GetChangedFiles(repoPath, mode string, ref string) ([]string, error)
}

// NoOpCacheManager provides a default, do-nothing implementation of the
// cache.CacheManager interface. Used when caching is disabled.
type NoOpCacheManager struct{}

// Load implements cache.CacheManager, performs no action.
func (c *NoOpCacheManager) Load(cachePath string) error { return nil }

// Check implements cache.CacheManager, always returns a cache miss.
func (c *NoOpCacheManager) Check(filePath string, modTime time.Time, contentHash string, configHash string) (isHit bool, outputHash string) {
	return false, ""
}

// Update implements cache.CacheManager, performs no action.
func (c *NoOpCacheManager) Update(filePath string, modTime time.Time, sourceHash string, configHash string, outputHash string) error {
	return nil
}

// Persist implements cache.CacheManager, performs no action.
func (c *NoOpCacheManager) Persist(cachePath string) error { return nil }

// ProcessorFactory creates the per-run FileProcessor. Overridable for testing.
type ProcessorFactory func(opts *Options, loggerHandler slog.Handler, cacheMgr cache.CacheManager, writer fileio.FileWriter) FileProcessorAPI

// WalkerFactory creates the per-run directory walker. Overridable for testing.
type WalkerFactory func(opts *Options, requests chan<- Request, logger *slog.Logger, hooks Hooks) WalkerAPI

// Options holds all configuration for a Convert run.
type Options struct {
	// --- Inputs ---
	Paths        []string  `mapstructure:"paths"`        // Files and directories to convert
	Recursive    bool      `mapstructure:"recursive"`    // Descend into directories
	NewFilePairs []Request `mapstructure:"-"`            // Source/destination pairs (new-file mode); overrides Paths

	// --- Conversion Behavior ---
	Target           eol.Style `mapstructure:"target"`    // Target style: "unix" or "dos"
	ConvertMac       bool      `mapstructure:"mac"`       // Treat lone CR as a terminator
	AddEOL           bool      `mapstructure:"addEol"`    // Append a terminator to an unterminated last line
	KeepBOM          bool      `mapstructure:"keepBom"`   // Force a BOM in the output
	RemoveBOM        bool      `mapstructure:"removeBom"` // Strip any BOM from the output
	Force            bool      `mapstructure:"force"`     // Convert files that look binary
	InfoOnly         bool      `mapstructure:"info"`      // Report terminator statistics without writing
	EncodingOverride string    `mapstructure:"encoding"`  // Encoding token, empty or "auto" for detection

	// --- Write Behavior ---
	Backup   bool `mapstructure:"backup"`   // Copy the original to "<source>~" before replacing
	KeepDate bool `mapstructure:"keepDate"` // Preserve the source modification time

	// --- Application Info ---
	AppVersion string `mapstructure:"-"` // Tool version, used for cache validation

	// --- Behavior & Control ---
	ConfigFilePath string      `mapstructure:"-"`          // Path to the loaded config file (for reporting)
	ProfileName    string      `mapstructure:"-"`          // Name of the profile used (for reporting)
	Verbose        bool        `mapstructure:"verbose"`    // Enable debug logging
	Quiet          bool        `mapstructure:"quiet"`      // Suppress per-file progress output
	TuiEnabled     bool        `mapstructure:"tuiEnabled"` // Hint for CLI to use TUI (ignored if Verbose)
	OnErrorMode    OnErrorMode `mapstructure:"onError"`    // Behavior on file processing error ("continue", "stop")

	// --- Performance & Caching ---
	Concurrency     int    `mapstructure:"concurrency"` // Number of workers (0=auto)
	CacheEnabled    bool   `mapstructure:"cache"`       // Enable cache read/write
	IgnoreCacheRead bool   `mapstructure:"-"`           // Force cache miss (set by --no-cache)
	ClearCache      bool   `mapstructure:"-"`           // Delete cache file before run (set by --clear-cache)
	CacheFilePath   string `mapstructure:"-"`           // Resolved path to cache file

	// --- Filtering ---
	IgnorePatterns []string    `mapstructure:"ignore"` // Glob patterns from config/flags (aggregated with .eolconverterignore)
	GitDiffMode    GitDiffMode `mapstructure:"-"`      // Derived from GitConfig / flags ("none", "diffOnly", "since")
	GitSinceRef    string      `mapstructure:"-"`      // Ref for "since" mode
	GitConfig      GitConfig   `mapstructure:"git"`

	// --- Output ---
	OutputFormat OutputFormat `mapstructure:"outputFormat"` // ("text", "json", "yaml") for the final report

	// --- Injected Dependencies & Internal State ---
	EventHooks            Hooks               `mapstructure:"-"` // Required: Callback interface
	Logger                slog.Handler        `mapstructure:"-"` // Required: Logging backend
	GitClient             GitClient           `mapstructure:"-"` // Optional: Git interaction implementation
	CacheManager          cache.CacheManager  `mapstructure:"-"` // Optional: Cache implementation
	Writer                fileio.FileWriter   `mapstructure:"-"` // Optional: Output strategy (defaults to atomic writer)
	GitChangedFiles       map[string]struct{} `mapstructure:"-"` // Populated if GitDiffMode is active
	ProcessorFactory      ProcessorFactory    `mapstructure:"-"` // Optional: Factory for FileProcessor (testing)
	WalkerFactory         WalkerFactory       `mapstructure:"-"` // Optional: Factory for Walker (testing)
	DispatchWarnThreshold time.Duration       `mapstructure:"-"` // Internal: Threshold for logging slow worker dispatch
}

// FileProcessorAPI is the processing contract the engine drives. Satisfied by
// FileProcessor; replaceable in tests via ProcessorFactory.
type FileProcessorAPI interface {
	ProcessFile(ctx context.Context, req Request) (result interface{}, status Status, err error)
}

// WalkerAPI is the discovery contract the engine drives. Satisfied by Walker;
// replaceable in tests via WalkerFactory.
type WalkerAPI interface {
	StartWalk(ctx context.Context, root string) error
}

// parseEncoding resolves the configured encoding override once per run.
func (o *Options) parseEncoding() (encoding.Encoding, bool, error) {
	return encoding.Parse(o.EncodingOverride)
}
