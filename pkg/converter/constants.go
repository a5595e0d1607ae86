package converter

// Constants defining default values for various configuration options.
// These are used when setting up Viper defaults in the configuration loading process.
const (
	// DefaultConcurrency determines the default number of workers. 0 means runtime.NumCPU().
	DefaultConcurrency = 0
	// DefaultCacheEnabled is the default state for caching. Conversion is cheap
	// enough that the cache is opt-in.
	DefaultCacheEnabled = false
	// DefaultTuiEnabled is the default state for the Terminal UI.
	DefaultTuiEnabled = false
	// DefaultOnErrorMode is the default behavior on non-fatal file errors.
	DefaultOnErrorMode = OnErrorContinue
	// DefaultOutputFormat is the default format for the final summary report.
	DefaultOutputFormat = OutputFormatText
	// DefaultGitSinceRef is the default reference for --git-since mode.
	DefaultGitSinceRef = "main"
	// DefaultVerbose is the default state for verbose logging.
	DefaultVerbose = false
)

// Constants related to the cache mechanism.
const (
	// CacheFileName is the standard name for the cache index file.
	CacheFileName = ".eolconverter.cache"
	// CacheSchemaVersion represents the current version of the cache file structure.
	// Increment this if the cache entry struct or serialization format changes incompatibly.
	CacheSchemaVersion = "1.0"
)

// Constants related to report schema.
const (
	// ReportSchemaVersion indicates the version of the JSON report structure.
	ReportSchemaVersion = "1.0"
)

// Constants defining cache status strings used in the Report.
const (
	CacheStatusHit      = "hit"
	CacheStatusMiss     = "miss"
	CacheStatusDisabled = "disabled"
)

// Constants defining skip reasons used in the Report.
const (
	SkipReasonBinary     = "binary_file"
	SkipReasonIgnored    = "ignored_pattern"
	SkipReasonGitExclude = "excluded_by_git_diff"
	SkipReasonDirectory  = "directory"
	SkipReasonSymlink    = "symlink"
)

// IgnoreFileName is the per-tree ignore file consulted during recursive walks.
const IgnoreFileName = ".eolconverterignore"
