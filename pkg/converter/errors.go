package converter

import "errors"

// --- Exported Error Variables ---
// These errors represent specific categories of issues that might be returned
// directly by Convert or encountered during processing. Library users can
// check against these using errors.Is.

var (
	// ErrReadFailed indicates a failure to read a source file from the filesystem.
	// This might be due to permissions, the file being deleted after discovery, or other I/O issues.
	// May be returned wrapped by Convert if fatal, or included in Report.Errors if non-fatal.
	ErrReadFailed = errors.New("failed to read file")

	// ErrStatFailed indicates a failure to get file statistics (like ModTime or permissions) using os.Stat.
	// This might be due to permissions or the file being deleted.
	// May be returned wrapped by Convert if fatal, or included in Report.Errors if non-fatal.
	ErrStatFailed = errors.New("failed to get file stats")

	// ErrSameFile indicates that a new-file pair names the same path as source and
	// destination. In-place conversion must be requested explicitly, not via a
	// degenerate pair.
	ErrSameFile = errors.New("source and destination are the same file")

	// ErrConfigValidation indicates that the provided Options struct failed validation checks
	// performed at the beginning of Convert (e.g., no paths, invalid target style).
	// This is typically returned directly as a fatal error by Convert.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrCachePersist indicates an error occurred while persisting the cache index file.
	// This is logged as an error, but the conversion run itself may still succeed.
	ErrCachePersist = errors.New("failed to persist cache index")
)
