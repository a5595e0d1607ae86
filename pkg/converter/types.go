package converter

// Status defines the possible processing states of a file during a conversion run.
type Status string

// Constants representing the defined file processing statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusCached     Status = "cached"
)

// OnErrorMode defines the behavior when a non-fatal error occurs during file processing.
type OnErrorMode string

const (
	OnErrorContinue OnErrorMode = "continue"
	OnErrorStop     OnErrorMode = "stop"
)

// OutputFormat defines the format for the final summary report printed to standard output.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// GitDiffMode defines the strategy for using Git differences to filter processed files.
type GitDiffMode string

const (
	GitDiffModeNone     GitDiffMode = "none"
	GitDiffModeDiffOnly GitDiffMode = "diffOnly"
	GitDiffModeSince    GitDiffMode = "since"
)

// BOMAction names what happened to a file's byte order mark during conversion.
type BOMAction string

const (
	BOMActionNone    BOMAction = "none"
	BOMActionKept    BOMAction = "kept"
	BOMActionAdded   BOMAction = "added"
	BOMActionRemoved BOMAction = "removed"
)
