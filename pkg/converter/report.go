package converter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stackvity/eol-converter/pkg/converter/eol"
)

// Report summarizes the result of a single Convert run.
type Report struct {
	Summary   ReportSummary `json:"summary"`
	Converted []Outcome     `json:"converted"`
	Skipped   []SkippedInfo `json:"skipped"`
	Errors    []ErrorInfo   `json:"errors"`
}

// ReportSummary contains aggregated statistics for a Convert run.
type ReportSummary struct {
	Target             eol.Style `json:"target"`
	ProfileUsed        string    `json:"profileUsed,omitempty"`
	ConfigFilePath     string    `json:"configFilePath,omitempty"`
	TotalFilesScanned  int       `json:"totalFilesScanned"`
	ConvertedCount     int       `json:"convertedCount"`
	UnchangedCount     int       `json:"unchangedCount"`
	CachedCount        int       `json:"cachedCount"`
	SkippedCount       int       `json:"skippedCount"`
	ErrorCount         int       `json:"errorCount"`
	FatalErrorOccurred bool      `json:"fatalError"`
	DurationSeconds    float64   `json:"durationSeconds"`
	CacheEnabled       bool      `json:"cacheEnabled"`
	Concurrency        int       `json:"concurrency"`
	Timestamp          time.Time `json:"timestamp"`
	SchemaVersion      string    `json:"schemaVersion,omitempty"`
}

// Outcome details a single file that was examined or converted. Changed is
// false for files already in the target style; such files are counted as
// unchanged and their bytes are never rewritten.
type Outcome struct {
	Path         string    `json:"path"`
	Destination  string    `json:"destination,omitempty"`
	Encoding     string    `json:"encoding"`
	BOM          BOMAction `json:"bom"`
	CRLF         int       `json:"crlf"`
	LF           int       `json:"lf"`
	CR           int       `json:"cr"`
	Dominant     eol.Style `json:"dominant"`
	Mixed        bool      `json:"mixed"`
	FinalEOL     bool      `json:"finalEol"`
	Converted    int       `json:"convertedTerminators"`
	BytesWritten int       `json:"bytesWritten"`
	Changed      bool      `json:"changed"`
	CacheStatus  string    `json:"cacheStatus"`
	DurationMs   int64     `json:"durationMs"`
}

// ExampleOutcome provides an example of how Outcome might be populated.
func ExampleOutcome() {
	o := Outcome{
		Path:         "src/main.c",
		Encoding:     "utf-8",
		BOM:          BOMActionNone,
		CRLF:         42,
		LF:           0,
		CR:           0,
		Dominant:     eol.StyleDos,
		FinalEOL:     true,
		Converted:    42,
		BytesWritten: 1494,
		Changed:      true,
		CacheStatus:  "miss",
		DurationMs:   3,
	}
	data, _ := json.MarshalIndent(o, "", "  ")
	fmt.Println(string(data))
}

// SkippedInfo details a file that was intentionally skipped during a run.
type SkippedInfo struct {
	Path    string `json:"path"`
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

// ErrorInfo details a non-fatal error encountered while processing a specific file.
type ErrorInfo struct {
	Path    string `json:"path"`
	Error   string `json:"error"`
	IsFatal bool   `json:"isFatal"`
}
