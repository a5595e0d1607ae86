package converter_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

// reportSchema pins the wire shape of the JSON report. Consumers script
// against these field names, so renames must be deliberate.
const reportSchema = `{
	"type": "object",
	"required": ["summary", "converted", "skipped", "errors"],
	"properties": {
		"summary": {
			"type": "object",
			"required": [
				"target", "totalFilesScanned", "convertedCount", "unchangedCount",
				"cachedCount", "skippedCount", "errorCount", "fatalError",
				"durationSeconds", "cacheEnabled", "concurrency", "timestamp"
			],
			"properties": {
				"target": {"type": "string", "enum": ["unix", "dos"]},
				"totalFilesScanned": {"type": "integer", "minimum": 0},
				"convertedCount": {"type": "integer", "minimum": 0},
				"unchangedCount": {"type": "integer", "minimum": 0},
				"cachedCount": {"type": "integer", "minimum": 0},
				"skippedCount": {"type": "integer", "minimum": 0},
				"errorCount": {"type": "integer", "minimum": 0},
				"fatalError": {"type": "boolean"},
				"durationSeconds": {"type": "number"},
				"cacheEnabled": {"type": "boolean"},
				"concurrency": {"type": "integer"},
				"timestamp": {"type": "string"},
				"schemaVersion": {"type": "string"}
			}
		},
		"converted": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["path", "encoding", "bom", "crlf", "lf", "cr", "changed"],
				"properties": {
					"path": {"type": "string"},
					"encoding": {"type": "string"},
					"bom": {"type": "string", "enum": ["none", "kept", "added", "removed"]},
					"crlf": {"type": "integer"},
					"lf": {"type": "integer"},
					"cr": {"type": "integer"},
					"changed": {"type": "boolean"}
				}
			}
		},
		"skipped": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["path", "reason"]
			}
		},
		"errors": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["path", "error", "isFatal"]
			}
		}
	}
}`

func sampleReport() converter.Report {
	return converter.Report{
		Summary: converter.ReportSummary{
			Target:            eol.StyleUnix,
			TotalFilesScanned: 3,
			ConvertedCount:    1,
			UnchangedCount:    0,
			CachedCount:       0,
			SkippedCount:      1,
			ErrorCount:        1,
			DurationSeconds:   0.42,
			Concurrency:       4,
			Timestamp:         time.Now().UTC(),
			SchemaVersion:     converter.ReportSchemaVersion,
		},
		Converted: []converter.Outcome{{
			Path:         "src/main.c",
			Encoding:     "utf-8",
			BOM:          converter.BOMActionNone,
			CRLF:         42,
			Dominant:     eol.StyleDos,
			FinalEOL:     true,
			Converted:    42,
			BytesWritten: 1494,
			Changed:      true,
			CacheStatus:  converter.CacheStatusMiss,
		}},
		Skipped: []converter.SkippedInfo{{
			Path:   "assets/logo.png",
			Reason: converter.SkipReasonBinary,
		}},
		Errors: []converter.ErrorInfo{{
			Path:  "locked.txt",
			Error: "permission denied",
		}},
	}
}

func TestReportJSONMatchesSchema(t *testing.T) {
	data, err := json.Marshal(sampleReport())
	require.NoError(t, err)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(reportSchema),
		gojsonschema.NewBytesLoader(data),
	)
	require.NoError(t, err)
	for _, desc := range result.Errors() {
		t.Errorf("schema violation: %s", desc)
	}
	assert.True(t, result.Valid())
}

func TestReportJSONRoundTrip(t *testing.T) {
	original := sampleReport()
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded converter.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Summary.ConvertedCount, decoded.Summary.ConvertedCount)
	assert.Equal(t, original.Converted[0].CRLF, decoded.Converted[0].CRLF)
	assert.Equal(t, original.Errors[0].Error, decoded.Errors[0].Error)
}

func TestOutcomeOmitsEmptyDestination(t *testing.T) {
	inPlace, err := json.Marshal(converter.Outcome{Path: "a.txt"})
	require.NoError(t, err)
	assert.NotContains(t, string(inPlace), `"destination"`)

	newFile, err := json.Marshal(converter.Outcome{Path: "a.txt", Destination: "b.txt"})
	require.NoError(t, err)
	assert.Contains(t, string(newFile), `"destination":"b.txt"`)
}

func TestReportSummaryOmitsEmptyProfile(t *testing.T) {
	data, err := json.Marshal(converter.ReportSummary{Target: eol.StyleUnix})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "profileUsed")
	assert.NotContains(t, string(data), "configFilePath")

	data, err = json.Marshal(converter.ReportSummary{Target: eol.StyleUnix, ProfileUsed: "ci"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"profileUsed":"ci"`)
}
