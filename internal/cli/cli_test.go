package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertStream_ToUnix(t *testing.T) {
	var out bytes.Buffer
	opts := converter.Options{Target: eol.StyleUnix}

	err := ConvertStream(strings.NewReader("one\r\ntwo\r\n"), &out, opts)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestConvertStream_ToDos(t *testing.T) {
	var out bytes.Buffer
	opts := converter.Options{Target: eol.StyleDos}

	err := ConvertStream(strings.NewReader("one\ntwo\n"), &out, opts)
	require.NoError(t, err)
	assert.Equal(t, "one\r\ntwo\r\n", out.String())
}

func TestConvertStream_MacFlag(t *testing.T) {
	var out bytes.Buffer

	err := ConvertStream(strings.NewReader("one\rtwo\r"), &out, converter.Options{Target: eol.StyleUnix})
	require.NoError(t, err)
	assert.Equal(t, "one\rtwo\r", out.String(), "lone CR untouched without the mac flag")

	out.Reset()
	err = ConvertStream(strings.NewReader("one\rtwo\r"), &out, converter.Options{Target: eol.StyleUnix, ConvertMac: true})
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestConvertStream_RemoveBOM(t *testing.T) {
	var out bytes.Buffer
	opts := converter.Options{Target: eol.StyleUnix, RemoveBOM: true}

	err := ConvertStream(strings.NewReader("\xEF\xBB\xBFline\r\n"), &out, opts)
	require.NoError(t, err)
	assert.Equal(t, "line\n", out.String())
}

func TestConvertStream_BinaryRejected(t *testing.T) {
	input := "text\x00with\x00nuls\r\n"

	var out bytes.Buffer
	err := ConvertStream(strings.NewReader(input), &out, converter.Options{Target: eol.StyleUnix})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
	assert.Zero(t, out.Len())

	out.Reset()
	err = ConvertStream(strings.NewReader(input), &out, converter.Options{Target: eol.StyleUnix, Force: true})
	require.NoError(t, err)
	assert.Equal(t, "text\x00with\x00nuls\n", out.String())
}

func TestConvertStream_InvalidEncoding(t *testing.T) {
	var out bytes.Buffer
	opts := converter.Options{Target: eol.StyleUnix, EncodingOverride: "ebcdic"}

	err := ConvertStream(strings.NewReader("x\r\n"), &out, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func sampleReport() converter.Report {
	return converter.Report{
		Summary: converter.ReportSummary{
			Target:            eol.StyleUnix,
			TotalFilesScanned: 3,
			ConvertedCount:    2,
			UnchangedCount:    1,
			SkippedCount:      0,
			ErrorCount:        1,
			DurationSeconds:   0.25,
		},
		Errors: []converter.ErrorInfo{{Path: "bad.txt", Error: "read failed"}},
	}
}

func TestRenderReport_Text(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderReport(&out, sampleReport(), converter.OutputFormatText, false))

	text := out.String()
	assert.Contains(t, text, "Target:    unix")
	assert.Contains(t, text, "Converted: 2")
	assert.Contains(t, text, "Errors:    1")
	assert.Contains(t, text, "error bad.txt: read failed")
}

func TestRenderReport_TextQuiet(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderReport(&out, sampleReport(), converter.OutputFormatText, true))
	assert.Zero(t, out.Len())
}

func TestRenderReport_JSON(t *testing.T) {
	var out bytes.Buffer
	// Quiet never suppresses structured output.
	require.NoError(t, RenderReport(&out, sampleReport(), converter.OutputFormatJSON, true))

	var decoded converter.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Summary.ConvertedCount)
	assert.Equal(t, eol.StyleUnix, decoded.Summary.Target)
}

func TestRenderReport_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderReport(&out, sampleReport(), converter.OutputFormatYAML, false))

	text := out.String()
	assert.Contains(t, text, "convertedcount: 2")
	assert.Contains(t, text, "target: unix")
}
