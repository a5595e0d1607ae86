package converter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stackvity/eol-converter/internal/testutil"
	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_RejectsNilLogger(t *testing.T) {
	opts := baseOptions("some/path")
	opts.Logger = nil

	_, err := converter.Convert(context.Background(), opts)
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func TestConvert_RejectsNilHooks(t *testing.T) {
	opts := baseOptions("some/path")
	opts.EventHooks = nil

	_, err := converter.Convert(context.Background(), opts)
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func TestConvert_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*converter.Options)
	}{
		{
			name:   "no input paths",
			mutate: func(o *converter.Options) { o.Paths = nil },
		},
		{
			name:   "invalid target style",
			mutate: func(o *converter.Options) { o.Target = "mixed" },
		},
		{
			name:   "keep-bom and remove-bom together",
			mutate: func(o *converter.Options) { o.KeepBOM = true; o.RemoveBOM = true },
		},
		{
			name:   "invalid on-error mode",
			mutate: func(o *converter.Options) { o.OnErrorMode = "abort" },
		},
		{
			name:   "unknown encoding override",
			mutate: func(o *converter.Options) { o.EncodingOverride = "ebcdic" },
		},
		{
			name:   "negative concurrency",
			mutate: func(o *converter.Options) { o.Concurrency = -1 },
		},
		{
			name: "new-file pair missing destination",
			mutate: func(o *converter.Options) {
				o.Paths = nil
				o.NewFilePairs = []converter.Request{{Source: "in.txt"}}
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := baseOptions("some/path")
			tc.mutate(&opts)
			_, err := converter.Convert(context.Background(), opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, converter.ErrConfigValidation)
		})
	}
}

func TestConvert_EndToEndSmoke(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	testutil.CreateDummyFile(t, src, "line one\r\nline two\r\nno final eol")

	opts := baseOptions(src)
	opts.Target = eol.StyleUnix
	opts.AddEOL = true

	report, err := converter.Convert(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Summary.ConvertedCount)
	require.Len(t, report.Converted, 1)
	outcome := report.Converted[0]
	assert.True(t, outcome.Changed)
	assert.Equal(t, 2, outcome.Converted)
	assert.Equal(t, "line one\nline two\nno final eol\n", readFileString(t, src))
}

func TestConvert_EncodingOverrideApplied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "latin.txt")
	// ISO-8859-1 content with a high byte that is not valid UTF-8.
	testutil.CreateDummyFile(t, src, "caf\xe9\r\n")

	opts := baseOptions(src)
	opts.EncodingOverride = "iso-8859-1"

	report, err := converter.Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.ConvertedCount)
	assert.Equal(t, "caf\xe9\n", readFileString(t, src))
}
