package encoding_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/transform"

	"github.com/stackvity/eol-converter/pkg/converter/encoding"
)

// encodeBytes materializes fixture content in the given encoding.
func encodeBytes(t *testing.T, text string, enc encoding.Encoding) []byte {
	t.Helper()
	out, _, err := transform.Bytes(enc.Codec().NewEncoder(), []byte(text))
	require.NoError(t, err)
	return out
}

func TestDetect_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello\r\nworld\r\n")...)
	enc, bomLen := encoding.Detect(input)
	assert.Equal(t, encoding.UTF8, enc)
	assert.Equal(t, 3, bomLen)
}

func TestDetect_UTF16LEBOM(t *testing.T) {
	input := append([]byte{0xFF, 0xFE}, encodeBytes(t, "hello\r\n", encoding.UTF16LE)...)
	enc, bomLen := encoding.Detect(input)
	assert.Equal(t, encoding.UTF16LE, enc)
	assert.Equal(t, 2, bomLen)
}

func TestDetect_UTF16BEBOM(t *testing.T) {
	input := append([]byte{0xFE, 0xFF}, encodeBytes(t, "hello\r\n", encoding.UTF16BE)...)
	enc, bomLen := encoding.Detect(input)
	assert.Equal(t, encoding.UTF16BE, enc)
	assert.Equal(t, 2, bomLen)
}

func TestDetect_BOMlessUTF16Heuristic(t *testing.T) {
	le := encodeBytes(t, "plain ascii text without a byte order mark\r\n", encoding.UTF16LE)
	enc, bomLen := encoding.Detect(le)
	assert.Equal(t, encoding.UTF16LE, enc, "ASCII-range UTF-16LE should be recognized by NUL parity")
	assert.Equal(t, 0, bomLen)

	be := encodeBytes(t, "plain ascii text without a byte order mark\r\n", encoding.UTF16BE)
	enc, bomLen = encoding.Detect(be)
	assert.Equal(t, encoding.UTF16BE, enc)
	assert.Equal(t, 0, bomLen)
}

func TestDetect_PlainUTF8(t *testing.T) {
	enc, bomLen := encoding.Detect([]byte("héllo wörld\n"))
	assert.Equal(t, encoding.UTF8, enc)
	assert.Equal(t, 0, bomLen)
}

func TestDetect_Latin1Fallback(t *testing.T) {
	// 0xE9 is 'é' in ISO-8859-1 and an invalid standalone byte in UTF-8.
	input := encodeBytes(t, "café au lait, très bien\n", encoding.Latin1)
	enc, bomLen := encoding.Detect(input)
	assert.Equal(t, encoding.Latin1, enc)
	assert.Equal(t, 0, bomLen)
}

func TestDetect_EmptyInput(t *testing.T) {
	enc, bomLen := encoding.Detect(nil)
	assert.Equal(t, encoding.UTF8, enc, "empty input should take the UTF-8 default")
	assert.Equal(t, 0, bomLen)
}

func TestDetect_ShortInputNotUTF16(t *testing.T) {
	// Too few units for the parity heuristic; the lone NUL makes it invalid text
	// but detection itself must still return the 8-bit fallback, not fail.
	enc, _ := encoding.Detect([]byte{'a', 0x00, 'b', 0xFF})
	assert.Equal(t, encoding.Latin1, enc)
}

func TestBOMLen_MismatchIsContent(t *testing.T) {
	// A UTF-16BE BOM at the front of content forced to UTF-8 is ordinary bytes.
	input := append([]byte{0xFE, 0xFF}, []byte("data")...)
	assert.Equal(t, 0, encoding.BOMLen(input, encoding.UTF8))
	assert.Equal(t, 2, encoding.BOMLen(input, encoding.UTF16BE))
	assert.Equal(t, 0, encoding.BOMLen([]byte("data"), encoding.Latin1))
}

func TestParse_Tokens(t *testing.T) {
	testCases := []struct {
		token string
		want  encoding.Encoding
		auto  bool
	}{
		{"utf8", encoding.UTF8, false},
		{"UTF-8", encoding.UTF8, false},
		{"utf16le", encoding.UTF16LE, false},
		{"utf16be", encoding.UTF16BE, false},
		{"iso-8859-1", encoding.Latin1, false},
		{"latin1", encoding.Latin1, false},
		{"auto", encoding.UTF8, true},
		{"", encoding.UTF8, true},
	}
	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			enc, auto, err := encoding.Parse(tc.token)
			require.NoError(t, err)
			assert.Equal(t, tc.want, enc)
			assert.Equal(t, tc.auto, auto)
		})
	}
}

func TestParse_Unsupported(t *testing.T) {
	_, _, err := encoding.Parse("ebcdic")
	assert.Error(t, err)
}

func TestLooksBinary_NULsAtBothParities(t *testing.T) {
	input := []byte{'a', 0x00, 0x00, 'b', 'c', 0x00, 0x00, 'd'}
	assert.True(t, encoding.LooksBinary(input, encoding.Latin1, 0))
	assert.True(t, encoding.LooksBinary(input, encoding.UTF16LE, 0),
		"NULs at both parities are not 16-bit text either")
}

func TestLooksBinary_UTF16TextIsNotBinary(t *testing.T) {
	input := encodeBytes(t, "ordinary windows text\r\n", encoding.UTF16LE)
	assert.False(t, encoding.LooksBinary(input, encoding.UTF16LE, 0))

	withBOM := append([]byte{0xFE, 0xFF}, encodeBytes(t, "ordinary windows text\r\n", encoding.UTF16BE)...)
	assert.False(t, encoding.LooksBinary(withBOM, encoding.UTF16BE, 2))
}

func TestLooksBinary_SingleNULIn8Bit(t *testing.T) {
	input := append([]byte(strings.Repeat("text ", 20)), 0x00)
	assert.True(t, encoding.LooksBinary(input, encoding.UTF8, 0),
		"any NUL in an 8-bit stream marks it binary")
}

func TestLooksBinary_PlainText(t *testing.T) {
	assert.False(t, encoding.LooksBinary([]byte("line one\r\nline two\r\n"), encoding.UTF8, 0))
	assert.False(t, encoding.LooksBinary(nil, encoding.UTF8, 0))
	bomOnly := []byte{0xEF, 0xBB, 0xBF}
	assert.False(t, encoding.LooksBinary(bomOnly, encoding.UTF8, 3))
}

func TestUnitSizeAndBOM(t *testing.T) {
	assert.Equal(t, 1, encoding.UTF8.UnitSize())
	assert.Equal(t, 1, encoding.Latin1.UnitSize())
	assert.Equal(t, 2, encoding.UTF16LE.UnitSize())
	assert.Equal(t, 2, encoding.UTF16BE.UnitSize())
	assert.Nil(t, encoding.Latin1.BOM())
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, encoding.UTF8.BOM())
}
