package encoding

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
	"golang.org/x/net/html/charset"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	// probeLen is the size of the byte prefix inspected by Detect and LooksBinary.
	probeLen = 1024
	// nullThreshold is the NUL-density above which 8-bit content is considered binary.
	nullThreshold = 0.15
	// utf16ParityRatio is the minimum share of NUL units at a single byte parity
	// required before BOM-less content is classified as UTF-16.
	utf16ParityRatio = 0.30
)

// Encoding identifies the text encodings the converter can locate terminators in.
// Detection is advisory: it exists to find terminator units and BOMs, not to
// transcode content.
type Encoding int

const (
	UTF8 Encoding = iota
	UTF16LE
	UTF16BE
	Latin1 // ISO-8859-1 / opaque 8-bit fallback
)

// Canonical BOM sequences.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// String returns the IANA-style name used in reports and logs.
func (e Encoding) String() string {
	switch e {
	case UTF16LE:
		return "utf-16le"
	case UTF16BE:
		return "utf-16be"
	case Latin1:
		return "iso-8859-1"
	default:
		return "utf-8"
	}
}

// BOM returns the canonical byte order mark for the encoding.
// Latin1 has no BOM and returns nil.
func (e Encoding) BOM() []byte {
	switch e {
	case UTF8:
		return bomUTF8
	case UTF16LE:
		return bomUTF16LE
	case UTF16BE:
		return bomUTF16BE
	default:
		return nil
	}
}

// UnitSize returns the width in bytes of one text unit: 2 for UTF-16, 1 otherwise.
func (e Encoding) UnitSize() int {
	if e == UTF16LE || e == UTF16BE {
		return 2
	}
	return 1
}

// Codec returns the x/text codec for the encoding. Used by tests and by callers
// that need to materialize fixture content; the conversion pipeline itself never
// decodes, it only locates terminator units.
func (e Encoding) Codec() xencoding.Encoding {
	switch e {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case Latin1:
		return charmap.ISO8859_1
	default:
		return unicode.UTF8
	}
}

// Detect classifies the leading bytes of a file and reports the BOM length.
// It is a pure function of the prefix and never fails: the worst case is the
// 8-bit fallback, which is always safe for terminator location.
func Detect(prefix []byte) (Encoding, int) {
	switch {
	case bytes.HasPrefix(prefix, bomUTF8):
		return UTF8, len(bomUTF8)
	case bytes.HasPrefix(prefix, bomUTF16LE):
		return UTF16LE, len(bomUTF16LE)
	case bytes.HasPrefix(prefix, bomUTF16BE):
		return UTF16BE, len(bomUTF16BE)
	}

	window := prefix
	if len(window) > probeLen {
		window = window[:probeLen]
	}
	if enc, ok := detectBOMlessUTF16(window); ok {
		return enc, 0
	}
	if utf8.Valid(window) {
		return UTF8, 0
	}
	return Latin1, 0
}

// detectBOMlessUTF16 applies the NUL-parity heuristic: ASCII-range text encoded
// as UTF-16 produces a NUL in every unit, always at the same byte parity.
// Ambiguous distributions fall through to the 8-bit paths.
func detectBOMlessUTF16(window []byte) (Encoding, bool) {
	units := len(window) / 2
	if units < 4 {
		return 0, false
	}
	var even, odd int
	for i := 0; i < units*2; i++ {
		if window[i] == 0x00 {
			if i%2 == 0 {
				even++
			} else {
				odd++
			}
		}
	}
	minHits := int(float64(units) * utf16ParityRatio)
	if minHits < 1 {
		minHits = 1
	}
	if odd >= minHits && even == 0 {
		return UTF16LE, true
	}
	if even >= minHits && odd == 0 {
		return UTF16BE, true
	}
	return 0, false
}

// BOMLen reports the length of the BOM at the start of prefix if it matches the
// canonical sequence for enc, else 0. Mismatched bytes are ordinary content.
func BOMLen(prefix []byte, enc Encoding) int {
	bom := enc.BOM()
	if len(bom) > 0 && bytes.HasPrefix(prefix, bom) {
		return len(bom)
	}
	return 0
}

// Parse resolves an encoding override token. The literal tokens are
// "utf8", "utf16le", "utf16be", "iso-8859-1" and "auto"; common aliases
// (utf-8, latin1, ...) are accepted via the charset registry. The returned
// auto flag is true when detection should run instead of an override.
func Parse(token string) (enc Encoding, auto bool, err error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	switch normalized {
	case "", "auto":
		return UTF8, true, nil
	case "utf8", "utf-8":
		return UTF8, false, nil
	case "utf16le", "utf-16le":
		return UTF16LE, false, nil
	case "utf16be", "utf-16be":
		return UTF16BE, false, nil
	case "iso-8859-1", "latin1", "8bit":
		return Latin1, false, nil
	}

	// Fall back to the charset registry so aliases like "l1" or "ISO_8859-1"
	// resolve to a supported encoding.
	if _, canonical := charset.Lookup(normalized); canonical != "" {
		switch canonical {
		case "utf-8":
			return UTF8, false, nil
		case "utf-16le":
			return UTF16LE, false, nil
		case "utf-16be":
			return UTF16BE, false, nil
		case "iso-8859-1", "windows-1252":
			return Latin1, false, nil
		}
	}
	return UTF8, false, fmt.Errorf("unsupported encoding %q (expected utf8, utf16le, utf16be, iso-8859-1 or auto)", token)
}

// LooksBinary decides whether content is unsafe to rewrite. BOM bytes are
// excluded from the probe. For UTF-16 the test is NULs at both byte parities,
// which legitimate 16-bit text never produces; for 8-bit and UTF-8 content any
// NUL in the probe window (per enry) or a NUL density above the threshold
// classifies the stream as binary.
func LooksBinary(prefix []byte, enc Encoding, bomLen int) bool {
	if bomLen > len(prefix) {
		bomLen = len(prefix)
	}
	body := prefix[bomLen:]
	if len(body) > probeLen {
		body = body[:probeLen]
	}
	if len(body) == 0 {
		return false
	}

	if enc.UnitSize() == 2 {
		var even, odd bool
		for i, b := range body {
			if b == 0x00 {
				if i%2 == 0 {
					even = true
				} else {
					odd = true
				}
				if even && odd {
					return true
				}
			}
		}
		return false
	}

	if enry.IsBinary(body) {
		return true
	}
	nulls := bytes.Count(body, []byte{0x00})
	return float64(nulls)/float64(len(body)) > nullThreshold
}
