// Package eol implements the line-ending scanner and transcoder. Both operate
// on text units — raw bytes for UTF-8 and 8-bit content, 16-bit code units for
// UTF-16 — in a single forward pass, so content is never decoded to runes.
package eol

import (
	"encoding/binary"

	"github.com/stackvity/eol-converter/pkg/converter/encoding"
)

// Style names a line-ending convention. Unix and Dos are valid conversion
// targets; Mac is an input-only style that is normalized away when requested.
type Style string

const (
	StyleUnix  Style = "unix"
	StyleDos   Style = "dos"
	StyleMac   Style = "mac"
	StyleMixed Style = "mixed"
	StyleNone  Style = "none"
)

// ValidTarget reports whether s can be converted to.
func ValidTarget(s Style) bool {
	return s == StyleUnix || s == StyleDos
}

// Stats holds the terminator counts from one scan pass.
type Stats struct {
	CRLF     int  `json:"crlf"`
	LF       int  `json:"lf"`
	CR       int  `json:"cr"`
	FinalEOL bool `json:"finalEol"`
}

// Total returns the number of terminators of any style.
func (s Stats) Total() int { return s.CRLF + s.LF + s.CR }

// Mixed reports whether more than one terminator style co-occurs.
func (s Stats) Mixed() bool {
	styles := 0
	for _, n := range [3]int{s.CRLF, s.LF, s.CR} {
		if n > 0 {
			styles++
		}
	}
	return styles > 1
}

// Dominant returns the most frequent terminator style, StyleNone when the
// content has no terminators. Ties resolve in CRLF, LF, CR order.
func (s Stats) Dominant() Style {
	switch {
	case s.Total() == 0:
		return StyleNone
	case s.CRLF >= s.LF && s.CRLF >= s.CR:
		return StyleDos
	case s.LF >= s.CR:
		return StyleUnix
	default:
		return StyleMac
	}
}

// Options configures a single transcoding pass.
type Options struct {
	Target     Style // StyleUnix or StyleDos
	ConvertMac bool  // rewrite lone CR as a terminator
	AddEOL     bool  // append a target terminator when the last unit is not one
	KeepBOM    bool  // force a BOM in the output
	RemoveBOM  bool  // strip any BOM from the output
}

type unit interface {
	~byte | ~uint16
}

// scanUnits is the single authoritative classification pass: CR followed by LF
// is one CRLF and consumes both units; any other CR is a lone CR; any LF not
// consumed by a CRLF is a lone LF.
func scanUnits[U unit](in []U) Stats {
	var s Stats
	cr, lf := U('\r'), U('\n')
	for i := 0; i < len(in); i++ {
		switch in[i] {
		case cr:
			if i+1 < len(in) && in[i+1] == lf {
				s.CRLF++
				i++
			} else {
				s.CR++
			}
		case lf:
			s.LF++
		}
	}
	if n := len(in); n > 0 && (in[n-1] == cr || in[n-1] == lf) {
		s.FinalEOL = true
	}
	return s
}

// rewriteUnits mirrors scanUnits and rewrites terminators to the target style.
// It returns the rewritten units and the number of terminators changed.
// Content already in the target style passes through byte-identically, which
// makes the whole conversion idempotent.
func rewriteUnits[U unit](in []U, target Style, convertMac bool) ([]U, int) {
	out := make([]U, 0, len(in)+len(in)/8)
	converted := 0
	cr, lf := U('\r'), U('\n')
	for i := 0; i < len(in); i++ {
		u := in[i]
		switch {
		case u == cr && i+1 < len(in) && in[i+1] == lf:
			i++
			if target == StyleUnix {
				out = append(out, lf)
				converted++
			} else {
				out = append(out, cr, lf)
			}
		case u == cr:
			if convertMac {
				if target == StyleUnix {
					out = append(out, lf)
				} else {
					out = append(out, cr, lf)
				}
				converted++
			} else {
				out = append(out, cr)
			}
		case u == lf:
			if target == StyleDos {
				out = append(out, cr, lf)
				converted++
			} else {
				out = append(out, lf)
			}
		default:
			out = append(out, u)
		}
	}
	return out, converted
}

func terminator[U unit](target Style) []U {
	if target == StyleDos {
		return []U{U('\r'), U('\n')}
	}
	return []U{U('\n')}
}

// transcode runs rewrite plus the add-eol rule over one unit stream.
func transcode[U unit](in []U, opts Options) ([]U, int) {
	out, converted := rewriteUnits(in, opts.Target, opts.ConvertMac)
	if opts.AddEOL && len(out) > 0 {
		last := out[len(out)-1]
		if last != U('\r') && last != U('\n') {
			out = append(out, terminator[U](opts.Target)...)
		}
	}
	return out, converted
}

// Scan counts terminators in content, excluding the BOM. UTF-16 content is
// viewed as 16-bit units in the stream's own endianness.
func Scan(content []byte, enc encoding.Encoding, bomLen int) Stats {
	body := content[bomLen:]
	if enc.UnitSize() == 2 {
		units, _ := toUnits(body, enc)
		return scanUnits(units)
	}
	return scanUnits(body)
}

// Convert rewrites content's terminators to the requested style and applies the
// BOM policy. The returned slice is freshly allocated; converted is the number
// of terminators that changed. Converting already-conforming content returns
// byte-identical output.
func Convert(content []byte, enc encoding.Encoding, bomLen int, opts Options) (out []byte, converted int) {
	bom := content[:bomLen]
	body := content[bomLen:]

	var newBody []byte
	if enc.UnitSize() == 2 {
		units, tail := toUnits(body, enc)
		rewritten, n := transcode(units, opts)
		converted = n
		newBody = fromUnits(rewritten, enc)
		// An odd trailing byte is not valid UTF-16; carry it through untouched.
		newBody = append(newBody, tail...)
	} else {
		newBody, converted = transcode(body, opts)
	}

	switch {
	case opts.RemoveBOM:
		bom = nil
	case opts.KeepBOM:
		bom = enc.BOM()
	}

	out = make([]byte, 0, len(bom)+len(newBody))
	out = append(out, bom...)
	out = append(out, newBody...)
	return out, converted
}

// toUnits views b as 16-bit units in enc's endianness. Any odd trailing byte
// is returned separately so it survives a round trip unmodified.
func toUnits(b []byte, enc encoding.Encoding) (units []uint16, tail []byte) {
	order := byteOrder(enc)
	n := len(b) / 2
	units = make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = order.Uint16(b[i*2:])
	}
	if len(b)%2 != 0 {
		tail = b[len(b)-1:]
	}
	return units, tail
}

func fromUnits(units []uint16, enc encoding.Encoding) []byte {
	order := byteOrder(enc)
	out := make([]byte, len(units)*2)
	for i, u := range units {
		order.PutUint16(out[i*2:], u)
	}
	return out
}

func byteOrder(enc encoding.Encoding) binary.ByteOrder {
	if enc == encoding.UTF16BE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
