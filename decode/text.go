// Package decode turns raw foreign buffers into native values: fixed-width name
// buffers in UTF-8 or UTF-16LE, and dynamic-array headers.
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

var ErrDecode = errors.New("decode error")

// Encoding selects how a name buffer is interpreted.
type Encoding int

const (
	Narrow Encoding = iota // UTF-8, terminated by the first zero byte
	Wide                   // UTF-16LE, terminated by the first zero code unit
)

// Decode decodes b with the given encoding.
func (e Encoding) Decode(b []byte) (string, error) {
	if e == Wide {
		return DecodeWide(b)
	}
	return DecodeNarrow(b)
}

// DecodeNarrow truncates at the first zero byte and validates UTF-8.
func DecodeNarrow(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid utf-8 in %d byte buffer", ErrDecode, len(b))
	}
	return string(b), nil
}

// DecodeWide reads little-endian code units up to the first zero unit (a trailing
// odd byte is ignored), joins surrogate pairs and rejects unpaired surrogates.
func DecodeWide(b []byte) (string, error) {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}

	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		switch {
		case utf16.IsSurrogate(u):
			if u >= 0xDC00 || i+1 == len(units) {
				return "", fmt.Errorf("%w: unpaired surrogate 0x%04X at unit %d", ErrDecode, u, i)
			}
			r := utf16.DecodeRune(u, rune(units[i+1]))
			if r == utf8.RuneError {
				return "", fmt.Errorf("%w: unpaired surrogate 0x%04X at unit %d", ErrDecode, u, i)
			}
			runes = append(runes, r)
			i++
		default:
			runes = append(runes, u)
		}
	}
	return string(runes), nil
}
