package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"

	"memwatch/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls the layout of a dump.
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartOffset is the address printed for the first byte
	StartOffset uint64

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// Color enables ANSI colors: zero bytes dimmed, pointers highlighted
	Color bool

	// MemoryMap, when set, annotates each line with the 8-byte values at
	// line offsets 0 and 8 that point into a mapped region.
	MemoryMap []memory_map.MemoryMapItem
}

func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		Color:        true,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
//
//	00001000  48 89 05 aa bb cc dd 48 | 83 c4 28 c3 33 c9 00 00 | H......H ..(.3... | 0x7f0012340000
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}

	lines := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lines >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			return
		}
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], options.StartOffset+uint64(offset), options)
		lines++
	}
}

func formatLine(writer io.Writer, data []byte, offset uint64, options Options) {
	paint := func(color coloransi.ColorCode, s string) string {
		if !options.Color {
			return s
		}
		return coloransi.Foreground(color, s)
	}

	half := options.BytesPerLine / 2
	var hex, ascii strings.Builder
	for i := range options.BytesPerLine {
		if i > 0 {
			hex.WriteByte(' ')
		}
		if i == half && options.BytesPerLine >= 8 {
			hex.WriteString("| ")
			ascii.WriteByte(' ')
		}
		if i >= len(data) {
			hex.WriteString("  ")
			continue
		}

		b := data[i]
		switch {
		case b == 0:
			hex.WriteString(paint(coloransi.BrightBlack, "00"))
			ascii.WriteString(paint(coloransi.BrightBlack, "."))
		case !unicode.IsPrint(rune(b)) || b > unicode.MaxASCII:
			hex.WriteString(fmt.Sprintf("%02x", b))
			ascii.WriteString(paint(coloransi.Red, "."))
		default:
			hex.WriteString(fmt.Sprintf("%02x", b))
			ascii.WriteByte(b)
		}
	}

	fmt.Fprintf(writer, "%s  %s | %s", paint(coloransi.Cyan, fmt.Sprintf("%08x", offset)), hex.String(), ascii.String())

	if len(options.MemoryMap) > 0 {
		var ptrs []string
		for at := 0; at+8 <= len(data) && at <= 8; at += 8 {
			ptr := binary.LittleEndian.Uint64(data[at:])
			if memory_map.FindRegion(ptr, options.MemoryMap) != nil {
				ptrs = append(ptrs, paint(coloransi.Yellow, fmt.Sprintf("0x%x", ptr)))
			}
		}
		if len(ptrs) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(ptrs, " "))
		}
	}

	fmt.Fprintln(writer)
}

// Basic dumps data read at addr with pointer annotation against mm.
func Basic(data []byte, addr uint64, mm []memory_map.MemoryMapItem) string {
	options := DefaultOptions()
	options.StartOffset = addr
	options.MemoryMap = mm
	return Dump(data, options)
}

// Plain dumps data without colors, for log lines.
func Plain(data []byte, addr uint64) string {
	return Dump(data, Options{BytesPerLine: 16, StartOffset: addr})
}
