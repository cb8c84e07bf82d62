package hexdump

import (
	"encoding/binary"
	"strings"
	"testing"

	"memwatch/process/memory_map"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainLayout(t *testing.T) {
	data := []byte("GameWorld\x00\x01\x02abcdefgh")
	out := Plain(data, 0x1000)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "00001000  47 61 6d 65"))
	assert.Contains(t, lines[0], "| GameWorl d...abcd")
	assert.True(t, strings.HasPrefix(lines[1], "00001010  "))
	// short lines keep the ascii column aligned
	assert.Equal(t, strings.Index(lines[0], " | G"), strings.Index(lines[1], " | e"))
}

func TestMaxLines(t *testing.T) {
	out := Dump(make([]byte, 64), Options{BytesPerLine: 16, MaxLines: 2})
	assert.Contains(t, out, "... 32 more bytes")
}

func TestPointerAnnotation(t *testing.T) {
	mm := []memory_map.MemoryMapItem{{Address: 0x7f0000000000, Size: 0x1000, Perms: "rw-p"}}
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data, 0x7f0000000010)
	binary.LittleEndian.PutUint64(data[8:], 0x1234)

	options := Options{BytesPerLine: 16, MemoryMap: mm}
	out := Dump(data, options)
	assert.Contains(t, out, "| 0x7f0000000010\n")
	assert.NotContains(t, out, "0x1234")
}
