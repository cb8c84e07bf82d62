package decode

import (
	"testing"

	"memwatch/process"
	"memwatch/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wide(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestDecodeNarrow(t *testing.T) {
	s, err := DecodeNarrow([]byte("GameWorld\x00junk\xff"))
	require.NoError(t, err)
	assert.Equal(t, "GameWorld", s)

	s, err = DecodeNarrow([]byte("NoTerminator"))
	require.NoError(t, err)
	assert.Equal(t, "NoTerminator", s)

	_, err = DecodeNarrow([]byte{0xC3, 0x28, 0x00})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeWide(t *testing.T) {
	buf := append(wide("factory4_day"), 0, 0, 'x', 0)
	s, err := DecodeWide(buf)
	require.NoError(t, err)
	assert.Equal(t, "factory4_day", s)

	// U+1F600 as a surrogate pair
	s, err = DecodeWide([]byte{0x3D, 0xD8, 0x00, 0xDE, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "\U0001F600", s)

	// odd trailing byte is ignored
	s, err = DecodeWide([]byte{'a', 0, 'b'})
	require.NoError(t, err)
	assert.Equal(t, "a", s)

	_, err = DecodeWide([]byte{0x3D, 0xD8, 'a', 0})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeWide([]byte{0x00, 0xDE})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeWide([]byte{0x3D, 0xD8})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFilterPointersSkipsNullAndSelf(t *testing.T) {
	const self = process.ProcessMemoryAddress(0xABC)
	got := FilterPointers([]process.ProcessMemoryAddress{0, 5, 0, 7, self}, self)
	assert.Equal(t, []process.ProcessMemoryAddress{5, 7}, got)
}

func TestArrayHeader(t *testing.T) {
	layout := ArrayLayout{ItemsOffset: 0x10, CountOffset: 0x18, FirstElement: 0x20, MaxCount: 256}

	dump := process_blob.NewProcessDump()
	dump.AddRegion(0x1000, 0x100, "rw-p", "")
	require.NoError(t, dump.PokePointer(0x1010, 0x5000))
	require.NoError(t, dump.PokeInt32(0x1018, 3))

	first, count, err := Array(dump, 0x1000, layout)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x5020), first)
	assert.Equal(t, 3, count)

	require.NoError(t, dump.PokeInt32(0x1018, -1))
	_, _, err = Array(dump, 0x1000, layout)
	assert.ErrorIs(t, err, ErrDecode)

	require.NoError(t, dump.PokeInt32(0x1018, 100000))
	_, _, err = Array(dump, 0x1000, layout)
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = Array(dump, 0x8000, layout)
	assert.ErrorIs(t, err, process.ErrMemoryRead)
}
