package pod

import (
	"testing"

	"memwatch/process"
	"memwatch/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Prev   process.ProcessMemoryAddress
	Next   process.ProcessMemoryAddress
	Object process.ProcessMemoryAddress
}

func TestReadTStruct(t *testing.T) {
	dump := process_blob.NewProcessDump()
	dump.AddRegion(0x1000, 0x100, "rw-p", "")
	require.NoError(t, dump.PokePointer(0x1000, 0x11))
	require.NoError(t, dump.PokePointer(0x1008, 0x22))
	require.NoError(t, dump.PokePointer(0x1010, 0x33))

	n, err := ReadT[node](dump, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, node{Prev: 0x11, Next: 0x22, Object: 0x33}, n)

	_, err = ReadT[node](dump, 0x10F8)
	assert.ErrorIs(t, err, process.ErrMemoryRead)
}

func TestReadSliceTSingleRead(t *testing.T) {
	dump := process_blob.NewProcessDump()
	dump.AddRegion(0x1000, 0x100, "rw-p", "")
	for i, v := range []process.ProcessMemoryAddress{0, 5, 0, 7} {
		require.NoError(t, dump.PokePointer(process.ProcessMemoryAddress(0x1000+8*i), v))
	}

	ptrs, err := ReadSliceT[process.ProcessMemoryAddress](dump, 0x1000, 4)
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0, 5, 0, 7}, ptrs)
	assert.Equal(t, int64(1), dump.Reads())

	empty, err := ReadSliceT[process.ProcessMemoryAddress](dump, 0x1000, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFromBytesRejectsGoPointers(t *testing.T) {
	_, err := FromBytes[struct{ S string }](make([]byte, 64))
	assert.ErrorIs(t, err, ErrNotPOD)

	_, err = FromBytes[uint64]([]byte{1, 2})
	assert.Error(t, err)
}
