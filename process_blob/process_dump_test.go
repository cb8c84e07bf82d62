package process_blob

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"memwatch/process"
	"memwatch/process/memory_map"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDumpDirectory(t *testing.T) {
	dir := t.TempDir()

	meta, err := json.Marshal(Metadata{PID: 42, Name: "target"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), meta, 0644))

	mm := []memory_map.MemoryMapItem{
		{Address: 0x2000, Size: 4, Perms: "r--p", Path: "/lib/UnityPlayer.dll"},
		{Address: 0x1000, Size: 4, Perms: "rw-p"},
	}
	mmBytes, err := json.Marshal(mm)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MemoryMapFile), mmBytes, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, BlobFileName(0x2000, 4)), []byte{1, 2, 3, 4}, 0644))

	dump := NewProcessDump()
	require.NoError(t, dump.Load(dir))
	assert.Equal(t, process.ProcessID(42), dump.GetPID())
	assert.Equal(t, "target", dump.Name)
	assert.Equal(t, uint64(0x1000), dump.MemoryMap[0].Address)

	data, err := dump.ReadMemory(0x2001, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, data)

	// mapped but not captured
	_, err = dump.ReadMemory(0x1000, 4)
	assert.Error(t, err)

	module, err := dump.FindModule("UnityPlayer.dll")
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x2000), module.Base)
	assert.Equal(t, process.ProcessMemorySize(4), module.Size)
}

func TestReadScatterReportsPerEntryFailures(t *testing.T) {
	dump := NewProcessDump()
	dump.AddRegion(0x1000, 0x100, "rw-p", "")
	require.NoError(t, dump.PokeInt32(0x1010, 1024))
	require.NoError(t, dump.PokeFloat32(0x1020, 1.5))

	results, err := dump.ReadScatter([]process.ScatterRequest{
		{Address: 0x1010, Size: 4},
		{Address: 0x9000, Size: 4},
		{Address: 0x1020, Size: 4},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, process.ErrAddressNotMapped)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, int64(1), dump.ScatterCalls())
	assert.Equal(t, int64(0), dump.Reads())

	v, err := process.Read[float32](dump, 0x1020)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), v)
	assert.Equal(t, int64(1), dump.Reads())
}

func TestScanRangeClipsToRange(t *testing.T) {
	dump := NewProcessDump()
	code := dump.AddRegion(0x4000, 0x100, "r-xp", "/lib/UnityPlayer.dll")
	copy(code[0x10:], []byte{0x48, 0x89, 0x05, 0xAA})
	copy(code[0x80:], []byte{0x48, 0x89, 0x05, 0xBB})

	aob, err := process.ParseAOB("48 89 05 ??")
	require.NoError(t, err)

	all, err := dump.ScanRange(aob, 0x4000, 0x4100)
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0x4010, 0x4080}, all)

	tail, err := dump.ScanRange(aob, 0x4040, 0x4100)
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0x4080}, tail)
}

func TestSaveThenLoad(t *testing.T) {
	dump := NewProcessDump()
	dump.PID = 7
	dump.Name = "target"
	dump.AddRegion(0x1000, 0x40, "rw-p", "")
	dump.AddRegion(0x4000, 0x40, "r-xp", "/lib/UnityPlayer.dll")
	require.NoError(t, dump.PokePointer(0x1008, 0x4000))

	dir := t.TempDir()
	require.NoError(t, dump.Save(dir))

	loaded := NewProcessDump()
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, dump.MemoryMap, loaded.MemoryMap)
	assert.Equal(t, "target", loaded.Name)

	ptr, err := process.ReadPointer(loaded, 0x1008)
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x4000), ptr)

	require.NoError(t, dump.Close())
	assert.ErrorIs(t, dump.Save(t.TempDir()), process.ErrProcessNotOpen)
}
