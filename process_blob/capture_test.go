package process_blob

import (
	"testing"

	"memwatch/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureSkipsUnreadableRegions(t *testing.T) {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "capture-test"))

	src := NewProcessDump()
	src.PID = 99
	src.AddRegion(0x1000, 0x20, "rw-p", "")
	src.AddRegion(0x2000, 0x20, "---p", "")
	require.NoError(t, src.PokeInt32(0x1004, 77))

	dir := t.TempDir()
	require.NoError(t, Capture(src, "game.exe", dir, log))

	dst := NewProcessDump()
	require.NoError(t, dst.Load(dir))
	assert.Equal(t, "game.exe", dst.Name)
	assert.Len(t, dst.MemoryMap, 2)
	assert.Len(t, dst.Blobs, 1)

	v, err := process.Read[int32](dst, 0x1004)
	require.NoError(t, err)
	assert.Equal(t, int32(77), v)
}
