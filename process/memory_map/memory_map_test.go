//go:build linux

package memory_map

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapsLine(t *testing.T) {
	item, ok := ParseMapsLine("7f0c1a000000-7f0c1a021000 r-xp 00000000 08:01 1234 /opt/game/Unity Player.so")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f0c1a000000), item.Address)
	assert.Equal(t, uint(0x21000), item.Size)
	assert.Equal(t, "r-xp", item.Perms)
	assert.Equal(t, "/opt/game/Unity Player.so", item.Path)

	anon, ok := ParseMapsLine("00400000-0040b000 rw-p 00000000 00:00 0")
	require.True(t, ok)
	assert.Empty(t, anon.Path)

	_, ok = ParseMapsLine("garbage")
	assert.False(t, ok)
}

func TestFindModuleSpansAllMappings(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x1000, Size: 0x1000, Perms: "r--p", Path: "/lib/UnityPlayer.dll"},
		{Address: 0x2000, Size: 0x3000, Perms: "r-xp", Path: "/lib/UnityPlayer.dll"},
		{Address: 0x5000, Size: 0x1000, Perms: "rw-p", Path: "/lib/other.so"},
		{Address: 0x6000, Size: 0x1000, Perms: "rw-p", Path: "/lib/UnityPlayer.dll"},
	}

	span, ok := FindModule("UnityPlayer.dll", mm)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), span.Start)
	assert.Equal(t, uint64(0x7000), span.End)

	_, ok = FindModule("missing.so", mm)
	assert.False(t, ok)
}

func TestIntersectAndFindRegion(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x3000, Size: 0x1000, Perms: "r--p"},
		{Address: 0x1000, Size: 0x1000, Perms: "r--p"},
		{Address: 0x2000, Size: 0x1000, Perms: "---p"},
	}
	Sort(mm)

	clipped := Intersect(0x1800, 0x3800, mm)
	require.Len(t, clipped, 2)
	assert.Equal(t, uint64(0x1800), clipped[0].Address)
	assert.Equal(t, uint(0x800), clipped[0].Size)
	assert.Equal(t, uint64(0x3000), clipped[1].Address)
	assert.Equal(t, uint(0x800), clipped[1].Size)

	region := FindRegion(0x2FFF, mm)
	require.NotNil(t, region)
	assert.Equal(t, uint64(0x2000), region.Address)
	assert.Nil(t, FindRegion(0x4000, mm))
}
