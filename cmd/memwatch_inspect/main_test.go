package main

import (
	"testing"

	"memwatch/offsets"
	"memwatch/process_blob"
	"memwatch/search"
	"memwatch/world/worldtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateSavedDump(t *testing.T) {
	cfg := offsets.Default()
	game := worldtest.New(cfg)
	object, w := game.World("factory4_day")
	game.List(append(game.Fillers(3), object)...)
	me := game.AddLocal(worldtest.Local{Class: "LocalPlayer", Faction: 1})
	other := game.AddNetworked(worldtest.Networked{Faction: 4, Bot: true, Health: 2048})
	game.Entities(w, me.Base, me.Base, other.Base)

	dir := t.TempDir()
	require.NoError(t, game.Dump.Save(dir))

	dump := process_blob.NewProcessDump()
	require.NoError(t, dump.Load(dir))
	assert.NoError(t, locate(dump, cfg))
}

func TestLocateEmptyDump(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, process_blob.NewProcessDump().Save(dir))

	dump := process_blob.NewProcessDump()
	require.NoError(t, dump.Load(dir))
	assert.Error(t, locate(dump, offsets.Default()))
}

func TestParseHex(t *testing.T) {
	v, err := parseHex("0x1f")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1f), v)

	_, err = parseHex("zz")
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	game := worldtest.New(offsets.Default())
	e := game.AddNetworked(worldtest.Networked{Faction: 2, Health: 3100})
	assert.NoError(t, find(game.Dump, e.Base, search.WithValue(int32(3100))))
	assert.Error(t, find(game.Dump, e.Base))
}
