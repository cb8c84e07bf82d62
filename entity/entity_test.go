package entity

import (
	"testing"

	"memwatch/decode"
	"memwatch/offsets"
	"memwatch/process"
	"memwatch/scatter"
	"memwatch/world"
	"memwatch/world/worldtest"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "entity-test"))

func TestFactionFromCode(t *testing.T) {
	for code, want := range map[int32]Faction{1: FactionA, 2: FactionB, 4: FactionC} {
		got, err := FactionFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, code := range []int32{0, 3, 5, 8, -1, 1 << 30} {
		_, err := FactionFromCode(code)
		assert.ErrorIs(t, err, ErrUnknownFactionCode, "code %d", code)
	}
}

func TestClassifyName(t *testing.T) {
	cfg := offsets.Default()
	name := func(s string) []byte {
		b := make([]byte, 64)
		copy(b, s)
		return b
	}

	assert.Equal(t, ClientLocal, ClassifyName(name("ClientPlayer"), cfg))
	assert.Equal(t, ClientLocal, ClassifyName(name("LocalPlayer"), cfg), "only the main pointer is MainLocal")
	assert.Equal(t, Networked, ClassifyName(name("ObservedPlayerView"), cfg))
	assert.Equal(t, Networked, ClassifyName(name("Player"), cfg))
	assert.Equal(t, Networked, ClassifyName([]byte{0xff, 0xfe, 0x00}, cfg))
}

type scene struct {
	game      *worldtest.Game
	anchor    world.Anchor
	main      worldtest.Entity
	networked worldtest.Entity
}

func newScene(t *testing.T) *scene {
	t.Helper()
	game := worldtest.New(offsets.Default())
	object, addr := game.World("customs")
	game.List(object)

	s := &scene{game: game, anchor: world.Anchor{Address: addr, MapName: "customs"}}
	s.main = game.AddLocal(worldtest.Local{Class: "LocalPlayer", Faction: 2, Group: "squad-7", Rotation: worldtest.Rotation{X: 10, Y: 20}})
	s.networked = game.AddNetworked(worldtest.Networked{Faction: 1, Health: 1024, Group: "squad-9", Rotation: worldtest.Rotation{X: 1, Y: 2}})
	return s
}

func TestEnumerate(t *testing.T) {
	s := newScene(t)
	bot := s.game.AddNetworked(worldtest.Networked{Faction: 4, Bot: true, Health: 2048, Voice: "Scav_3", Group: "ignored"})
	client := s.game.AddLocal(worldtest.Local{Class: "ClientPlayer", Faction: 1})
	s.game.Entities(s.anchor.Address, s.main.Base, 0, s.main.Base, s.networked.Base, 0, bot.Base, client.Base)

	batch := scatter.New(s.game.Dump)
	pop, err := Enumerate(s.game.Dump, batch, s.anchor, s.game.Cfg, testLog)
	require.NoError(t, err)
	assert.Zero(t, pop.Dropped)
	require.Len(t, pop.Records, 4)

	human := pop.Records[0]
	assert.Equal(t, s.networked.Base, human.Base)
	assert.Equal(t, Networked, human.Class())
	assert.Equal(t, FactionA, human.Faction)
	assert.True(t, human.Human)
	assert.Equal(t, "squad-9", human.GroupID)
	assert.Equal(t, NetworkedFields{Health: s.networked.Health, Rotation: s.networked.Rotation}, human.Fields)

	scav := pop.Records[1]
	assert.Equal(t, FactionC, scav.Faction)
	assert.False(t, scav.Human)
	assert.Empty(t, scav.GroupID, "group id is only read for humans")
	assert.Equal(t, "Scav_3", scav.Voice)

	assert.Equal(t, LocalFields{Class: ClientLocal, Rotation: client.Rotation}, pop.Records[2].Fields)

	last := pop.Records[3]
	assert.Equal(t, s.main.Base, last.Base)
	assert.Equal(t, MainLocal, last.Class())
	assert.Equal(t, FactionB, last.Faction)
	assert.Equal(t, "squad-7", last.GroupID)
	assert.Equal(t, s.main.Rotation, last.Rotation())

	// two networked entities with health and rotation, two local with rotation
	assert.Equal(t, 6, batch.Len())
}

func TestEnumerateSecondMainPrefixIsClientLocal(t *testing.T) {
	s := newScene(t)
	other := s.game.AddLocal(worldtest.Local{Class: "LocalPlayer", Faction: 1, Rotation: worldtest.Rotation{X: 3, Y: 4}})
	s.game.Entities(s.anchor.Address, s.main.Base, other.Base, s.main.Base)

	pop, err := Enumerate(s.game.Dump, scatter.New(s.game.Dump), s.anchor, s.game.Cfg, testLog)
	require.NoError(t, err)
	require.Len(t, pop.Records, 2)

	assert.Equal(t, other.Base, pop.Records[0].Base)
	assert.Equal(t, ClientLocal, pop.Records[0].Class())
	assert.Equal(t, s.main.Base, pop.Records[1].Base)
	assert.Equal(t, MainLocal, pop.Records[1].Class())

	mains := 0
	for _, rec := range pop.Records {
		if rec.Class() == MainLocal {
			mains++
		}
	}
	assert.Equal(t, 1, mains)
}

func TestEnumerateIsolatesFailures(t *testing.T) {
	s := newScene(t)
	badFaction := s.game.AddNetworked(worldtest.Networked{Faction: 3, Health: 1024})
	noController := s.game.AddNetworked(worldtest.Networked{Faction: 1})
	s.game.Arena.PutPointer(noController.Base.Add(s.game.Cfg.Networked.Controller), 0)
	dangling := process.ProcessMemoryAddress(0x7000)

	s.game.Entities(s.anchor.Address, s.main.Base, badFaction.Base, dangling, s.networked.Base, noController.Base)

	batch := scatter.New(s.game.Dump)
	pop, err := Enumerate(s.game.Dump, batch, s.anchor, s.game.Cfg, testLog)
	require.NoError(t, err)
	assert.Equal(t, 3, pop.Dropped)
	require.Len(t, pop.Records, 2)
	assert.Equal(t, s.networked.Base, pop.Records[0].Base)
	assert.Equal(t, s.main.Base, pop.Records[1].Base)
	assert.Equal(t, 3, batch.Len(), "dropped entities register nothing")
}

func TestEnumerateUnresolvableMain(t *testing.T) {
	s := newScene(t)
	s.game.Arena.PutPointer(s.main.Base.Add(s.game.Cfg.Local.Profile), 0)
	s.game.Entities(s.anchor.Address, s.main.Base, s.networked.Base)

	pop, err := Enumerate(s.game.Dump, scatter.New(s.game.Dump), s.anchor, s.game.Cfg, testLog)
	require.NoError(t, err)
	assert.Equal(t, 1, pop.Dropped)
	require.Len(t, pop.Records, 1)
	assert.Equal(t, Networked, pop.Records[0].Class())
}

func TestEnumerateWorldFailures(t *testing.T) {
	s := newScene(t)

	_, err := Enumerate(s.game.Dump, scatter.New(s.game.Dump), s.anchor, s.game.Cfg, testLog)
	assert.ErrorIs(t, err, ErrNoMainEntity)

	s.game.Entities(s.anchor.Address, s.main.Base)
	header, err := process.ReadPointer(s.game.Dump, s.anchor.Address.Add(s.game.Cfg.World.Entities))
	require.NoError(t, err)
	s.game.Arena.PutInt32(header.Add(s.game.Cfg.Array.Count), -1)

	_, err = Enumerate(s.game.Dump, scatter.New(s.game.Dump), s.anchor, s.game.Cfg, testLog)
	assert.ErrorIs(t, err, decode.ErrDecode)
}
