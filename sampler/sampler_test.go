package sampler

import (
	"encoding/json"
	"testing"

	"memwatch/entity"
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

var testLog = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "sampler-test"))

func TestVitalityFromRaw(t *testing.T) {
	cases := map[int32]Vitality{
		0:     Unknown,
		-1:    Unknown,
		1024:  Full,
		2048:  High,
		4096:  Medium,
		8192:  Low,
		1:     Special,
		512:   Special,
		1023:  Special,
		3000:  Special,
		16384: Special,
		-2:    Special,
	}
	for raw, want := range cases {
		assert.Equal(t, want, VitalityFromRaw(raw), "raw %d", raw)
	}
}

func TestSnapshotJSON(t *testing.T) {
	b, err := json.Marshal(Snapshot{
		Faction:  entity.FactionC,
		Class:    entity.Networked,
		Vitality: Medium,
		Rotation: entity.Vector2{X: 1.5, Y: -2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"faction":"C","human":false,"class":"networked","vitality":"medium","rotation":{"x":1.5,"y":-2}}`, string(b))
}

type fixture struct {
	game      *worldtest.Game
	batch     *scatter.Batch
	records   []entity.Record
	networked worldtest.Entity
	main      worldtest.Entity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	game := worldtest.New(offsets.Default())
	object, addr := game.World("lighthouse")
	game.List(object)

	f := &fixture{game: game}
	f.main = game.AddLocal(worldtest.Local{Class: "LocalPlayer", Faction: 1, Rotation: worldtest.Rotation{X: 90, Y: 0}})
	f.networked = game.AddNetworked(worldtest.Networked{Faction: 2, Health: 4096, Rotation: worldtest.Rotation{X: 45, Y: 5}})
	game.Entities(addr, f.main.Base, 0, f.main.Base, f.networked.Base)

	f.batch = scatter.New(game.Dump)
	pop, err := entity.Enumerate(game.Dump, f.batch, world.Anchor{Address: addr}, game.Cfg, testLog)
	require.NoError(t, err)
	f.records = pop.Records
	return f
}

func TestCycleUsesOnlyTheBatch(t *testing.T) {
	f := newFixture(t)
	reads := f.game.Dump.Reads()
	scatters := f.game.Dump.ScatterCalls()

	res, err := New(f.batch, testLog).Cycle(f.records)
	require.NoError(t, err)
	assert.Equal(t, reads, f.game.Dump.Reads(), "no synchronous reads on the hot path")
	assert.Equal(t, scatters+1, f.game.Dump.ScatterCalls())

	require.Len(t, res.Snapshots, 2)
	assert.Equal(t, Snapshot{
		Faction:  entity.FactionB,
		Human:    true,
		Class:    entity.Networked,
		Vitality: Medium,
		Rotation: entity.Vector2{X: 45, Y: 5},
	}, res.Snapshots[0])
	assert.Equal(t, Snapshot{
		Faction:  entity.FactionA,
		Human:    true,
		Class:    entity.MainLocal,
		Vitality: Unknown,
		Rotation: entity.Vector2{X: 90, Y: 0},
	}, res.Snapshots[1])
}

func TestCycleSeesFreshValues(t *testing.T) {
	f := newFixture(t)
	s := New(f.batch, testLog)

	_, err := s.Cycle(f.records)
	require.NoError(t, err)

	f.game.SetHealth(f.networked.Health, 8192)
	f.game.SetRotation(f.networked.Rotation, worldtest.Rotation{X: -10, Y: 3})

	res, err := s.Cycle(f.records)
	require.NoError(t, err)
	assert.Equal(t, Low, res.Snapshots[0].Vitality)
	assert.Equal(t, entity.Vector2{X: -10, Y: 3}, res.Snapshots[0].Rotation)
}

func TestCycleSkipsUnreadableRecords(t *testing.T) {
	f := newFixture(t)
	ghost := entity.Record{
		Base:    0x7000,
		Faction: entity.FactionA,
		Fields:  entity.NetworkedFields{Health: 0x7010, Rotation: 0x7020},
	}
	scatter.PrepareT[int32](f.batch, 0x7010)
	scatter.PrepareT[entity.Vector2](f.batch, 0x7020)

	unregistered := entity.Record{Fields: entity.LocalFields{Class: entity.ClientLocal, Rotation: process.ProcessMemoryAddress(0x7100)}}

	res, err := New(f.batch, testLog).Cycle(append([]entity.Record{ghost, unregistered}, f.records...))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Snapshots, 2)
}

func TestCycleSkipsWhenEveryRecordIsUnreadable(t *testing.T) {
	game := worldtest.New(offsets.Default())
	batch := scatter.New(game.Dump)
	var records []entity.Record
	for i := range 3 {
		base := process.ProcessMemoryAddress(0x7000 + 0x100*i)
		rec := entity.Record{
			Base:    base,
			Faction: entity.FactionB,
			Fields:  entity.NetworkedFields{Health: base.Add(0x10), Rotation: base.Add(0x20)},
		}
		scatter.PrepareT[int32](batch, base.Add(0x10))
		scatter.PrepareT[entity.Vector2](batch, base.Add(0x20))
		records = append(records, rec)
	}

	res, err := New(batch, testLog).Cycle(records)
	require.NoError(t, err)
	assert.Empty(t, res.Snapshots)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, int64(1), game.Dump.ScatterCalls())
}

func TestCycleFailsWhenProcessIsGone(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.game.Dump.Close())

	_, err := New(f.batch, testLog).Cycle(f.records)
	assert.ErrorIs(t, err, process.ErrProcessNotOpen)
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	in := Snapshot{Faction: entity.FactionB, Human: true, Class: entity.MainLocal, Vitality: Special, GroupID: "g"}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Snapshot
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"vitality":"dead"}`), &out))
}
