// Package sampler is the hot path: it executes the scatter batch once per cycle
// and builds snapshots from the cached values only.
package sampler

import (
	"fmt"

	"memwatch/entity"
	"memwatch/scatter"

	"github.com/Moonlight-Companies/gologger/logger"
)

// Vitality is a coarse health bucket.
type Vitality int

const (
	Unknown Vitality = iota
	Full
	High
	Medium
	Low
	Special
)

// VitalityFromRaw buckets the raw health status. Values outside the known set
// are Special.
func VitalityFromRaw(v int32) Vitality {
	switch v {
	case 0, -1:
		return Unknown
	case 1024:
		return Full
	case 2048:
		return High
	case 4096:
		return Medium
	case 8192:
		return Low
	}
	return Special
}

var vitalityNames = [...]string{"unknown", "full", "high", "medium", "low", "special"}

func (v Vitality) String() string {
	if v < 0 || int(v) >= len(vitalityNames) {
		return fmt.Sprintf("vitality(%d)", int(v))
	}
	return vitalityNames[v]
}

func (v Vitality) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Vitality) UnmarshalText(text []byte) error {
	for i, name := range vitalityNames {
		if name == string(text) {
			*v = Vitality(i)
			return nil
		}
	}
	return fmt.Errorf("unknown vitality %q", text)
}

// Snapshot is one entity as seen in one cycle.
type Snapshot struct {
	Faction  entity.Faction        `json:"faction"`
	Human    bool                  `json:"human"`
	Class    entity.Classification `json:"class"`
	Vitality Vitality              `json:"vitality"`
	Rotation entity.Vector2        `json:"rotation"`
	GroupID  string                `json:"group_id,omitempty"`
}

// Result of one cycle.
type Result struct {
	Snapshots []Snapshot
	Skipped   int // records whose cached values could not be read
}

type Sampler struct {
	batch *scatter.Batch
	log   *logger.Logger
}

func New(batch *scatter.Batch, log *logger.Logger) *Sampler {
	return &Sampler{batch: batch, log: log}
}

// Cycle executes the batch and samples records in order. It issues exactly one
// scatter round trip and no other reads.
func (s *Sampler) Cycle(records []entity.Record) (Result, error) {
	if err := s.batch.Execute(); err != nil {
		return Result{}, err
	}

	res := Result{Snapshots: make([]Snapshot, 0, len(records))}
	for _, rec := range records {
		snap, err := s.sample(rec)
		if err != nil {
			s.log.Debugln("Skipping entity", rec.Base, err)
			res.Skipped++
			continue
		}
		res.Snapshots = append(res.Snapshots, snap)
	}
	return res, nil
}

func (s *Sampler) sample(rec entity.Record) (Snapshot, error) {
	snap := Snapshot{
		Faction: rec.Faction,
		Human:   rec.Human,
		Class:   rec.Class(),
		GroupID: rec.GroupID,
	}

	switch f := rec.Fields.(type) {
	case entity.LocalFields:
		rotation, err := scatter.ReadT[entity.Vector2](s.batch, f.Rotation)
		if err != nil {
			return Snapshot{}, fmt.Errorf("rotation: %w", err)
		}
		snap.Rotation = rotation
		snap.Vitality = Unknown
	case entity.NetworkedFields:
		health, err := scatter.ReadT[int32](s.batch, f.Health)
		if err != nil {
			return Snapshot{}, fmt.Errorf("health: %w", err)
		}
		rotation, err := scatter.ReadT[entity.Vector2](s.batch, f.Rotation)
		if err != nil {
			return Snapshot{}, fmt.Errorf("rotation: %w", err)
		}
		snap.Rotation = rotation
		snap.Vitality = VitalityFromRaw(health)
	default:
		return Snapshot{}, fmt.Errorf("unsupported fields %T", rec.Fields)
	}
	return snap, nil
}
