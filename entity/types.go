package entity

import (
	"errors"
	"fmt"

	"memwatch/process"
)

var ErrUnknownFactionCode = errors.New("unknown faction code")

// Classification is decided by the entity's runtime class name.
type Classification int

const (
	ClientLocal Classification = iota // local client-side entity
	MainLocal                         // the observing entity
	Networked                         // remotely simulated entity
)

func (c Classification) String() string {
	switch c {
	case ClientLocal:
		return "client_local"
	case MainLocal:
		return "main_local"
	case Networked:
		return "networked"
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

func (c Classification) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Classification) UnmarshalText(text []byte) error {
	for _, v := range []Classification{ClientLocal, MainLocal, Networked} {
		if v.String() == string(text) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", text)
}

type Faction int

const (
	FactionA Faction = iota + 1
	FactionB
	FactionC
)

// FactionFromCode maps the raw side value stored by the game.
func FactionFromCode(code int32) (Faction, error) {
	switch code {
	case 1:
		return FactionA, nil
	case 2:
		return FactionB, nil
	case 4:
		return FactionC, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownFactionCode, code)
}

func (f Faction) String() string {
	switch f {
	case FactionA:
		return "A"
	case FactionB:
		return "B"
	case FactionC:
		return "C"
	}
	return fmt.Sprintf("faction(%d)", int(f))
}

func (f Faction) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Faction) UnmarshalText(text []byte) error {
	for _, v := range []Faction{FactionA, FactionB, FactionC} {
		if v.String() == string(text) {
			*f = v
			return nil
		}
	}
	return fmt.Errorf("unknown faction %q", text)
}

// Vector2 is the view rotation as stored in foreign memory.
type Vector2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Fields holds the per-classification addresses the sampler reads every
// cycle. It is either LocalFields or NetworkedFields.
type Fields interface {
	isFields()
}

// LocalFields belong to ClientLocal and MainLocal entities. Local entities
// expose no health value.
type LocalFields struct {
	Class    Classification
	Rotation process.ProcessMemoryAddress
}

type NetworkedFields struct {
	Health   process.ProcessMemoryAddress
	Rotation process.ProcessMemoryAddress
}

func (LocalFields) isFields()     {}
func (NetworkedFields) isFields() {}

// Record is an entity resolved once per enumeration. Its addresses stay valid
// for the session; values read through them may be stale.
type Record struct {
	Base    process.ProcessMemoryAddress
	Faction Faction
	Human   bool
	GroupID string // empty when unknown
	Voice   string // set for FactionC networked entities when readable
	Fields  Fields
}

func (r Record) Class() Classification {
	if f, ok := r.Fields.(LocalFields); ok {
		return f.Class
	}
	return Networked
}

// Rotation returns the address of the rotation vector.
func (r Record) Rotation() process.ProcessMemoryAddress {
	switch f := r.Fields.(type) {
	case LocalFields:
		return f.Rotation
	case NetworkedFields:
		return f.Rotation
	}
	return 0
}
