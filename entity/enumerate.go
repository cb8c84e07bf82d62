// Package entity enumerates the entities of a world, classifies them and
// resolves the addresses the sampler reads every cycle.
package entity

import (
	"errors"
	"fmt"
	"strings"

	"memwatch/decode"
	"memwatch/offsets"
	"memwatch/pod"
	"memwatch/process"
	"memwatch/scatter"
	"memwatch/world"

	"github.com/Moonlight-Companies/gologger/logger"
)

var ErrNoMainEntity = errors.New("world has no main entity")

// Population is the result of one enumeration.
type Population struct {
	Records []Record
	Dropped int // entities that failed to resolve
}

// Enumerate resolves every entity of the world and registers their sampled
// addresses in batch. The main entity is resolved separately and appended
// last. A failing entity is logged and dropped; only failures reading the
// world itself are returned.
func Enumerate(r process.Reader, batch *scatter.Batch, anchor world.Anchor, cfg offsets.Config, log *logger.Logger) (Population, error) {
	main, err := process.ReadPointer(r, anchor.Address.Add(cfg.World.MainEntity))
	if err != nil {
		return Population{}, fmt.Errorf("main entity: %w", err)
	}
	if main == 0 {
		return Population{}, ErrNoMainEntity
	}

	header, err := process.ReadPointer(r, anchor.Address.Add(cfg.World.Entities))
	if err != nil {
		return Population{}, fmt.Errorf("entity array: %w", err)
	}
	first, count, err := decode.Array(r, header, cfg.ArrayLayout())
	if err != nil {
		return Population{}, fmt.Errorf("entity array: %w", err)
	}
	ptrs, err := pod.ReadSliceT[process.ProcessMemoryAddress](r, first, count)
	if err != nil {
		return Population{}, fmt.Errorf("entity array items: %w", err)
	}
	ptrs = decode.FilterPointers(ptrs, main)

	var pop Population
	for _, ptr := range ptrs {
		class, err := Classify(r, ptr, cfg)
		if err != nil {
			log.Warn("Dropping entity ", ptr, ": ", err)
			pop.Dropped++
			continue
		}
		rec, err := resolve(r, batch, ptr, class, cfg)
		if err != nil {
			log.Warn("Dropping ", class, " entity ", ptr, ": ", err)
			pop.Dropped++
			continue
		}
		log.Debugln("Entity", ptr, class, rec.Faction, "human", rec.Human)
		pop.Records = append(pop.Records, rec)
	}

	rec, err := resolve(r, batch, main, MainLocal, cfg)
	if err != nil {
		log.Warn("Dropping main entity ", main, ": ", err)
		pop.Dropped++
	} else {
		pop.Records = append(pop.Records, rec)
	}
	return pop, nil
}

// Classify reads the runtime class name of the entity at base.
func Classify(r process.Reader, base process.ProcessMemoryAddress, cfg offsets.Config) (Classification, error) {
	name, err := process.ResolveChain(r, base, cfg.Classes.NameChain...)
	if err != nil {
		return 0, fmt.Errorf("class name: %w", err)
	}
	raw, err := process.ReadBytes(r, name, cfg.Classes.NameSize)
	if err != nil {
		return 0, fmt.Errorf("class name: %w", err)
	}
	return ClassifyName(raw, cfg), nil
}

// ClassifyName matches the raw class name of an array entry against the
// configured prefixes. Both local prefixes yield ClientLocal; MainLocal is
// reserved for the entity read from the world's main pointer. The buffer is
// compared as bytes; it need not be valid text.
func ClassifyName(raw []byte, cfg offsets.Config) Classification {
	switch s := string(raw); {
	case strings.HasPrefix(s, cfg.Classes.ClientPrefix), strings.HasPrefix(s, cfg.Classes.MainPrefix):
		return ClientLocal
	}
	return Networked
}

func resolve(r process.Reader, batch *scatter.Batch, base process.ProcessMemoryAddress, class Classification, cfg offsets.Config) (Record, error) {
	if class == Networked {
		return resolveNetworked(r, batch, base, cfg)
	}
	return resolveLocal(r, batch, base, class, cfg)
}

func resolveLocal(r process.Reader, batch *scatter.Batch, base process.ProcessMemoryAddress, class Classification, cfg offsets.Config) (Record, error) {
	c := cfg.Local

	info, err := process.ResolveChain(r, base, c.Profile, c.Info)
	if err != nil {
		return Record{}, fmt.Errorf("profile info: %w", err)
	}
	code, err := process.Read[int32](r, info.Add(c.Faction))
	if err != nil {
		return Record{}, fmt.Errorf("faction: %w", err)
	}
	faction, err := FactionFromCode(code)
	if err != nil {
		return Record{}, err
	}

	movement, err := process.ReadPointer(r, base.Add(c.MovementContext))
	if err != nil {
		return Record{}, fmt.Errorf("movement context: %w", err)
	}
	rotation := movement.Add(c.Rotation)

	rec := Record{
		Base:    base,
		Faction: faction,
		Human:   true,
		GroupID: managedString(r, info.Add(c.GroupID), cfg),
		Fields:  LocalFields{Class: class, Rotation: rotation},
	}
	scatter.PrepareT[Vector2](batch, rotation)
	return rec, nil
}

func resolveNetworked(r process.Reader, batch *scatter.Batch, base process.ProcessMemoryAddress, cfg offsets.Config) (Record, error) {
	c := cfg.Networked

	controller, err := process.ReadPointer(r, base.Add(c.Controller))
	if err != nil {
		return Record{}, fmt.Errorf("controller: %w", err)
	}
	health, err := process.ReadPointer(r, controller.Add(c.HealthController))
	if err != nil {
		return Record{}, fmt.Errorf("health controller: %w", err)
	}
	movement, err := process.ResolveChain(r, controller, c.MovementChain...)
	if err != nil {
		return Record{}, fmt.Errorf("movement: %w", err)
	}
	autonomous, err := process.Read[uint8](r, base.Add(c.Autonomous))
	if err != nil {
		return Record{}, fmt.Errorf("autonomy flag: %w", err)
	}
	code, err := process.Read[int32](r, base.Add(c.Faction))
	if err != nil {
		return Record{}, fmt.Errorf("faction: %w", err)
	}
	faction, err := FactionFromCode(code)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Base:    base,
		Faction: faction,
		Human:   autonomous == 0,
		Fields: NetworkedFields{
			Health:   health.Add(c.HealthValue),
			Rotation: movement.Add(c.Rotation),
		},
	}
	if rec.Human {
		rec.GroupID = managedString(r, base.Add(c.GroupID), cfg)
	}
	if faction == FactionC {
		rec.Voice = managedString(r, base.Add(c.Voice), cfg)
	}

	f := rec.Fields.(NetworkedFields)
	scatter.PrepareT[int32](batch, f.Health)
	scatter.PrepareT[Vector2](batch, f.Rotation)
	return rec, nil
}

// managedString follows the pointer at addr to a managed string. Empty when
// the pointer is null or the string cannot be read.
func managedString(r process.Reader, addr process.ProcessMemoryAddress, cfg offsets.Config) string {
	ptr, err := process.ReadPointer(r, addr)
	if err != nil || ptr == 0 {
		return ""
	}
	s, err := decode.ReadString(r, ptr.Add(cfg.Strings.ManagedChars), cfg.Strings.ManagedSize, decode.Wide)
	if err != nil {
		return ""
	}
	return s
}
