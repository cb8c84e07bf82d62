// Package offsets holds the reverse-engineered layout constants: struct field
// offsets, pointer chains, the code signature and the name strings used to
// recognise objects. The values are loaded once at startup and never mutated.
package offsets

import (
	"errors"
	"fmt"
	"os"

	"memwatch/decode"
	"memwatch/process"

	"gopkg.in/yaml.v3"
)

// Offset is a byte offset. YAML accepts decimal or 0x-prefixed hex.
type Offset = process.ProcessMemorySize

// Chain is a pointer chain: one dereference per entry.
type Chain []Offset

type Target struct {
	Process string `yaml:"process"`
	Module  string `yaml:"module"`
}

// Signature locates the global that holds the object manager. The matched
// instruction stores RIP-relative; the displacement sits DisplacementOffset bytes
// into it and is relative to the end of the instruction.
type Signature struct {
	Pattern            string `yaml:"pattern"`
	DisplacementOffset Offset `yaml:"displacement_offset"`
	InstructionLength  Offset `yaml:"instruction_length"`
}

type Manager struct {
	LastActiveNode Offset `yaml:"last_active_node"`
	ActiveNodes    Offset `yaml:"active_nodes"`
}

type Node struct {
	ObjectName     Offset `yaml:"object_name"`
	ObjectNameSize Offset `yaml:"object_name_size"`
	WorldChain     Chain  `yaml:"world_chain"`
	MaxWalk        int    `yaml:"max_walk"` // steps per walker before giving up
}

type World struct {
	LocationID  Offset `yaml:"location_id"`
	MainEntity  Offset `yaml:"main_entity"`
	Entities    Offset `yaml:"entities"`
	ObjectName  string `yaml:"object_name"`
	Placeholder string `yaml:"placeholder"`
}

type Strings struct {
	ManagedChars Offset `yaml:"managed_chars"`
	ManagedSize  Offset `yaml:"managed_size"`
}

type Array struct {
	Items    Offset `yaml:"items"`
	Count    Offset `yaml:"count"`
	First    Offset `yaml:"first"`
	MaxCount int    `yaml:"max_count"`
}

// Local covers the locally simulated entity classes.
type Local struct {
	Location        Offset `yaml:"location"`
	Profile         Offset `yaml:"profile"`
	Info            Offset `yaml:"info"`
	Faction         Offset `yaml:"faction"`
	GroupID         Offset `yaml:"group_id"`
	MovementContext Offset `yaml:"movement_context"`
	Rotation        Offset `yaml:"rotation"`
}

// Networked covers remotely simulated entities.
type Networked struct {
	Autonomous       Offset `yaml:"autonomous"`
	Controller       Offset `yaml:"controller"`
	HealthController Offset `yaml:"health_controller"`
	HealthValue      Offset `yaml:"health_value"`
	MovementChain    Chain  `yaml:"movement_chain"`
	Rotation         Offset `yaml:"rotation"`
	Faction          Offset `yaml:"faction"`
	GroupID          Offset `yaml:"group_id"`
	Voice            Offset `yaml:"voice"`
}

type Classes struct {
	NameChain    Chain  `yaml:"name_chain"`
	NameSize     Offset `yaml:"name_size"`
	ClientPrefix string `yaml:"client_prefix"`
	MainPrefix   string `yaml:"main_prefix"`
}

type Config struct {
	Target    Target    `yaml:"target"`
	Signature Signature `yaml:"signature"`
	Manager   Manager   `yaml:"manager"`
	Node      Node      `yaml:"node"`
	World     World     `yaml:"world"`
	Strings   Strings   `yaml:"strings"`
	Array     Array     `yaml:"array"`
	Classes   Classes   `yaml:"classes"`
	Local     Local     `yaml:"local"`
	Networked Networked `yaml:"networked"`
}

// Default returns the built-in layout tables.
func Default() Config {
	return Config{
		Target: Target{
			Process: "EscapeFromTarkov.exe",
			Module:  "UnityPlayer.dll",
		},
		Signature: Signature{
			Pattern:            "48 89 05 ?? ?? ?? ?? 48 83 C4 ?? C3 33 C9",
			DisplacementOffset: 3,
			InstructionLength:  7,
		},
		Manager: Manager{
			LastActiveNode: 0x20,
			ActiveNodes:    0x28,
		},
		Node: Node{
			ObjectName:     0x60,
			ObjectNameSize: 64,
			WorldChain:     Chain{0x30, 0x18, 0x28},
			MaxWalk:        1 << 16,
		},
		World: World{
			LocationID:  0xC8,
			MainEntity:  0x1A8,
			Entities:    0x180,
			ObjectName:  "GameWorld",
			Placeholder: "hideout",
		},
		Strings: Strings{
			ManagedChars: 0x14,
			ManagedSize:  128,
		},
		Array: Array{
			Items:    0x10,
			Count:    0x18,
			First:    0x20,
			MaxCount: 256,
		},
		Classes: Classes{
			NameChain:    Chain{0x0, 0x0, 0x48},
			NameSize:     64,
			ClientPrefix: "ClientPlayer",
			MainPrefix:   "LocalPlayer",
		},
		Local: Local{
			Location:        0x870,
			Profile:         0x900,
			Info:            0x48,
			Faction:         0x48,
			GroupID:         0x50,
			MovementContext: 0x60,
			Rotation:        0xC8,
		},
		Networked: Networked{
			Autonomous:       0xA0,
			Controller:       0x28,
			HealthController: 0xE8,
			HealthValue:      0x10,
			MovementChain:    Chain{0xD8, 0x98},
			Rotation:         0x20,
			Faction:          0x94,
			GroupID:          0x80,
			Voice:            0x40,
		},
	}
}

// Load returns Default overridden by the YAML file at path. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read offsets: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse offsets %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Target.Module == "" {
		errs = append(errs, errors.New("target.module is empty"))
	}
	if aob, err := process.ParseAOB(c.Signature.Pattern); err != nil {
		errs = append(errs, fmt.Errorf("signature.pattern: %w", err))
	} else if int(c.Signature.DisplacementOffset)+4 > len(aob.Pattern) {
		errs = append(errs, errors.New("signature.displacement_offset is outside the pattern"))
	}
	if c.Signature.InstructionLength == 0 {
		errs = append(errs, errors.New("signature.instruction_length is zero"))
	}
	if c.Node.MaxWalk <= 0 {
		errs = append(errs, errors.New("node.max_walk must be positive"))
	}
	if c.World.ObjectName == "" {
		errs = append(errs, errors.New("world.object_name is empty"))
	}
	if c.Node.ObjectNameSize == 0 || c.Classes.NameSize == 0 || c.Strings.ManagedSize == 0 {
		errs = append(errs, errors.New("name buffer sizes must be non-zero"))
	}
	if c.Classes.ClientPrefix == "" || c.Classes.MainPrefix == "" {
		errs = append(errs, errors.New("class prefixes must be set"))
	}
	return errors.Join(errs...)
}

// ArrayLayout adapts the array offsets for decode.Array.
func (c Config) ArrayLayout() decode.ArrayLayout {
	return decode.ArrayLayout{
		ItemsOffset:  c.Array.Items,
		CountOffset:  c.Array.Count,
		FirstElement: c.Array.First,
		MaxCount:     c.Array.MaxCount,
	}
}
