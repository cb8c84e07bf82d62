// Package worldtest lays out a synthetic game inside a process_blob.ProcessDump:
// the signature in a fake engine module, the object manager and its active
// list, a world with a map name and an entity array.
package worldtest

import (
	"encoding/binary"
	"fmt"

	"memwatch/offsets"
	"memwatch/process"
	"memwatch/process_blob"
)

const (
	ArenaBase  = 0x10000000
	ArenaSize  = 4 << 20
	ModuleBase = 0x40000000
	ModuleSize = 0x1000
	// SignatureOffset is where the signature sits inside the module.
	SignatureOffset = 0x200
)

type Game struct {
	Dump    *process_blob.ProcessDump
	Arena   *process_blob.Arena
	Cfg     offsets.Config
	Module  process.Module
	Global  process.ProcessMemoryAddress // holds the manager pointer
	Manager process.ProcessMemoryAddress
	Nodes   []process.ProcessMemoryAddress
}

// New builds a process with the engine module, the signature and a manager
// whose active list is still empty.
func New(cfg offsets.Config) *Game {
	dump := process_blob.NewProcessDump()
	dump.PID = 4242
	dump.Name = cfg.Target.Process

	g := &Game{
		Dump:  dump,
		Arena: process_blob.NewArena(dump, ArenaBase, ArenaSize),
		Cfg:   cfg,
	}

	path := "/opt/game/" + cfg.Target.Module
	code := dump.AddRegion(ModuleBase, ModuleSize, "r-xp", path)
	g.Module = process.Module{Name: cfg.Target.Module, Path: path, Base: ModuleBase, Size: ModuleSize}

	aob, err := process.ParseAOB(cfg.Signature.Pattern)
	if err != nil {
		panic(err)
	}
	match := process.ProcessMemoryAddress(ModuleBase + SignatureOffset)
	copy(code[SignatureOffset:], aob.Pattern)

	g.Global = g.Arena.Alloc(8)
	disp := int64(g.Global) - int64(match) - int64(cfg.Signature.InstructionLength)
	binary.LittleEndian.PutUint32(code[SignatureOffset+int(cfg.Signature.DisplacementOffset):], uint32(int32(disp)))

	g.Manager = g.Arena.Alloc(int(max(cfg.Manager.ActiveNodes, cfg.Manager.LastActiveNode)) + 8)
	g.Arena.PutPointer(g.Global, g.Manager)
	return g
}

// Object allocates an object whose name pointer leads to name.
func (g *Game) Object(name string) process.ProcessMemoryAddress {
	obj := g.Arena.Alloc(int(g.Cfg.Node.ObjectName) + 8)
	g.Arena.PutPointer(obj.Add(g.Cfg.Node.ObjectName), g.Arena.Narrow(name, int(g.Cfg.Node.ObjectNameSize)))
	return obj
}

// Fillers allocates n objects that are not the world.
func (g *Game) Fillers(n int) []process.ProcessMemoryAddress {
	objects := make([]process.ProcessMemoryAddress, n)
	for i := range objects {
		objects[i] = g.Object(fmt.Sprintf("Object_%03d", i))
	}
	return objects
}

// List links objects into the manager's active list in order.
func (g *Game) List(objects ...process.ProcessMemoryAddress) {
	g.Nodes = make([]process.ProcessMemoryAddress, len(objects))
	for i := range objects {
		g.Nodes[i] = g.Arena.Alloc(24)
	}
	for i, node := range g.Nodes {
		if i > 0 {
			g.Arena.PutPointer(node, g.Nodes[i-1])
		}
		if i < len(g.Nodes)-1 {
			g.Arena.PutPointer(node.Add(8), g.Nodes[i+1])
		}
		g.Arena.PutPointer(node.Add(16), objects[i])
	}
	g.Arena.PutPointer(g.Manager.Add(g.Cfg.Manager.ActiveNodes), g.Nodes[0])
	g.Arena.PutPointer(g.Manager.Add(g.Cfg.Manager.LastActiveNode), g.Nodes[len(g.Nodes)-1])
}

// Unlink breaks the list after node i by nulling its next pointer.
func (g *Game) Unlink(i int) {
	g.Arena.PutPointer(g.Nodes[i].Add(8), 0)
}

// ManagedString allocates a managed string object holding s.
func (g *Game) ManagedString(s string) process.ProcessMemoryAddress {
	obj := g.Arena.Alloc(int(g.Cfg.Strings.ManagedChars + g.Cfg.Strings.ManagedSize))
	g.Arena.PutWide(obj.Add(g.Cfg.Strings.ManagedChars), s)
	return obj
}

// World allocates a world object named like the configured world and returns
// the list object and the world it resolves to. An empty mapName leaves the
// location pointer null so the name must come from the main entity.
func (g *Game) World(mapName string) (object, world process.ProcessMemoryAddress) {
	object = g.Object("Level/" + g.Cfg.World.ObjectName)
	world = g.Arena.Alloc(0x400)
	g.Arena.Chain(object, world, g.Cfg.Node.WorldChain...)
	if mapName != "" {
		g.Arena.PutPointer(world.Add(g.Cfg.World.LocationID), g.ManagedString(mapName))
	}
	return object, world
}

// Rotation is the two-float view angle stored by the game.
type Rotation struct{ X, Y float32 }

// Entity holds the addresses a test may want to mutate between cycles.
type Entity struct {
	Base     process.ProcessMemoryAddress
	Health   process.ProcessMemoryAddress // zero for local entities
	Rotation process.ProcessMemoryAddress
}

func (g *Game) className(entity process.ProcessMemoryAddress, class string) {
	g.Arena.Chain(entity, g.Arena.Narrow(class, int(g.Cfg.Classes.NameSize)), g.Cfg.Classes.NameChain...)
}

type Local struct {
	Class    string // full class name, e.g. "LocalPlayer"
	Faction  int32
	Group    string
	Rotation Rotation
	MapName  string // main entity location, used when the world has none
}

// AddLocal allocates a locally simulated entity.
func (g *Game) AddLocal(opts Local) Entity {
	c := g.Cfg.Local
	base := g.Arena.Alloc(int(max(c.Profile, c.Location, c.MovementContext)) + 8)
	g.className(base, opts.Class)

	info := g.Arena.Alloc(int(max(c.Faction, c.GroupID)) + 8)
	g.Arena.Chain(base, info, c.Profile, c.Info)
	g.Arena.PutInt32(info.Add(c.Faction), opts.Faction)
	if opts.Group != "" {
		g.Arena.PutPointer(info.Add(c.GroupID), g.ManagedString(opts.Group))
	}

	movement := g.Arena.Alloc(int(c.Rotation) + 8)
	g.Arena.PutPointer(base.Add(c.MovementContext), movement)
	rotation := movement.Add(c.Rotation)
	g.SetRotation(rotation, opts.Rotation)

	if opts.MapName != "" {
		g.Arena.PutPointer(base.Add(c.Location), g.ManagedString(opts.MapName))
	}
	return Entity{Base: base, Rotation: rotation}
}

type Networked struct {
	Class    string
	Faction  int32
	Bot      bool
	Health   int32
	Group    string
	Voice    string
	Rotation Rotation
}

// AddNetworked allocates a remotely simulated entity.
func (g *Game) AddNetworked(opts Networked) Entity {
	c := g.Cfg.Networked
	if opts.Class == "" {
		opts.Class = "ObservedPlayerView"
	}

	base := g.Arena.Alloc(0x200)
	g.className(base, opts.Class)
	g.Arena.PutBool(base.Add(c.Autonomous), opts.Bot)
	g.Arena.PutInt32(base.Add(c.Faction), opts.Faction)
	if opts.Group != "" {
		g.Arena.PutPointer(base.Add(c.GroupID), g.ManagedString(opts.Group))
	}
	if opts.Voice != "" {
		g.Arena.PutPointer(base.Add(c.Voice), g.ManagedString(opts.Voice))
	}

	controller := g.Arena.Alloc(0x200)
	g.Arena.PutPointer(base.Add(c.Controller), controller)

	health := g.Arena.Alloc(int(c.HealthValue) + 8)
	g.Arena.PutPointer(controller.Add(c.HealthController), health)
	g.Arena.PutInt32(health.Add(c.HealthValue), opts.Health)

	movement := g.Arena.Alloc(int(c.Rotation) + 8)
	g.Arena.Chain(controller, movement, c.MovementChain...)
	rotation := movement.Add(c.Rotation)
	g.SetRotation(rotation, opts.Rotation)

	return Entity{Base: base, Health: health.Add(c.HealthValue), Rotation: rotation}
}

// Entities points the world at main and at an entity array holding items.
// Items may include zero and main itself.
func (g *Game) Entities(world, main process.ProcessMemoryAddress, items ...process.ProcessMemoryAddress) {
	a := g.Cfg.Array
	header := g.Arena.Alloc(int(max(a.Items, a.Count)) + 8)
	storage := g.Arena.Alloc(int(a.First) + 8*len(items) + 8)
	g.Arena.PutPointer(header.Add(a.Items), storage)
	g.Arena.PutInt32(header.Add(a.Count), int32(len(items)))
	for i, item := range items {
		g.Arena.PutPointer(storage.Add(a.First+process.ProcessMemorySize(8*i)), item)
	}

	g.Arena.PutPointer(world.Add(g.Cfg.World.Entities), header)
	g.Arena.PutPointer(world.Add(g.Cfg.World.MainEntity), main)
}

func (g *Game) SetHealth(addr process.ProcessMemoryAddress, value int32) {
	g.Arena.PutInt32(addr, value)
}

func (g *Game) SetRotation(addr process.ProcessMemoryAddress, r Rotation) {
	g.Arena.PutFloat32(addr, r.X)
	g.Arena.PutFloat32(addr.Add(4), r.Y)
}
