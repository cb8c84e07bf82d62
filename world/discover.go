package world

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"memwatch/decode"
	"memwatch/offsets"
	"memwatch/pod"
	"memwatch/process"
	"memwatch/race"

	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	errNotWorld    = errors.New("object is not the world")
	errPlaceholder = errors.New("world is a placeholder map")
)

// Anchor is the discovered world object. It is fixed for the rest of a session.
type Anchor struct {
	Address process.ProcessMemoryAddress
	MapName string
}

// Node is one entry of the manager's doubly linked active-object list.
type Node struct {
	Prev   process.ProcessMemoryAddress
	Next   process.ProcessMemoryAddress
	Object process.ProcessMemoryAddress
}

// Endpoints reads the first and last nodes of the manager's active list.
func Endpoints(r process.Reader, manager process.ProcessMemoryAddress, cfg offsets.Config) (first, last Node, err error) {
	firstAddr, err := process.ReadPointer(r, manager.Add(cfg.Manager.ActiveNodes))
	if err != nil {
		return Node{}, Node{}, fmt.Errorf("first node pointer: %w", err)
	}
	lastAddr, err := process.ReadPointer(r, manager.Add(cfg.Manager.LastActiveNode))
	if err != nil {
		return Node{}, Node{}, fmt.Errorf("last node pointer: %w", err)
	}

	if first, err = pod.ReadT[Node](r, firstAddr); err != nil {
		return Node{}, Node{}, fmt.Errorf("first node: %w", err)
	}
	if last, err = pod.ReadT[Node](r, lastAddr); err != nil {
		return Node{}, Node{}, fmt.Errorf("last node: %w", err)
	}
	return first, last, nil
}

// Discover searches the active list for the world object. One worker walks
// forward from the first node, the other backward from the last; whichever
// matches first stops the other. Both have finished when Discover returns.
func Discover(r process.Reader, manager process.ProcessMemoryAddress, cfg offsets.Config, log *logger.Logger) (Anchor, error) {
	first, last, err := Endpoints(r, manager, cfg)
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: %w", ErrAnchorNotFound, err)
	}

	g := race.NewGroup[Anchor](2)
	g.Go(walker{
		name:      "forward",
		r:         r,
		cfg:       cfg,
		log:       log,
		from:      first,
		until:     last.Object,
		inclusive: true, // covers the single-node list
		link:      func(n Node) process.ProcessMemoryAddress { return n.Next },
	}.walk)
	g.Go(walker{
		name:  "backward",
		r:     r,
		cfg:   cfg,
		log:   log,
		from:  last,
		until: first.Object,
		link:  func(n Node) process.ProcessMemoryAddress { return n.Prev },
	}.walk)

	anchor, err := g.Wait()
	if err != nil {
		return Anchor{}, fmt.Errorf("%w: %w", ErrAnchorNotFound, err)
	}
	log.Infoln("World found at", anchor.Address, "map", anchor.MapName)
	return anchor, nil
}

type walker struct {
	name      string
	r         process.Reader
	cfg       offsets.Config
	log       *logger.Logger
	from      Node
	until     process.ProcessMemoryAddress
	inclusive bool
	link      func(Node) process.ProcessMemoryAddress
}

func (w walker) walk(stop *atomic.Bool) (Anchor, error) {
	current := w.from
	for step := 0; step < w.cfg.Node.MaxWalk; step++ {
		if stop.Load() {
			return Anchor{}, race.ErrStopped
		}

		end := current.Object == w.until
		if end && !w.inclusive {
			return Anchor{}, fmt.Errorf("%s walk exhausted after %d nodes", w.name, step)
		}

		anchor, err := Inspect(w.r, current.Object, w.cfg)
		if err == nil {
			w.log.Debugln("World matched by", w.name, "walk at step", step)
			return anchor, nil
		}
		if errors.Is(err, errPlaceholder) {
			w.log.Debugln("Skipping placeholder world at", current.Object)
		}
		if end {
			return Anchor{}, fmt.Errorf("%s walk exhausted after %d nodes", w.name, step+1)
		}

		next, err := pod.ReadT[Node](w.r, w.link(current))
		if err != nil {
			return Anchor{}, fmt.Errorf("%s walk broken at step %d: %w", w.name, step, err)
		}
		current = next
	}
	return Anchor{}, fmt.Errorf("%s walk gave up after %d nodes", w.name, w.cfg.Node.MaxWalk)
}

// Inspect reports whether object is a non-placeholder world and, if so,
// resolves it. Any error means "not this object".
func Inspect(r process.Reader, object process.ProcessMemoryAddress, cfg offsets.Config) (Anchor, error) {
	namePtr, err := process.ReadPointer(r, object.Add(cfg.Node.ObjectName))
	if err != nil {
		return Anchor{}, err
	}
	name, err := decode.ReadString(r, namePtr, cfg.Node.ObjectNameSize, decode.Narrow)
	if err != nil {
		return Anchor{}, err
	}
	if !strings.Contains(name, cfg.World.ObjectName) {
		return Anchor{}, errNotWorld
	}

	world, err := process.ResolveChain(r, object, cfg.Node.WorldChain...)
	if err != nil {
		return Anchor{}, fmt.Errorf("world chain: %w", err)
	}

	mapName, err := MapName(r, world, cfg)
	if err != nil {
		return Anchor{}, err
	}
	if mapName == cfg.World.Placeholder {
		return Anchor{}, errPlaceholder
	}
	return Anchor{Address: world, MapName: mapName}, nil
}

// MapName reads the map identifier of a world. When the world's own location
// pointer is still null it is taken from the main entity instead.
func MapName(r process.Reader, world process.ProcessMemoryAddress, cfg offsets.Config) (string, error) {
	location, err := process.ReadPointer(r, world.Add(cfg.World.LocationID))
	if err != nil {
		return "", fmt.Errorf("location id: %w", err)
	}
	if location == 0 {
		location, err = process.ResolveChain(r, world, cfg.World.MainEntity, cfg.Local.Location)
		if err != nil {
			return "", fmt.Errorf("location via main entity: %w", err)
		}
	}
	return decode.ReadString(r, location.Add(cfg.Strings.ManagedChars), cfg.Strings.ManagedSize, decode.Wide)
}
