package process_blob

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"memwatch/process"
	"memwatch/process/memory_map"
)

// ProcessDump implements process.Process over captured memory regions, either
// loaded from disk or assembled in memory. Regions are immutable while readers run.
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data

	reads        atomic.Int64
	scatterCalls atomic.Int64
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates a new, empty ProcessDump instance
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs: make(map[uint64][]byte),
	}
}

// AddRegion maps a zero-filled region of size bytes at addr.
func (p *ProcessDump) AddRegion(addr uint64, size uint, perms, path string) []byte {
	data := make([]byte, size)
	p.MemoryMap = append(p.MemoryMap, memory_map.MemoryMapItem{Address: addr, Size: size, Perms: perms, Path: path})
	memory_map.Sort(p.MemoryMap)
	p.Blobs[addr] = data
	return data
}

// Poke overwrites mapped bytes at addr.
func (p *ProcessDump) Poke(addr process.ProcessMemoryAddress, data []byte) error {
	region, blob, err := p.locate(addr, process.ProcessMemorySize(len(data)))
	if err != nil {
		return err
	}
	copy(blob[uint64(addr)-region.Address:], data)
	return nil
}

func (p *ProcessDump) PokePointer(addr, value process.ProcessMemoryAddress) error {
	return p.Poke(addr, binary.LittleEndian.AppendUint64(nil, uint64(value)))
}

func (p *ProcessDump) PokeInt32(addr process.ProcessMemoryAddress, value int32) error {
	return p.Poke(addr, binary.LittleEndian.AppendUint32(nil, uint32(value)))
}

func (p *ProcessDump) PokeFloat32(addr process.ProcessMemoryAddress, value float32) error {
	return p.Poke(addr, binary.LittleEndian.AppendUint32(nil, math.Float32bits(value)))
}

// Reads reports how many synchronous ReadMemory calls were served.
func (p *ProcessDump) Reads() int64 { return p.reads.Load() }

// ScatterCalls reports how many ReadScatter round trips were served.
func (p *ProcessDump) ScatterCalls() int64 { return p.scatterCalls.Load() }

func (p *ProcessDump) Close() error {
	p.Blobs = nil
	p.MemoryMap = nil
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) UpdateMemoryMap() error {
	return nil // Memory map is static in a dump
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	region := memory_map.FindRegion(uint64(addr), p.MemoryMap)
	return region != nil && region.IsReadable()
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

func (p *ProcessDump) locate(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*memory_map.MemoryMapItem, []byte, error) {
	if p.Blobs == nil {
		return nil, nil, process.ErrProcessNotOpen
	}
	region := memory_map.FindRegion(uint64(addr), p.MemoryMap)
	if region == nil {
		return nil, nil, process.ErrAddressNotMapped
	}

	data, ok := p.Blobs[region.Address]
	if !ok {
		return nil, nil, fmt.Errorf("no data for region 0x%x", region.Address)
	}

	offset := uint64(addr) - region.Address
	if offset+uint64(size) > uint64(len(data)) {
		return nil, nil, fmt.Errorf("read size %d at 0x%x exceeds region data bounds", size, uint64(addr))
	}
	return region, data, nil
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.reads.Add(1)
	return p.read(addr, size)
}

func (p *ProcessDump) read(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	region, data, err := p.locate(addr, size)
	if err != nil {
		return nil, err
	}

	offset := uint64(addr) - region.Address
	result := make([]byte, size)
	copy(result, data[offset:offset+uint64(size)])
	return result, nil
}

// ReadScatter serves the whole batch as one call.
func (p *ProcessDump) ReadScatter(reqs []process.ScatterRequest) ([]process.ScatterResult, error) {
	p.scatterCalls.Add(1)
	if p.Blobs == nil {
		return nil, process.ErrProcessNotOpen
	}

	results := make([]process.ScatterResult, len(reqs))
	for i, r := range reqs {
		results[i].Address = r.Address
		results[i].Data, results[i].Err = p.read(r.Address, r.Size)
	}
	return results, nil
}

func (p *ProcessDump) ScanRange(aob process.AOB, start, end process.ProcessMemoryAddress) ([]process.ProcessMemoryAddress, error) {
	if p.Blobs == nil {
		return nil, process.ErrProcessNotOpen
	}
	if !aob.IsValid() {
		return nil, errors.New("invalid pattern")
	}

	var results []process.ProcessMemoryAddress
	for _, region := range memory_map.Intersect(uint64(start), uint64(end), p.MemoryMap) {
		data, err := p.read(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			continue // Blob not saved
		}
		for _, off := range process.FindPatternMatches(data, aob) {
			results = append(results, process.ProcessMemoryAddress(region.Address+uint64(off)))
		}
	}
	slices.Sort(results)
	return results, nil
}

func (p *ProcessDump) FindModule(name string) (process.Module, error) {
	if p.Blobs == nil {
		return process.Module{}, process.ErrProcessNotOpen
	}
	span, ok := memory_map.FindModule(name, p.MemoryMap)
	if !ok {
		return process.Module{}, fmt.Errorf("%w: %s", process.ErrModuleNotFound, name)
	}
	return process.Module{
		Name: filepath.Base(span.Path),
		Path: span.Path,
		Base: process.ProcessMemoryAddress(span.Start),
		Size: process.ProcessMemorySize(span.End - span.Start),
	}, nil
}

// Load reads a dump written by process_linux.(*LinuxProcess).Save.
func (p *ProcessDump) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, MetadataFile))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	p.PID = metadata.PID
	p.Name = metadata.Name

	mmBytes, err := os.ReadFile(filepath.Join(dirname, MemoryMapFile))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	if err := json.Unmarshal(mmBytes, &p.MemoryMap); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}
	memory_map.Sort(p.MemoryMap)

	if p.Blobs == nil {
		p.Blobs = make(map[uint64][]byte)
	}
	for _, region := range p.MemoryMap {
		filename := filepath.Join(dirname, BlobFileName(region.Address, region.Size))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // Blob not saved (e.g. too large or not readable)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		p.Blobs[region.Address] = data
	}

	return nil
}

// Save writes the dump in the layout Load reads.
func (p *ProcessDump) Save(dirname string) error {
	if p.Blobs == nil {
		return process.ErrProcessNotOpen
	}
	if err := WriteIndex(dirname, Metadata{PID: p.PID, Name: p.Name}, p.MemoryMap); err != nil {
		return err
	}
	for _, region := range p.MemoryMap {
		data, ok := p.Blobs[region.Address]
		if !ok {
			continue
		}
		if err := WriteBlob(dirname, region, data); err != nil {
			return fmt.Errorf("failed to write blob 0x%x: %w", region.Address, err)
		}
	}
	return nil
}
