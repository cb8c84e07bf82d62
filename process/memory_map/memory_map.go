package memory_map

import (
	"fmt"
	"path/filepath"
	"sort"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 `json:"Address"` // The starting address of the memory region
	Size    uint   `json:"Size"`    // The size of the memory region in bytes
	Perms   string `json:"Perms"`   // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string `json:"Path,omitempty"`
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]MemoryMapItem, error)

	// IsReadablePerms checks if a memory region has read permissions
	IsReadablePerms(perms string) bool

	// IsWritablePerms checks if a memory region has write permissions
	IsWritablePerms(perms string) bool

	// IsExecutablePerms checks if a memory region has execute permissions
	IsExecutablePerms(perms string) bool
}

// Sort orders the map by address. FindRegion requires a sorted map.
func Sort(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// FindRegion returns the region containing addr using binary search over a sorted map.
func FindRegion(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// ModuleSpan is the address range covered by every mapping of one file.
type ModuleSpan struct {
	Path  string
	Start uint64
	End   uint64
}

// FindModule collects the mappings whose file base name equals name (exact match).
func FindModule(name string, memoryMap []MemoryMapItem) (ModuleSpan, bool) {
	var span ModuleSpan
	found := false
	for _, item := range memoryMap {
		if item.Path == "" || filepath.Base(item.Path) != name {
			continue
		}
		if !found {
			span = ModuleSpan{Path: item.Path, Start: item.Address, End: item.End()}
			found = true
			continue
		}
		span.Start = min(span.Start, item.Address)
		span.End = max(span.End, item.End())
	}
	return span, found
}

// Intersect clips the readable regions of the map to [start, end).
func Intersect(start, end uint64, memoryMap []MemoryMapItem) []MemoryMapItem {
	var out []MemoryMapItem
	for _, item := range memoryMap {
		if !item.IsReadable() || item.End() <= start || item.Address >= end {
			continue
		}
		lo := max(item.Address, start)
		hi := min(item.End(), end)
		clipped := item
		clipped.Address = lo
		clipped.Size = uint(hi - lo)
		out = append(out, clipped)
	}
	return out
}
