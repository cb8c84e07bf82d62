package process_blob

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"memwatch/process"
)

// Arena bump-allocates foreign objects inside one region of a ProcessDump. It is
// used to lay out synthetic object graphs; writes panic on programmer error.
type Arena struct {
	dump *ProcessDump
	base uint64
	data []byte
	next uint64
}

// NewArena maps a readable, writable region of size bytes at base.
func NewArena(dump *ProcessDump, base uint64, size uint) *Arena {
	return &Arena{
		dump: dump,
		base: base,
		data: dump.AddRegion(base, size, "rw-p", ""),
		next: base,
	}
}

// Alloc reserves size zeroed bytes, 16-byte aligned.
func (a *Arena) Alloc(size int) process.ProcessMemoryAddress {
	addr := (a.next + 15) &^ 15
	if addr+uint64(size) > a.base+uint64(len(a.data)) {
		panic(fmt.Sprintf("arena exhausted: %d bytes at 0x%x", size, addr))
	}
	a.next = addr + uint64(size)
	return process.ProcessMemoryAddress(addr)
}

func (a *Arena) slice(addr process.ProcessMemoryAddress, size int) []byte {
	off := uint64(addr) - a.base
	if uint64(addr) < a.base || off+uint64(size) > uint64(len(a.data)) {
		panic(fmt.Sprintf("write of %d bytes at %s is outside the arena", size, addr))
	}
	return a.data[off : off+uint64(size)]
}

func (a *Arena) PutBytes(addr process.ProcessMemoryAddress, b []byte) {
	copy(a.slice(addr, len(b)), b)
}

func (a *Arena) PutPointer(addr, value process.ProcessMemoryAddress) {
	binary.LittleEndian.PutUint64(a.slice(addr, 8), uint64(value))
}

func (a *Arena) PutInt32(addr process.ProcessMemoryAddress, value int32) {
	binary.LittleEndian.PutUint32(a.slice(addr, 4), uint32(value))
}

func (a *Arena) PutFloat32(addr process.ProcessMemoryAddress, value float32) {
	binary.LittleEndian.PutUint32(a.slice(addr, 4), math.Float32bits(value))
}

func (a *Arena) PutBool(addr process.ProcessMemoryAddress, value bool) {
	b := a.slice(addr, 1)
	b[0] = 0
	if value {
		b[0] = 1
	}
}

// Narrow allocates a zero-padded UTF-8 buffer of size bytes holding s.
func (a *Arena) Narrow(s string, size int) process.ProcessMemoryAddress {
	addr := a.Alloc(size)
	a.PutBytes(addr, []byte(s))
	return addr
}

// PutWide writes s as zero-terminated UTF-16LE at addr.
func (a *Arena) PutWide(addr process.ProcessMemoryAddress, s string) {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, 2*len(units)+2)
	for _, u := range units {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	a.PutBytes(addr, append(b, 0, 0))
}

// Chain allocates the intermediate objects so that resolving offsets from
// base ends at target.
func (a *Arena) Chain(base process.ProcessMemoryAddress, target process.ProcessMemoryAddress, offsets ...process.ProcessMemorySize) {
	current := base
	for i, off := range offsets {
		next := target
		if i < len(offsets)-1 {
			next = a.Alloc(max(0x100, int(offsets[i+1])+8))
		}
		a.PutPointer(current.Add(off), next)
		current = next
	}
}
