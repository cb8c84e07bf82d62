package process

import (
	"memwatch/process/memory_map"
)

// Reader is the minimal read capability. Everything that only dereferences
// foreign memory accepts a Reader rather than a full Process.
type Reader interface {
	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// ScatterReader reads many independent ranges in one round trip.
type ScatterReader interface {
	// ReadScatter reads every request; failures are reported per entry.
	ReadScatter(reqs []ScatterRequest) ([]ScatterResult, error)
}

// Process is the interface that defines operations for interacting with a foreign process
type Process interface {
	Reader
	ScatterReader

	// Memory scanning operations
	MemoryScanner

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// FindModule resolves a loaded module by file name
	FindModule(name string) (Module, error)
}

// MemoryScanner defines operations for searching patterns in process memory
type MemoryScanner interface {
	// ScanRange searches for a pattern in the readable memory inside [start, end)
	ScanRange(aob AOB, start, end ProcessMemoryAddress) ([]ProcessMemoryAddress, error)
}

// ProcessOpener resolves a running process by name
type ProcessOpener interface {
	// OpenProcessByName opens a process by its name (returns the first match)
	OpenProcessByName(name string) (Process, error)
}
