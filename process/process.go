// Package process defines the foreign-process memory access surface shared by the
// live Linux backend and the in-memory dump backend.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrMemoryRead matches every *ReadError.
	ErrMemoryRead = errors.New("memory read failed")

	ErrModuleNotFound = errors.New("module not found")
)

// ReadError reports a failed read of Size bytes at Addr. The cause may be
// transient (region unmapped mid-read) or permanent (process gone).
type ReadError struct {
	Addr ProcessMemoryAddress
	Size ProcessMemorySize
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at %s: %v", uint(e.Size), e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrMemoryRead }

// ScatterRequest is one entry of a batched read.
type ScatterRequest struct {
	Address ProcessMemoryAddress
	Size    ProcessMemorySize
}

// ScatterResult holds the outcome of one ScatterRequest. Data is nil when Err is set.
type ScatterResult struct {
	Address ProcessMemoryAddress
	Data    []byte
	Err     error
}
