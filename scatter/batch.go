// Package scatter batches many small foreign reads into one round trip.
//
// Addresses are registered with Prepare, fetched together by Execute and then
// served from the cache until the next Execute or Reset. A Batch is owned by a
// single goroutine.
package scatter

import (
	"errors"
	"fmt"

	"memwatch/pod"
	"memwatch/process"
)

var (
	// ErrNotPrepared is returned when reading an address that was never registered.
	ErrNotPrepared = errors.New("address not prepared")

	// ErrNotExecuted is returned when reading an address registered after the last Execute.
	ErrNotExecuted = errors.New("batch not executed since address was prepared")
)

type entry struct {
	size    process.ProcessMemorySize
	fetched bool
	data    []byte
	err     error
}

type Batch struct {
	proc    process.ScatterReader
	entries map[process.ProcessMemoryAddress]*entry
	order   []process.ProcessMemoryAddress
}

func New(proc process.ScatterReader) *Batch {
	return &Batch{
		proc:    proc,
		entries: make(map[process.ProcessMemoryAddress]*entry),
	}
}

// Prepare registers size bytes at addr. Registering an address again keeps the
// larger size and invalidates its cached value until the next Execute.
func (b *Batch) Prepare(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) {
	if e, ok := b.entries[addr]; ok {
		e.size = max(e.size, size)
		e.fetched = false
		e.data, e.err = nil, nil
		return
	}
	b.entries[addr] = &entry{size: size}
	b.order = append(b.order, addr)
}

// PrepareT registers sizeof(T) bytes at addr.
func PrepareT[T any](b *Batch, addr process.ProcessMemoryAddress) {
	b.Prepare(addr, pod.SizeOf[T]())
}

// Len reports how many addresses are registered.
func (b *Batch) Len() int { return len(b.order) }

// Execute fetches every registered address in one ReadScatter call. Per-address
// failures are kept and reported by Read, even when every address failed;
// Execute itself fails only when the round trip fails.
func (b *Batch) Execute() error {
	if len(b.order) == 0 {
		return nil
	}

	reqs := make([]process.ScatterRequest, len(b.order))
	for i, addr := range b.order {
		reqs[i] = process.ScatterRequest{Address: addr, Size: b.entries[addr].size}
	}

	results, err := b.proc.ReadScatter(reqs)
	if err != nil {
		return fmt.Errorf("scatter execute: %w", err)
	}
	if len(results) != len(reqs) {
		return fmt.Errorf("scatter execute: %d results for %d requests", len(results), len(reqs))
	}

	for i, res := range results {
		e := b.entries[b.order[i]]
		e.fetched = true
		e.data, e.err = res.Data, res.Err
	}
	return nil
}

// Read returns the cached bytes for addr from the last Execute.
func (b *Batch) Read(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	e, ok := b.entries[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotPrepared, addr)
	}
	if !e.fetched {
		return nil, fmt.Errorf("%w: %s", ErrNotExecuted, addr)
	}
	if e.err != nil {
		return nil, &process.ReadError{Addr: addr, Size: e.size, Err: e.err}
	}
	if size > process.ProcessMemorySize(len(e.data)) {
		return nil, fmt.Errorf("%w: %s prepared with %d bytes, %d requested", ErrNotPrepared, addr, len(e.data), size)
	}
	return e.data[:size], nil
}

// ReadT decodes a T from the cached bytes at addr.
func ReadT[T any](b *Batch, addr process.ProcessMemoryAddress) (T, error) {
	data, err := b.Read(addr, pod.SizeOf[T]())
	if err != nil {
		return *new(T), err
	}
	return pod.FromBytes[T](data)
}

// Reset drops every registration and cached value.
func (b *Batch) Reset() {
	clear(b.entries)
	b.order = b.order[:0]
}
