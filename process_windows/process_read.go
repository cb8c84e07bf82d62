//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"memwatch/process"
	"memwatch/process/memory_map"

	"golang.org/x/sys/windows"
)

func (p *WindowsProcess) readInto(handle windows.Handle, addr process.ProcessMemoryAddress, buf []byte) error {
	var n uintptr
	err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil {
		if gone := p.alive(handle); gone != nil {
			return gone
		}
		return &process.ReadError{Addr: addr, Size: process.ProcessMemorySize(len(buf)), Err: err}
	}
	if int(n) != len(buf) {
		return &process.ReadError{Addr: addr, Size: process.ProcessMemorySize(len(buf)), Err: fmt.Errorf("partial read: %d of %d bytes", n, len(buf))}
	}
	return nil
}

// ReadMemory reads memory from the process at the specified address
func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	handle := p.handle
	valid := p.isValidAddressInternal(addr)
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	if !valid {
		return nil, process.ErrAddressNotMapped
	}

	buf := make([]byte, size)
	if err := p.readInto(handle, addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadScatter issues one ReadProcessMemory per request under a single handle
// snapshot. Windows has no vectored cross-process read, so the round trip is
// the batch, not the syscall.
func (p *WindowsProcess) ReadScatter(reqs []process.ScatterRequest) ([]process.ScatterResult, error) {
	p.mu.Lock()
	handle := p.handle
	results := make([]process.ScatterResult, len(reqs))
	for i, r := range reqs {
		results[i].Address = r.Address
		if r.Size > 0 && (!p.isValidAddressInternal(r.Address) || !p.isValidAddressInternal(r.Address.Add(r.Size-1))) {
			results[i].Err = process.ErrAddressNotMapped
		}
	}
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	for i, r := range reqs {
		if results[i].Err != nil {
			continue
		}
		buf := make([]byte, r.Size)
		if r.Size > 0 {
			if err := p.readInto(handle, r.Address, buf); err != nil {
				if errors.Is(err, process.ErrProcessNotOpen) {
					return nil, err
				}
				results[i].Err = err
				continue
			}
		}
		results[i].Data = buf
	}
	return results, nil
}

// ScanRange searches the readable regions inside [start, end) for the pattern.
// Results are returned in ascending address order.
func (p *WindowsProcess) ScanRange(aob process.AOB, start, end process.ProcessMemoryAddress) ([]process.ProcessMemoryAddress, error) {
	if !aob.IsValid() {
		return nil, fmt.Errorf("mask length (%d) doesn't match pattern length (%d)", len(aob.Mask), len(aob.Pattern))
	}

	memMap, err := p.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	regions := memory_map.Intersect(uint64(start), uint64(end), memMap)
	p.log.Debugln("Scanning", len(regions), "regions for", aob.String())

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	var resultsMutex sync.Mutex
	var results []process.ProcessMemoryAddress

	for _, region := range regions {
		wg.Add(1)
		sem <- struct{}{}

		go func(region memory_map.MemoryMapItem) {
			defer func() {
				<-sem
				wg.Done()
			}()

			data, err := p.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
			if err != nil {
				p.log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
				return
			}

			matches := process.FindPatternMatches(data, aob)
			if len(matches) == 0 {
				return
			}
			resultsMutex.Lock()
			for _, offset := range matches {
				results = append(results, process.ProcessMemoryAddress(region.Address+uint64(offset)))
			}
			resultsMutex.Unlock()
		}(region)
	}

	wg.Wait()
	slices.Sort(results)
	p.log.Debugln("Scan complete, found", len(results), "matches")
	return results, nil
}

