//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"memwatch/process"
	"memwatch/process/memory_map"
)

// ScanRange searches the readable regions inside [start, end) for the pattern.
// Regions are scanned in parallel; results are returned in ascending address order
// so the first match is deterministic.
func (p *LinuxProcess) ScanRange(aob process.AOB, start, end process.ProcessMemoryAddress) ([]process.ProcessMemoryAddress, error) {
	if !aob.IsValid() {
		return nil, fmt.Errorf("mask length (%d) doesn't match pattern length (%d)", len(aob.Mask), len(aob.Pattern))
	}

	memMap, err := p.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	regions := memory_map.Intersect(uint64(start), uint64(end), memMap)
	p.log.Debugln("Scanning", len(regions), "regions for", aob.String())

	// Create a semaphore to limit concurrency
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
				if !errors.Is(err, process.ErrAddressNotMapped) {
					p.log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
				}
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
