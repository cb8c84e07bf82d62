package decode

import (
	"fmt"

	"memwatch/process"
)

// ArrayLayout locates the fields of a managed dynamic-array header.
type ArrayLayout struct {
	ItemsOffset  process.ProcessMemorySize // pointer to the backing storage
	CountOffset  process.ProcessMemorySize // int32 element count
	FirstElement process.ProcessMemorySize // first element inside the backing storage
	MaxCount     int                       // counts above this are treated as garbage
}

// Array reads the header at addr and returns the address of the first element and
// the element count. No element is read.
func Array(r process.Reader, addr process.ProcessMemoryAddress, layout ArrayLayout) (process.ProcessMemoryAddress, int, error) {
	count, err := process.Read[int32](r, addr.Add(layout.CountOffset))
	if err != nil {
		return 0, 0, fmt.Errorf("array count at %s: %w", addr, err)
	}
	if count < 0 || (layout.MaxCount > 0 && int(count) > layout.MaxCount) {
		return 0, 0, fmt.Errorf("%w: array at %s has implausible count %d", ErrDecode, addr, count)
	}

	items, err := process.ReadPointer(r, addr.Add(layout.ItemsOffset))
	if err != nil {
		return 0, 0, fmt.Errorf("array storage at %s: %w", addr, err)
	}
	if items == 0 && count > 0 {
		return 0, 0, fmt.Errorf("%w: array at %s has null storage", ErrDecode, addr)
	}

	return items.Add(layout.FirstElement), int(count), nil
}

// FilterPointers drops null entries and skip, preserving order.
func FilterPointers(ptrs []process.ProcessMemoryAddress, skip process.ProcessMemoryAddress) []process.ProcessMemoryAddress {
	out := make([]process.ProcessMemoryAddress, 0, len(ptrs))
	for _, p := range ptrs {
		if p == 0 || p == skip {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ReadString reads a fixed-width buffer of size bytes at addr and decodes it.
func ReadString(r process.Reader, addr process.ProcessMemoryAddress, size process.ProcessMemorySize, enc Encoding) (string, error) {
	data, err := process.ReadBytes(r, addr, size)
	if err != nil {
		return "", err
	}
	return enc.Decode(data)
}
