package process

import (
	"errors"
	"unsafe"
)

// PointerSize is the width of a foreign address.
const PointerSize = ProcessMemorySize(8)

// Read is a helper to read a single value of type T from memory.
// T must be plain data: its bytes are copied verbatim.
func Read[T any](r Reader, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return t, asReadError(addr, size, err)
	}
	if len(data) < int(size) {
		return t, &ReadError{Addr: addr, Size: size, Err: errors.New("short read")}
	}

	copyTo(&t, data)
	return t, nil
}

// ReadPointer reads a foreign address stored at addr.
func ReadPointer(r Reader, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	v, err := Read[uint64](r, addr)
	return ProcessMemoryAddress(v), err
}

// ReadBytes reads size raw bytes, wrapping failures in a *ReadError.
func ReadBytes(r Reader, addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error) {
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return nil, asReadError(addr, size, err)
	}
	return data, nil
}

// ResolveChain follows a pointer chain. For each offset it reads the address stored
// at current+offset and continues from there; the last address read is returned.
// With no offsets the base is returned unchanged. Any failed step fails the chain.
//
//	// base -> [+0x30]A -> [+0x18]B -> [+0x28]C  => returns C
//	addr, err := process.ResolveChain(proc, base, 0x30, 0x18, 0x28)
func ResolveChain(r Reader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (ProcessMemoryAddress, error) {
	current := base
	for _, off := range offsets {
		next, err := ReadPointer(r, current.Add(off))
		if err != nil {
			return 0, err
		}
		current = next
	}
	return current, nil
}

func asReadError(addr ProcessMemoryAddress, size ProcessMemorySize, err error) error {
	var re *ReadError
	if errors.As(err, &re) {
		return err
	}
	return &ReadError{Addr: addr, Size: size, Err: err}
}

// copyTo copies bytes to *T
func copyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	if len(src) < size {
		return
	}

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}
