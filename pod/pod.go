// Package pod reads plain-old-data values out of foreign memory. A POD type holds
// only fixed-size numbers, arrays and structs of them; foreign pointers are stored as
// process.ProcessMemoryAddress, never as Go pointers.
package pod

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"memwatch/process"
)

var ErrNotPOD = errors.New("type contains Go pointers; not POD-safe")

func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}

// ReadT reads one T at addr.
func ReadT[T any](r process.Reader, addr process.ProcessMemoryAddress) (T, error) {
	size := SizeOf[T]()
	if size == 0 {
		return *new(T), errors.New("ReadT: size of T is zero")
	}

	data, err := process.ReadBytes(r, addr, size)
	if err != nil {
		return *new(T), err
	}

	return FromBytes[T](data)
}

// ReadSliceT reads count consecutive T values starting at addr with a single read.
func ReadSliceT[T any](r process.Reader, addr process.ProcessMemoryAddress, count int) ([]T, error) {
	if count < 0 {
		return nil, errors.New("ReadSliceT: count must be positive")
	}

	size := SizeOf[T]()
	if size == 0 || count == 0 {
		return []T{}, nil
	}

	data, err := process.ReadBytes(r, addr, size*process.ProcessMemorySize(count))
	if err != nil {
		return nil, err
	}

	result := make([]T, count)
	elementSize := int(size)
	for i := range count {
		element, err := FromBytes[T](data[i*elementSize:])
		if err != nil {
			return nil, fmt.Errorf("ReadSliceT: failed to parse element %d: %w", i, err)
		}
		result[i] = element
	}

	return result, nil
}

// FromBytes copies the first sizeof(T) bytes of data into a new T.
func FromBytes[T any](data []byte) (T, error) {
	var tmp T

	if hasPointers[T]() {
		return tmp, ErrNotPOD
	}

	size := int(unsafe.Sizeof(tmp))
	if len(data) < size {
		return tmp, fmt.Errorf("buffer too small: %d < %d", len(data), size)
	}

	dst := unsafe.Slice((*byte)(unsafe.Pointer(&tmp)), size)
	copy(dst, data[:size])

	return tmp, nil
}

// hasPointers reports whether T (recursively) contains any pointer-like fields.
func hasPointers[T any]() bool {
	return typeHasPointers(reflect.TypeFor[T]())
}

func typeHasPointers(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.String, reflect.Chan:
		return true
	case reflect.Array:
		return typeHasPointers(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if typeHasPointers(rt.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		// bool, ints, uints, floats, complex, etc.
		return false
	}
}
