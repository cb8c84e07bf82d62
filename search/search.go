// Package search discovers offsets: it walks pointer graphs out of a known
// object looking for a value, and reports every chain that reaches it in the
// form the offsets tables use.
package search

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unsafe"

	"memwatch/process"
)

// Target is what a search needs from a process.
type Target interface {
	process.Reader
	IsValidAddress(addr process.ProcessMemoryAddress) bool
}

// Searcher holds configuration for the search
type Searcher struct {
	MaxStructSize uint
	MaxDepth      int
	MinAlignment  uint
	SearchFor     func([]byte) bool
}

// Option is a function that configures a Searcher
type Option func(*Searcher)

func WithMaxStructSize(size uint) Option {
	return func(s *Searcher) {
		s.MaxStructSize = size
	}
}

func WithMaxDepth(depth int) Option {
	return func(s *Searcher) {
		s.MaxDepth = depth
	}
}

func WithMinAlignment(align uint) Option {
	return func(s *Searcher) {
		s.MinAlignment = align
	}
}

// WithValue matches the in-memory bytes of a POD value.
func WithValue[T any](val T) Option {
	want := bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(&val)), int(unsafe.Sizeof(val))))
	return withBytes(want)
}

// WithWideString matches the UTF-16 code units of s, the layout of managed
// string characters.
func WithWideString(s string) Option {
	units := utf16.Encode([]rune(s))
	want := make([]byte, 0, 2*len(units))
	for _, u := range units {
		want = binary.LittleEndian.AppendUint16(want, u)
	}
	return withBytes(want)
}

func withBytes(want []byte) Option {
	return func(s *Searcher) {
		s.SearchFor = func(data []byte) bool {
			return len(want) > 0 && bytes.HasPrefix(data, want)
		}
	}
}

// Result is one way to reach the value: dereference Chain from the base (as
// process.ResolveChain does) and read at Field.
type Result struct {
	Chain []process.ProcessMemorySize
	Field process.ProcessMemorySize
}

func (r Result) String() string {
	var sb strings.Builder
	for _, off := range r.Chain {
		fmt.Fprintf(&sb, "[0x%x] -> ", uint64(off))
	}
	fmt.Fprintf(&sb, "+0x%x", uint64(r.Field))
	return sb.String()
}

// Search performs a depth-limited walk from base. Each object is visited once;
// unreadable objects are skipped.
func Search(t Target, base process.ProcessMemoryAddress, options ...Option) ([]Result, error) {
	s := &Searcher{
		MaxStructSize: 256,
		MaxDepth:      3,
		MinAlignment:  4,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.SearchFor == nil {
		return nil, errors.New("no search target specified")
	}
	if s.MinAlignment == 0 {
		return nil, errors.New("alignment must be non-zero")
	}

	var results []Result
	visited := make(map[process.ProcessMemoryAddress]bool)

	var walk func(addr process.ProcessMemoryAddress, depth int, chain []process.ProcessMemorySize)
	walk = func(addr process.ProcessMemoryAddress, depth int, chain []process.ProcessMemorySize) {
		if visited[addr] {
			return
		}
		visited[addr] = true

		data, err := t.ReadMemory(addr, process.ProcessMemorySize(s.MaxStructSize))
		if err != nil {
			return
		}

		for offset := uint(0); offset+s.MinAlignment <= uint(len(data)); offset += s.MinAlignment {
			field := process.ProcessMemorySize(offset)
			if s.SearchFor(data[offset:]) {
				results = append(results, Result{Chain: append([]process.ProcessMemorySize(nil), chain...), Field: field})
			}

			if offset%8 != 0 || depth >= s.MaxDepth || offset+8 > uint(len(data)) {
				continue
			}
			ptr := process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[offset:]))
			if ptr != 0 && t.IsValidAddress(ptr) {
				walk(ptr, depth+1, append(append([]process.ProcessMemorySize(nil), chain...), field))
			}
		}
	}

	walk(base, 0, nil)
	return results, nil
}
