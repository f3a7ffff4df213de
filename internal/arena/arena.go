// Package arena implements the raw storage shared by the allocators.
//
// An Arena is a single contiguous byte buffer obtained once from a Backing.
// Everything the allocators keep inside it (free-list links, headers, boundary
// tags) is stored as little-endian words holding byte offsets into the arena,
// never as native pointers. The only pointer arithmetic in the module lives in
// [Arena.Offset], which maps a payload slice back to its arena offset.
package arena

import (
	"encoding/binary"
	"errors"
	"unsafe"
)

// WordSize is the size of a machine word in bytes. Links and tags are one word wide.
const WordSize = 8

var (
	ErrInvalidSize = errors.New("arena: invalid size")
	ErrUnknownKind = errors.New("arena: unknown backing kind")

	// Allocator lifecycle errors shared by every allocator built on an arena.
	ErrInitialized    = errors.New("allocator already initialized")
	ErrNotInitialized = errors.New("allocator not initialized")
	ErrForeignPointer = errors.New("pointer does not address this arena")
)

// AlignWord rounds n up to the next multiple of WordSize.
func AlignWord(n int) int {
	return (n + WordSize - 1) &^ (WordSize - 1)
}

// Arena is a fixed-size byte buffer with word accessors.
// It is not safe for concurrent use.
type Arena struct {
	data []byte
}

// New wraps data as an arena. The arena takes ownership of data.
func New(data []byte) *Arena {
	return &Arena{data: data}
}

// Len returns the arena size in bytes.
func (a *Arena) Len() int {
	return len(a.data)
}

// Bytes returns the underlying buffer.
func (a *Arena) Bytes() []byte {
	return a.data
}

// Word reads the word stored at off.
func (a *Arena) Word(off int) uint64 {
	return binary.LittleEndian.Uint64(a.data[off : off+WordSize])
}

// PutWord stores v at off.
func (a *Arena) PutWord(off int, v uint64) {
	binary.LittleEndian.PutUint64(a.data[off:off+WordSize], v)
}

// Slice returns the n bytes at off with capacity c.
func (a *Arena) Slice(off, n, c int) []byte {
	return a.data[off : off+n : off+c]
}

// Offset returns the arena offset of the first byte of b.
// The ok result is false when b has no backing array or does not point into the arena.
func (a *Arena) Offset(b []byte) (off int, ok bool) {
	if cap(b) == 0 || len(a.data) == 0 {
		return -1, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.data)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if p < base || p >= base+uintptr(len(a.data)) {
		return -1, false
	}
	return int(p - base), true
}
