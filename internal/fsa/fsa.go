// Package fsa implements a fixed-size block allocator.
//
// The pool is a single arena of Blocks*BlockSize bytes. Free blocks form a
// singly-linked list threaded through the pool itself: the first word of every
// free block holds the index of the next free block. A bitset indexed by block
// number mirrors the allocated blocks for introspection and is updated together
// with the free list on every Alloc and Free.
//
// Allocator instances are not safe for concurrent use.
package fsa

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bits-and-blooms/bitset"

	"github.com/holmberd/go-memalloc/internal/arena"
	"github.com/holmberd/go-memalloc/internal/report"
)

var (
	ErrInitialized    = arena.ErrInitialized
	ErrNotInitialized = arena.ErrNotInitialized
	ErrForeignPointer = arena.ErrForeignPointer
	ErrCorrupted      = errors.New("fsa: free list and allocated set disagree")
)

// Allocator serves blocks of one fixed capacity from a preallocated pool.
type Allocator struct {
	logger    *slog.Logger
	backing   arena.Backing
	blockSize int
	nBlocks   int

	pool      *arena.Arena   // nil until Init and after Destroy.
	allocated *bitset.BitSet // Bit i is set while block i is handed out.
	head      int            // Index of the first free block; nBlocks when the pool is exhausted.
	used      int
	nAlloc    uint64
	nFree     uint64
}

// New creates an allocator for the given configuration.
// It panics if the configuration is invalid.
func New(config Config) *Allocator {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	backing := config.Backing
	if backing == nil {
		backing = arena.Heap{}
	}
	return &Allocator{
		logger:    logger,
		backing:   backing,
		blockSize: blockSizeFor(config.BlockSize),
		nBlocks:   config.Blocks,
	}
}

// Init acquires the pool and links every block into the free list in index order.
func (a *Allocator) Init() error {
	if a.pool != nil {
		return ErrInitialized
	}
	data, err := a.backing.Acquire(a.nBlocks * a.blockSize)
	if err != nil {
		return fmt.Errorf("fsa: acquire pool: %w", err)
	}
	a.pool = arena.New(data)
	for i := range a.nBlocks {
		a.setLink(i, i+1) // The last block links to the end sentinel.
	}
	a.allocated = bitset.New(uint(a.nBlocks))
	a.head = 0
	a.used = 0
	a.nAlloc = 0
	a.nFree = 0
	a.logger.Debug("fsa initialized", "blockSize", a.blockSize, "blocks", a.nBlocks)
	return nil
}

// Destroy releases the pool. It is safe to call more than once.
func (a *Allocator) Destroy() {
	if a.pool == nil {
		return
	}
	a.backing.Release(a.pool.Bytes())
	a.pool = nil
	a.allocated = nil
	a.logger.Debug("fsa destroyed", "allocs", a.nAlloc, "frees", a.nFree)
}

// Alloc returns a block of len size, or nil if size exceeds the block size
// or every block is in use. The capacity of the returned slice is the block size.
func (a *Allocator) Alloc(size int) []byte {
	a.mustBeInitialized()
	if size < 0 || size > a.blockSize || a.used >= a.nBlocks {
		return nil
	}

	i := a.head
	a.head = a.link(i)
	a.allocated.Set(uint(i))
	a.used++
	a.nAlloc++

	off := a.blockOffset(i)
	return a.pool.Slice(off, size, a.blockSize)
}

// Free returns the block b to the pool. The block is reused by the next Alloc.
// Passing a block twice or a block that was never allocated corrupts the pool.
func (a *Allocator) Free(b []byte) {
	a.mustBeInitialized()
	i, ok := a.BlockIndex(b)
	if !ok {
		panic(ErrForeignPointer)
	}

	a.setLink(i, a.head)
	a.head = i
	a.allocated.Clear(uint(i))
	a.used--
	a.nFree++
}

// BlockSize returns the effective block capacity in bytes.
func (a *Allocator) BlockSize() int {
	return a.blockSize
}

// NumBlocks returns the number of blocks in the pool.
func (a *Allocator) NumBlocks() int {
	return a.nBlocks
}

// Used returns the number of blocks currently allocated.
func (a *Allocator) Used() int {
	return a.used
}

// BlockAddr returns the full block with index i.
func (a *Allocator) BlockAddr(i int) []byte {
	a.mustBeInitialized()
	if i < 0 || i >= a.nBlocks {
		panic(fmt.Errorf("fsa: block index %d out of range [0, %d)", i, a.nBlocks))
	}
	off := a.blockOffset(i)
	return a.pool.Slice(off, a.blockSize, a.blockSize)
}

// BlockIndex returns the index of the block addressed by b.
// The ok result is false when b does not start at a block boundary of this pool.
func (a *Allocator) BlockIndex(b []byte) (int, bool) {
	if a.pool == nil {
		return -1, false
	}
	off, ok := a.pool.Offset(b)
	if !ok || off%a.blockSize != 0 {
		return -1, false
	}
	return off / a.blockSize, true
}

// IsAllocated reports whether block i is currently handed out.
func (a *Allocator) IsAllocated(i int) bool {
	return a.allocated != nil && a.allocated.Test(uint(i))
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() report.Stats {
	free := a.nBlocks - a.used
	return report.Stats{
		Allocs:     a.nAlloc,
		Frees:      a.nFree,
		Capacity:   a.nBlocks * a.blockSize,
		UsedBytes:  a.used * a.blockSize,
		FreeBytes:  free * a.blockSize,
		UsedBlocks: a.used,
		FreeBlocks: free,
	}
}

// Blocks returns every block of the pool in index order.
func (a *Allocator) Blocks() []report.Block {
	blocks := make([]report.Block, 0, a.nBlocks)
	for i := range a.nBlocks {
		blocks = append(blocks, report.Block{
			Offset:    a.blockOffset(i),
			Size:      a.blockSize,
			Allocated: a.IsAllocated(i),
		})
	}
	return blocks
}

// DumpBlocks writes the state of every block.
func (a *Allocator) DumpBlocks(w io.Writer) {
	report.Header(w, "dump blocks", a.Stats())
	report.Table(w, a.Blocks(), report.Options{})
}

// DumpStat writes the counters followed by the free blocks.
func (a *Allocator) DumpStat(w io.Writer) {
	s := a.Stats()
	report.Header(w, "dump stats", s)
	report.Summary(w, s)
	var free []report.Block
	for _, b := range a.Blocks() {
		if !b.Allocated {
			free = append(free, b)
		}
	}
	report.Table(w, free, report.Options{})
}

// CheckInvariants walks the free list and verifies that it holds exactly the
// blocks that are not marked allocated.
func (a *Allocator) CheckInvariants() error {
	if a.pool == nil {
		return ErrNotInitialized
	}
	seen := bitset.New(uint(a.nBlocks))
	n := 0
	for i := a.head; i != a.nBlocks; i = a.link(i) {
		if i < 0 || i > a.nBlocks {
			return fmt.Errorf("%w: link %d out of range", ErrCorrupted, i)
		}
		if seen.Test(uint(i)) {
			return fmt.Errorf("%w: block %d linked twice", ErrCorrupted, i)
		}
		if a.allocated.Test(uint(i)) {
			return fmt.Errorf("%w: allocated block %d is on the free list", ErrCorrupted, i)
		}
		seen.Set(uint(i))
		n++
	}
	if free := a.nBlocks - a.used; n != free {
		return fmt.Errorf("%w: free list has %d blocks, expected %d", ErrCorrupted, n, free)
	}
	if c := int(a.allocated.Count()); c != a.used {
		return fmt.Errorf("%w: %d blocks marked allocated, expected %d", ErrCorrupted, c, a.used)
	}
	return nil
}

func (a *Allocator) mustBeInitialized() {
	if a.pool == nil {
		panic(ErrNotInitialized)
	}
}

func (a *Allocator) blockOffset(i int) int {
	return i * a.blockSize
}

func (a *Allocator) link(i int) int {
	return int(a.pool.Word(a.blockOffset(i)))
}

func (a *Allocator) setLink(i, next int) {
	a.pool.PutWord(a.blockOffset(i), uint64(next))
}
