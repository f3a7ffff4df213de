// Package ch implements a coalescing heap over a single fixed-size arena.
//
// Every block, free or allocated, starts with a header and ends with a
// one-word boundary tag. Free blocks are kept on a circular doubly-linked list
// threaded through their headers. Allocation is first-fit over one full lap of
// that list, splitting blocks whose remainder can hold another block. Release
// uses the boundary tags to find free neighbours in O(1) and merges them, so
// no two adjacent blocks are ever both free.
//
// The arena is always tiled exactly by blocks: the byte after a block's tag is
// either the next block's header or the end of the arena.
//
// Allocator instances are not safe for concurrent use.
package ch

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/holmberd/go-memalloc/internal/arena"
	"github.com/holmberd/go-memalloc/internal/report"
)

var (
	ErrArenaTooSmall  = errors.New("ch: arena too small")
	ErrInitialized    = arena.ErrInitialized
	ErrNotInitialized = arena.ErrNotInitialized
	ErrForeignPointer = arena.ErrForeignPointer
	ErrCorrupted      = errors.New("ch: arena is corrupted")
)

// Allocator is a general-purpose allocator over a contiguous arena.
type Allocator struct {
	logger  *slog.Logger
	backing arena.Backing
	color   bool
	size    int

	mem      *arena.Arena // nil until Init and after Destroy.
	freeList int          // Entry point of the free list; noBlock when every byte is allocated.

	usedBytes  int
	usedBlocks int
	nAlloc     uint64
	nFree      uint64

	splits           uint64
	coalesceForward  uint64
	coalesceBackward uint64
}

// New creates an allocator for the given configuration.
// It panics if the arena cannot hold a single block.
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
		logger:   logger,
		backing:  backing,
		color:    config.Color,
		size:     config.Size,
		freeList: noBlock,
	}
}

// Init acquires the arena and turns it into a single free block.
func (h *Allocator) Init() error {
	if h.mem != nil {
		return ErrInitialized
	}
	data, err := h.backing.Acquire(h.size)
	if err != nil {
		return fmt.Errorf("ch: acquire arena: %w", err)
	}
	h.mem = arena.New(data)
	h.usedBytes = 0
	h.usedBlocks = 0
	h.nAlloc = 0
	h.nFree = 0
	h.splits = 0
	h.coalesceForward = 0
	h.coalesceBackward = 0

	h.setID(0, 0)
	h.setBlockSize(0, h.Capacity())
	h.markFree(0)
	h.freeList = noBlock
	h.push(0)
	h.logger.Debug("ch initialized", "size", h.size, "capacity", h.Capacity())
	return nil
}

// Destroy releases the arena. It is safe to call more than once.
func (h *Allocator) Destroy() {
	if h.mem == nil {
		return
	}
	h.backing.Release(h.mem.Bytes())
	h.mem = nil
	h.freeList = noBlock
	h.logger.Debug("ch destroyed", "allocs", h.nAlloc, "frees", h.nFree)
}

// Alloc returns a payload of len size, or nil if no free block is large enough.
// Requests are rounded up to a whole number of words, at least one; the capacity
// of the returned slice is the payload size of the block handed out.
// A failed request leaves the arena untouched.
func (h *Allocator) Alloc(size int) []byte {
	h.mustBeInitialized()
	if size < 0 || size > h.Capacity() || h.freeList == noBlock {
		return nil
	}
	need := max(arena.AlignWord(size), MinPayload)

	b := h.findFit(need)
	if b == noBlock {
		return nil
	}
	h.freeList = h.unlink(b)

	if rem := h.blockSize(b) - need; rem >= Overhead+MinPayload {
		tail := b + Overhead + need
		h.setBlockSize(tail, rem-Overhead)
		h.markFree(tail)
		h.setBlockSize(b, need)
		h.push(tail)
		h.splits++
	}
	// Otherwise the whole block is handed out; the remainder is too small for a block of its own.

	h.markAllocated(b)
	h.setID(b, h.nAlloc)
	h.nAlloc++
	h.usedBytes += h.blockSize(b)
	h.usedBlocks++

	return h.mem.Slice(b+HeaderSize, size, h.blockSize(b))
}

// findFit returns the first free block with a payload of at least need bytes,
// scanning the whole free list once starting at the entry point.
func (h *Allocator) findFit(need int) int {
	b := h.freeList
	for {
		if h.blockSize(b) >= need {
			return b
		}
		b = h.next(b)
		if b == h.freeList {
			return noBlock
		}
	}
}

// Free releases a payload returned by Alloc and merges it with free neighbours.
// Freeing a payload twice corrupts the arena.
func (h *Allocator) Free(p []byte) {
	h.mustBeInitialized()
	off, ok := h.mem.Offset(p)
	if !ok || off < HeaderSize {
		panic(ErrForeignPointer)
	}
	b := off - HeaderSize
	size := h.blockSize(b)
	h.usedBytes -= size
	h.usedBlocks--
	h.nFree++

	linked := false
	if prev, ok := h.prevFree(b); ok {
		// prev is already on the free list; grow it over b.
		h.setBlockSize(prev, h.blockSize(prev)+Overhead+size)
		b = prev
		linked = true
		h.coalesceBackward++
	}
	if next, ok := h.nextFree(b); ok {
		h.remove(next)
		h.setBlockSize(b, h.blockSize(b)+Overhead+h.blockSize(next))
		h.coalesceForward++
	}
	if !linked {
		h.push(b)
	}
	h.markFree(b)
}

// Data returns the raw arena, or nil when the allocator is not initialized.
func (h *Allocator) Data() []byte {
	if h.mem == nil {
		return nil
	}
	return h.mem.Bytes()
}

// Size returns the arena size in bytes.
func (h *Allocator) Size() int {
	return h.size
}

// Capacity returns the payload bytes of the arena when it holds a single free block.
func (h *Allocator) Capacity() int {
	return h.size - Overhead
}

// Stats returns a snapshot of the allocator counters.
func (h *Allocator) Stats() report.Stats {
	s := report.Stats{
		Allocs:           h.nAlloc,
		Frees:            h.nFree,
		Capacity:         h.Capacity(),
		UsedBytes:        h.usedBytes,
		UsedBlocks:       h.usedBlocks,
		Splits:           h.splits,
		CoalesceForward:  h.coalesceForward,
		CoalesceBackward: h.coalesceBackward,
	}
	for _, b := range h.FreeList() {
		s.FreeBytes += b.Size
		s.FreeBlocks++
	}
	return s
}

// Blocks returns every block of the arena in address order.
func (h *Allocator) Blocks() []report.Block {
	if h.mem == nil {
		return nil
	}
	var blocks []report.Block
	for b := 0; b < h.size; b = h.end(b) {
		blk := report.Block{Offset: b, Size: h.blockSize(b), Allocated: !h.isFree(b)}
		if blk.Allocated {
			blk.ID = h.id(b)
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// FreeList returns the free blocks in list order, starting at the entry point.
func (h *Allocator) FreeList() []report.Block {
	if h.mem == nil || h.freeList == noBlock {
		return nil
	}
	var blocks []report.Block
	b := h.freeList
	for {
		blocks = append(blocks, report.Block{Offset: b, Size: h.blockSize(b)})
		b = h.next(b)
		if b == h.freeList {
			return blocks
		}
	}
}

// DumpStat writes the counters followed by every block of the arena.
func (h *Allocator) DumpStat(w io.Writer) {
	s := h.Stats()
	report.Header(w, "dump stats", s)
	report.Summary(w, s)
	report.Table(w, h.Blocks(), report.Options{Color: h.color, ShowID: true})
}

// DumpBlocks writes the free blocks in address order.
func (h *Allocator) DumpBlocks(w io.Writer) {
	report.Header(w, "dump free blocks", h.Stats())
	report.Table(w, sortByOffset(h.FreeList()), report.Options{Color: h.color})
}

// DumpCH writes the free list, in list order or sorted by arena offset.
func (h *Allocator) DumpCH(w io.Writer, sorted bool) {
	report.Header(w, "dump free list", h.Stats())
	blocks := h.FreeList()
	if sorted {
		blocks = sortByOffset(blocks)
	}
	report.Table(w, blocks, report.Options{Color: h.color})
}

func sortByOffset(blocks []report.Block) []report.Block {
	slices.SortFunc(blocks, func(a, b report.Block) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	return blocks
}

func (h *Allocator) mustBeInitialized() {
	if h.mem == nil {
		panic(ErrNotInitialized)
	}
}
