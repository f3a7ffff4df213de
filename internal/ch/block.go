package ch

import "github.com/holmberd/go-memalloc/internal/arena"

// Block layout inside the arena, one word per field:
//
//	+----+------+------+------+-----------------+-----+
//	| id | size | prev | next | payload (size)  | tag |
//	+----+------+------+------+-----------------+-----+
//	 <-------- header -------->                  <---->
//
// prev and next are only meaningful while the block is free. The tag holds
// the block offset plus one while the block is free and nilTag while it is
// allocated, so a tag is never ambiguous with the block at offset 0.
const (
	fieldID   = 0 * arena.WordSize
	fieldSize = 1 * arena.WordSize
	fieldPrev = 2 * arena.WordSize
	fieldNext = 3 * arena.WordSize

	HeaderSize = 4 * arena.WordSize
	TagSize    = arena.WordSize
	Overhead   = HeaderSize + TagSize // Bytes per block not available as payload.
	MinPayload = arena.WordSize       // Smallest payload ever handed out or split off.

	nilTag  = 0
	noBlock = -1
)

func (h *Allocator) blockSize(b int) int {
	return int(h.mem.Word(b + fieldSize))
}

func (h *Allocator) setBlockSize(b, size int) {
	h.mem.PutWord(b+fieldSize, uint64(size))
}

func (h *Allocator) id(b int) uint64 {
	return h.mem.Word(b + fieldID)
}

func (h *Allocator) setID(b int, id uint64) {
	h.mem.PutWord(b+fieldID, id)
}

func (h *Allocator) prev(b int) int {
	return int(h.mem.Word(b + fieldPrev))
}

func (h *Allocator) setPrev(b, p int) {
	h.mem.PutWord(b+fieldPrev, uint64(p))
}

func (h *Allocator) next(b int) int {
	return int(h.mem.Word(b + fieldNext))
}

func (h *Allocator) setNext(b, n int) {
	h.mem.PutWord(b+fieldNext, uint64(n))
}

func (h *Allocator) tagOffset(b int) int {
	return b + HeaderSize + h.blockSize(b)
}

func (h *Allocator) markFree(b int) {
	h.mem.PutWord(h.tagOffset(b), uint64(b)+1)
}

func (h *Allocator) markAllocated(b int) {
	h.mem.PutWord(h.tagOffset(b), nilTag)
}

func (h *Allocator) isFree(b int) bool {
	return h.mem.Word(h.tagOffset(b)) == uint64(b)+1
}

// end returns the offset just past block b, which is the next block header or the arena end.
func (h *Allocator) end(b int) int {
	return b + Overhead + h.blockSize(b)
}

// prevFree returns the block ending right before b if it is free.
// The tag word preceding b belongs to that block.
func (h *Allocator) prevFree(b int) (int, bool) {
	if b < Overhead {
		return noBlock, false // b is the first block.
	}
	tag := h.mem.Word(b - TagSize)
	if tag == nilTag || tag > uint64(b-Overhead)+1 {
		return noBlock, false
	}
	p := int(tag - 1)
	if h.end(p) != b {
		return noBlock, false
	}
	return p, true
}

// nextFree returns the block starting right after b if it is free.
func (h *Allocator) nextFree(b int) (int, bool) {
	n := h.end(b)
	if n >= h.size {
		return noBlock, false // b is the last block.
	}
	return n, h.isFree(n)
}

// insertAfter links b into the free list right after at.
func (h *Allocator) insertAfter(at, b int) {
	n := h.next(at)
	h.setPrev(n, b)
	h.setNext(b, n)
	h.setNext(at, b)
	h.setPrev(b, at)
}

// unlink removes b from the circular free list.
// It returns the block preceding b, or noBlock when b was the only entry.
func (h *Allocator) unlink(b int) int {
	p := h.prev(b)
	if p == b {
		return noBlock
	}
	n := h.next(b)
	h.setNext(p, n)
	h.setPrev(n, p)
	return p
}

// push adds b to the free list, making it the sole entry when the list is empty.
func (h *Allocator) push(b int) {
	if h.freeList == noBlock {
		h.setPrev(b, b)
		h.setNext(b, b)
		h.freeList = b
		return
	}
	h.insertAfter(h.freeList, b)
}

// remove unlinks b and moves the list entry point off b when needed.
func (h *Allocator) remove(b int) {
	rest := h.unlink(b)
	if h.freeList == b {
		h.freeList = rest
	}
}
