package ch

import "fmt"

// CheckInvariants verifies the arena structure:
//   - blocks tile the arena exactly;
//   - every tag is either nilTag or the block offset plus one;
//   - no two adjacent blocks are free;
//   - the free list is symmetric and holds exactly the free blocks;
//   - the used counters match the allocated blocks.
func (h *Allocator) CheckInvariants() error {
	if h.mem == nil {
		return ErrNotInitialized
	}

	free := make(map[int]bool)
	usedBytes, usedBlocks := 0, 0
	prevFree := false
	b := 0
	for b < h.size {
		size := h.blockSize(b)
		if size < 0 || size > h.size-b-Overhead {
			return fmt.Errorf("%w: block %d with size %d overruns the arena", ErrCorrupted, b, size)
		}
		switch tag := h.mem.Word(h.tagOffset(b)); tag {
		case nilTag:
			usedBytes += size
			usedBlocks++
			prevFree = false
		case uint64(b) + 1:
			if prevFree {
				return fmt.Errorf("%w: adjacent free blocks at %d", ErrCorrupted, b)
			}
			free[b] = true
			prevFree = true
		default:
			return fmt.Errorf("%w: block %d has tag %d", ErrCorrupted, b, tag)
		}
		b = h.end(b)
	}
	if b != h.size {
		return fmt.Errorf("%w: blocks end at %d, arena size is %d", ErrCorrupted, b, h.size)
	}
	if usedBytes != h.usedBytes || usedBlocks != h.usedBlocks {
		return fmt.Errorf("%w: %d bytes in %d blocks allocated, counters say %d bytes in %d blocks",
			ErrCorrupted, usedBytes, usedBlocks, h.usedBytes, h.usedBlocks)
	}

	if h.freeList == noBlock {
		if len(free) != 0 {
			return fmt.Errorf("%w: free list is empty but %d blocks are free", ErrCorrupted, len(free))
		}
		return nil
	}
	if !free[h.freeList] {
		return fmt.Errorf("%w: free list entry %d is not a free block", ErrCorrupted, h.freeList)
	}
	seen := 0
	cur := h.freeList
	for {
		if seen++; seen > len(free) {
			return fmt.Errorf("%w: free list does not close after %d entries", ErrCorrupted, len(free))
		}
		n := h.next(cur)
		if !free[n] {
			return fmt.Errorf("%w: free list entry %d is not a free block", ErrCorrupted, n)
		}
		if h.prev(n) != cur {
			return fmt.Errorf("%w: free list link %d -> %d is not symmetric", ErrCorrupted, cur, n)
		}
		cur = n
		if cur == h.freeList {
			break
		}
	}
	if seen != len(free) {
		return fmt.Errorf("%w: free list has %d entries, arena has %d free blocks", ErrCorrupted, seen, len(free))
	}
	return nil
}
