package ch

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmberd/go-memalloc/internal/arena"
)

func largestFree(h *Allocator) int {
	largest := -1
	for _, b := range h.FreeList() {
		largest = max(largest, b.Size)
	}
	return largest
}

func TestFragmentationFloor(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42, 1234} {
		r := rand.New(rand.NewPCG(seed, seed))
		h, _ := newTestHeap(t, 64<<10)

		var held [][]byte
		for range 500 {
			p := h.Alloc(1 + r.IntN(600))
			if p == nil {
				break
			}
			held = append(held, p)
		}
		require.NotEmpty(t, held)

		live := h.Stats().UsedBlocks
		assert.GreaterOrEqual(t, h.Stats().FreeBytes, h.Size()-live*Overhead-h.Stats().UsedBytes-Overhead)

		r.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })
		for i, p := range held {
			h.Free(p)
			if i%50 == 0 {
				requireInvariants(t, h)
			}
		}
		requireInvariants(t, h)

		s := h.Stats()
		assert.Equal(t, h.Capacity(), s.FreeBytes, "seed %d", seed)
		assert.Equal(t, 1, s.FreeBlocks, "seed %d", seed)
		assert.Zero(t, s.Live())
	}
}

// TestAllocSucceedsWhenAnyBlockFits drives random traffic and checks that a
// request fails exactly when no single free block can hold it.
func TestAllocSucceedsWhenAnyBlockFits(t *testing.T) {
	r := rand.New(rand.NewPCG(99, 3))
	h, _ := newTestHeap(t, 16<<10)

	var held [][]byte
	for i := range 5000 {
		if len(held) > 0 && r.IntN(100) < 45 {
			j := r.IntN(len(held))
			h.Free(held[j])
			held = slices.Delete(held, j, j+1)
		} else {
			size := r.IntN(1200)
			need := max(arena.AlignWord(size), MinPayload)
			fits := largestFree(h) >= need
			p := h.Alloc(size)
			require.Equal(t, fits, p != nil, "op %d: Alloc(%d) with largest free block %d", i, size, largestFree(h))
			if p != nil {
				held = append(held, p)
			}
		}
		if i%100 == 0 {
			requireInvariants(t, h)
		}
	}
	for _, p := range held {
		h.Free(p)
	}
	requireInvariants(t, h)
	assert.Len(t, h.FreeList(), 1)
}

func TestPayloadIntegrity(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 5))
	h, _ := newTestHeap(t, 32<<10)

	type allocation struct {
		p    []byte
		fill byte
	}
	var held []allocation
	check := func() {
		for _, a := range held {
			for i, v := range a.p {
				require.Equal(t, a.fill, v, "byte %d of a %d byte payload", i, len(a.p))
			}
		}
	}
	for i := range 2000 {
		if len(held) > 0 && r.IntN(2) == 0 {
			j := r.IntN(len(held))
			h.Free(held[j].p)
			held = slices.Delete(held, j, j+1)
		} else if p := h.Alloc(r.IntN(256)); p != nil {
			v := byte(i)
			fill(p, v)
			held = append(held, allocation{p: p, fill: v})
		}
		if i%200 == 0 {
			check()
		}
	}
	check()
}
