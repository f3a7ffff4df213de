package memalloc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmberd/go-memalloc/internal/testutils"
)

func testAllocators() []struct {
	name string
	a    Allocator
} {
	return []struct {
		name string
		a    Allocator
	}{
		{"FSA", NewFSA(64, 16)},
		{"CH", NewCH(4 * KiB)},
		{"Locked FSA", NewLocked(NewFSA(64, 16))},
		{"Locked CH", NewLocked(NewCH(4 * KiB))},
	}
}

func TestAllocatorContract(t *testing.T) {
	for _, tc := range testAllocators() {
		t.Run(tc.name, func(t *testing.T) {
			a := tc.a
			assert.PanicsWithValue(t, ErrNotInitialized, func() { a.Alloc(8) })

			require.NoError(t, a.Init())
			assert.ErrorIs(t, a.Init(), ErrInitialized)

			p := a.Alloc(24)
			require.NotNil(t, p)
			assert.Len(t, p, 24)
			copy(p, "substitutable allocators")

			q := a.Alloc(0)
			require.NotNil(t, q)
			assert.Empty(t, q)
			assert.Nil(t, a.Alloc(-1))
			assert.Nil(t, a.Alloc(1<<20))

			s := a.Stats()
			assert.Equal(t, uint64(2), s.Allocs)
			assert.Equal(t, uint64(2), s.Live())

			a.Free(q)
			a.Free(p)
			s = a.Stats()
			assert.Equal(t, uint64(2), s.Frees)
			assert.Zero(t, s.UsedBytes)
			assert.Equal(t, s.Capacity, s.FreeBytes)

			assert.PanicsWithValue(t, ErrForeignPointer, func() { a.Free(make([]byte, 8)) })

			var buf bytes.Buffer
			a.DumpStat(&buf)
			a.DumpBlocks(&buf)
			assert.Contains(t, buf.String(), "after 2 alloc, 2 free")

			a.Destroy()
			a.Destroy()
			assert.PanicsWithValue(t, ErrNotInitialized, func() { a.Free(p) })
		})
	}
}

func TestConstructorsPanicOnInvalidConfig(t *testing.T) {
	assertPanicsWith := func(t *testing.T, target error, f func()) {
		t.Helper()
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok, "panic value %v is not an error", r)
			if target != nil {
				assert.ErrorIs(t, err, target)
			}
		}()
		f()
	}

	t.Run("Heap smaller than one block", func(t *testing.T) {
		assertPanicsWith(t, ErrArenaTooSmall, func() { NewCH(HeapOverhead - 1) })
	})
	t.Run("Pool without blocks", func(t *testing.T) {
		assertPanicsWith(t, nil, func() { NewFSA(16, 0) })
	})
	t.Run("Custom configs", func(t *testing.T) {
		assertPanicsWith(t, ErrArenaTooSmall, func() { CustomCH(CHConfig{}) })
		assertPanicsWith(t, nil, func() { CustomFSA(FSAConfig{BlockSize: -1, Blocks: 1}) })
	})
}

func TestCustomBacking(t *testing.T) {
	backing := &testutils.MockBacking{}

	f := CustomFSA(FSAConfig{BlockSize: 32, Blocks: 4, Backing: backing})
	require.NoError(t, f.Init())
	assert.Equal(t, 128, backing.LastSize())

	c := CustomCH(CHConfig{Size: 2 * KiB, Backing: backing})
	require.NoError(t, c.Init())
	assert.Equal(t, 2*KiB, backing.LastSize())
	assert.Equal(t, int64(2), backing.ArenasInUse())

	f.Destroy()
	c.Destroy()
	assert.Zero(t, backing.ArenasInUse())

	backing.Err = errors.New("no memory")
	assert.ErrorContains(t, NewLocked(CustomCH(CHConfig{Size: KiB, Backing: backing})).Init(), "no memory")
}

func TestParseBacking(t *testing.T) {
	for _, kind := range []string{"heap", "mmap", "pool"} {
		t.Run(kind, func(t *testing.T) {
			backing, err := ParseBacking(kind, nil)
			require.NoError(t, err)

			c := CustomCH(CHConfig{Size: 64 * KiB, Backing: backing})
			require.NoError(t, c.Init())
			defer c.Destroy()

			p := c.Alloc(100)
			require.NotNil(t, p)
			copy(p, strings.Repeat("x", 100))
			c.Free(p)
			require.NoError(t, c.CheckInvariants())
		})
	}
}
