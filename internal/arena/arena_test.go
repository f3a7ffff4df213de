package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignWord(t *testing.T) {
	testCases := []struct {
		in, want int
	}{
		{0, 0},
		{1, 8},
		{7, 8},
		{8, 8},
		{9, 16},
		{64, 64},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, AlignWord(tc.in), "AlignWord(%d)", tc.in)
	}
}

func TestArenaWords(t *testing.T) {
	a := New(make([]byte, 64))
	a.PutWord(0, 42)
	a.PutWord(8, ^uint64(0))
	a.PutWord(56, 7)

	assert.Equal(t, uint64(42), a.Word(0))
	assert.Equal(t, ^uint64(0), a.Word(8))
	assert.Equal(t, uint64(7), a.Word(56))
	assert.Equal(t, byte(42), a.Bytes()[0], "words are little-endian")

	// Unaligned access is allowed.
	a.PutWord(3, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), a.Word(3))

	assert.Panics(t, func() { a.Word(60) }, "reading past the end must panic")
}

func TestArenaOffset(t *testing.T) {
	a := New(make([]byte, 128))

	t.Run("Slices of the arena", func(t *testing.T) {
		for _, off := range []int{0, 1, 40, 127} {
			got, ok := a.Offset(a.Slice(off, 1, 1))
			require.True(t, ok)
			assert.Equal(t, off, got)
		}
	})

	t.Run("Zero length slice with capacity", func(t *testing.T) {
		got, ok := a.Offset(a.Slice(16, 0, 8))
		require.True(t, ok)
		assert.Equal(t, 16, got)
	})

	t.Run("Foreign slice", func(t *testing.T) {
		_, ok := a.Offset(make([]byte, 8))
		assert.False(t, ok)
	})

	t.Run("Nil slice", func(t *testing.T) {
		_, ok := a.Offset(nil)
		assert.False(t, ok)
	})
}

func TestHeapBacking(t *testing.T) {
	var h Heap
	b, err := h.Acquire(256)
	require.NoError(t, err)
	assert.Len(t, b, 256)
	h.Release(b)

	_, err = h.Acquire(0)
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestMmapBacking(t *testing.T) {
	m := Mmap{}
	b, err := m.Acquire(4096 + 100)
	require.NoError(t, err)
	require.Len(t, b, 4096+100)
	for i := range b {
		if b[i] != 0 {
			t.Fatalf("expected mapped memory to be zeroed, byte %d is %d", i, b[i])
		}
	}

	a := New(b)
	a.PutWord(4096, 99)
	assert.Equal(t, uint64(99), a.Word(4096))
	m.Release(b)

	_, err = m.Acquire(-1)
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestParse(t *testing.T) {
	b, err := Parse("", nil)
	require.NoError(t, err)
	assert.Equal(t, Heap{}, b)

	b, err = Parse("MMAP", nil)
	require.NoError(t, err)
	assert.IsType(t, Mmap{}, b)

	b, err = Parse("pool", nil)
	require.NoError(t, err)
	assert.Same(t, defaultPool, b)

	_, err = Parse("tmpfs", nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
