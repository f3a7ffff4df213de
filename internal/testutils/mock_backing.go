package testutils

import (
	"sync/atomic"
)

// MockBacking is an arena backing that counts calls and can be told to fail.
type MockBacking struct {
	Err error // Returned by Acquire when set.

	acquireCalls atomic.Int64
	releaseCalls atomic.Int64
	lastSize     atomic.Int64
}

func (b *MockBacking) Acquire(size int) ([]byte, error) {
	b.acquireCalls.Add(1)
	b.lastSize.Store(int64(size))
	if b.Err != nil {
		return nil, b.Err
	}
	data := make([]byte, size)
	// Fill with garbage so tests catch reads of bytes the allocator never wrote.
	for i := range data {
		data[i] = 0xA5
	}
	return data, nil
}

func (b *MockBacking) Release(data []byte) {
	b.releaseCalls.Add(1)
}

func (b *MockBacking) AcquireCalls() int64 {
	return b.acquireCalls.Load()
}

func (b *MockBacking) ReleaseCalls() int64 {
	return b.releaseCalls.Load()
}

// LastSize returns the size passed to the most recent Acquire call.
func (b *MockBacking) LastSize() int {
	return int(b.lastSize.Load())
}

// ArenasInUse returns the number of acquired arenas not yet released.
func (b *MockBacking) ArenasInUse() int64 {
	return b.AcquireCalls() - b.ReleaseCalls()
}

func (b *MockBacking) Reset() {
	b.acquireCalls.Store(0)
	b.releaseCalls.Store(0)
	b.lastSize.Store(0)
}
