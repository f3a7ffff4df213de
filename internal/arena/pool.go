package arena

import (
	"fmt"
	"sync"
)

// defaultPool backs the "pool" kind returned by Parse.
var defaultPool = NewPool(DefaultPoolConfig())

type PoolConfig struct {
	Source Backing // Provider of new arenas; Mmap when nil.

	// Number of free arenas of each size the pool can hold before starting to
	// release memory back to Source. Zero keeps every released arena.
	FreeThreshold int
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Source:        Mmap{},
		FreeThreshold: 16,
	}
}

// Pool is a thread-safe Backing that recycles released arenas by exact size
// instead of handing them straight back to its source.
// Recycled arenas keep the contents they had when they were released.
type Pool struct {
	mu     sync.Mutex
	source Backing
	free   map[int][][]byte

	freeThreshold int
}

// NewPool creates a new, empty arena pool.
func NewPool(config PoolConfig) *Pool {
	source := config.Source
	if source == nil {
		source = Mmap{}
	}
	return &Pool{
		source:        source,
		free:          make(map[int][][]byte),
		freeThreshold: config.FreeThreshold,
	}
}

// Acquire returns a pooled arena of the given size, or a new one from the source.
func (p *Pool) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	p.mu.Lock()
	if list := p.free[size]; len(list) > 0 {
		n := len(list) - 1
		b := list[n]
		p.free[size] = list[:n]
		p.mu.Unlock()
		return b, nil
	}
	p.mu.Unlock()
	return p.source.Acquire(size)
}

// Release returns an arena to the pool. It does nothing for a nil slice.
func (p *Pool) Release(b []byte) {
	if b == nil {
		return
	}
	b = b[:cap(b)] // Pool by full capacity.
	size := len(b)

	var toRelease [][]byte
	p.mu.Lock()
	p.free[size] = append(p.free[size], b)
	p.free[size], toRelease = trimFree(p.free[size], p.freeThreshold)
	p.mu.Unlock()

	// Release outside of the lock; unmapping can be slow.
	for _, a := range toRelease {
		p.source.Release(a)
	}
}

// Preallocate ensures that at least n arenas of the given size are pooled.
func (p *Pool) Preallocate(size, n int) error {
	if n <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.free[size]) < n {
		b, err := p.source.Acquire(size)
		if err != nil {
			return fmt.Errorf("preallocate %d byte arena: %w", size, err)
		}
		p.free[size] = append(p.free[size], b)
	}
	return nil
}

// NumFree returns the number of pooled arenas of the given size.
func (p *Pool) NumFree(size int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[size])
}

// Drain hands every pooled arena back to the source.
func (p *Pool) Drain() {
	p.mu.Lock()
	free := p.free
	p.free = make(map[int][][]byte)
	p.mu.Unlock()

	for _, list := range free {
		for _, b := range list {
			p.source.Release(b)
		}
	}
}

func (p *Pool) String() string {
	return "pool"
}

// trimFree shrinks the free list once it exceeds threshold.
// It returns the updated list and the arenas that should be released.
func trimFree(free [][]byte, threshold int) (kept, toRelease [][]byte) {
	if threshold > 0 && len(free) > threshold {
		// Release half of the free arenas to prevent thrashing around the threshold.
		n := len(free) / 2
		return free[n:], free[:n]
	}
	return free, nil
}
