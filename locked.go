package memalloc

import (
	"io"
	"sync"
)

// Locked serializes every call to the wrapped allocator with a mutex.
// The allocators themselves are not safe for concurrent use.
type Locked struct {
	mu sync.Mutex
	a  Allocator
}

// NewLocked wraps a so it can be shared between goroutines.
func NewLocked(a Allocator) *Locked {
	return &Locked{a: a}
}

// Unwrap returns the wrapped allocator.
func (l *Locked) Unwrap() Allocator {
	return l.a
}

func (l *Locked) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Init()
}

func (l *Locked) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.Destroy()
}

func (l *Locked) Alloc(size int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Alloc(size)
}

func (l *Locked) Free(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.Free(b)
}

func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Stats()
}

// DumpStat holds the lock while writing, so w must not call back into l.
func (l *Locked) DumpStat(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.DumpStat(w)
}

func (l *Locked) DumpBlocks(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.DumpBlocks(w)
}
