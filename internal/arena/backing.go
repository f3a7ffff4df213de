package arena

import (
	"fmt"
	"log/slog"
	"strings"
)

// Backing provides the storage for an arena.
// Acquire is called once when an allocator is initialized and Release once when it is destroyed.
type Backing interface {
	Acquire(size int) ([]byte, error)
	Release(b []byte)
}

// Heap is a Backing that allocates arenas on the Go heap.
type Heap struct{}

func (Heap) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return make([]byte, size), nil
}

// Release drops the reference; the garbage collector reclaims the memory.
func (Heap) Release([]byte) {}

func (Heap) String() string {
	return "heap"
}

// Parse returns the backing for the given kind name: "heap", "mmap" or
// "pool", the process-wide arena pool over mmap.
func Parse(kind string, logger *slog.Logger) (Backing, error) {
	switch strings.ToLower(kind) {
	case "", "heap":
		return Heap{}, nil
	case "mmap":
		return Mmap{Logger: logger}, nil
	case "pool":
		return defaultPool, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
