package memalloc

import (
	"github.com/holmberd/go-memalloc/internal/arena"
	"github.com/holmberd/go-memalloc/internal/ch"
	"github.com/holmberd/go-memalloc/internal/fsa"
)

const (
	KiB = 1024
	MiB = KiB * KiB

	// HeapOverhead is the number of arena bytes every heap block spends on
	// bookkeeping, free or allocated.
	HeapOverhead = ch.Overhead
)

// Backing provides the storage for an allocator arena.
type Backing = arena.Backing

// ParseBacking returns the backing named kind: "heap", "mmap" or "pool".
var ParseBacking = arena.Parse

func DefaultFSAConfig(blockSize, nBlocks int) FSAConfig {
	return fsa.DefaultConfig(blockSize, nBlocks)
}

func DefaultCHConfig(size int) CHConfig {
	return ch.DefaultConfig(size)
}
