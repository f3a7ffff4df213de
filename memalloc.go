// Package memalloc implements two allocators over a single preallocated arena:
// a fixed-size block allocator (FSA) and a coalescing heap (CH) for
// variable-size requests. Both hand out payloads as byte slices into the arena
// and keep all of their bookkeeping inside it.
package memalloc

import (
	"io"

	"github.com/holmberd/go-memalloc/internal/arena"
	"github.com/holmberd/go-memalloc/internal/ch"
	"github.com/holmberd/go-memalloc/internal/fsa"
	"github.com/holmberd/go-memalloc/internal/report"
)

var (
	ErrInitialized    = arena.ErrInitialized
	ErrNotInitialized = arena.ErrNotInitialized
	ErrForeignPointer = arena.ErrForeignPointer
	ErrArenaTooSmall  = ch.ErrArenaTooSmall
)

// Allocator is the contract shared by FSA and CH.
type Allocator interface {
	// Init acquires the arena. It fails if the allocator is already initialized.
	Init() error
	// Destroy releases the arena. Calling it more than once is a no-op.
	Destroy()
	// Alloc returns a payload of length size, or nil if the request cannot be served.
	Alloc(size int) []byte
	// Free releases a payload returned by Alloc on the same allocator.
	Free(b []byte)

	Stats() Stats
	DumpStat(w io.Writer)
	DumpBlocks(w io.Writer)
}

type (
	FSA       = fsa.Allocator
	FSAConfig = fsa.Config
	CH        = ch.Allocator
	CHConfig  = ch.Config
	Stats     = report.Stats
	Block     = report.Block
)

var (
	_ Allocator = (*FSA)(nil)
	_ Allocator = (*CH)(nil)
	_ Allocator = (*Locked)(nil)
)

// NewFSA creates a fixed-size allocator of nBlocks blocks of blockSize bytes
// on the Go heap. It panics if the configuration is invalid.
func NewFSA(blockSize, nBlocks int) *FSA {
	return fsa.New(DefaultFSAConfig(blockSize, nBlocks))
}

// CustomFSA creates a fixed-size allocator with a custom config.
func CustomFSA(config FSAConfig) *FSA {
	return fsa.New(config)
}

// NewCH creates a coalescing heap over an arena of size bytes on the Go heap.
// It panics if the arena cannot hold a single block.
func NewCH(size int) *CH {
	return ch.New(DefaultCHConfig(size))
}

// CustomCH creates a coalescing heap with a custom config.
func CustomCH(config CHConfig) *CH {
	return ch.New(config)
}
