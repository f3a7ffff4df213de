package fsa

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/holmberd/go-memalloc/internal/arena"
)

type Config struct {
	BlockSize int // Capacity of every block in bytes; raised to arena.WordSize and rounded up to a word multiple.
	Blocks    int // Number of blocks in the pool.

	Backing arena.Backing // Storage provider for the pool; arena.Heap when nil.
	Logger  *slog.Logger  // Lifecycle logger; discarded when nil.
}

func (c Config) Validate() error {
	var errs []error
	if c.Blocks < 1 {
		errs = append(errs, fmt.Errorf("invalid config: block count %d must be at least 1", c.Blocks))
	}
	if c.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("invalid config: block size %d must not be negative", c.BlockSize))
	}
	if c.BlockSize > math.MaxInt-arena.WordSize || (c.Blocks > 0 && blockSizeFor(c.BlockSize) > math.MaxInt/c.Blocks) {
		errs = append(errs, errors.New("invalid config: pool size overflows"))
	}
	return errors.Join(errs...)
}

// blockSizeFor returns the stride of a block holding n bytes: at least one word for
// the free-list link and a whole number of words so every block stays word aligned.
func blockSizeFor(n int) int {
	return arena.AlignWord(max(n, arena.WordSize))
}

func DefaultConfig(blockSize, blocks int) Config {
	return Config{
		BlockSize: blockSize,
		Blocks:    blocks,
		Backing:   arena.Heap{},
	}
}
