package ch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/holmberd/go-memalloc/internal/arena"
)

type Config struct {
	Size int // Arena size in bytes, overhead included.

	Backing arena.Backing // Storage provider for the arena; arena.Heap when nil.
	Logger  *slog.Logger  // Lifecycle logger; discarded when nil.
	Color   bool          // Colour dump output.
}

func (c Config) Validate() error {
	var errs []error
	if c.Size < Overhead {
		errs = append(errs, fmt.Errorf("%w: arena size %d is smaller than the block overhead %d", ErrArenaTooSmall, c.Size, Overhead))
	}
	return errors.Join(errs...)
}

func DefaultConfig(size int) Config {
	return Config{
		Size:    size,
		Backing: arena.Heap{},
	}
}
