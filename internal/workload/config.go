package workload

import (
	"errors"
	"fmt"
	"math"
)

type Config struct {
	Seed      int64   // Seed of the operation sequence; equal seeds replay equal sequences.
	Ops       int     // Number of operations to issue.
	MinSize   int     // Smallest request size in bytes.
	MaxSize   int     // Largest request size in bytes.
	FreeRatio float64 // Probability that an operation frees a live payload instead of allocating.
	FreeAll   bool    // Release every live payload once the operations are issued.
	Hash      string  // Payload checksum: HashXX, HashHighway or HashSip; HashXX when empty.
}

func (c Config) Validate() error {
	var errs []error
	if c.Ops < 0 {
		errs = append(errs, fmt.Errorf("operation count must not be negative, got %d", c.Ops))
	}
	if c.MinSize < 0 {
		errs = append(errs, fmt.Errorf("min size must not be negative, got %d", c.MinSize))
	}
	if c.MaxSize < c.MinSize {
		errs = append(errs, fmt.Errorf("max size %d is smaller than min size %d", c.MaxSize, c.MinSize))
	} else if c.MinSize >= 0 && c.MaxSize-c.MinSize >= math.MaxInt {
		// The size draw spans MaxSize-MinSize+1 values, which must fit an int.
		errs = append(errs, fmt.Errorf("size range [%d, %d] is too wide", c.MinSize, c.MaxSize))
	}
	if c.FreeRatio < 0 || c.FreeRatio > 1 {
		errs = append(errs, fmt.Errorf("free ratio must be within [0, 1], got %g", c.FreeRatio))
	}
	if _, err := newChecksum(c.Hash, c.Seed); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func DefaultConfig() Config {
	return Config{
		Seed:      1,
		Ops:       10_000,
		MinSize:   1,
		MaxSize:   256,
		FreeRatio: 0.4,
		FreeAll:   true,
		Hash:      HashXX,
	}
}
