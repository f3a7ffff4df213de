// Package workload drives an allocator with a reproducible random sequence of
// requests and verifies that no payload is disturbed while it is live.
package workload

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrPayloadCorrupted = errors.New("workload: payload corrupted")

// Allocator is the part of an allocator the driver exercises.
type Allocator interface {
	Alloc(size int) []byte
	Free(b []byte)
}

// Result summarises a run.
type Result struct {
	Allocs    int // Successful allocations.
	Failed    int // Allocations that returned nil.
	Frees     int
	PeakLive  int // Highest number of simultaneously live payloads.
	PeakBytes int // Highest number of simultaneously requested bytes.
	Live      int // Payloads still held when the run ended.
}

type payload struct {
	data []byte
	sum  uint64
}

type driver struct {
	a      Allocator
	sum    checksumFunc
	r      *rand.Rand
	live   []payload
	bytes  int
	result Result
}

// Run issues cfg.Ops operations against a. Each allocation is filled with
// random bytes and its checksum recorded; every release verifies the checksum
// first and fails with ErrPayloadCorrupted on a mismatch.
// Payloads still live when Run returns with FreeAll unset remain allocated.
func Run(a Allocator, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	sum, err := newChecksum(cfg.Hash, cfg.Seed)
	if err != nil {
		return Result{}, err
	}
	d := &driver{
		a:   a,
		sum: sum,
		r:   rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15)),
	}
	for i := range cfg.Ops {
		var err error
		if len(d.live) > 0 && d.r.Float64() < cfg.FreeRatio {
			err = d.free(d.r.IntN(len(d.live)))
		} else {
			d.alloc(cfg.MinSize + d.r.IntN(cfg.MaxSize-cfg.MinSize+1))
		}
		if err != nil {
			return d.done(), fmt.Errorf("operation %d: %w", i, err)
		}
	}
	if cfg.FreeAll {
		for len(d.live) > 0 {
			if err := d.free(len(d.live) - 1); err != nil {
				return d.done(), fmt.Errorf("drain: %w", err)
			}
		}
	}
	return d.done(), nil
}

func (d *driver) alloc(size int) {
	b := d.a.Alloc(size)
	if b == nil {
		d.result.Failed++
		return
	}
	for i := range b {
		b[i] = byte(d.r.Uint32())
	}
	d.live = append(d.live, payload{data: b, sum: d.sum(b)})
	d.bytes += size
	d.result.Allocs++
	d.result.PeakLive = max(d.result.PeakLive, len(d.live))
	d.result.PeakBytes = max(d.result.PeakBytes, d.bytes)
}

// free releases live payload i, swapping the last payload into its slot.
func (d *driver) free(i int) error {
	p := d.live[i]
	if got := d.sum(p.data); got != p.sum {
		return fmt.Errorf("%w: %d byte payload hashes to %#x, want %#x", ErrPayloadCorrupted, len(p.data), got, p.sum)
	}
	d.a.Free(p.data)
	last := len(d.live) - 1
	d.live[i] = d.live[last]
	d.live = d.live[:last]
	d.bytes -= len(p.data)
	d.result.Frees++
	return nil
}

func (d *driver) done() Result {
	d.result.Live = len(d.live)
	return d.result
}
