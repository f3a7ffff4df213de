package memalloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedConcurrentUse(t *testing.T) {
	testCases := []struct {
		name string
		a    Allocator
	}{
		{"FSA", NewFSA(128, 256)},
		{"CH", NewCH(256 * KiB)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLocked(tc.a)
			require.NoError(t, l.Init())
			defer l.Destroy()

			const (
				workers = 8
				rounds  = 500
			)
			var wg sync.WaitGroup
			errs := make(chan string, workers)
			for w := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fill := byte(w + 1)
					for i := range rounds {
						p := l.Alloc(16 + (i % 7 * 16))
						if p == nil {
							continue
						}
						for j := range p {
							p[j] = fill
						}
						for _, v := range p {
							if v != fill {
								errs <- "payload overwritten by another goroutine"
								return
							}
						}
						l.Free(p)
					}
				}()
			}
			wg.Wait()
			close(errs)
			for msg := range errs {
				t.Error(msg)
			}

			s := l.Stats()
			assert.Equal(t, s.Allocs, s.Frees)
			assert.Positive(t, s.Allocs)
			assert.Same(t, tc.a, l.Unwrap())

			switch a := l.Unwrap().(type) {
			case *FSA:
				assert.NoError(t, a.CheckInvariants())
			case *CH:
				assert.NoError(t, a.CheckInvariants())
				assert.Equal(t, 1, a.Stats().FreeBlocks)
			}
		})
	}
}
