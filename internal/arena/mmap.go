package arena

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// Mmap is a Backing that maps anonymous memory outside of the Go heap.
// Mapped arenas are zeroed by the kernel and never scanned by the garbage collector.
type Mmap struct {
	Logger *slog.Logger // Used to report unmap failures; slog.Default() when nil.
}

func (m Mmap) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot allocate %d bytes via mmap: %w", size, err)
	}
	return data, nil
}

// Release unmaps the arena. Failures are logged since there is nothing the caller can do.
func (m Mmap) Release(b []byte) {
	if b == nil {
		return
	}
	if err := unix.Munmap(b); err != nil {
		m.logger().Error("failed to unmap arena", "size", len(b), "error", err)
	}
}

func (m Mmap) String() string {
	return "mmap"
}

func (m Mmap) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
