package workload

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
	"github.com/minio/highwayhash"
)

// Checksum kinds accepted by Config.Hash.
const (
	HashXX      = "xxhash"
	HashHighway = "highway"
	HashSip     = "siphash"
)

type checksumFunc func(b []byte) uint64

// newChecksum returns the checksum named kind. The keyed hashes derive their
// key from seed so a run is reproducible.
func newChecksum(kind string, seed int64) (checksumFunc, error) {
	switch strings.ToLower(kind) {
	case "", HashXX:
		return xxhash.Sum64, nil
	case HashHighway:
		key := make([]byte, 32)
		for i := 0; i < len(key); i += 8 {
			binary.LittleEndian.PutUint64(key[i:], uint64(seed)+uint64(i))
		}
		return func(b []byte) uint64 {
			return highwayhash.Sum64(b, key)
		}, nil
	case HashSip:
		k0, k1 := uint64(seed), ^uint64(seed)
		return func(b []byte) uint64 {
			return siphash.Hash(k0, k1, b)
		}, nil
	default:
		return nil, fmt.Errorf("unknown hash %q, want %s, %s or %s", kind, HashXX, HashHighway, HashSip)
	}
}
