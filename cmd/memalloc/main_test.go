package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"memalloc"}, args...))
	return stdout.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memalloc.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadConfigFile(t *testing.T) {
	t.Run("Sections override defaults", func(t *testing.T) {
		path := writeFile(t, `
allocator = "fsa"
backing = "mmap"

[fsa]
block_size = 32
blocks = 10

[workload]
seed = 9
max_size = 32
free_all = false
hash = "highway"
`)
		cfg := defaultRunConfig()
		require.NoError(t, readConfigFile(path, &cfg))

		want := defaultRunConfig()
		want.Allocator = "fsa"
		want.Backing = "mmap"
		want.FSA = fsaSection{BlockSize: 32, Blocks: 10}
		want.Workload.Seed = 9
		want.Workload.MaxSize = 32
		want.Workload.FreeAll = false
		want.Workload.Hash = "highway"
		assert.Equal(t, want, cfg)
	})

	t.Run("Unknown keys are rejected", func(t *testing.T) {
		path := writeFile(t, "[ch]\narena_sise = 100\n")
		cfg := defaultRunConfig()
		assert.ErrorContains(t, readConfigFile(path, &cfg), "ch.arena_sise")
	})

	t.Run("Malformed file", func(t *testing.T) {
		path := writeFile(t, "allocator = \n")
		cfg := defaultRunConfig()
		assert.Error(t, readConfigFile(path, &cfg))
	})

	t.Run("Missing file", func(t *testing.T) {
		cfg := defaultRunConfig()
		assert.Error(t, readConfigFile(filepath.Join(t.TempDir(), "missing.toml"), &cfg))
	})
}

func TestRunConfigValidate(t *testing.T) {
	cfg := defaultRunConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Allocator = "slab"
	assert.ErrorIs(t, cfg.Validate(), errUnknownAllocator)

	cfg = defaultRunConfig()
	cfg.CH.ArenaSize = 10
	assert.ErrorContains(t, cfg.Validate(), "arena too small")

	cfg = defaultRunConfig()
	cfg.Allocator = "fsa"
	cfg.FSA.Blocks = 0
	cfg.Workload.FreeRatio = 2
	err := cfg.Validate()
	assert.ErrorContains(t, err, "block count")
	assert.ErrorContains(t, err, "free ratio")
}

func TestDumpConfigFlagsWin(t *testing.T) {
	path := writeFile(t, `
allocator = "fsa"

[fsa]
block_size = 48
blocks = 100

[workload]
ops = 50
`)
	out, err := runApp(t, "dumpconfig", "--config", path, "--blocks", "7", "--seed", "3")
	require.NoError(t, err)

	var got runConfig
	_, err = toml.Decode(out, &got)
	require.NoError(t, err)
	assert.Equal(t, "fsa", got.Allocator)
	assert.Equal(t, 48, got.FSA.BlockSize, "file value kept")
	assert.Equal(t, 7, got.FSA.Blocks, "flag wins over file")
	assert.Equal(t, 50, got.Workload.Ops)
	assert.Equal(t, int64(3), got.Workload.Seed)
	assert.Equal(t, defaults.CH, got.CH)
}

func TestRunCommand(t *testing.T) {
	t.Run("Heap with dumps and metrics", func(t *testing.T) {
		out, err := runApp(t, "run", "--allocator", "ch", "--arena-size", "8192", "--ops", "300", "--max-size", "128", "--dump", "--metrics", "--hex", "32")
		require.NoError(t, err)
		assert.Contains(t, out, "allocator: ch, backing: heap")
		assert.Contains(t, out, "live: 0")
		assert.Contains(t, out, "dump stats after")
		assert.Contains(t, out, "dump free blocks after")
		assert.Contains(t, out, "dump free list after")
		assert.Contains(t, out, "0: [")
		assert.Contains(t, out, `memalloc_free_blocks{allocator="ch"} 1`)
		assert.Contains(t, out, "# TYPE memalloc_allocs_total counter")
	})

	t.Run("Fixed-size pool from a config file", func(t *testing.T) {
		path := writeFile(t, `
allocator = "fsa"
backing = "mmap"

[fsa]
block_size = 64
blocks = 8

[workload]
ops = 200
max_size = 100
free_all = false
`)
		out, err := runApp(t, "run", "--config", path, "--metrics")
		require.NoError(t, err)
		assert.Contains(t, out, "allocator: fsa, backing: mmap")
		assert.Contains(t, out, `memalloc_capacity_bytes{allocator="fsa"} 512`)
		assert.NotContains(t, out, "failed: 0,", "requests above the block size fail")
	})

	t.Run("Hex dump needs the heap", func(t *testing.T) {
		out, err := runApp(t, "run", "--allocator", "fsa", "--ops", "10", "--max-size", "64", "--hex", "16")
		assert.ErrorContains(t, err, "only supported by the ch allocator")
		assert.NotContains(t, out, "allocator:", "rejected before the workload runs")
	})

	t.Run("Invalid settings", func(t *testing.T) {
		_, err := runApp(t, "run", "--allocator", "slab")
		assert.ErrorIs(t, err, errUnknownAllocator)

		_, err = runApp(t, "run", "--backing", "tmpfs")
		assert.ErrorContains(t, err, "unknown backing kind")

		_, err = runApp(t, "run", "--hash", "md5")
		assert.ErrorContains(t, err, "unknown hash")

		_, err = runApp(t, "--verbosity", "loud", "run")
		assert.ErrorContains(t, err, "invalid verbosity")
	})

	t.Run("Pool backing", func(t *testing.T) {
		out, err := runApp(t, "--verbosity", "debug", "run", "--backing", "pool", "--ops", "100", "--hash", "siphash")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "allocator: ch, backing: pool\n"))
	})
}
