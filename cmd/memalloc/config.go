package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	memalloc "github.com/holmberd/go-memalloc"
	"github.com/holmberd/go-memalloc/internal/workload"
)

var errUnknownAllocator = errors.New("unknown allocator")

// runConfig holds every setting of the run command. It is loaded from a TOML
// file first; flags given on the command line override it.
type runConfig struct {
	Allocator string `toml:"allocator"`
	Backing   string `toml:"backing"`
	Color     bool   `toml:"color"`

	FSA      fsaSection      `toml:"fsa"`
	CH       chSection       `toml:"ch"`
	Workload workloadSection `toml:"workload"`
}

type fsaSection struct {
	BlockSize int `toml:"block_size"`
	Blocks    int `toml:"blocks"`
}

type chSection struct {
	ArenaSize int `toml:"arena_size"`
}

type workloadSection struct {
	Seed      int64   `toml:"seed"`
	Ops       int     `toml:"ops"`
	MinSize   int     `toml:"min_size"`
	MaxSize   int     `toml:"max_size"`
	FreeRatio float64 `toml:"free_ratio"`
	FreeAll   bool    `toml:"free_all"`
	Hash      string  `toml:"hash"`
}

func defaultRunConfig() runConfig {
	w := workload.DefaultConfig()
	return runConfig{
		Allocator: "ch",
		Backing:   "heap",
		FSA:       fsaSection{BlockSize: 256, Blocks: 4096},
		CH:        chSection{ArenaSize: memalloc.MiB},
		Workload: workloadSection{
			Seed:      w.Seed,
			Ops:       w.Ops,
			MinSize:   w.MinSize,
			MaxSize:   w.MaxSize,
			FreeRatio: w.FreeRatio,
			FreeAll:   w.FreeAll,
			Hash:      w.Hash,
		},
	}
}

func (c runConfig) workload() workload.Config {
	return workload.Config{
		Seed:      c.Workload.Seed,
		Ops:       c.Workload.Ops,
		MinSize:   c.Workload.MinSize,
		MaxSize:   c.Workload.MaxSize,
		FreeRatio: c.Workload.FreeRatio,
		FreeAll:   c.Workload.FreeAll,
		Hash:      c.Workload.Hash,
	}
}

func (c runConfig) Validate() error {
	var errs []error
	switch strings.ToLower(c.Allocator) {
	case "fsa":
		errs = append(errs, memalloc.DefaultFSAConfig(c.FSA.BlockSize, c.FSA.Blocks).Validate())
	case "ch":
		errs = append(errs, memalloc.DefaultCHConfig(c.CH.ArenaSize).Validate())
	default:
		errs = append(errs, fmt.Errorf("%w %q, want fsa or ch", errUnknownAllocator, c.Allocator))
	}
	errs = append(errs, c.workload().Validate())
	return errors.Join(errs...)
}

// readConfigFile decodes a TOML file over cfg. Keys that do not map to a
// setting are rejected so typos do not silently fall back to defaults.
func readConfigFile(path string, cfg *runConfig) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("read config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// loadRunConfig builds the run configuration from defaults, the optional
// config file and the flags set on the command line, in that order.
func loadRunConfig(ctx *cli.Context) (runConfig, error) {
	cfg := defaultRunConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		if err := readConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet(allocatorFlag.Name) {
		cfg.Allocator = ctx.String(allocatorFlag.Name)
	}
	if ctx.IsSet(backingFlag.Name) {
		cfg.Backing = ctx.String(backingFlag.Name)
	}
	if ctx.IsSet(colorFlag.Name) {
		cfg.Color = ctx.Bool(colorFlag.Name)
	}
	if ctx.IsSet(blockSizeFlag.Name) {
		cfg.FSA.BlockSize = ctx.Int(blockSizeFlag.Name)
	}
	if ctx.IsSet(blocksFlag.Name) {
		cfg.FSA.Blocks = ctx.Int(blocksFlag.Name)
	}
	if ctx.IsSet(arenaSizeFlag.Name) {
		cfg.CH.ArenaSize = ctx.Int(arenaSizeFlag.Name)
	}
	if ctx.IsSet(seedFlag.Name) {
		cfg.Workload.Seed = ctx.Int64(seedFlag.Name)
	}
	if ctx.IsSet(opsFlag.Name) {
		cfg.Workload.Ops = ctx.Int(opsFlag.Name)
	}
	if ctx.IsSet(minSizeFlag.Name) {
		cfg.Workload.MinSize = ctx.Int(minSizeFlag.Name)
	}
	if ctx.IsSet(maxSizeFlag.Name) {
		cfg.Workload.MaxSize = ctx.Int(maxSizeFlag.Name)
	}
	if ctx.IsSet(freeRatioFlag.Name) {
		cfg.Workload.FreeRatio = ctx.Float64(freeRatioFlag.Name)
	}
	if ctx.IsSet(freeAllFlag.Name) {
		cfg.Workload.FreeAll = ctx.Bool(freeAllFlag.Name)
	}
	if ctx.IsSet(hashFlag.Name) {
		cfg.Workload.Hash = ctx.String(hashFlag.Name)
	}
	return cfg, cfg.Validate()
}

func writeConfig(w io.Writer, cfg runConfig) error {
	return toml.NewEncoder(w).Encode(cfg)
}
