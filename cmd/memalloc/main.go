// Command memalloc drives the fixed-size allocator or the coalescing heap with
// a reproducible random workload and reports the resulting arena state.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"

	memalloc "github.com/holmberd/go-memalloc"
	"github.com/holmberd/go-memalloc/internal/report"
	"github.com/holmberd/go-memalloc/internal/workload"
)

var defaults = defaultRunConfig()

var (
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level: debug, info, warn or error",
		Value: "warn",
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML file with run settings; flags override it",
	}
	allocatorFlag = &cli.StringFlag{
		Name:  "allocator",
		Usage: "allocator to drive: fsa or ch",
		Value: defaults.Allocator,
	}
	backingFlag = &cli.StringFlag{
		Name:  "backing",
		Usage: "arena storage: heap, mmap or pool",
		Value: defaults.Backing,
	}
	colorFlag = &cli.BoolFlag{
		Name:  "color",
		Usage: "colour block states in dumps",
	}
	blockSizeFlag = &cli.IntFlag{
		Name:  "block-size",
		Usage: "fsa block size in bytes",
		Value: defaults.FSA.BlockSize,
	}
	blocksFlag = &cli.IntFlag{
		Name:  "blocks",
		Usage: "fsa block count",
		Value: defaults.FSA.Blocks,
	}
	arenaSizeFlag = &cli.IntFlag{
		Name:  "arena-size",
		Usage: "ch arena size in bytes, block overhead included",
		Value: defaults.CH.ArenaSize,
	}
	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "workload seed",
		Value: defaults.Workload.Seed,
	}
	opsFlag = &cli.IntFlag{
		Name:  "ops",
		Usage: "number of workload operations",
		Value: defaults.Workload.Ops,
	}
	minSizeFlag = &cli.IntFlag{
		Name:  "min-size",
		Usage: "smallest request in bytes",
		Value: defaults.Workload.MinSize,
	}
	maxSizeFlag = &cli.IntFlag{
		Name:  "max-size",
		Usage: "largest request in bytes",
		Value: defaults.Workload.MaxSize,
	}
	freeRatioFlag = &cli.Float64Flag{
		Name:  "free-ratio",
		Usage: "probability that an operation frees a live payload",
		Value: defaults.Workload.FreeRatio,
	}
	freeAllFlag = &cli.BoolFlag{
		Name:  "free-all",
		Usage: "release every live payload after the run",
		Value: defaults.Workload.FreeAll,
	}
	hashFlag = &cli.StringFlag{
		Name:  "hash",
		Usage: "payload checksum: xxhash, highway or siphash",
		Value: defaults.Workload.Hash,
	}
	dumpFlag = &cli.BoolFlag{
		Name:  "dump",
		Usage: "print the allocator dumps after the run",
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "print the allocator metrics in the prometheus text format",
	}
	hexFlag = &cli.IntFlag{
		Name:  "hex",
		Usage: "hex dump the first N arena bytes after the run (ch only)",
	}
)

var settingFlags = []cli.Flag{
	configFlag,
	allocatorFlag,
	backingFlag,
	colorFlag,
	blockSizeFlag,
	blocksFlag,
	arenaSizeFlag,
	seedFlag,
	opsFlag,
	minSizeFlag,
	maxSizeFlag,
	freeRatioFlag,
	freeAllFlag,
	hashFlag,
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "memalloc",
		Usage: "exercise the fixed-size allocator and the coalescing heap",
		Flags: []cli.Flag{verbosityFlag},
		Before: func(ctx *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(ctx.String(verbosityFlag.Name))); err != nil {
				return fmt.Errorf("invalid verbosity: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(ctx.App.ErrWriter, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run a workload and report the allocator state",
				Flags:  slices.Concat(settingFlags, []cli.Flag{dumpFlag, metricsFlag, hexFlag}),
				Action: runCommand,
			},
			{
				Name:   "dumpconfig",
				Usage:  "print the effective run settings as TOML",
				Flags:  settingFlags,
				Action: dumpConfigCommand,
			},
		},
	}
}

func main() {
	app := newApp()
	app.ErrWriter = os.Stderr
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpConfigCommand(ctx *cli.Context) error {
	cfg, err := loadRunConfig(ctx)
	if err != nil {
		return err
	}
	return writeConfig(ctx.App.Writer, cfg)
}

func runCommand(ctx *cli.Context) error {
	cfg, err := loadRunConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.Int(hexFlag.Name) > 0 && strings.ToLower(cfg.Allocator) != "ch" {
		return fmt.Errorf("--%s is only supported by the ch allocator", hexFlag.Name)
	}
	logger := slog.Default()
	a, err := buildAllocator(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Init(); err != nil {
		return err
	}
	defer a.Destroy()

	logger.Info("running workload", "allocator", cfg.Allocator, "backing", cfg.Backing, "ops", cfg.Workload.Ops, "seed", cfg.Workload.Seed, "hash", cfg.Workload.Hash)
	res, runErr := workload.Run(a, cfg.workload())
	if runErr != nil {
		logger.Error("workload failed", "error", runErr)
	}

	w := ctx.App.Writer
	printResult(w, cfg, res)
	report.Summary(w, a.Stats())

	if ctx.Bool(dumpFlag.Name) {
		a.DumpStat(w)
		a.DumpBlocks(w)
		if h, ok := a.(*memalloc.CH); ok {
			h.DumpCH(w, false)
		}
	}
	if h, ok := a.(*memalloc.CH); ok && ctx.Int(hexFlag.Name) > 0 {
		data := h.Data()
		report.Hex(w, data[:min(ctx.Int(hexFlag.Name), len(data))], 16)
	}
	if ctx.Bool(metricsFlag.Name) {
		if err := writeMetrics(w, strings.ToLower(cfg.Allocator), a); err != nil {
			return err
		}
	}
	return runErr
}

func buildAllocator(cfg runConfig, logger *slog.Logger) (memalloc.Allocator, error) {
	backing, err := memalloc.ParseBacking(cfg.Backing, logger)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Allocator) {
	case "fsa":
		config := memalloc.DefaultFSAConfig(cfg.FSA.BlockSize, cfg.FSA.Blocks)
		config.Backing = backing
		config.Logger = logger
		return memalloc.CustomFSA(config), nil
	case "ch":
		config := memalloc.DefaultCHConfig(cfg.CH.ArenaSize)
		config.Backing = backing
		config.Logger = logger
		config.Color = cfg.Color
		return memalloc.CustomCH(config), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownAllocator, cfg.Allocator)
	}
}

func printResult(w io.Writer, cfg runConfig, res workload.Result) {
	fmt.Fprintf(w, "allocator: %s, backing: %s\n", cfg.Allocator, cfg.Backing)
	fmt.Fprintf(w, "allocs: %s, failed: %s, frees: %s, live: %s\n",
		report.Number(res.Allocs), report.Number(res.Failed), report.Number(res.Frees), report.Number(res.Live))
	fmt.Fprintf(w, "peak: %s payloads, %s bytes\n", report.Number(res.PeakLive), report.Number(res.PeakBytes))
}

// writeMetrics gathers the allocator metrics through a registry and writes
// them in the prometheus text exposition format.
func writeMetrics(w io.Writer, name string, a memalloc.StatsProvider) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(memalloc.NewCollector(name, a)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
