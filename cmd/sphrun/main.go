// Command sphrun drives one Lagrangian SPH/self-gravity simulation to
// completion: it loads the flat key/value configuration, builds the
// initial particle population via the named IC generator, and runs
// the core driver loop until Tend or interruption.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrel-sim/sphgrav/config"
	"github.com/kestrel-sim/sphgrav/driver"
	"github.com/kestrel-sim/sphgrav/ic"
	"github.com/kestrel-sim/sphgrav/simerr"
)

func main() {
	configPath := flag.String("config", "", "Path to a user config.yaml (empty = defaults only)")
	icName := flag.String("ic", "", "Initial-condition generator name (overrides config's ic key)")
	simName := flag.String("sim", "", "Simulation name override (overrides config's sim key)")
	outputDir := flag.String("output-dir", "", "Directory for telemetry CSV output")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	snapshotFormat := flag.String("snapshot-format", "binary", "Snapshot format: binary or column")
	workers := flag.Int("workers", 0, "Worker pool size (0 = GOMAXPROCS)")
	maxSteps := flag.Int("max-steps", 0, "Stop after N sub-steps (0 = unlimited)")
	seed := flag.Int64("seed", 0, "RNG seed for the IC generator (0 = time-based)")
	logStats := flag.Bool("log-stats", false, "Log per-substep diagnostics via slog")
	stepsPerReport := flag.Int("steps-per-report", 0, "Override noutputstep (0 = use config)")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var userYAML []byte
	if *configPath != "" {
		b, err := os.ReadFile(*configPath)
		if err != nil {
			logger.Error("reading config file", "error", err)
			os.Exit(simerr.ExitCode(err))
		}
		userYAML = b
	}

	overrides := map[string]string{}
	if *icName != "" {
		overrides["ic"] = *icName
	}
	if *simName != "" {
		overrides["sim"] = *simName
	}
	if *stepsPerReport > 0 {
		overrides["noutputstep"] = fmt.Sprintf("%d", *stepsPerReport)
	}

	cfg, err := config.Load(userYAML, overrides)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(simerr.ExitCode(err))
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	gen, err := ic.New(cfg.IC, rngSeed)
	if err != nil {
		logger.Error("resolving ic generator", "error", err)
		os.Exit(simerr.ExitCode(err))
	}

	if !*logStats {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	if *snapshotFormat != "binary" && *snapshotFormat != "column" {
		logger.Error("unknown snapshot format", "format", *snapshotFormat)
		os.Exit(1)
	}

	d, err := driver.New(driver.Options{
		Config:         cfg,
		IC:             gen,
		NumWorkers:     *workers,
		OutputDir:      *outputDir,
		SnapshotDir:    *snapshotDir,
		SnapshotFormat: *snapshotFormat,
		Logger:         logger,
		MaxSteps:       *maxSteps,
	})
	if err != nil {
		logger.Error("constructing driver", "error", err)
		os.Exit(simerr.ExitCode(err))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		d.Interrupt()
	}()

	if err := d.Run(); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(simerr.ExitCode(err))
	}
}
