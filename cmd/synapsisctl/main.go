package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"synapsis/internal/storage"
	synapsisapi "synapsis/pkg/synapsis"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "connectivity":
		return runConnectivity(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "synapsis.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := synapsisapi.NewClient(ctx, synapsisapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "synapsis.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := synapsisapi.NewClient(ctx, synapsisapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "synapsis.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	configPath := fs.String("config", "", "run config file (yaml or json)")
	cells := fs.Int("cells", 0, "number of cells to seed")
	steps := fs.Int64("steps", 0, "number of simulation steps")
	seed := fs.Int64("seed", 0, "random seed")
	workers := fs.Int("workers", 0, "behavior evaluation workers")
	spread := fs.Float64("spread", 0, "cell placement half-extent")
	growthSpeed := fs.Float64("growth-speed", 0, "per-step neurite elongation")
	oneShot := fs.Bool("one-shot", false, "detectors fire at most once per segment")
	isolatedTarget := fs.String("isolated-target", "", "target column for isolated-cell rows (default: repeat source uid)")
	outPath := fs.String("out", "", "connectivity csv output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := synapsisapi.RunRequest{}
	if *configPath != "" {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	}

	// Flags set on the command line win over the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cells":
			req.Cells = *cells
		case "steps":
			req.Steps = *steps
		case "seed":
			req.Seed = *seed
		case "workers":
			req.Workers = *workers
		case "spread":
			req.Spread = *spread
		case "growth-speed":
			req.GrowthSpeed = *growthSpeed
		case "one-shot":
			req.OneShot = *oneShot
		case "isolated-target":
			req.IsolatedTarget = *isolatedTarget
		case "out":
			req.OutPath = *outPath
		}
	})

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := synapsisapi.NewClient(ctx, synapsisapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, runErr := client.Run(ctx, req)
	if summary.RunID != "" {
		fmt.Printf("run=%s steps=%d cells=%d segments=%d edges=%d isolated=%d csv=%s\n",
			summary.RunID, summary.Steps, summary.Cells, summary.Segments,
			summary.Edges, summary.Isolated, summary.CSVPath)
	}
	return runErr
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "synapsis.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := synapsisapi.NewClient(ctx, synapsisapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run=%s created=%s seed=%d steps=%d cells=%d edges=%d\n",
			r.ID, r.CreatedAtUTC, r.Seed, r.Steps, r.CellCount, r.EdgeCount)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "synapsis.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	runID := fs.String("run-id", "", "run id")
	outPath := fs.String("out", "", "connectivity csv output path")
	isolatedTarget := fs.String("isolated-target", "", "target column for isolated-cell rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("export requires -run-id")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := synapsisapi.NewClient(ctx, synapsisapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	return client.Export(ctx, synapsisapi.ExportRequest{
		RunID:          *runID,
		OutPath:        *outPath,
		IsolatedTarget: *isolatedTarget,
	})
}

func runConnectivity(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("connectivity", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "synapsis.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: trace|debug|info|warn|error")
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("connectivity requires -run-id")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	client, err := synapsisapi.NewClient(ctx, synapsisapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snap, err := client.Connectivity(ctx, *runID)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s step=%d edges=%d isolated=%d\n", snap.RunID, snap.Step, len(snap.Edges), len(snap.Isolated))
	for _, edge := range snap.Edges {
		fmt.Printf("%d -> %d type=%d count=%d\n", edge.Source, edge.Target, edge.CellType, edge.Count)
	}
	for _, cell := range snap.Isolated {
		fmt.Printf("%d isolated type=%d\n", cell.UID, cell.CellType)
	}
	return nil
}

func newLogger(level string) (zerolog.Logger, error) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).With().Timestamp().Logger().Level(parsed), nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: synapsisctl <init|reset|run|runs|export|connectivity> [flags]", msg)
}
