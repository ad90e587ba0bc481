package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/limaJavier/roomallocation/internal/config"
	"github.com/limaJavier/roomallocation/internal/export"
	"github.com/limaJavier/roomallocation/internal/logger"
	"github.com/limaJavier/roomallocation/internal/metrics"
	"github.com/limaJavier/roomallocation/internal/store/sqlite"
	"github.com/limaJavier/roomallocation/pkg/allocation"
	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/limaJavier/roomallocation/pkg/sat"
)

// Exit codes
const (
	exitPlaced    = 10 // Every demand placed, allocation validated or instance feasible
	exitConflicts = 15 // Double bookings found
	exitUnplaced  = 20 // Some demand left unplaced or instance infeasible
)

type options struct {
	file        string
	config      string
	out         string
	csv         string
	validate    string
	feasibility string
	db          bool
	semester    string
	metrics     string
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	switch {
	case opts.validate != "":
		code, err = validate(log, opts)
	case opts.feasibility != "":
		code, err = feasibility(ctx, log, cfg, opts)
	default:
		code, err = run(ctx, log, cfg, opts)
	}
	if err != nil {
		log.Fatal("cannot complete command", zap.Error(err))
	}

	stop()
	log.Sync()
	os.Exit(code)
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Path to the snapshot file (rooms, professors, demands and pinned records)")
	flag.StringVar(&opts.config, "config", "", "Path to the configuration file; environment variables prefixed with ROOMALLOC_ override it")
	flag.StringVar(&opts.out, "out", "", "Path to the file where the JSON output will be written; if empty, it'll be written into the Standard Output")
	flag.StringVar(&opts.csv, "csv", "", "Path to a CSV file receiving the allocation records; unplaced demands are written next to it")
	flag.StringVar(&opts.validate, "validate", "", "Path to a JSON list of allocation records to audit for double bookings instead of running an allocation")
	flag.StringVar(&opts.feasibility, "feasibility", "", fmt.Sprintf("Check whether every demand can be placed at once with the given SAT solver (%v)", strings.Join(sat.Solvers(), ", ")))
	flag.BoolVar(&opts.db, "db", false, "Load pinned records from, and persist the allocation to, the configured store")
	flag.StringVar(&opts.semester, "semester", "", "Semester the allocation belongs to; overrides the configuration and the snapshot")
	flag.StringVar(&opts.metrics, "metrics", "", "Path to a Prometheus textfile receiving the run metrics")
	flag.Parse()

	opts.feasibility = strings.ToLower(opts.feasibility)
	return opts
}

func run(ctx context.Context, log *zap.Logger, cfg *config.Config, opts options) (int, error) {
	input, store, err := loadInput(ctx, log, cfg, opts)
	if err != nil {
		return 0, err
	}
	if store != nil {
		defer store.Close()
	}

	weights, err := cfg.BuildWeights()
	if err != nil {
		return 0, fmt.Errorf("invalid weights: %w", err)
	}

	collector := metrics.New()
	engine := allocation.NewEngine(
		allocation.WithWeights(weights),
		allocation.WithLogger(log),
		allocation.WithObserver(collector),
		allocation.WithBudget(cfg.Run.Budget),
		allocation.WithContentionAnalysis(cfg.Run.Contention),
	)

	report, err := engine.Run(ctx, input)
	if err != nil && !errors.Is(err, allocation.ErrRunAborted) {
		return 0, fmt.Errorf("an error occurred during allocation: %w", err)
	}

	if err := writeJson(opts.out, report); err != nil {
		return 0, err
	}

	if opts.csv != "" {
		unplacedPath, err := export.WriteFiles(opts.csv, report, input)
		if err != nil {
			return 0, fmt.Errorf("cannot export allocation: %w", err)
		}
		log.Info("exported allocation", zap.String("records", opts.csv), zap.String("unplaced", unplacedPath))
	}

	if opts.metrics != "" {
		if err := collector.WriteTextfile(opts.metrics); err != nil {
			return 0, fmt.Errorf("cannot write metrics: %w", err)
		}
	}

	if len(report.Conflicts) > 0 {
		return exitConflicts, nil
	}
	if err := persist(ctx, log, store, input.Semester, report); err != nil {
		return 0, err
	}
	return lo.Ternary(report.UnplacedCount() > 0, exitUnplaced, exitPlaced), nil
}

func validate(log *zap.Logger, opts options) (int, error) {
	records, err := model.RecordsFromJson(opts.validate)
	if err != nil {
		return 0, fmt.Errorf("cannot parse records file: %w", err)
	}

	conflicts := allocation.ValidateAllocations(records)
	if err := writeJson(opts.out, conflicts); err != nil {
		return 0, err
	}

	if len(conflicts) > 0 {
		log.Warn("allocation has conflicts", zap.Int("conflicts", len(conflicts)))
		return exitConflicts, nil
	}
	return exitPlaced, nil
}

func feasibility(ctx context.Context, log *zap.Logger, cfg *config.Config, opts options) (int, error) {
	input, store, err := loadInput(ctx, log, cfg, opts)
	if err != nil {
		return 0, err
	}
	if store != nil {
		store.Close()
	}

	solver, err := sat.NewSolver(opts.feasibility, cfg.Solvers[opts.feasibility])
	if err != nil {
		return 0, fmt.Errorf("invalid solver: %w", err)
	}

	result, err := allocation.CheckFeasibility(ctx, input, solver)
	if err != nil {
		return 0, fmt.Errorf("cannot check feasibility: %w", err)
	}
	if err := writeJson(opts.out, result); err != nil {
		return 0, err
	}

	log.Info("checked feasibility",
		zap.Bool("feasible", result.Feasible),
		zap.Uint64("variables", result.Variables),
		zap.Int("clauses", result.Clauses),
	)
	return lo.Ternary(result.Feasible, exitPlaced, exitUnplaced), nil
}

// loadInput reads the snapshot and, when the store is enabled, merges the stored pinned records into it. The
// returned store is nil unless enabled, and is left for the caller to close.
func loadInput(ctx context.Context, log *zap.Logger, cfg *config.Config, opts options) (allocation.Input, *sqlite.Store, error) {
	if opts.file == "" {
		return allocation.Input{}, nil, errors.New("an input file must be specified")
	}

	snapshot, err := model.SnapshotFromJson(opts.file)
	if err != nil {
		return allocation.Input{}, nil, fmt.Errorf("cannot parse input file: %w", err)
	}
	catalog, err := cfg.BuildCatalog()
	if err != nil {
		return allocation.Input{}, nil, fmt.Errorf("invalid catalog: %w", err)
	}

	input := allocation.InputFromSnapshot(snapshot, catalog)
	input.Semester = firstNonEmpty(opts.semester, cfg.Semester, snapshot.Semester)

	if !opts.db {
		return input, nil, nil
	}
	if input.Semester == "" {
		return allocation.Input{}, nil, errors.New("a semester is required to use the store")
	}

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return allocation.Input{}, nil, fmt.Errorf("cannot open store %v: %w", cfg.Store.Path, err)
	}
	stored, err := store.Pinned(ctx, input.Semester)
	if err != nil {
		store.Close()
		return allocation.Input{}, nil, fmt.Errorf("cannot load pinned records: %w", err)
	}

	// Pinned records of the snapshot take precedence over stored ones for the same demand
	input.Pinned = lo.UniqBy(append(input.Pinned, stored...), func(record model.AllocationRecord) uint64 { return record.Demand })
	log.Info("loaded pinned records", zap.Int("stored", len(stored)), zap.Int("pinned", len(input.Pinned)))
	return input, store, nil
}

// Aborted runs and runs without a store are not persisted
func persist(ctx context.Context, log *zap.Logger, store *sqlite.Store, semester string, report *allocation.Report) error {
	if store == nil || report.Aborted {
		return nil
	}
	written, err := store.Replace(ctx, semester, report.Records)
	if err != nil {
		return fmt.Errorf("cannot persist allocation: %w", err)
	}
	log.Info("persisted allocation", zap.Int("records", written), zap.String("semester", semester))
	return nil
}

func writeJson(path string, value any) error {
	bytes, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("an error occurred while building output json: %w", err)
	}

	// Verify outfile is empty, if so then write the results to the Standard Output
	if path == "" {
		fmt.Println(string(bytes))
		return nil
	}
	if err := os.WriteFile(path, bytes, 0666); err != nil {
		return fmt.Errorf("an error occurred while writing to the output file: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	value, _ := lo.Find(values, func(value string) bool { return value != "" })
	return value
}
