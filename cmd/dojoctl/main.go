package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/logging"
	"github.com/sumeru-26/axelrod-dojo/internal/metrics"
	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
	"github.com/sumeru-26/axelrod-dojo/pkg/dojo"
)

const (
	defaultDBPath    = "dojo.db"
	defaultStoreKind = "sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "evolve":
		return runEvolve(ctx, args[1:])
	case "pso":
		return runSwarm(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "archetypes":
		return runArchetypes(args[1:])
	case "strategies":
		return runStrategies(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// searchFlags are shared by evolve and pso.
type searchFlags struct {
	fs     *flag.FlagSet
	config *string
	values map[string]any

	storeKind    *string
	dbPath       *string
	artifactsDir *string
	logFormat    *string
	logLevel     *string
	metricsAddr  *string
}

func newSearchFlags(name string) *searchFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &searchFlags{
		fs:           fs,
		config:       fs.String("config", "", "yaml run config; flags set explicitly override it"),
		storeKind:    fs.String("store", defaultStoreKind, "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", defaultDBPath, "sqlite database path"),
		artifactsDir: fs.String("out-dir", "", "directory for per-run artifacts and the run index"),
		logFormat:    fs.String("log-format", logging.FormatAuto, "log format: auto|text|json"),
		logLevel:     fs.String("log-level", "info", "log level: debug|info|warn|error"),
		metricsAddr:  fs.String("metrics-addr", "", "serve prometheus metrics on this address while running"),
	}
	f.values = map[string]any{
		"run-id":            fs.String("run-id", "", "run id (generated when empty)"),
		"archetype":         fs.String("archetype", archetype.KindFSM, "strategy archetype: "+strings.Join(archetype.Kinds(), "|")),
		"states":            fs.Int("states", 0, "fsm/hmm states (0 uses the archetype default)"),
		"plays":             fs.Int("plays", 0, "lookup/gambler own plays"),
		"opp-plays":         fs.Int("opp-plays", 0, "lookup/gambler opponent plays"),
		"opp-start-plays":   fs.Int("opp-start-plays", 0, "lookup/gambler opponent opening plays"),
		"hidden":            fs.Int("hidden", 0, "ann hidden layer size"),
		"length":            fs.Int("length", 0, "cycler length"),
		"mu":                fs.Float64("mu", 0, "mutation rate (0 uses the archetype default)"),
		"mutation-distance": fs.Float64("mutation-distance", 0, "ann mutation distance"),
		"game":              fs.String("game", "prisoners_dilemma", "game: prisoners_dilemma|ultimatum"),
		"objective":         fs.String("objective", "score", "objective: score|score_diff|moran"),
		"turns":             fs.Int("turns", 0, "turns per match (0 uses 200)"),
		"noise":             fs.Float64("noise", 0, "probability of flipping each action"),
		"repetitions":       fs.Int("repetitions", 0, "matches per opponent (0 uses the objective default)"),
		"nmoran":            fs.Int("nmoran", 0, "moran population size per side (0 uses 4)"),
		"opponents":         fs.String("opponents", "", "comma-separated opponents, e.g. TitForTat,Random:p=0.3 (empty uses the game default)"),
		"weights":           fs.String("weights", "", "comma-separated opponent weights"),
		"sample-count":      fs.Int("sample-count", 0, "opponents sampled per evaluation (0 uses all)"),
		"workers":           fs.Int("workers", 1, "scoring workers (0 uses all CPUs)"),
		"seed":              fs.Int64("seed", 1, "random seed"),
		"output":            fs.String("output", "", "csv file receiving one row per generation"),
	}
	return f
}

func (f *searchFlags) add(name string, value any) {
	f.values[name] = value
}

// resolve returns the run config after applying flags over the optional
// config file. Without a config file every flag, set or not, applies.
func (f *searchFlags) resolve() (runConfig, error) {
	var cfg runConfig
	set := map[string]bool{}
	if *f.config == "" {
		f.fs.VisitAll(func(fl *flag.Flag) { set[fl.Name] = true })
	} else {
		loaded, err := loadRunConfig(*f.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
		f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	}

	deref := make(map[string]any, len(f.values))
	for name, ptr := range f.values {
		switch v := ptr.(type) {
		case *string:
			deref[name] = *v
		case *int:
			deref[name] = *v
		case *int64:
			deref[name] = *v
		case *float64:
			deref[name] = *v
		}
	}
	if err := overrideFromFlags(&cfg, set, deref); err != nil {
		return cfg, err
	}
	if cfg.Archetype == "" {
		return cfg, errors.New("archetype is required")
	}
	return cfg, nil
}

// client opens the API client with logging and, when requested, a metrics
// endpoint. The returned cleanup stops both.
func (f *searchFlags) client(ctx context.Context) (*dojo.Client, func(), error) {
	logger, err := logging.New(os.Stderr, *f.logFormat, *f.logLevel)
	if err != nil {
		return nil, nil, err
	}
	var rec *metrics.Recorder
	var srv *http.Server
	if *f.metricsAddr != "" {
		rec = metrics.NewRecorder()
		ln, err := net.Listen("tcp", *f.metricsAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("listen metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", ln.Addr().String())
	}

	client, err := dojo.New(dojo.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		Logger:       logger,
		Metrics:      rec,
	})
	if err != nil {
		shutdownMetrics(ctx, srv, logger)
		return nil, nil, err
	}
	return client, func() {
		_ = client.Close()
		shutdownMetrics(ctx, srv, logger)
	}, nil
}

func shutdownMetrics(ctx context.Context, srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}
}

func runEvolve(ctx context.Context, args []string) error {
	f := newSearchFlags("evolve")
	f.add("pop", f.fs.Int("pop", 40, "population size"))
	f.add("bottleneck", f.fs.Int("bottleneck", 0, "survivors kept each generation (0 derives it from the population)"))
	f.add("gens", f.fs.Int("gens", 500, "generations to run"))
	f.add("init", f.fs.String("init", "", "seed the population from the best rows of an earlier output file"))
	if err := f.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := f.resolve()
	if err != nil {
		return err
	}
	settings, err := cfg.settings()
	if err != nil {
		return err
	}

	client, cleanup, err := f.client(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := client.Evolve(ctx, dojo.EvolveRequest{
		RunSettings: settings,
		Population:  cfg.Population,
		Bottleneck:  cfg.Bottleneck,
		Generations: cfg.Generations,
		InitPath:    cfg.Init,
	})
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func runSwarm(ctx context.Context, args []string) error {
	f := newSearchFlags("pso")
	f.add("particles", f.fs.Int("particles", 0, "swarm size (0 uses the default)"))
	f.add("iterations", f.fs.Int("iterations", 0, "swarm iterations (0 uses the default)"))
	f.add("omega", f.fs.Float64("omega", 0, "inertia weight (0 uses the default)"))
	f.add("phip", f.fs.Float64("phip", 0, "personal best coefficient (0 uses the default)"))
	f.add("phig", f.fs.Float64("phig", 0, "global best coefficient (0 uses the default)"))
	if err := f.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := f.resolve()
	if err != nil {
		return err
	}
	settings, err := cfg.settings()
	if err != nil {
		return err
	}

	client, cleanup, err := f.client(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := client.Swarm(ctx, dojo.SwarmRequest{
		RunSettings: settings,
		Particles:   cfg.Particles,
		Iterations:  cfg.Iterations,
		Omega:       cfg.Omega,
		PhiP:        cfg.PhiP,
		PhiG:        cfg.PhiG,
	})
	if err != nil {
		return err
	}
	printSummary(summary)
	if len(summary.Vector) > 0 {
		fmt.Printf("best_vector=%s\n", formatVector(summary.Vector))
	}
	return nil
}

func printSummary(s dojo.RunSummary) {
	fmt.Printf("run_id=%s rows=%d evaluations=%s best_score=%.6f\n", s.RunID, len(s.Rows), humanize.Comma(int64(s.Evaluations)), s.BestScore)
	fmt.Printf("best_genome=%s\n", s.BestGenome)
	if s.ArtifactsDir != "" {
		fmt.Printf("artifacts=%s\n", s.ArtifactsDir)
	}
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 6, 64)
	}
	return strings.Join(parts, ",")
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	k := fs.Int("k", 1, "number of best rows to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return errors.New("best requires at least one output file")
	}

	client, err := dojo.New(dojo.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rows, err := client.Best(ctx, paths, *k)
	if err != nil {
		return err
	}
	for i, ranked := range rows {
		fmt.Printf("rank=%d path=%s generation=%d score=%.6f genome=%s\n", i+1, ranked.Path, ranked.Row.Generation, ranked.Row.Best, ranked.Row.Genome)
	}
	return nil
}

func openStoreClient(storeKind, dbPath string) (*dojo.Client, error) {
	return dojo.New(dojo.Options{StoreKind: storeKind, DBPath: dbPath})
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	storeKind := fs.String("store", defaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openStoreClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, dojo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s mode=%s archetype=%s objective=%s population=%d generations=%d seed=%d best_score=%.6f started_at=%s status=%s",
			r.ID, r.Mode, r.Archetype, r.Objective, r.Population, r.Generations, r.Seed, r.BestScore, r.StartedAt.Format(time.RFC3339), r.Status)
		if r.Status == model.RunFailed {
			fmt.Printf(" failed_at=%d error=%q", r.FailedAt, r.Error)
		}
		fmt.Println()
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show top genomes for the most recent run")
	limit := fs.Int("limit", 5, "max top genomes to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	storeKind := fs.String("store", defaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("top requires --run-id or --latest")
	}

	client, err := openStoreClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopGenomes(ctx, dojo.TopGenomesRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top genomes")
		return nil
	}
	if *jsonOut {
		return writeJSON(top)
	}
	for _, g := range top {
		fmt.Printf("rank=%d archetype=%s score=%.6f genome=%s\n", g.Rank, g.Archetype, g.Score, g.Genome)
	}
	return nil
}

func runArchetypes(args []string) error {
	fs := flag.NewFlagSet("archetypes", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, kind := range archetype.Kinds() {
		fmt.Println(kind)
	}
	return nil
}

func runStrategies(args []string) error {
	fs := flag.NewFlagSet("strategies", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range strategy.Names() {
		fmt.Println(name)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: dojoctl <evolve|pso|best|runs|top|archetypes|strategies> [flags]", msg)
}
