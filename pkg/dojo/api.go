package dojo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/evo"
	"github.com/sumeru-26/axelrod-dojo/internal/logging"
	"github.com/sumeru-26/axelrod-dojo/internal/metrics"
	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/output"
	"github.com/sumeru-26/axelrod-dojo/internal/pso"
	"github.com/sumeru-26/axelrod-dojo/internal/scoring"
	"github.com/sumeru-26/axelrod-dojo/internal/stats"
	"github.com/sumeru-26/axelrod-dojo/internal/storage"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const (
	ModeEvolve = "evolve"
	ModeSwarm  = "pso"

	defaultPopulation  = 40
	defaultGenerations = 500
	defaultTopGenomes  = 10
	defaultRunsLimit   = 20
)

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir receives per-run JSON/CSV artifacts and the run index.
	// Empty disables artifacts.
	ArtifactsDir string
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

type Client struct {
	store        storage.Store
	initialized  bool
	artifactsDir string
	logger       *slog.Logger
	metrics      *metrics.Recorder
	now          func() time.Time
}

// RunSettings are shared by both search modes.
type RunSettings struct {
	RunID     string
	Archetype string
	Shape     archetype.Options
	Objective objective.Config
	// Opponents defaults to the game's standard pool.
	Opponents []strategy.PlayerInfo
	Scoring   scoring.Options
	Workers   int
	Seed      int64
	// OutputPath, when set, receives one CSV row per generation.
	OutputPath string
}

type EvolveRequest struct {
	RunSettings
	Population  int
	Bottleneck  int
	Generations int
	// InitPath seeds the population from the best rows of an earlier run
	// file.
	InitPath string
}

type SwarmRequest struct {
	RunSettings
	Particles  int
	Iterations int
	Omega      float64
	PhiP       float64
	PhiG       float64
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Rows         []model.GenerationRow
	BestScore    float64
	BestGenome   string
	// Vector is the best position found by a swarm run.
	Vector      []float64
	Evaluations int
}

type RunsRequest struct {
	Limit int
}

type TopGenomesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type GenerationsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:        store,
		artifactsDir: opts.ArtifactsDir,
		logger:       logging.OrDiscard(opts.Logger),
		metrics:      opts.Metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Evolve(ctx context.Context, req EvolveRequest) (RunSummary, error) {
	if req.Population <= 0 {
		req.Population = defaultPopulation
	}
	if req.Generations <= 0 {
		req.Generations = defaultGenerations
	}
	run, err := c.prepare(ctx, req.RunSettings)
	if err != nil {
		return RunSummary{}, err
	}

	var initial []archetype.Params
	if req.InitPath != "" {
		initial, err = output.LoadTop(req.InitPath, req.Population, run.factory)
		if err != nil {
			return RunSummary{}, fmt.Errorf("load initial population: %w", err)
		}
		c.logger.Info("seeded population", "path", req.InitPath, "genomes", len(initial))
	}

	sink, err := c.openSink(req.RunSettings, run.id)
	if err != nil {
		return RunSummary{}, err
	}
	pop, err := evo.NewPopulation(evo.Config{
		Factory:    run.factory,
		Size:       req.Population,
		Bottleneck: req.Bottleneck,
		Objective:  run.objective,
		Opponents:  run.opponents,
		Scoring:    req.Scoring,
		Workers:    req.Workers,
		Seed:       req.Seed,
		Initial:    initial,
		Sink:       sink,
		Logger:     c.logger,
		Metrics:    c.metrics,
		RunID:      run.id,
	})
	if err != nil {
		return RunSummary{}, errors.Join(err, sink.Close())
	}

	record := run.record(ModeEvolve, req.Seed, c.now())
	record.Population = req.Population
	record.Bottleneck = pop.Bottleneck()
	record.Generations = req.Generations
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, errors.Join(err, sink.Close())
	}

	res, err := pop.Run(ctx, req.Generations)
	if err != nil {
		var best string
		if res.Best.Params != nil {
			best = res.Best.Params.String()
		}
		failedAt := min(res.Generations+1, req.Generations)
		return RunSummary{}, c.fail(ctx, record, err, failedAt, res.Best.Score, best)
	}

	top := make([]model.TopGenomeRecord, 0, defaultTopGenomes)
	for i, scored := range res.Ranking {
		if i == defaultTopGenomes {
			break
		}
		top = append(top, model.TopGenomeRecord{
			VersionedRecord: storage.CurrentVersion(),
			Rank:            i + 1,
			Archetype:       run.factory.Kind(),
			Score:           scored.Score,
			Genome:          scored.Params.String(),
		})
	}
	summary := RunSummary{
		RunID:       run.id,
		Rows:        res.Rows,
		BestScore:   res.Best.Score,
		BestGenome:  res.Best.Params.String(),
		Evaluations: res.Evaluations,
	}
	return c.finish(ctx, record, run, summary, top)
}

func (c *Client) Swarm(ctx context.Context, req SwarmRequest) (RunSummary, error) {
	run, err := c.prepare(ctx, req.RunSettings)
	if err != nil {
		return RunSummary{}, err
	}
	sink, err := c.openSink(req.RunSettings, run.id)
	if err != nil {
		return RunSummary{}, err
	}
	swarm, err := pso.New(pso.Config{
		Factory:    run.factory,
		Objective:  run.objective,
		Opponents:  run.opponents,
		Scoring:    req.Scoring,
		Particles:  req.Particles,
		Iterations: req.Iterations,
		Omega:      req.Omega,
		PhiP:       req.PhiP,
		PhiG:       req.PhiG,
		Workers:    req.Workers,
		Seed:       req.Seed,
		Sink:       sink,
		Logger:     c.logger,
		Metrics:    c.metrics,
		RunID:      run.id,
	})
	if err != nil {
		return RunSummary{}, errors.Join(err, sink.Close())
	}

	record := run.record(ModeSwarm, req.Seed, c.now())
	record.Population = req.Particles
	record.Generations = req.Iterations
	if record.Population == 0 {
		record.Population = pso.DefaultParticles
	}
	if record.Generations == 0 {
		record.Generations = pso.DefaultIterations
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, errors.Join(err, sink.Close())
	}

	res, err := swarm.Run(ctx)
	if err != nil {
		var best string
		if res.Params != nil {
			best = res.Params.String()
		}
		return RunSummary{}, c.fail(ctx, record, err, res.Iteration, -res.Value, best)
	}
	summary := RunSummary{
		RunID:       run.id,
		Rows:        res.Rows,
		BestScore:   -res.Value,
		Vector:      res.Vector,
		Evaluations: res.Evaluations,
	}
	var top []model.TopGenomeRecord
	if res.Params != nil {
		summary.BestGenome = res.Params.String()
		top = append(top, model.TopGenomeRecord{
			VersionedRecord: storage.CurrentVersion(),
			Rank:            1,
			Archetype:       run.factory.Kind(),
			Score:           summary.BestScore,
			Genome:          summary.BestGenome,
		})
	}
	return c.finish(ctx, record, run, summary, top)
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunRecord, 0, min(req.Limit, len(runs)))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		out = append(out, runs[i])
	}
	return out, nil
}

func (c *Client) TopGenomes(ctx context.Context, req TopGenomesRequest) ([]model.TopGenomeRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "top genomes")
	if err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopGenomeRecord, len(top))
	copy(out, top)
	return out, nil
}

func (c *Client) Generations(ctx context.Context, req GenerationsRequest) ([]model.GenerationRow, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "generations")
	if err != nil {
		return nil, err
	}
	rows, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generations not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return rows, nil
}

// Best returns the k best report rows across run files.
func (c *Client) Best(_ context.Context, paths []string, k int) ([]output.RankedRow, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one run file is required")
	}
	return output.BestRows(paths, k)
}

type preparedRun struct {
	id        string
	factory   archetype.Factory
	objective objective.Objective
	opponents []strategy.PlayerInfo
	settings  RunSettings
}

func (r preparedRun) record(mode string, seed int64, started time.Time) model.RunRecord {
	names := make([]string, len(r.opponents))
	for i, info := range r.opponents {
		names[i] = info.String()
	}
	cfg := r.objective.Config()
	return model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              r.id,
		Mode:            mode,
		Archetype:       r.factory.Kind(),
		Objective:       cfg.Name,
		Game:            cfg.Game.Name(),
		Opponents:       names,
		Seed:            seed,
		StartedAt:       started,
		Status:          model.RunRunning,
	}
}

func (c *Client) prepare(ctx context.Context, s RunSettings) (preparedRun, error) {
	if s.Archetype == "" {
		return preparedRun{}, errors.New("archetype is required")
	}
	factory, err := archetype.NewFactory(s.Archetype, s.Shape)
	if err != nil {
		return preparedRun{}, err
	}
	obj, err := objective.Prepare(s.Objective)
	if err != nil {
		return preparedRun{}, err
	}
	opponents := s.Opponents
	if len(opponents) == 0 {
		opponents = strategy.DefaultOpponents(obj.Config().Game.Name())
	}
	if err := c.ensureStore(ctx); err != nil {
		return preparedRun{}, err
	}
	id := s.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return preparedRun{id: id, factory: factory, objective: obj, opponents: opponents, settings: s}, nil
}

func (c *Client) openSink(s RunSettings, runID string) (output.Sink, error) {
	sinks := output.MultiSink{output.NewStoreSink(c.store, runID)}
	if s.OutputPath != "" {
		csvSink, err := output.OpenCSV(s.OutputPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csvSink)
	}
	return sinks, nil
}

// fail stores the final record of a run that stopped at step with runErr.
// The record is written even when ctx is already cancelled.
func (c *Client) fail(ctx context.Context, record model.RunRecord, runErr error, step int, bestScore float64, bestGenome string) error {
	record.CompletedAt = c.now()
	record.Status = model.RunFailed
	record.FailedAt = step
	record.Error = runErr.Error()
	if bestGenome != "" {
		record.BestScore = bestScore
		record.BestGenome = bestGenome
	}
	c.logger.Error("run failed", "run_id", record.ID, "mode", record.Mode, "step", step, "error", runErr)
	if err := c.store.SaveRun(context.WithoutCancel(ctx), record); err != nil {
		return errors.Join(runErr, fmt.Errorf("save failed run: %w", err))
	}
	return runErr
}

func (c *Client) finish(ctx context.Context, record model.RunRecord, run preparedRun, summary RunSummary, top []model.TopGenomeRecord) (RunSummary, error) {
	record.CompletedAt = c.now()
	record.Status = model.RunCompleted
	record.BestScore = summary.BestScore
	record.BestGenome = summary.BestGenome
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveTopGenomes(ctx, record.ID, top); err != nil {
		return RunSummary{}, err
	}

	if c.artifactsDir != "" {
		cfg := run.objective.Config()
		topArtifacts := make([]stats.TopGenome, len(top))
		for i, t := range top {
			topArtifacts[i] = stats.TopGenome{Rank: t.Rank, Score: t.Score, Genome: t.Genome}
		}
		runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
			Config: stats.RunConfig{
				RunID:       record.ID,
				Mode:        record.Mode,
				Archetype:   record.Archetype,
				Objective:   cfg.Name,
				Game:        record.Game,
				Turns:       cfg.Turns,
				Noise:       cfg.Noise,
				Repetitions: cfg.Repetitions,
				NMoran:      cfg.NMoran,
				Opponents:   run.opponents,
				Weights:     run.settings.Scoring.Weights,
				SampleCount: run.settings.Scoring.SampleCount,
				Population:  record.Population,
				Bottleneck:  record.Bottleneck,
				Generations: record.Generations,
				Seed:        record.Seed,
				Workers:     run.settings.Workers,
			},
			Rows:           summary.Rows,
			FinalBestScore: summary.BestScore,
			TopGenomes:     topArtifacts,
		})
		if err != nil {
			return RunSummary{}, err
		}
		if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
			RunID:          record.ID,
			Mode:           record.Mode,
			Archetype:      record.Archetype,
			Objective:      record.Objective,
			Population:     record.Population,
			Generations:    record.Generations,
			Seed:           record.Seed,
			FinalBestScore: summary.BestScore,
			CreatedAtUTC:   record.StartedAt.Format(time.RFC3339Nano),
		}); err != nil {
			return RunSummary{}, err
		}
		summary.ArtifactsDir = filepath.Clean(runDir)
	}

	c.logger.Info("run complete", "run_id", record.ID, "mode", record.Mode, "best", summary.BestScore, "genome", summary.BestGenome)
	return summary, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[len(runs)-1].ID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}
