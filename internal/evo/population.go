package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/logging"
	"github.com/sumeru-26/axelrod-dojo/internal/metrics"
	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/output"
	"github.com/sumeru-26/axelrod-dojo/internal/scoring"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

type Config struct {
	Factory archetype.Factory
	Size    int
	// Bottleneck is the number of genomes kept each generation. Zero means
	// Size/4, at least one.
	Bottleneck int
	Objective  objective.Objective
	Opponents  []strategy.PlayerInfo
	Scoring    scoring.Options
	// Workers bounds concurrent scoring. Zero means one per CPU.
	Workers int
	Seed    int64
	// Initial seeds the population; it is padded with random genomes or
	// truncated to Size.
	Initial []archetype.Params
	Sink    output.Sink
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	RunID   string
}

type Result struct {
	Generations int
	Rows        []model.GenerationRow
	// Ranking is the scored population of the last generation.
	Ranking []ScoredGenome
	// Best is the highest scoring genome seen in any generation.
	Best        ScoredGenome
	Evaluations int
}

type Population struct {
	cfg        Config
	rng        *rand.Rand
	eval       Evaluator
	logger     *slog.Logger
	members    []archetype.Params
	generation int
	ranked     []ScoredGenome
	best       ScoredGenome
	hasBest    bool
	rows       []model.GenerationRow
	evals      int
	closed     bool
}

// NewPopulation validates cfg and builds generation zero. No match is
// played here.
func NewPopulation(cfg Config) (*Population, error) {
	if cfg.Factory == nil {
		return nil, errors.New("archetype factory is required")
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Bottleneck == 0 {
		cfg.Bottleneck = cfg.Size / 4
		if cfg.Bottleneck < 1 {
			cfg.Bottleneck = 1
		}
	}
	if cfg.Bottleneck < 0 || cfg.Bottleneck > cfg.Size {
		return nil, fmt.Errorf("bottleneck must be in [1, population size], got %d", cfg.Bottleneck)
	}
	if cfg.Objective.Name() == "" {
		return nil, errors.New("objective is required")
	}
	if err := scoring.Validate(cfg.Factory, cfg.Objective, cfg.Opponents, cfg.Scoring); err != nil {
		return nil, err
	}
	for i, p := range cfg.Initial {
		if p.Kind() != cfg.Factory.Kind() {
			return nil, fmt.Errorf("%w: initial genome %d is %s, population is %s", archetype.ErrIncompatible, i, p.Kind(), cfg.Factory.Kind())
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	members := make([]archetype.Params, 0, cfg.Size)
	for _, p := range cfg.Initial {
		if len(members) == cfg.Size {
			break
		}
		members = append(members, p.Copy())
	}
	for len(members) < cfg.Size {
		members = append(members, cfg.Factory.Random(rng))
	}

	return &Population{
		cfg: cfg,
		rng: rng,
		eval: Evaluator{
			Objective: cfg.Objective,
			Opponents: cfg.Opponents,
			Scoring:   cfg.Scoring,
			Workers:   cfg.Workers,
		},
		logger:  logging.OrDiscard(cfg.Logger).With("run_id", cfg.RunID, "archetype", cfg.Factory.Kind()),
		members: members,
	}, nil
}

func (p *Population) Generation() int { return p.generation }
func (p *Population) Bottleneck() int { return p.cfg.Bottleneck }

// Members returns copies of the current genomes.
func (p *Population) Members() []archetype.Params {
	out := make([]archetype.Params, len(p.members))
	for i, m := range p.members {
		out[i] = m.Copy()
	}
	return out
}

// Ranking returns the scored population of the latest generation.
func (p *Population) Ranking() []ScoredGenome {
	return append([]ScoredGenome(nil), p.ranked...)
}

// Best returns the best genome seen so far.
func (p *Population) Best() (ScoredGenome, bool) {
	return p.best, p.hasBest
}

// Evolve scores the current population, reports one row, then replaces the
// population with the next generation.
func (p *Population) Evolve(ctx context.Context) (model.GenerationRow, error) {
	if p.closed {
		return model.GenerationRow{}, errors.New("population is closed")
	}
	generation := p.generation + 1
	started := time.Now()
	p.logger.Debug("scoring generation", "generation", generation, "size", len(p.members))

	scores, err := p.eval.ScoreAll(ctx, p.rng, p.members)
	if err != nil {
		return model.GenerationRow{}, fmt.Errorf("generation %d: %w", generation, err)
	}
	p.evals += len(scores)
	ranked, err := Rank(p.members, scores)
	if err != nil {
		return model.GenerationRow{}, fmt.Errorf("generation %d: %w", generation, err)
	}

	row := reportRow(generation, scores, ranked[0])
	if p.cfg.Sink != nil {
		if err := p.cfg.Sink.WriteRow(ctx, row); err != nil {
			return model.GenerationRow{}, fmt.Errorf("generation %d: %w", generation, err)
		}
	}
	p.rows = append(p.rows, row)
	p.ranked = ranked
	if !p.hasBest || ranked[0].Score > p.best.Score {
		p.best = ScoredGenome{Params: ranked[0].Params.Copy(), Score: ranked[0].Score, Index: ranked[0].Index}
		p.hasBest = true
	}

	elite, err := Elite(ranked, p.cfg.Bottleneck)
	if err != nil {
		return model.GenerationRow{}, fmt.Errorf("generation %d: %w", generation, err)
	}
	next, err := NextGeneration(p.rng, p.cfg.Factory, elite, p.cfg.Bottleneck/2, p.cfg.Size)
	if err != nil {
		return model.GenerationRow{}, fmt.Errorf("generation %d: %w", generation, err)
	}
	p.members = next
	p.generation = generation

	elapsed := time.Since(started)
	p.cfg.Metrics.ObserveGeneration(p.cfg.RunID, p.cfg.Factory.Kind(), row.Best, row.Mean, row.StdDev, len(scores), elapsed.Seconds())
	p.logger.Info("generation complete",
		"generation", generation,
		"best", row.Best,
		"mean", row.Mean,
		"stddev", row.StdDev,
		"genome", row.Genome,
		"evaluations", humanize.Comma(int64(p.evals)),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)
	return row, nil
}

// Run evolves the population for the given number of generations and closes
// the sink. On failure, rows already written stay in the sink.
func (p *Population) Run(ctx context.Context, generations int) (Result, error) {
	if generations <= 0 {
		return Result{}, fmt.Errorf("generations must be > 0")
	}
	for i := 0; i < generations; i++ {
		if _, err := p.Evolve(ctx); err != nil {
			return p.result(), errors.Join(err, p.Close())
		}
	}
	return p.result(), p.Close()
}

// Close closes the sink once.
func (p *Population) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cfg.Sink == nil {
		return nil
	}
	return p.cfg.Sink.Close()
}

func (p *Population) result() Result {
	return Result{
		Generations: p.generation,
		Rows:        append([]model.GenerationRow(nil), p.rows...),
		Ranking:     p.Ranking(),
		Best:        p.best,
		Evaluations: p.evals,
	}
}

func reportRow(generation int, scores []float64, top ScoredGenome) model.GenerationRow {
	mean, std := stat.PopMeanStdDev(scores, nil)
	row := model.GenerationRow{
		Generation: generation,
		Mean:       mean,
		StdDev:     std,
		Best:       top.Score,
		Genome:     top.Params.String(),
	}
	if c, ok := top.Params.(archetype.Columnar); ok {
		row.Extra = c.Columns()
	}
	return row
}
