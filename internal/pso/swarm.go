package pso

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/evo"
	"github.com/sumeru-26/axelrod-dojo/internal/logging"
	"github.com/sumeru-26/axelrod-dojo/internal/metrics"
	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/output"
	"github.com/sumeru-26/axelrod-dojo/internal/scoring"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const (
	DefaultParticles  = 100
	DefaultIterations = 20
	DefaultCoeff      = 0.8
)

var ErrNotVector = errors.New("archetype has no vector encoding")

type Config struct {
	Factory    archetype.Factory
	Objective  objective.Objective
	Opponents  []strategy.PlayerInfo
	Scoring    scoring.Options
	Particles  int
	Iterations int
	// Omega is the inertia weight, PhiP and PhiG the pulls toward the
	// particle's own best and the swarm's best.
	Omega   float64
	PhiP    float64
	PhiG    float64
	Workers int
	Seed    int64
	Sink    output.Sink
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	RunID   string
}

// Result holds the best position found. Value is the negated score, the
// quantity the swarm minimises.
type Result struct {
	Vector      []float64
	Value       float64
	Params      archetype.Params
	Rows        []model.GenerationRow
	Evaluations int
	// Iteration is the last iteration attempted; 0 is the initial scoring.
	Iteration   int
}

type particle struct {
	position []float64
	velocity []float64
	best     []float64
	bestVal  float64
}

type Swarm struct {
	cfg       Config
	rng       *rand.Rand
	eval      evo.Evaluator
	logger    *slog.Logger
	template  archetype.VectorParams
	lb, ub    []float64
	particles []particle
	best      []float64
	bestVal   float64
	rows      []model.GenerationRow
	evals     int
	iteration int
}

// New validates cfg and places the particles. Nothing is scored until Run.
func New(cfg Config) (*Swarm, error) {
	if cfg.Factory == nil {
		return nil, errors.New("archetype factory is required")
	}
	if cfg.Objective.Name() == "" {
		return nil, errors.New("objective is required")
	}
	if err := scoring.Validate(cfg.Factory, cfg.Objective, cfg.Opponents, cfg.Scoring); err != nil {
		return nil, err
	}
	if cfg.Particles == 0 {
		cfg.Particles = DefaultParticles
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.Particles < 0 || cfg.Iterations < 0 {
		return nil, fmt.Errorf("particles and iterations must be > 0, got %d and %d", cfg.Particles, cfg.Iterations)
	}
	for _, c := range []*float64{&cfg.Omega, &cfg.PhiP, &cfg.PhiG} {
		if *c == 0 {
			*c = DefaultCoeff
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	template, ok := cfg.Factory.Random(rng).(archetype.VectorParams)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotVector, cfg.Factory.Kind())
	}
	lb, ub := template.VectorBounds()
	if len(lb) == 0 || len(lb) != len(ub) {
		return nil, fmt.Errorf("invalid vector bounds for %s: %d lower, %d upper", cfg.Factory.Kind(), len(lb), len(ub))
	}

	particles := make([]particle, cfg.Particles)
	for i := range particles {
		pos := make([]float64, len(lb))
		vel := make([]float64, len(lb))
		for d := range pos {
			span := math.Abs(ub[d] - lb[d])
			pos[d] = lb[d] + rng.Float64()*(ub[d]-lb[d])
			vel[d] = -span + rng.Float64()*2*span
		}
		particles[i] = particle{position: pos, velocity: vel, bestVal: math.Inf(1)}
	}

	return &Swarm{
		cfg: cfg,
		rng: rng,
		eval: evo.Evaluator{
			Objective: cfg.Objective,
			Opponents: cfg.Opponents,
			Scoring:   cfg.Scoring,
			Workers:   cfg.Workers,
		},
		logger:    logging.OrDiscard(cfg.Logger).With("run_id", cfg.RunID, "archetype", cfg.Factory.Kind(), "engine", "pso"),
		template:  template,
		lb:        lb,
		ub:        ub,
		particles: particles,
		bestVal:   math.Inf(1),
	}, nil
}

func (s *Swarm) Dimensions() int { return len(s.lb) }

// Run scores the initial swarm, then performs the configured number of
// velocity updates, writing one row per update. The sink is closed on
// return.
func (s *Swarm) Run(ctx context.Context) (Result, error) {
	if _, err := s.evaluate(ctx); err != nil {
		return s.result(), errors.Join(fmt.Errorf("initial swarm: %w", err), s.closeSink())
	}
	s.logger.Debug("initial swarm scored", "particles", len(s.particles), "best", -s.bestVal)

	for it := 1; it <= s.cfg.Iterations; it++ {
		s.iteration = it
		if err := s.step(ctx, it); err != nil {
			return s.result(), errors.Join(fmt.Errorf("iteration %d: %w", it, err), s.closeSink())
		}
	}
	return s.result(), s.closeSink()
}

func (s *Swarm) step(ctx context.Context, iteration int) error {
	started := time.Now()
	for i := range s.particles {
		p := &s.particles[i]
		for d := range p.position {
			rp, rg := s.rng.Float64(), s.rng.Float64()
			p.velocity[d] = s.cfg.Omega*p.velocity[d] +
				s.cfg.PhiP*rp*(p.best[d]-p.position[d]) +
				s.cfg.PhiG*rg*(s.best[d]-p.position[d])
		}
		floats.Add(p.position, p.velocity)
		for d := range p.position {
			p.position[d] = math.Max(s.lb[d], math.Min(s.ub[d], p.position[d]))
		}
	}

	scores, err := s.evaluate(ctx)
	if err != nil {
		return err
	}

	params, err := s.paramsAt(s.best)
	if err != nil {
		return err
	}
	mean, std := stat.PopMeanStdDev(scores, nil)
	row := model.GenerationRow{
		Generation: iteration,
		Mean:       mean,
		StdDev:     std,
		Best:       -s.bestVal,
		Genome:     params.String(),
	}
	if c, ok := params.(archetype.Columnar); ok {
		row.Extra = c.Columns()
	}
	if s.cfg.Sink != nil {
		if err := s.cfg.Sink.WriteRow(ctx, row); err != nil {
			return err
		}
	}
	s.rows = append(s.rows, row)

	elapsed := time.Since(started)
	s.cfg.Metrics.ObserveGeneration(s.cfg.RunID, s.cfg.Factory.Kind(), row.Best, row.Mean, row.StdDev, len(scores), elapsed.Seconds())
	s.logger.Info("iteration complete",
		"iteration", iteration,
		"best", row.Best,
		"mean", row.Mean,
		"genome", row.Genome,
		"evaluations", humanize.Comma(int64(s.evals)),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)
	return nil
}

// evaluate scores every particle at its current position and updates the
// personal and global bests.
func (s *Swarm) evaluate(ctx context.Context) ([]float64, error) {
	genomes := make([]archetype.Params, len(s.particles))
	for i := range s.particles {
		params, err := s.paramsAt(s.particles[i].position)
		if err != nil {
			return nil, err
		}
		genomes[i] = params
	}
	scores, err := s.eval.ScoreAll(ctx, s.rng, genomes)
	if err != nil {
		return nil, err
	}
	s.evals += len(scores)
	if err := s.updateBests(scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// updateBests folds one score per particle into the personal and global
// bests. The first evaluation seeds every best from the starting position.
func (s *Swarm) updateBests(scores []float64) error {
	for i, score := range scores {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return fmt.Errorf("particle %d: non-finite score %f at %v", i, score, s.particles[i].position)
		}
	}
	for i, score := range scores {
		p := &s.particles[i]
		value := -score
		if p.best == nil || value < p.bestVal {
			p.bestVal = value
			p.best = append(p.best[:0], p.position...)
		}
		if s.best == nil || value < s.bestVal {
			s.bestVal = value
			s.best = append(s.best[:0], p.position...)
		}
	}
	return nil
}

func (s *Swarm) paramsAt(vector []float64) (archetype.Params, error) {
	params := s.template.Copy().(archetype.VectorParams)
	if err := params.ReceiveVector(vector); err != nil {
		return nil, err
	}
	return params, nil
}

func (s *Swarm) result() Result {
	res := Result{
		Value:       s.bestVal,
		Rows:        append([]model.GenerationRow(nil), s.rows...),
		Evaluations: s.evals,
		Iteration:   s.iteration,
	}
	if s.best == nil {
		return res
	}
	res.Vector = append([]float64(nil), s.best...)
	if params, err := s.paramsAt(s.best); err == nil {
		res.Params = params
	}
	return res
}

func (s *Swarm) closeSink() error {
	if s.cfg.Sink == nil {
		return nil
	}
	return s.cfg.Sink.Close()
}
