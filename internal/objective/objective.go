package objective

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

const (
	Score     = "score"
	ScoreDiff = "score_diff"
	Moran     = "moran"

	DefaultTurns            = 200
	DefaultRepetitions      = 20
	DefaultMoranRepetitions = 1000
	DefaultNMoran           = 4
)

var (
	ErrUnknownObjective = errors.New("unknown objective")
	ErrNoiseNotAllowed  = errors.New("noise is not allowed for this objective")
)

// Config selects an objective by name and fixes the match parameters it
// plays with. Zero values are replaced by the objective's defaults.
type Config struct {
	Name        string     `yaml:"name"`
	Game        match.Game `yaml:"-"`
	Turns       int        `yaml:"turns"`
	Noise       float64    `yaml:"noise"`
	Repetitions int        `yaml:"repetitions"`
	NMoran      int        `yaml:"nmoran"`
}

type evalFunc func(ctx context.Context, rng *rand.Rand, focal, opponent match.Player) ([]float64, error)

// Objective maps one focal/opponent pairing to a sequence of outcomes.
type Objective struct {
	cfg  Config
	eval evalFunc
}

// Prepare validates cfg and returns the named objective. It never plays a
// match.
func Prepare(cfg Config) (Objective, error) {
	if cfg.Game == nil {
		cfg.Game = match.NewPrisonersDilemma()
	}
	if cfg.Turns == 0 {
		cfg.Turns = DefaultTurns
	}
	if cfg.Turns < 0 {
		return Objective{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.Noise < 0 || cfg.Noise > 1 {
		return Objective{}, fmt.Errorf("noise must be in [0,1], got %f", cfg.Noise)
	}
	if cfg.Repetitions < 0 || cfg.NMoran < 0 {
		return Objective{}, fmt.Errorf("repetitions and nmoran must be >= 0")
	}

	o := Objective{}
	switch cfg.Name {
	case Score, ScoreDiff:
		if cfg.Repetitions == 0 {
			cfg.Repetitions = DefaultRepetitions
		}
		o.eval = matchObjective(cfg, cfg.Name == ScoreDiff)
	case Moran:
		if cfg.Noise != 0 {
			return Objective{}, fmt.Errorf("%w: %s (noise=%g)", ErrNoiseNotAllowed, cfg.Name, cfg.Noise)
		}
		if cfg.Repetitions == 0 {
			cfg.Repetitions = DefaultMoranRepetitions
		}
		if cfg.NMoran == 0 {
			cfg.NMoran = DefaultNMoran
		}
		o.eval = moranObjective(cfg)
	default:
		return Objective{}, fmt.Errorf("%w: %q", ErrUnknownObjective, cfg.Name)
	}
	o.cfg = cfg
	return o, nil
}

func (o Objective) Name() string   { return o.cfg.Name }
func (o Objective) Config() Config { return o.cfg }

// Compatible reports whether p can play the objective's game.
func (o Objective) Compatible(p match.Player) error {
	if o.cfg.Game == nil {
		return errors.New("objective is not prepared")
	}
	return o.cfg.Game.Accepts(p)
}

// Evaluate plays focal against opponent. Both players may be reset or
// cloned; neither is shared with other goroutines.
func (o Objective) Evaluate(ctx context.Context, rng *rand.Rand, focal, opponent match.Player) ([]float64, error) {
	if o.eval == nil {
		return nil, errors.New("objective is not prepared")
	}
	return o.eval(ctx, rng, focal, opponent)
}

// matchObjective returns the focal player's mean per-turn payoff, or payoff
// difference, for each repetition. Deterministic pairings play once.
func matchObjective(cfg Config, diff bool) evalFunc {
	return func(ctx context.Context, rng *rand.Rand, focal, opponent match.Player) ([]float64, error) {
		repetitions := cfg.Repetitions
		if !match.IsStochastic(focal, opponent, cfg.Noise) {
			repetitions = 1
		}
		out := make([]float64, 0, repetitions)
		for i := 0; i < repetitions; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := cfg.Game.Play(rng, focal, opponent, cfg.Turns, cfg.Noise)
			if err != nil {
				return nil, err
			}
			value := res.PerTurn(0)
			if diff {
				value -= res.PerTurn(1)
			}
			out = append(out, value)
		}
		return out, nil
	}
}

// moranObjective builds a population of NMoran clones of each player and
// records 1 for every repetition in which the focal lineage fixates.
func moranObjective(cfg Config) evalFunc {
	process := match.MoranProcess{Game: cfg.Game, Turns: cfg.Turns}
	return func(ctx context.Context, rng *rand.Rand, focal, opponent match.Player) ([]float64, error) {
		out := make([]float64, 0, cfg.Repetitions)
		population := make([]match.Player, 2*cfg.NMoran)
		labels := make([]int, 2*cfg.NMoran)
		for i := 0; i < cfg.Repetitions; i++ {
			for j := 0; j < cfg.NMoran; j++ {
				population[j] = focal.Clone()
				labels[j] = 0
				population[cfg.NMoran+j] = opponent.Clone()
				labels[cfg.NMoran+j] = 1
			}
			winner, err := process.Fixation(ctx, rng, population, labels)
			if err != nil {
				return nil, err
			}
			if winner == 0 {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
		return out, nil
	}
}
