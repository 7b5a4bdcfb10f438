package scoring

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

func titForTatGenome(t *testing.T) archetype.Params {
	t.Helper()
	f, err := archetype.NewFactory(archetype.KindFSM, archetype.Options{States: 1})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	g, err := f.Parse("0:C:0_C_0_C:0_D_0_D")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return g
}

func scoreObjective(t *testing.T, turns int) objective.Objective {
	t.Helper()
	o, err := objective.Prepare(objective.Config{Name: objective.Score, Turns: turns})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return o
}

func TestScoreAveragesOpponents(t *testing.T) {
	opponents := []strategy.PlayerInfo{{Strategy: "Defector"}, {Strategy: "Cooperator"}}
	got, err := Score(context.Background(), rand.New(rand.NewSource(1)), titForTatGenome(t), scoreObjective(t, 2), opponents, Options{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// 0.5 against Defector, 3 against Cooperator.
	if got != 1.75 {
		t.Fatalf("unexpected score: got=%f want=1.75", got)
	}
}

func TestScoreAppliesWeights(t *testing.T) {
	opponents := []strategy.PlayerInfo{{Strategy: "Defector"}, {Strategy: "Cooperator"}}
	got, err := Score(context.Background(), rand.New(rand.NewSource(1)), titForTatGenome(t), scoreObjective(t, 2), opponents, Options{Weights: []float64{3, 1}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got != 1.125 {
		t.Fatalf("unexpected weighted score: got=%f want=1.125", got)
	}
}

func TestScoreIsInvariantToOpponentOrder(t *testing.T) {
	opponents := strategy.DefaultOpponents("")
	reversed := make([]strategy.PlayerInfo, len(opponents))
	for i, info := range opponents {
		reversed[len(opponents)-1-i] = info
	}
	f, err := archetype.NewFactory(archetype.KindLookup, archetype.Options{Plays: 1, OppPlays: 1})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	genome := f.Random(rand.New(rand.NewSource(4)))
	obj := scoreObjective(t, 20)
	// Random opponents consume the rng, so the same seed yields different
	// draws in a different order; compare deterministic opponents only.
	var deterministic, deterministicReversed []strategy.PlayerInfo
	for _, info := range opponents {
		if info.Strategy != "Random" {
			deterministic = append(deterministic, info)
		}
	}
	for _, info := range reversed {
		if info.Strategy != "Random" {
			deterministicReversed = append(deterministicReversed, info)
		}
	}
	a, err := Score(context.Background(), rand.New(rand.NewSource(1)), genome, obj, deterministic, Options{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	b, err := Score(context.Background(), rand.New(rand.NewSource(1)), genome, obj, deterministicReversed, Options{})
	if err != nil {
		t.Fatalf("score reversed: %v", err)
	}
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("score depends on opponent order: %f vs %f", a, b)
	}
}

func TestScoreSamplesOpponents(t *testing.T) {
	opponents := []strategy.PlayerInfo{{Strategy: "Defector"}, {Strategy: "Cooperator"}}
	rng := rand.New(rand.NewSource(8))
	seen := map[float64]bool{}
	for i := 0; i < 40; i++ {
		got, err := Score(context.Background(), rng, titForTatGenome(t), scoreObjective(t, 2), opponents, Options{SampleCount: 1})
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		if got != 0.5 && got != 3 {
			t.Fatalf("sampled score must come from one opponent, got %f", got)
		}
		seen[got] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected both opponents to be sampled, saw %v", seen)
	}
}

func TestScoreWithoutOpponents(t *testing.T) {
	_, err := Score(context.Background(), nil, titForTatGenome(t), scoreObjective(t, 2), nil, Options{})
	if !errors.Is(err, ErrNoOpponents) {
		t.Fatalf("expected no opponents error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	opponents := []strategy.PlayerInfo{{Strategy: "Defector"}, {Strategy: "Cooperator"}}
	obj := scoreObjective(t, 2)
	if err := Validate(nil, obj, opponents, Options{Weights: []float64{1}}); err == nil {
		t.Fatal("expected weights length error")
	}
	if err := Validate(nil, obj, opponents, Options{Weights: []float64{0, 0}}); err == nil {
		t.Fatal("expected zero weights error")
	}
	if err := Validate(nil, obj, opponents, Options{Weights: []float64{1, math.NaN()}}); err == nil {
		t.Fatal("expected non-finite weight error")
	}
	if err := Validate(nil, obj, []strategy.PlayerInfo{{Strategy: "Nope"}}, Options{}); !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Fatalf("expected unknown strategy error, got %v", err)
	}
	if err := Validate(nil, obj, opponents, Options{SampleCount: 1}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := Validate(nil, obj, nil, Options{}); !errors.Is(err, ErrNoOpponents) {
		t.Fatalf("expected no opponents error, got %v", err)
	}
}

func TestValidateZeroWeightWithSampling(t *testing.T) {
	opponents := []strategy.PlayerInfo{{Strategy: "Cooperator"}, {Strategy: "Defector"}}
	obj := scoreObjective(t, 2)
	err := Validate(nil, obj, opponents, Options{Weights: []float64{1, 0}, SampleCount: 1})
	if err == nil || !strings.Contains(err.Error(), "weight 1 is zero") {
		t.Fatalf("expected zero weight with sampling error, got %v", err)
	}
	// Every opponent is played when SampleCount covers the pool, so a zero
	// weight is only ignored.
	if err := Validate(nil, obj, opponents, Options{Weights: []float64{1, 0}, SampleCount: 2}); err != nil {
		t.Fatalf("validate full pool: %v", err)
	}
	if err := Validate(nil, obj, opponents, Options{Weights: []float64{1, 0}}); err != nil {
		t.Fatalf("validate unsampled: %v", err)
	}
}

func TestScoreRejectsZeroWeightSample(t *testing.T) {
	opponents := []strategy.PlayerInfo{{Strategy: "Cooperator"}, {Strategy: "Defector"}}
	opts := Options{Weights: []float64{1, 0}, SampleCount: 1}
	rng := rand.New(rand.NewSource(3))
	var rejected int
	for i := 0; i < 20; i++ {
		got, err := Score(context.Background(), rng, titForTatGenome(t), scoreObjective(t, 2), opponents, opts)
		if err != nil {
			if !strings.Contains(err.Error(), "zero total weight") {
				t.Fatalf("unexpected error: %v", err)
			}
			rejected++
			continue
		}
		if math.IsNaN(got) || got != 3 {
			t.Fatalf("expected Cooperator score 3, got %f", got)
		}
	}
	if rejected == 0 {
		t.Fatal("expected some samples to draw only the zero-weight opponent")
	}
}

func TestValidateChecksGameCompatibility(t *testing.T) {
	pd := scoreObjective(t, 2)
	ultimatum, err := objective.Prepare(objective.Config{Name: objective.Score, Game: match.Ultimatum{}, Turns: 2})
	if err != nil {
		t.Fatalf("prepare ultimatum: %v", err)
	}
	thresholds, err := archetype.NewFactory(archetype.KindThresholds, archetype.Options{})
	if err != nil {
		t.Fatalf("thresholds factory: %v", err)
	}
	fsm, err := archetype.NewFactory(archetype.KindFSM, archetype.Options{States: 2})
	if err != nil {
		t.Fatalf("fsm factory: %v", err)
	}

	if err := Validate(thresholds, pd, strategy.DefaultOpponents(""), Options{}); err == nil || !strings.Contains(err.Error(), "cannot play prisoners_dilemma") {
		t.Fatalf("expected thresholds to be rejected for the dilemma, got %v", err)
	}
	if err := Validate(thresholds, ultimatum, []strategy.PlayerInfo{{Strategy: "TitForTat"}}, Options{}); err == nil || !strings.Contains(err.Error(), "opponent TitForTat") {
		t.Fatalf("expected TitForTat to be rejected for ultimatum, got %v", err)
	}
	if err := Validate(fsm, ultimatum, strategy.DefaultOpponents("ultimatum"), Options{}); err == nil {
		t.Fatal("expected fsm to be rejected for ultimatum")
	}
	if err := Validate(thresholds, ultimatum, strategy.DefaultOpponents("ultimatum"), Options{}); err != nil {
		t.Fatalf("validate thresholds ultimatum: %v", err)
	}
	if err := Validate(fsm, pd, strategy.DefaultOpponents(""), Options{}); err != nil {
		t.Fatalf("validate fsm dilemma: %v", err)
	}
}
