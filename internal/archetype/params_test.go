package archetype

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

var testOptions = map[string]Options{
	KindFSM:        {States: 4},
	KindPFSM:       {States: 3},
	KindLookup:     {Plays: 1, OppPlays: 1, OppStartPlays: 1},
	KindGambler:    {Plays: 1, OppPlays: 2, OppStartPlays: 0},
	KindHMM:        {States: 3},
	KindANN:        {Hidden: 3},
	KindCycler:     {Length: 12},
	KindThresholds: {},
}

func mustFactory(t *testing.T, kind string, opts Options) Factory {
	t.Helper()
	f, err := NewFactory(kind, opts)
	if err != nil {
		t.Fatalf("new factory %s: %v", kind, err)
	}
	return f
}

func TestKindsListsAllArchetypes(t *testing.T) {
	got := Kinds()
	if len(got) != len(testOptions) {
		t.Fatalf("unexpected archetype kinds: %v", got)
	}
	for _, kind := range got {
		if _, ok := testOptions[kind]; !ok {
			t.Fatalf("untested archetype kind: %s", kind)
		}
	}
}

func TestUnknownArchetype(t *testing.T) {
	if _, err := NewFactory("nope", Options{}); !errors.Is(err, ErrUnknownArchetype) {
		t.Fatalf("expected unknown archetype error, got %v", err)
	}
}

func TestOperationsPreservePlayability(t *testing.T) {
	for kind, opts := range testOptions {
		opts.MutationRate = 0.5
		f := mustFactory(t, kind, opts)
		rng := rand.New(rand.NewSource(17))
		for i := 0; i < 25; i++ {
			a := f.Random(rng)
			b := f.Random(rng)
			if _, err := a.Player(); err != nil {
				t.Fatalf("%s random genome not playable: %v (%s)", kind, err, a)
			}
			a.Mutate(rng)
			if _, err := a.Player(); err != nil {
				t.Fatalf("%s mutated genome not playable: %v (%s)", kind, err, a)
			}
			child, err := a.Crossover(b, rng)
			if err != nil {
				t.Fatalf("%s crossover: %v", kind, err)
			}
			if _, err := child.Player(); err != nil {
				t.Fatalf("%s crossover child not playable: %v (%s)", kind, err, child)
			}
			child.Mutate(rng)
			if _, err := child.Player(); err != nil {
				t.Fatalf("%s mutated child not playable: %v (%s)", kind, err, child)
			}
		}
	}
}

func TestCopyDoesNotAlias(t *testing.T) {
	for kind, opts := range testOptions {
		opts.MutationRate = 1
		f := mustFactory(t, kind, opts)
		rng := rand.New(rand.NewSource(5))
		original := f.Random(rng)
		before := original.String()
		clone := original.Copy()
		for i := 0; i < 5; i++ {
			clone.Mutate(rng)
		}
		if original.String() != before {
			t.Fatalf("%s mutation of copy changed original: before=%s after=%s", kind, before, original.String())
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for kind, opts := range testOptions {
		f := mustFactory(t, kind, opts)
		rng := rand.New(rand.NewSource(23))
		for i := 0; i < 10; i++ {
			g := f.Random(rng)
			g.Mutate(rng)
			parsed, err := f.Parse(g.String())
			if err != nil {
				t.Fatalf("%s parse %q: %v", kind, g.String(), err)
			}
			if !reflect.DeepEqual(parsed, g) {
				t.Fatalf("%s round trip mismatch: got=%s want=%s", kind, parsed, g)
			}
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		KindFSM:        "0:C:0_C_1_D",
		KindPFSM:       "0:C:0_C_0_1.5:0_D_0_0",
		KindLookup:     "1:1:1:CDX",
		KindGambler:    "1:2:0:0.5|2",
		KindHMM:        "0:C:1:1",
		KindANN:        "17:3:0.1|0.2",
		KindCycler:     "CCD",
		KindThresholds: "0.6:0.2:0.1:0.9",
	}
	for kind, s := range cases {
		f := mustFactory(t, kind, testOptions[kind])
		if _, err := f.Parse(s); !errors.Is(err, ErrParse) {
			t.Fatalf("%s expected parse error for %q, got %v", kind, s, err)
		}
	}
}

func TestCrossoverRejectsMismatchedShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	small := mustFactory(t, KindFSM, Options{States: 2}).Random(rng)
	large := mustFactory(t, KindFSM, Options{States: 3}).Random(rng)
	if _, err := small.Crossover(large, rng); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected incompatible error, got %v", err)
	}
	cycler := mustFactory(t, KindCycler, Options{Length: 4}).Random(rng)
	if _, err := small.Crossover(cycler, rng); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected incompatible archetype error, got %v", err)
	}
}

func TestFSMCrossoverKeepsStateBlocks(t *testing.T) {
	f := mustFactory(t, KindFSM, Options{States: 4})
	a := f.Random(rand.New(rand.NewSource(1))).(*FSMParams)
	b := f.Random(rand.New(rand.NewSource(2))).(*FSMParams)
	child := a.crossoverAt(b, 2)
	if !reflect.DeepEqual(child.rows[:4], a.rows[:4]) {
		t.Fatalf("prefix mismatch: got=%v want=%v", child.rows[:4], a.rows[:4])
	}
	if !reflect.DeepEqual(child.rows[4:], b.rows[4:]) {
		t.Fatalf("suffix mismatch: got=%v want=%v", child.rows[4:], b.rows[4:])
	}
	if _, err := child.Player(); err != nil {
		t.Fatalf("child not playable: %v", err)
	}
}

func TestHMMCrossoverMovesWholeStates(t *testing.T) {
	f := mustFactory(t, KindHMM, Options{States: 3})
	a := f.Random(rand.New(rand.NewSource(3))).(*HMMParams)
	b := f.Random(rand.New(rand.NewSource(4))).(*HMMParams)
	child := a.crossoverAt(b, 1)
	if !reflect.DeepEqual(child.transitionsC[0], a.transitionsC[0]) || child.emissions[0] != a.emissions[0] {
		t.Fatal("state 0 should come from the first parent")
	}
	for i := 1; i < 3; i++ {
		if !reflect.DeepEqual(child.transitionsD[i], b.transitionsD[i]) || child.emissions[i] != b.emissions[i] {
			t.Fatalf("state %d should come from the second parent", i)
		}
	}
}

func TestLookupCrossoverPrefixSuffix(t *testing.T) {
	f := mustFactory(t, KindLookup, Options{Plays: 1, OppPlays: 1, OppStartPlays: 1})
	a := f.Random(rand.New(rand.NewSource(5))).(*LookupParams)
	b := f.Random(rand.New(rand.NewSource(6))).(*LookupParams)
	child := a.crossoverAt(b, 3)
	if match.FormatActions(child.table) != match.FormatActions(a.table[:3])+match.FormatActions(b.table[3:]) {
		t.Fatalf("unexpected child table: %s", child)
	}
}

func TestThresholdsCrossoverKeepsOrder(t *testing.T) {
	a := &ThresholdsParams{values: [4]float64{0.1, 0.2, 0.3, 0.4}, rate: 0.1}
	b := &ThresholdsParams{values: [4]float64{0.5, 0.6, 0.7, 0.8}, rate: 0.1}
	child := a.crossoverAt(b, 2)
	if child.values != [4]float64{0.1, 0.2, 0.7, 0.8} {
		t.Fatalf("unexpected child: %v", child.values)
	}
}

func TestVectorEncodingsBuildPlayers(t *testing.T) {
	for kind, opts := range testOptions {
		if kind == KindLookup {
			continue
		}
		f := mustFactory(t, kind, opts)
		rng := rand.New(rand.NewSource(9))
		g, ok := f.Random(rng).(VectorParams)
		if !ok {
			t.Fatalf("%s does not support vectors", kind)
		}
		lb, ub := g.VectorBounds()
		if len(lb) != len(ub) {
			t.Fatalf("%s bounds mismatch", kind)
		}
		vector := make([]float64, len(lb))
		for i := range vector {
			vector[i] = lb[i] + rng.Float64()*(ub[i]-lb[i])
		}
		if err := g.ReceiveVector(vector); err != nil {
			t.Fatalf("%s receive vector: %v", kind, err)
		}
		if _, err := g.Player(); err != nil {
			t.Fatalf("%s vector genome not playable: %v", kind, err)
		}
		if err := g.ReceiveVector(vector[:len(vector)-1]); err == nil {
			t.Fatalf("%s expected vector length error", kind)
		}
	}
}

func TestFSMVectorLayout(t *testing.T) {
	f := mustFactory(t, KindFSM, Options{States: 2})
	g := f.Random(rand.New(rand.NewSource(1))).(*FSMParams)
	// next states: 0,1,1,0; actions: C,D,D,C; initial action D.
	vector := []float64{0.1, 0.9, 0.6, 0.2, 0.8, 0.1, 0.3, 0.5, 0.2}
	if err := g.ReceiveVector(vector); err != nil {
		t.Fatalf("receive vector: %v", err)
	}
	want := "0:D:0_C_0_C:0_D_1_D:1_C_1_D:1_D_0_C"
	if g.String() != want {
		t.Fatalf("unexpected fsm from vector: got=%s want=%s", g.String(), want)
	}
}

func TestDefaultMutationRate(t *testing.T) {
	if got := DefaultMutationRate(KindHMM, 5); got != 0.4 {
		t.Fatalf("unexpected hmm rate: %f", got)
	}
	if got := DefaultMutationRate(KindHMM, 2); got != 1 {
		t.Fatalf("hmm rate must be capped at 1, got %f", got)
	}
	if got := DefaultMutationRate(KindFSM, 16); got != 0.1 {
		t.Fatalf("unexpected fsm rate: %f", got)
	}
}

func TestFSMParseKnownMachine(t *testing.T) {
	f := mustFactory(t, KindFSM, Options{States: 1})
	g, err := f.Parse("0:C:0_C_0_C:0_D_0_D")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	player, err := g.Player()
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	res, err := match.NewPrisonersDilemma().Play(nil, player, strategy.Defector{}, 2, 0)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if res.PerTurn(0) != 0.5 {
		t.Fatalf("tit for tat machine scored %f", res.PerTurn(0))
	}
}

func TestPFSMCrossoverKeepsStateBlocks(t *testing.T) {
	f := mustFactory(t, KindPFSM, Options{States: 3})
	a := f.Random(rand.New(rand.NewSource(1))).(*PFSMParams)
	b := f.Random(rand.New(rand.NewSource(2))).(*PFSMParams)
	child := a.crossoverAt(b, 1)
	if !reflect.DeepEqual(child.rows[:2], a.rows[:2]) || !reflect.DeepEqual(child.rows[2:], b.rows[2:]) {
		t.Fatalf("unexpected child rows: %v", child.rows)
	}
}

func TestPFSMMutationKeepsProbabilitiesInRange(t *testing.T) {
	f := mustFactory(t, KindPFSM, Options{States: 2, MutationRate: 1})
	rng := rand.New(rand.NewSource(4))
	g := f.Random(rng).(*PFSMParams)
	for i := 0; i < 200; i++ {
		g.Mutate(rng)
		for _, row := range g.Rows() {
			if row.PC < 0 || row.PC > 1 {
				t.Fatalf("probability escaped [0,1] after %d mutations: %s", i+1, g)
			}
		}
	}
}

func TestPFSMStochasticity(t *testing.T) {
	f := mustFactory(t, KindPFSM, Options{States: 1})
	pure, err := f.Parse("0:C:0_C_0_1:0_D_0_0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	player, err := pure.Player()
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	if player.Stochastic() {
		t.Fatal("machine with 0/1 probabilities must be deterministic")
	}
	res, err := match.NewPrisonersDilemma().Play(nil, player, strategy.Defector{}, 2, 0)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if res.PerTurn(0) != 0.5 {
		t.Fatalf("tit for tat machine scored %f", res.PerTurn(0))
	}

	mixed, err := f.Parse("0:C:0_C_0_0.7:0_D_0_0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	player, err = mixed.Player()
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	if !player.Stochastic() {
		t.Fatal("machine with a fractional probability must be stochastic")
	}
}

func TestPFSMVectorLayout(t *testing.T) {
	f := mustFactory(t, KindPFSM, Options{States: 2})
	g := f.Random(rand.New(rand.NewSource(1))).(*PFSMParams)
	vector := []float64{0.1, 0.9, 0.6, 0.2, 0.8, 0.1, 1.3, 0.5, 0.2}
	if err := g.ReceiveVector(vector); err != nil {
		t.Fatalf("receive vector: %v", err)
	}
	want := "0:D:0_C_0_0.8:0_D_1_0.1:1_C_1_1:1_D_0_0.5"
	if g.String() != want {
		t.Fatalf("unexpected pfsm from vector: got=%s want=%s", g.String(), want)
	}
}
