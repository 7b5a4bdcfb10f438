package strategy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

func play(t *testing.T, a, b match.Player, turns int) match.Result {
	t.Helper()
	res, err := match.NewPrisonersDilemma().Play(rand.New(rand.NewSource(1)), a, b, turns, 0)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	return res
}

func TestTitForTatAgainstDefector(t *testing.T) {
	res := play(t, TitForTat{}, Defector{}, 2)
	if res.PerTurn(0) != 0.5 {
		t.Fatalf("unexpected per-turn score: %f", res.PerTurn(0))
	}
}

func TestGrudgerNeverForgives(t *testing.T) {
	res := play(t, Grudger{}, NewCycler([]match.Action{match.D, match.C}), 6)
	// Grudger: C then D forever; cycler: D C D C D C.
	want := 0.0 + 5 + 1 + 5 + 1 + 5
	if res.Scores[0] != want {
		t.Fatalf("unexpected grudger score: got=%f want=%f", res.Scores[0], want)
	}
}

func TestLookupIndexUsesMostRecentPlays(t *testing.T) {
	keys := LookupKeys{Plays: 1, OppPlays: 1, OppStartPlays: 1}
	if got := keys.Index(match.History{match.C}, match.History{}); got != -1 {
		t.Fatalf("expected no key before history, got %d", got)
	}
	own := match.History{match.C, match.D}
	opp := match.History{match.D, match.C}
	// own last D=1, opp last C=0, opp first D=1 -> 0b101.
	if got := keys.Index(own, opp); got != 5 {
		t.Fatalf("unexpected lookup index: got=%d want=5", got)
	}
}

func TestLookerUpPlaysTable(t *testing.T) {
	keys := LookupKeys{OppPlays: 1}
	// Index 0 is opponent C, index 1 is opponent D: a tit for tat table.
	player, err := NewLookerUp(keys, []match.Action{match.C, match.D})
	if err != nil {
		t.Fatalf("new lookerup: %v", err)
	}
	res := play(t, player, Defector{}, 3)
	if res.Scores[0] != 2 {
		t.Fatalf("unexpected lookerup score: %f", res.Scores[0])
	}
}

func TestValidateTransitionsRejectsMissingInput(t *testing.T) {
	rows := []Transition{
		{State: 0, Input: match.C, Next: 1, Action: match.C},
		{State: 0, Input: match.D, Next: 1, Action: match.D},
		{State: 1, Input: match.C, Next: 0, Action: match.C},
	}
	if err := ValidateTransitions(rows, 0); err == nil {
		t.Fatal("expected missing transition error")
	}
	rows = append(rows, Transition{State: 1, Input: match.D, Next: 0, Action: match.D})
	if err := ValidateTransitions(rows, 0); err != nil {
		t.Fatalf("validate complete fsm: %v", err)
	}
}

func TestFSMPlayerResetRestoresInitialState(t *testing.T) {
	rows := []Transition{
		{State: 0, Input: match.C, Next: 0, Action: match.C},
		{State: 0, Input: match.D, Next: 1, Action: match.D},
		{State: 1, Input: match.C, Next: 1, Action: match.D},
		{State: 1, Input: match.D, Next: 1, Action: match.D},
	}
	player, err := NewFSMPlayer(rows, 0, match.C)
	if err != nil {
		t.Fatalf("new fsm: %v", err)
	}
	play(t, player, Defector{}, 4)
	if player.State() != 1 {
		t.Fatalf("expected grudging state after defections, got %d", player.State())
	}
	player.Reset()
	if player.State() != 0 {
		t.Fatalf("expected initial state after reset, got %d", player.State())
	}
}

func TestPFSMPlayerDrawsFromRowProbability(t *testing.T) {
	rows := []ProbabilisticTransition{
		{State: 0, Input: match.C, Next: 0, PC: 1},
		{State: 0, Input: match.D, Next: 1, PC: 0.5},
		{State: 1, Input: match.C, Next: 1, PC: 0.5},
		{State: 1, Input: match.D, Next: 1, PC: 0.5},
	}
	player, err := NewPFSMPlayer(rows, 0, match.C)
	if err != nil {
		t.Fatalf("new pfsm: %v", err)
	}
	if !player.Stochastic() {
		t.Fatal("expected fractional probabilities to be stochastic")
	}
	rng := rand.New(rand.NewSource(2))
	opponent := match.History{match.D}
	counts := map[match.Action]int{}
	for i := 0; i < 400; i++ {
		player.Reset()
		counts[player.Decide(rng, match.History{match.C}, opponent)]++
		if player.State() != 1 {
			t.Fatalf("expected move to state 1, got %d", player.State())
		}
	}
	if counts[match.C] < 150 || counts[match.D] < 150 {
		t.Fatalf("expected roughly even draws, got %v", counts)
	}

	rows[1].PC = 1.2
	if _, err := NewPFSMPlayer(rows, 0, match.C); err == nil {
		t.Fatal("expected probability range error")
	}
}

func TestValidateHMMRejectsNonStochasticRows(t *testing.T) {
	tC := [][]float64{{0.5, 0.4}, {0, 1}}
	tD := [][]float64{{1, 0}, {0, 1}}
	if err := ValidateHMM(tC, tD, []float64{1, 0}, 0); err == nil {
		t.Fatal("expected row-sum error")
	}
	tC[0][1] = 0.5
	if err := ValidateHMM(tC, tD, []float64{1, 0}, 0); err != nil {
		t.Fatalf("validate hmm: %v", err)
	}
}

func TestDeterministicHMMIsNotStochastic(t *testing.T) {
	player, err := NewHMMPlayer([][]float64{{1}}, [][]float64{{1}}, []float64{1}, 0, match.C)
	if err != nil {
		t.Fatalf("new hmm: %v", err)
	}
	if player.Stochastic() {
		t.Fatal("single deterministic state reported stochastic")
	}
	res := play(t, player, Cooperator{}, 5)
	if res.Scores[0] != 15 {
		t.Fatalf("unexpected hmm score: %f", res.Scores[0])
	}
}

func TestANNRejectsWrongWeightCount(t *testing.T) {
	if _, err := NewANN(ANNFeatures, 2, make([]float64, 10)); err == nil {
		t.Fatal("expected weight count error")
	}
	if _, err := NewANN(ANNFeatures, 2, make([]float64, ANNWeightCount(ANNFeatures, 2))); err != nil {
		t.Fatalf("new ann: %v", err)
	}
}

func TestDoubleThresholdsAccept(t *testing.T) {
	d, err := NewDoubleThresholds(0.2, 0.4, 0.3, 0.6)
	if err != nil {
		t.Fatalf("new thresholds: %v", err)
	}
	if d.Accept(0.2) || !d.Accept(0.5) || d.Accept(0.7) {
		t.Fatal("unexpected acceptance window")
	}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		if offer := d.Offer(rng); offer < 0.2 || offer > 0.4 {
			t.Fatalf("offer outside interval: %f", offer)
		}
	}
	if _, err := NewDoubleThresholds(0.5, 0.4, 0, 1); err == nil {
		t.Fatal("expected inverted interval error")
	}
}

func TestParseInfosAndNew(t *testing.T) {
	infos, err := ParseInfos("TitForTat, Random:p=0.3,Cycler:pattern=CD")
	if err != nil {
		t.Fatalf("parse infos: %v", err)
	}
	if len(infos) != 3 || infos[1].Args["p"] != "0.3" {
		t.Fatalf("unexpected infos: %+v", infos)
	}
	for _, info := range infos {
		if _, err := New(info); err != nil {
			t.Fatalf("new %s: %v", info, err)
		}
	}
	if _, err := New(PlayerInfo{Strategy: "Nope"}); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected unknown strategy error, got %v", err)
	}
}

func TestDefaultOpponentsResolve(t *testing.T) {
	for _, game := range []string{"prisoners_dilemma", "ultimatum"} {
		for _, info := range DefaultOpponents(game) {
			if _, err := New(info); err != nil {
				t.Fatalf("default opponent %s for %s: %v", info, game, err)
			}
		}
	}
}
