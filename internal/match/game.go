package match

import (
	"fmt"
	"math/rand"
)

// Result holds cumulative scores for both seats of a match.
type Result struct {
	Turns  int
	Scores [2]float64
}

// PerTurn returns the mean payoff per turn for seat i.
func (r Result) PerTurn(i int) float64 {
	if r.Turns == 0 {
		return 0
	}
	return r.Scores[i] / float64(r.Turns)
}

// Game plays one match between two players. Both players are reset before
// the first turn. Accepts reports whether p implements the moves the game
// asks for.
type Game interface {
	Name() string
	Accepts(p Player) error
	Play(rng *rand.Rand, a, b Player, turns int, noise float64) (Result, error)
}

func cannotPlay(p Player, g Game) error {
	return fmt.Errorf("player %s cannot play %s", p.Name(), g.Name())
}

type Payoff struct {
	R, S, T, P float64
}

var DefaultPayoff = Payoff{R: 3, S: 0, T: 5, P: 1}

func (p Payoff) Score(a, b Action) (float64, float64) {
	switch {
	case a == C && b == C:
		return p.R, p.R
	case a == C && b == D:
		return p.S, p.T
	case a == D && b == C:
		return p.T, p.S
	default:
		return p.P, p.P
	}
}

type PrisonersDilemma struct {
	Payoff Payoff
}

func NewPrisonersDilemma() PrisonersDilemma {
	return PrisonersDilemma{Payoff: DefaultPayoff}
}

func (PrisonersDilemma) Name() string {
	return "prisoners_dilemma"
}

func (g PrisonersDilemma) Accepts(p Player) error {
	if _, ok := p.(Decider); !ok {
		return cannotPlay(p, g)
	}
	return nil
}

func (g PrisonersDilemma) Play(rng *rand.Rand, a, b Player, turns int, noise float64) (Result, error) {
	if turns <= 0 {
		return Result{}, fmt.Errorf("turns must be > 0")
	}
	da, ok := a.(Decider)
	if !ok {
		return Result{}, cannotPlay(a, g)
	}
	db, ok := b.(Decider)
	if !ok {
		return Result{}, cannotPlay(b, g)
	}
	if noise > 0 && rng == nil {
		return Result{}, fmt.Errorf("random source is required for noisy matches")
	}
	da.Reset()
	db.Reset()

	ha := make(History, 0, turns)
	hb := make(History, 0, turns)
	var res Result
	for t := 0; t < turns; t++ {
		moveA := da.Decide(rng, ha, hb)
		moveB := db.Decide(rng, hb, ha)
		if noise > 0 {
			if rng.Float64() < noise {
				moveA = moveA.Flip()
			}
			if rng.Float64() < noise {
				moveB = moveB.Flip()
			}
		}
		ha = append(ha, moveA)
		hb = append(hb, moveB)
		sa, sb := g.Payoff.Score(moveA, moveB)
		res.Scores[0] += sa
		res.Scores[1] += sb
	}
	res.Turns = turns
	return res, nil
}

// Ultimatum alternates the proposer seat every turn. An accepted offer x pays
// the proposer 1-x and the responder x; a rejected offer pays nothing.
// Noise is ignored.
type Ultimatum struct{}

func (Ultimatum) Name() string {
	return "ultimatum"
}

func (g Ultimatum) Accepts(p Player) error {
	if _, ok := p.(Bargainer); !ok {
		return cannotPlay(p, g)
	}
	return nil
}

func (g Ultimatum) Play(rng *rand.Rand, a, b Player, turns int, _ float64) (Result, error) {
	if turns <= 0 {
		return Result{}, fmt.Errorf("turns must be > 0")
	}
	ba, ok := a.(Bargainer)
	if !ok {
		return Result{}, cannotPlay(a, g)
	}
	bb, ok := b.(Bargainer)
	if !ok {
		return Result{}, cannotPlay(b, g)
	}
	ba.Reset()
	bb.Reset()

	seats := [2]Bargainer{ba, bb}
	var res Result
	for t := 0; t < turns; t++ {
		proposer, responder := t%2, 1-t%2
		offer := seats[proposer].Offer(rng)
		if seats[responder].Accept(offer) {
			res.Scores[proposer] += 1 - offer
			res.Scores[responder] += offer
		}
	}
	res.Turns = turns
	return res, nil
}

func GameFromName(name string) (Game, error) {
	switch name {
	case "", "prisoners_dilemma", "pd":
		return NewPrisonersDilemma(), nil
	case "ultimatum":
		return Ultimatum{}, nil
	default:
		return nil, fmt.Errorf("unsupported game: %s", name)
	}
}
