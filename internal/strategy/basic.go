package strategy

import (
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

type Cooperator struct{}

func (Cooperator) Name() string        { return "Cooperator" }
func (Cooperator) Reset()              {}
func (Cooperator) Clone() match.Player { return Cooperator{} }
func (Cooperator) Stochastic() bool    { return false }
func (Cooperator) Decide(_ *rand.Rand, _, _ match.History) match.Action {
	return match.C
}

type Defector struct{}

func (Defector) Name() string        { return "Defector" }
func (Defector) Reset()              {}
func (Defector) Clone() match.Player { return Defector{} }
func (Defector) Stochastic() bool    { return false }
func (Defector) Decide(_ *rand.Rand, _, _ match.History) match.Action {
	return match.D
}

// TitForTat cooperates first, then copies the opponent's previous move.
type TitForTat struct{}

func (TitForTat) Name() string        { return "TitForTat" }
func (TitForTat) Reset()              {}
func (TitForTat) Clone() match.Player { return TitForTat{} }
func (TitForTat) Stochastic() bool    { return false }
func (TitForTat) Decide(_ *rand.Rand, _, opponent match.History) match.Action {
	if last, ok := opponent.Last(1); ok {
		return last
	}
	return match.C
}

type SuspiciousTitForTat struct{}

func (SuspiciousTitForTat) Name() string        { return "SuspiciousTitForTat" }
func (SuspiciousTitForTat) Reset()              {}
func (SuspiciousTitForTat) Clone() match.Player { return SuspiciousTitForTat{} }
func (SuspiciousTitForTat) Stochastic() bool    { return false }
func (SuspiciousTitForTat) Decide(_ *rand.Rand, _, opponent match.History) match.Action {
	if last, ok := opponent.Last(1); ok {
		return last
	}
	return match.D
}

// TitFor2Tats defects only after two consecutive opponent defections.
type TitFor2Tats struct{}

func (TitFor2Tats) Name() string        { return "TitFor2Tats" }
func (TitFor2Tats) Reset()              {}
func (TitFor2Tats) Clone() match.Player { return TitFor2Tats{} }
func (TitFor2Tats) Stochastic() bool    { return false }
func (TitFor2Tats) Decide(_ *rand.Rand, _, opponent match.History) match.Action {
	a, okA := opponent.Last(1)
	b, okB := opponent.Last(2)
	if okA && okB && a == match.D && b == match.D {
		return match.D
	}
	return match.C
}

type Grudger struct{}

func (Grudger) Name() string        { return "Grudger" }
func (Grudger) Reset()              {}
func (Grudger) Clone() match.Player { return Grudger{} }
func (Grudger) Stochastic() bool    { return false }
func (Grudger) Decide(_ *rand.Rand, _, opponent match.History) match.Action {
	if opponent.Count(match.D) > 0 {
		return match.D
	}
	return match.C
}

type Alternator struct{}

func (Alternator) Name() string        { return "Alternator" }
func (Alternator) Reset()              {}
func (Alternator) Clone() match.Player { return Alternator{} }
func (Alternator) Stochastic() bool    { return false }
func (Alternator) Decide(_ *rand.Rand, own, _ match.History) match.Action {
	if last, ok := own.Last(1); ok {
		return last.Flip()
	}
	return match.C
}

// WinStayLoseShift repeats its move after the opponent cooperated and
// switches otherwise.
type WinStayLoseShift struct{}

func (WinStayLoseShift) Name() string        { return "WinStayLoseShift" }
func (WinStayLoseShift) Reset()              {}
func (WinStayLoseShift) Clone() match.Player { return WinStayLoseShift{} }
func (WinStayLoseShift) Stochastic() bool    { return false }
func (WinStayLoseShift) Decide(_ *rand.Rand, own, opponent match.History) match.Action {
	mine, ok := own.Last(1)
	if !ok {
		return match.C
	}
	theirs, _ := opponent.Last(1)
	if theirs == match.C {
		return mine
	}
	return mine.Flip()
}

// GoByMajority cooperates while the opponent has cooperated at least as
// often as it defected.
type GoByMajority struct{}

func (GoByMajority) Name() string        { return "GoByMajority" }
func (GoByMajority) Reset()              {}
func (GoByMajority) Clone() match.Player { return GoByMajority{} }
func (GoByMajority) Stochastic() bool    { return false }
func (GoByMajority) Decide(_ *rand.Rand, _, opponent match.History) match.Action {
	if opponent.Count(match.D) > opponent.Count(match.C) {
		return match.D
	}
	return match.C
}

// Random cooperates with probability P.
type Random struct {
	P float64
}

func (r Random) Name() string        { return fmt.Sprintf("Random: %g", r.P) }
func (Random) Reset()                {}
func (r Random) Clone() match.Player { return r }
func (r Random) Stochastic() bool    { return r.P > 0 && r.P < 1 }
func (r Random) Decide(rng *rand.Rand, _, _ match.History) match.Action {
	return chance(rng, r.P)
}

// Cycler repeats a fixed action sequence.
type Cycler struct {
	Sequence []match.Action
}

func NewCycler(sequence []match.Action) *Cycler {
	return &Cycler{Sequence: append([]match.Action(nil), sequence...)}
}

func (c *Cycler) Name() string {
	return "Cycler " + match.FormatActions(c.Sequence)
}
func (*Cycler) Reset() {}
func (c *Cycler) Clone() match.Player {
	return NewCycler(c.Sequence)
}
func (*Cycler) Stochastic() bool { return false }
func (c *Cycler) Decide(_ *rand.Rand, own, _ match.History) match.Action {
	if len(c.Sequence) == 0 {
		return match.C
	}
	return c.Sequence[len(own)%len(c.Sequence)]
}
