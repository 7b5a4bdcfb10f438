package strategy

import (
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

// LookupKeys is the shape of a lookup table: the player's own recent plays,
// the opponent's recent plays and the opponent's opening plays.
type LookupKeys struct {
	Plays         int
	OppPlays      int
	OppStartPlays int
}

func (k LookupKeys) Validate() error {
	if k.Plays < 0 || k.OppPlays < 0 || k.OppStartPlays < 0 {
		return fmt.Errorf("lookup depths must be >= 0: %+v", k)
	}
	if k.Plays+k.OppPlays+k.OppStartPlays == 0 {
		return fmt.Errorf("lookup table needs at least one key play")
	}
	if k.Plays+k.OppPlays+k.OppStartPlays > 20 {
		return fmt.Errorf("lookup table too large: %+v", k)
	}
	return nil
}

// Size is the number of table entries, 2^(plays+opp_plays+opp_start_plays).
func (k LookupKeys) Size() int {
	return 1 << (k.Plays + k.OppPlays + k.OppStartPlays)
}

func (k LookupKeys) depth() int {
	return max(k.Plays, k.OppPlays, k.OppStartPlays)
}

// Index maps the current histories to a table slot, or -1 while the
// histories are still shorter than the table depth. Bits are ordered own
// plays, opponent plays, opponent openings with D as 1.
func (k LookupKeys) Index(own, opponent match.History) int {
	if len(own) < k.depth() || len(opponent) < k.depth() {
		return -1
	}
	idx := 0
	push := func(a match.Action) {
		idx <<= 1
		if a == match.D {
			idx |= 1
		}
	}
	for i := k.Plays; i >= 1; i-- {
		a, _ := own.Last(i)
		push(a)
	}
	for i := k.OppPlays; i >= 1; i-- {
		a, _ := opponent.Last(i)
		push(a)
	}
	for i := 0; i < k.OppStartPlays; i++ {
		push(opponent[i])
	}
	return idx
}

// LookerUp plays the action stored in its table for the current key and
// cooperates until enough history exists to form a key.
type LookerUp struct {
	Keys  LookupKeys
	Table []match.Action
}

func NewLookerUp(keys LookupKeys, table []match.Action) (*LookerUp, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if len(table) != keys.Size() {
		return nil, fmt.Errorf("lookup table size mismatch: got=%d want=%d", len(table), keys.Size())
	}
	return &LookerUp{Keys: keys, Table: append([]match.Action(nil), table...)}, nil
}

func (*LookerUp) Name() string     { return "LookerUp" }
func (*LookerUp) Reset()           {}
func (*LookerUp) Stochastic() bool { return false }
func (l *LookerUp) Clone() match.Player {
	return &LookerUp{Keys: l.Keys, Table: append([]match.Action(nil), l.Table...)}
}

func (l *LookerUp) Decide(_ *rand.Rand, own, opponent match.History) match.Action {
	idx := l.Keys.Index(own, opponent)
	if idx < 0 {
		return match.C
	}
	return l.Table[idx]
}

// Gambler is a lookup table of cooperation probabilities.
type Gambler struct {
	Keys    LookupKeys
	Pattern []float64
}

func NewGambler(keys LookupKeys, pattern []float64) (*Gambler, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if len(pattern) != keys.Size() {
		return nil, fmt.Errorf("gambler pattern size mismatch: got=%d want=%d", len(pattern), keys.Size())
	}
	for i, p := range pattern {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("gambler probability out of range at %d: %f", i, p)
		}
	}
	return &Gambler{Keys: keys, Pattern: append([]float64(nil), pattern...)}, nil
}

func (*Gambler) Name() string { return "Gambler" }
func (*Gambler) Reset()       {}
func (g *Gambler) Clone() match.Player {
	return &Gambler{Keys: g.Keys, Pattern: append([]float64(nil), g.Pattern...)}
}

func (g *Gambler) Stochastic() bool {
	for _, p := range g.Pattern {
		if p > 0 && p < 1 {
			return true
		}
	}
	return false
}

func (g *Gambler) Decide(rng *rand.Rand, own, opponent match.History) match.Action {
	idx := g.Keys.Index(own, opponent)
	if idx < 0 {
		return match.C
	}
	return chance(rng, g.Pattern[idx])
}

func chance(rng *rand.Rand, p float64) match.Action {
	if p >= 1 {
		return match.C
	}
	if p <= 0 {
		return match.D
	}
	if rng.Float64() < p {
		return match.C
	}
	return match.D
}
