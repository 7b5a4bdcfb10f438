package archetype

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const (
	KindLookup  = "lookup"
	KindGambler = "gambler"
)

func keysFromOptions(opts Options) (strategy.LookupKeys, error) {
	keys := strategy.LookupKeys{Plays: opts.Plays, OppPlays: opts.OppPlays, OppStartPlays: opts.OppStartPlays}
	return keys, keys.Validate()
}

func formatKeys(keys strategy.LookupKeys) string {
	return fmt.Sprintf("%d:%d:%d", keys.Plays, keys.OppPlays, keys.OppStartPlays)
}

// parseKeyed splits "plays:opp_plays:opp_start:body".
func parseKeyed(kind, s string) (strategy.LookupKeys, string, error) {
	fields := strings.SplitN(s, ":", 4)
	if len(fields) != 4 {
		return strategy.LookupKeys{}, "", parseErr(kind, s, "expected 4 fields")
	}
	nums, err := parseInts(fields[:3])
	if err != nil {
		return strategy.LookupKeys{}, "", parseErr(kind, s, "%v", err)
	}
	keys := strategy.LookupKeys{Plays: nums[0], OppPlays: nums[1], OppStartPlays: nums[2]}
	if err := keys.Validate(); err != nil {
		return strategy.LookupKeys{}, "", parseErr(kind, s, "%v", err)
	}
	return keys, fields[3], nil
}

// LookupParams is a deterministic lookup table with one action per key.
type LookupParams struct {
	keys  strategy.LookupKeys
	table []match.Action
	rate  float64
}

type lookupFactory struct {
	keys strategy.LookupKeys
	rate float64
}

func newLookupFactory(opts Options) (Factory, error) {
	keys, err := keysFromOptions(opts)
	if err != nil {
		return nil, err
	}
	return lookupFactory{keys: keys, rate: rateOrDefault(opts.MutationRate, KindLookup, keys.Size())}, nil
}

func (lookupFactory) Kind() string { return KindLookup }

func (f lookupFactory) Random(rng *rand.Rand) Params {
	p := &LookupParams{keys: f.keys, rate: f.rate}
	p.Randomize(rng)
	return p
}

func (f lookupFactory) Parse(s string) (Params, error) {
	keys, body, err := parseKeyed(KindLookup, s)
	if err != nil {
		return nil, err
	}
	if keys != f.keys {
		return nil, parseErr(KindLookup, s, "keys %s, want %s", formatKeys(keys), formatKeys(f.keys))
	}
	table, err := match.ParseActions(body)
	if err != nil {
		return nil, parseErr(KindLookup, s, "%v", err)
	}
	if len(table) != keys.Size() {
		return nil, parseErr(KindLookup, s, "table has %d entries, want %d", len(table), keys.Size())
	}
	return &LookupParams{keys: keys, table: table, rate: f.rate}, nil
}

func (*LookupParams) Kind() string { return KindLookup }

func (p *LookupParams) MutationRate() float64 { return p.rate }

func (p *LookupParams) Player() (match.Player, error) {
	return strategy.NewLookerUp(p.keys, p.table)
}

func (p *LookupParams) Copy() Params {
	c := *p
	c.table = append([]match.Action(nil), p.table...)
	return &c
}

func (p *LookupParams) Randomize(rng *rand.Rand) {
	p.table = make([]match.Action, p.keys.Size())
	for i := range p.table {
		p.table[i] = randomAction(rng)
	}
}

func (p *LookupParams) Mutate(rng *rand.Rand) {
	for i := range p.table {
		if rng.Float64() < p.rate {
			p.table[i] = p.table[i].Flip()
		}
	}
}

func (p *LookupParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*LookupParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if o.keys != p.keys {
		return nil, incompatible(p, other, "different table keys")
	}
	return p.crossoverAt(o, cutPoint(rng, len(p.table))), nil
}

func (p *LookupParams) crossoverAt(o *LookupParams, k int) *LookupParams {
	child := p.Copy().(*LookupParams)
	copy(child.table[k:], o.table[k:])
	return child
}

func (p *LookupParams) String() string {
	return formatKeys(p.keys) + ":" + match.FormatActions(p.table)
}

// Columns lists the table entries one per column.
func (p *LookupParams) Columns() []string {
	out := make([]string, len(p.table))
	for i, a := range p.table {
		out[i] = a.String()
	}
	return out
}

// GamblerParams is a lookup table of cooperation probabilities.
type GamblerParams struct {
	keys    strategy.LookupKeys
	pattern []float64
	rate    float64
}

type gamblerFactory struct {
	keys strategy.LookupKeys
	rate float64
}

func newGamblerFactory(opts Options) (Factory, error) {
	keys, err := keysFromOptions(opts)
	if err != nil {
		return nil, err
	}
	return gamblerFactory{keys: keys, rate: rateOrDefault(opts.MutationRate, KindGambler, keys.Size())}, nil
}

func (gamblerFactory) Kind() string { return KindGambler }

func (f gamblerFactory) Random(rng *rand.Rand) Params {
	p := &GamblerParams{keys: f.keys, rate: f.rate}
	p.Randomize(rng)
	return p
}

// Parse reads "plays:opp_plays:opp_start:p|p|...".
func (f gamblerFactory) Parse(s string) (Params, error) {
	keys, body, err := parseKeyed(KindGambler, s)
	if err != nil {
		return nil, err
	}
	if keys != f.keys {
		return nil, parseErr(KindGambler, s, "keys %s, want %s", formatKeys(keys), formatKeys(f.keys))
	}
	pattern, err := parseFloats(body, "|")
	if err != nil {
		return nil, parseErr(KindGambler, s, "%v", err)
	}
	if len(pattern) != keys.Size() {
		return nil, parseErr(KindGambler, s, "pattern has %d entries, want %d", len(pattern), keys.Size())
	}
	for _, v := range pattern {
		if v < 0 || v > 1 {
			return nil, parseErr(KindGambler, s, "probability out of range: %s", formatFloat(v))
		}
	}
	return &GamblerParams{keys: keys, pattern: pattern, rate: f.rate}, nil
}

func (*GamblerParams) Kind() string { return KindGambler }

func (p *GamblerParams) MutationRate() float64 { return p.rate }

func (p *GamblerParams) Player() (match.Player, error) {
	return strategy.NewGambler(p.keys, p.pattern)
}

func (p *GamblerParams) Copy() Params {
	c := *p
	c.pattern = append([]float64(nil), p.pattern...)
	return &c
}

func (p *GamblerParams) Randomize(rng *rand.Rand) {
	p.pattern = make([]float64, p.keys.Size())
	for i := range p.pattern {
		p.pattern[i] = rng.Float64()
	}
}

// Mutate jitters each probability by up to 0.25 with the mutation rate.
func (p *GamblerParams) Mutate(rng *rand.Rand) {
	for i := range p.pattern {
		if rng.Float64() < p.rate {
			p.pattern[i] = clamp(p.pattern[i]+(2*rng.Float64()-1)/4, 0, 1)
		}
	}
}

func (p *GamblerParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*GamblerParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if o.keys != p.keys {
		return nil, incompatible(p, other, "different table keys")
	}
	return p.crossoverAt(o, cutPoint(rng, len(p.pattern))), nil
}

func (p *GamblerParams) crossoverAt(o *GamblerParams, k int) *GamblerParams {
	child := p.Copy().(*GamblerParams)
	copy(child.pattern[k:], o.pattern[k:])
	return child
}

func (p *GamblerParams) String() string {
	return formatKeys(p.keys) + ":" + formatFloats(p.pattern, "|")
}

func (p *GamblerParams) Columns() []string {
	out := make([]string, len(p.pattern))
	for i, v := range p.pattern {
		out[i] = formatFloat(v)
	}
	return out
}

func (p *GamblerParams) ReceiveVector(vector []float64) error {
	if err := checkVectorLength(KindGambler, vector, len(p.pattern)); err != nil {
		return err
	}
	for i, v := range vector {
		p.pattern[i] = clamp(v, 0, 1)
	}
	return nil
}

func (p *GamblerParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(len(p.pattern), 0, 1)
}
