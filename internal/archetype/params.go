package archetype

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

var (
	ErrArchetypeExists  = errors.New("archetype already registered")
	ErrUnknownArchetype = errors.New("unknown archetype")
	ErrIncompatible     = errors.New("incompatible genomes")
	ErrParse            = errors.New("invalid genome encoding")
)

// maxMutationAttempts bounds the retry loop for mutations that can produce a
// structurally invalid genome before falling back to Randomize.
const maxMutationAttempts = 10

// Params is one candidate strategy encoding. Implementations are not safe
// for concurrent use; workers operate on their own copies.
type Params interface {
	Kind() string
	// Player builds a runnable strategy from the current encoding without
	// modifying it.
	Player() (match.Player, error)
	Copy() Params
	Randomize(rng *rand.Rand)
	Mutate(rng *rand.Rand)
	// Crossover returns a child made of a prefix of the receiver and a suffix
	// of other, cut at one structural unit boundary.
	Crossover(other Params, rng *rand.Rand) (Params, error)
	String() string
	MutationRate() float64
}

// VectorParams can be driven by a continuous optimiser.
type VectorParams interface {
	Params
	ReceiveVector(vector []float64) error
	VectorBounds() (lb, ub []float64)
}

// Columnar params contribute extra output columns after the genome string.
type Columnar interface {
	Columns() []string
}

// Factory creates genomes of one archetype and shape.
type Factory interface {
	Kind() string
	Random(rng *rand.Rand) Params
	Parse(s string) (Params, error)
}

// Options carries structural sizes for every archetype; each archetype reads
// the fields it needs. A zero MutationRate selects DefaultMutationRate.
type Options struct {
	MutationRate     float64 `yaml:"mutation_rate"`
	States           int     `yaml:"states"`
	Plays            int     `yaml:"plays"`
	OppPlays         int     `yaml:"opp_plays"`
	OppStartPlays    int     `yaml:"opp_start_plays"`
	Hidden           int     `yaml:"hidden"`
	MutationDistance float64 `yaml:"mutation_distance"`
	Length           int     `yaml:"length"`
}

// DefaultMutationRate is the per-element mutation probability used when the
// caller does not supply one. size is the archetype's structural size
// (states for fsm, pfsm and hmm).
func DefaultMutationRate(kind string, size int) float64 {
	switch kind {
	case KindHMM:
		if size <= 0 {
			return 1
		}
		return min(1, 10/float64(size*size))
	default:
		return 0.1
	}
}

type FactoryBuilder func(opts Options) (Factory, error)

var archetypeRegistry = struct {
	mu sync.RWMutex
	m  map[string]FactoryBuilder
}{
	m: make(map[string]FactoryBuilder),
}

func Register(kind string, builder FactoryBuilder) error {
	if kind == "" {
		return errors.New("archetype kind is required")
	}
	if builder == nil {
		return errors.New("archetype builder is required")
	}
	archetypeRegistry.mu.Lock()
	defer archetypeRegistry.mu.Unlock()

	if _, exists := archetypeRegistry.m[kind]; exists {
		return fmt.Errorf("%w: %s", ErrArchetypeExists, kind)
	}
	archetypeRegistry.m[kind] = builder
	return nil
}

func NewFactory(kind string, opts Options) (Factory, error) {
	archetypeRegistry.mu.RLock()
	builder, ok := archetypeRegistry.m[kind]
	archetypeRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchetype, kind)
	}
	if opts.MutationRate < 0 || opts.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0,1], got %f", opts.MutationRate)
	}
	return builder(opts)
}

func Kinds() []string {
	archetypeRegistry.mu.RLock()
	defer archetypeRegistry.mu.RUnlock()

	kinds := make([]string, 0, len(archetypeRegistry.m))
	for kind := range archetypeRegistry.m {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	for kind, builder := range map[string]FactoryBuilder{
		KindFSM:        newFSMFactory,
		KindPFSM:       newPFSMFactory,
		KindLookup:     newLookupFactory,
		KindGambler:    newGamblerFactory,
		KindHMM:        newHMMFactory,
		KindANN:        newANNFactory,
		KindCycler:     newCyclerFactory,
		KindThresholds: newThresholdsFactory,
	} {
		if err := Register(kind, builder); err != nil {
			panic(err)
		}
	}
}

func rateOrDefault(rate float64, kind string, size int) float64 {
	if rate > 0 {
		return rate
	}
	return DefaultMutationRate(kind, size)
}

func incompatible(self, other Params, detail string) error {
	return fmt.Errorf("%w: %s vs %s: %s", ErrIncompatible, self.Kind(), other.Kind(), detail)
}

func parseErr(kind, s, format string, args ...any) error {
	return fmt.Errorf("%w: %s %q: %s", ErrParse, kind, s, fmt.Sprintf(format, args...))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloats(values []float64, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, sep)
}

func parseFloats(s, sep string) ([]float64, error) {
	if s == "" {
		return nil, errors.New("empty value list")
	}
	parts := strings.Split(s, sep)
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func randomAction(rng *rand.Rand) match.Action {
	if rng.Intn(2) == 0 {
		return match.C
	}
	return match.D
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func unitBounds(n int, lo, hi float64) ([]float64, []float64) {
	lb := make([]float64, n)
	ub := make([]float64, n)
	for i := range lb {
		lb[i] = lo
		ub[i] = hi
	}
	return lb, ub
}

func checkVectorLength(kind string, vector []float64, want int) error {
	if len(vector) != want {
		return fmt.Errorf("%s vector length mismatch: got=%d want=%d", kind, len(vector), want)
	}
	return nil
}

// cutPoint draws a crossover cut in [0, units).
func cutPoint(rng *rand.Rand, units int) int {
	if units <= 1 {
		return 0
	}
	return rng.Intn(units)
}
