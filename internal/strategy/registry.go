package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

var (
	ErrStrategyExists  = errors.New("strategy already registered")
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// PlayerInfo names a strategy and its constructor arguments without holding
// a live instance, so every match can build a fresh player.
type PlayerInfo struct {
	Strategy string            `json:"strategy" yaml:"strategy"`
	Args     map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
}

func (p PlayerInfo) String() string {
	if len(p.Args) == 0 {
		return p.Strategy
	}
	keys := make([]string, 0, len(p.Args))
	for k := range p.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{p.Strategy}
	for _, k := range keys {
		parts = append(parts, k+"="+p.Args[k])
	}
	return strings.Join(parts, ":")
}

// Builder constructs a player from string arguments.
type Builder func(args map[string]string) (match.Player, error)

var strategyRegistry = struct {
	mu sync.RWMutex
	m  map[string]Builder
}{
	m: make(map[string]Builder),
}

func Register(name string, builder Builder) error {
	if name == "" {
		return errors.New("strategy name is required")
	}
	if builder == nil {
		return errors.New("strategy builder is required")
	}
	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()

	if _, exists := strategyRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	strategyRegistry.m[name] = builder
	return nil
}

// New instantiates a fresh player for info.
func New(info PlayerInfo) (match.Player, error) {
	strategyRegistry.mu.RLock()
	builder, ok := strategyRegistry.m[info.Strategy]
	strategyRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, info.Strategy)
	}
	player, err := builder(info.Args)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", info.Strategy, err)
	}
	return player, nil
}

func Names() []string {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	names := make([]string, 0, len(strategyRegistry.m))
	for name := range strategyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseInfos decodes a comma separated opponent list such as
// "TitForTat,Random:p=0.3,Cycler:pattern=CCD".
func ParseInfos(s string) ([]PlayerInfo, error) {
	var out []PlayerInfo
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		info := PlayerInfo{Strategy: parts[0]}
		for _, kv := range parts[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid strategy argument %q in %q", kv, item)
			}
			if info.Args == nil {
				info.Args = make(map[string]string)
			}
			info.Args[k] = v
		}
		out = append(out, info)
	}
	if len(out) == 0 {
		return nil, errors.New("no strategies listed")
	}
	return out, nil
}

// DefaultOpponents returns the fixed opponent pool for a game.
func DefaultOpponents(game string) []PlayerInfo {
	if game == "ultimatum" {
		return []PlayerInfo{
			thresholdInfo(0.5, 0.5, 0.5, 0.5),
			thresholdInfo(0.1, 0.3, 0.1, 1),
			thresholdInfo(0.4, 0.6, 0.3, 0.7),
			thresholdInfo(0, 1, 0, 1),
		}
	}
	return []PlayerInfo{
		{Strategy: "Cooperator"},
		{Strategy: "Defector"},
		{Strategy: "TitForTat"},
		{Strategy: "SuspiciousTitForTat"},
		{Strategy: "TitFor2Tats"},
		{Strategy: "Grudger"},
		{Strategy: "Alternator"},
		{Strategy: "WinStayLoseShift"},
		{Strategy: "GoByMajority"},
		{Strategy: "Random", Args: map[string]string{"p": "0.5"}},
		{Strategy: "Cycler", Args: map[string]string{"pattern": "CCD"}},
	}
}

func thresholdInfo(lo, uo, la, ua float64) PlayerInfo {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return PlayerInfo{
		Strategy: "DoubleThresholds",
		Args:     map[string]string{"lo": f(lo), "uo": f(uo), "la": f(la), "ua": f(ua)},
	}
}

func floatArg(args map[string]string, key string, def float64) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", key, err)
	}
	return v, nil
}

func stateless(p match.Player) Builder {
	return func(map[string]string) (match.Player, error) {
		return p.Clone(), nil
	}
}

func init() {
	builtin := map[string]Builder{
		"Cooperator":          stateless(Cooperator{}),
		"Defector":            stateless(Defector{}),
		"TitForTat":           stateless(TitForTat{}),
		"SuspiciousTitForTat": stateless(SuspiciousTitForTat{}),
		"TitFor2Tats":         stateless(TitFor2Tats{}),
		"Grudger":             stateless(Grudger{}),
		"Alternator":          stateless(Alternator{}),
		"WinStayLoseShift":    stateless(WinStayLoseShift{}),
		"GoByMajority":        stateless(GoByMajority{}),
		"Random": func(args map[string]string) (match.Player, error) {
			p, err := floatArg(args, "p", 0.5)
			if err != nil {
				return nil, err
			}
			if p < 0 || p > 1 {
				return nil, fmt.Errorf("probability out of range: %f", p)
			}
			return Random{P: p}, nil
		},
		"Cycler": func(args map[string]string) (match.Player, error) {
			pattern := args["pattern"]
			if pattern == "" {
				pattern = "CCD"
			}
			seq, err := match.ParseActions(pattern)
			if err != nil {
				return nil, err
			}
			return NewCycler(seq), nil
		},
		"DoubleThresholds": func(args map[string]string) (match.Player, error) {
			var v [4]float64
			for i, key := range []string{"lo", "uo", "la", "ua"} {
				x, err := floatArg(args, key, 0.5)
				if err != nil {
					return nil, err
				}
				v[i] = x
			}
			return NewDoubleThresholds(v[0], v[1], v[2], v[3])
		},
	}
	for name, builder := range builtin {
		if err := Register(name, builder); err != nil {
			panic(err)
		}
	}
}
