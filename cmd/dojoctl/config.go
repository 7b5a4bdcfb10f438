package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/scoring"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
	"github.com/sumeru-26/axelrod-dojo/pkg/dojo"
)

// runConfig is the file form of an evolve or pso run. Flags set on the
// command line override it.
type runConfig struct {
	RunID     string                `yaml:"run_id"`
	Archetype string                `yaml:"archetype"`
	Shape     archetype.Options     `yaml:"shape"`
	Game      string                `yaml:"game"`
	Objective objective.Config      `yaml:"objective"`
	Opponents []strategy.PlayerInfo `yaml:"opponents"`
	Scoring   scoring.Options       `yaml:"scoring"`
	Workers   int                   `yaml:"workers"`
	Seed      int64                 `yaml:"seed"`
	Output    string                `yaml:"output"`

	Population  int    `yaml:"population"`
	Bottleneck  int    `yaml:"bottleneck"`
	Generations int    `yaml:"generations"`
	Init        string `yaml:"init"`

	Particles  int     `yaml:"particles"`
	Iterations int     `yaml:"iterations"`
	Omega      float64 `yaml:"omega"`
	PhiP       float64 `yaml:"phip"`
	PhiG       float64 `yaml:"phig"`
}

func loadRunConfig(path string) (runConfig, error) {
	var cfg runConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// overrideFromFlags copies the value of every flag named in set into cfg.
func overrideFromFlags(cfg *runConfig, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			cfg.RunID = v.(string)
		case "archetype":
			cfg.Archetype = v.(string)
		case "states":
			cfg.Shape.States = v.(int)
		case "plays":
			cfg.Shape.Plays = v.(int)
		case "opp-plays":
			cfg.Shape.OppPlays = v.(int)
		case "opp-start-plays":
			cfg.Shape.OppStartPlays = v.(int)
		case "hidden":
			cfg.Shape.Hidden = v.(int)
		case "length":
			cfg.Shape.Length = v.(int)
		case "mu":
			cfg.Shape.MutationRate = v.(float64)
		case "mutation-distance":
			cfg.Shape.MutationDistance = v.(float64)
		case "game":
			cfg.Game = v.(string)
		case "objective":
			cfg.Objective.Name = v.(string)
		case "turns":
			cfg.Objective.Turns = v.(int)
		case "noise":
			cfg.Objective.Noise = v.(float64)
		case "repetitions":
			cfg.Objective.Repetitions = v.(int)
		case "nmoran":
			cfg.Objective.NMoran = v.(int)
		case "opponents":
			s := v.(string)
			if s == "" {
				cfg.Opponents = nil
				continue
			}
			infos, err := strategy.ParseInfos(s)
			if err != nil {
				return err
			}
			cfg.Opponents = infos
		case "weights":
			weights, err := parseWeights(v.(string))
			if err != nil {
				return err
			}
			cfg.Scoring.Weights = weights
		case "sample-count":
			cfg.Scoring.SampleCount = v.(int)
		case "workers":
			cfg.Workers = v.(int)
		case "seed":
			cfg.Seed = v.(int64)
		case "output":
			cfg.Output = v.(string)
		case "pop":
			cfg.Population = v.(int)
		case "bottleneck":
			cfg.Bottleneck = v.(int)
		case "gens":
			cfg.Generations = v.(int)
		case "init":
			cfg.Init = v.(string)
		case "particles":
			cfg.Particles = v.(int)
		case "iterations":
			cfg.Iterations = v.(int)
		case "omega":
			cfg.Omega = v.(float64)
		case "phip":
			cfg.PhiP = v.(float64)
		case "phig":
			cfg.PhiG = v.(float64)
		}
	}
	return nil
}

func parseWeights(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", part, err)
		}
		out[i] = v
	}
	return out, nil
}

// defaultShape fills structural sizes the archetype needs but the caller
// left at zero.
func defaultShape(kind string, shape archetype.Options) archetype.Options {
	switch kind {
	case archetype.KindFSM, archetype.KindPFSM:
		if shape.States == 0 {
			shape.States = 16
		}
	case archetype.KindHMM:
		if shape.States == 0 {
			shape.States = 5
		}
	case archetype.KindLookup, archetype.KindGambler:
		if shape.Plays == 0 && shape.OppPlays == 0 && shape.OppStartPlays == 0 {
			shape.Plays, shape.OppPlays, shape.OppStartPlays = 2, 2, 2
		}
	case archetype.KindANN:
		if shape.Hidden == 0 {
			shape.Hidden = 10
		}
	}
	return shape
}

func (c runConfig) settings() (dojo.RunSettings, error) {
	obj := c.Objective
	if c.Game != "" {
		game, err := match.GameFromName(c.Game)
		if err != nil {
			return dojo.RunSettings{}, err
		}
		obj.Game = game
	}
	return dojo.RunSettings{
		RunID:      c.RunID,
		Archetype:  c.Archetype,
		Shape:      defaultShape(c.Archetype, c.Shape),
		Objective:  obj,
		Opponents:  c.Opponents,
		Scoring:    c.Scoring,
		Workers:    c.Workers,
		Seed:       c.Seed,
		OutputPath: c.Output,
	}, nil
}
