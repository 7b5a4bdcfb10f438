package stats

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:       runID,
			Mode:        "evolve",
			Archetype:   "fsm",
			Objective:   "score",
			Game:        "prisoners_dilemma",
			Turns:       200,
			Repetitions: 20,
			Opponents:   []strategy.PlayerInfo{{Strategy: "TitForTat"}},
			Population:  4,
			Bottleneck:  1,
			Generations: 3,
			Seed:        1,
			Workers:     2,
		},
		Rows: []model.GenerationRow{
			{Generation: 1, Mean: 1, Best: 2, Genome: "a"},
			{Generation: 2, Mean: 1.5, Best: 2.5, Genome: "b"},
			{Generation: 3, Mean: 2, Best: 3, Genome: "c"},
		},
		FinalBestScore: 3,
		TopGenomes:     []TopGenome{{Rank: 1, Score: 3, Genome: "c"}},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(cfg, artifacts.Config) {
		t.Fatalf("unexpected config: got=%+v want=%+v", cfg, artifacts.Config)
	}
	top, ok, err := ReadTopGenomes(baseDir, runID)
	if err != nil || !ok || len(top) != 1 || top[0].Genome != "c" {
		t.Fatalf("unexpected top genomes: %+v ok=%t err=%v", top, ok, err)
	}
	series, ok, err := ReadBestSeries(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(series, []float64{2, 2.5, 3}) {
		t.Fatalf("unexpected series: %v", series)
	}
	summary, ok, err := ReadSummary(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read summary: ok=%t err=%v", ok, err)
	}
	if summary.InitialBest != 2 || summary.FinalBest != 3 || summary.Improvement != 1 || summary.BestMax != 3 || summary.BestMin != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config; ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadBestSeries(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing series; ok=%t err=%v", ok, err)
	}
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("run-1", []float64{1, 3})
	if s.BestMean != 2 || s.BestStd != 1 {
		t.Fatalf("unexpected mean/std: %+v", s)
	}
	if empty := Summarize("run-2", nil); empty.RunID != "run-2" || empty.FinalBest != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:          "run-1",
		Mode:           "evolve",
		Archetype:      "lookup",
		Objective:      "score",
		Population:     8,
		Generations:    3,
		Seed:           1,
		FinalBestScore: 2.8,
		CreatedAtUTC:   "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:          "run-2",
		Mode:           "pso",
		Archetype:      "gambler",
		Objective:      "score",
		Population:     8,
		Generations:    3,
		Seed:           2,
		FinalBestScore: 2.9,
		CreatedAtUTC:   "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:          "run-1",
		Mode:           "evolve",
		Archetype:      "lookup",
		Objective:      "score",
		Population:     8,
		Generations:    3,
		Seed:           1,
		FinalBestScore: 3.0,
		CreatedAtUTC:   "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].FinalBestScore != 3.0 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}
