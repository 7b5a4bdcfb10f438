package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sumeru-26/axelrod-dojo/internal/model"
)

func TestDecodeRunFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.ID != "run-fsm-1" || run.Archetype != "fsm" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(run.Opponents) != 3 || run.Opponents[2] != "TitForTat" {
		t.Fatalf("unexpected opponents: %+v", run.Opponents)
	}
	if want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC); !run.StartedAt.Equal(want) {
		t.Fatalf("unexpected start time: %v", run.StartedAt)
	}
}

func TestDecodeTopGenomesFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("top_genomes_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	top, err := DecodeTopGenomes(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if len(top) != 2 || top[0].Rank != 1 || top[1].Genome != "1:1:1:CDDCCDCD" {
		t.Fatalf("unexpected top genomes: %+v", top)
	}
}

func TestRunRoundTrip(t *testing.T) {
	input := model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "run-1",
		Mode:            "pso",
		Archetype:       "gambler",
		Objective:       "score_diff",
		Opponents:       []string{"Grudger"},
		Population:      30,
		Generations:     12,
		Seed:            99,
		StartedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		BestScore:       1.5,
		BestGenome:      "1:1:0:0.5|0.25|1|0",
	}
	data, err := EncodeRun(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !output.StartedAt.Equal(input.StartedAt) {
		t.Fatalf("start time mismatch: got=%v want=%v", output.StartedAt, input.StartedAt)
	}
	if !output.CompletedAt.IsZero() {
		t.Fatalf("expected zero completion time, got %v", output.CompletedAt)
	}
	output.StartedAt, input.StartedAt = time.Time{}, time.Time{}
	output.CompletedAt = time.Time{}
	if !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", output, input)
	}
}

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "future",
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeTopGenomesRejectsVersionMismatch(t *testing.T) {
	data, err := EncodeTopGenomes([]model.TopGenomeRecord{{Rank: 1, Genome: "CCD"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeTopGenomes(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
