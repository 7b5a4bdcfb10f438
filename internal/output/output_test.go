package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/storage"
)

func writeRows(t *testing.T, path string, rows []model.GenerationRow) {
	t.Helper()
	sink, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	for _, row := range rows {
		if err := sink.WriteRow(context.Background(), row); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCSVSinkRowsAreReadableBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "fsm.csv")
	sink, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })

	row := model.GenerationRow{Generation: 1, Mean: 1.5, StdDev: 0.25, Best: 2.75, Genome: "0:C:0_C_0_C:0_D_0_D"}
	if err := sink.WriteRow(context.Background(), row); err != nil {
		t.Fatalf("write row: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "1,1.5,0.25,2.75,0:C:0_C_0_C:0_D_0_D" {
		t.Fatalf("unexpected row: %q", got)
	}
}

func TestCSVSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	writeRows(t, path, []model.GenerationRow{{Generation: 1, Genome: "CCD"}})
	writeRows(t, path, []model.GenerationRow{{Generation: 2, Genome: "CDD", Extra: []string{"C", "D", "D"}}})

	rows, err := LoadRows(path)
	if err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 2 || rows[1].Generation != 2 || !reflect.DeepEqual(rows[1].Extra, []string{"C", "D", "D"}) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestCSVSinkRejectsWritesAfterClose(t *testing.T) {
	sink, err := OpenCSV(filepath.Join(t.TempDir(), "out.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.WriteRow(context.Background(), model.GenerationRow{}); err == nil {
		t.Fatal("expected closed sink error")
	}
}

func TestParseRecordRejectsShortRows(t *testing.T) {
	if _, err := ParseRecord([]string{"1", "2", "3"}); err == nil {
		t.Fatal("expected short row error")
	}
	if _, err := ParseRecord([]string{"x", "1", "1", "1", "CCD"}); err == nil {
		t.Fatal("expected generation parse error")
	}
}

func TestLoadTopSortsByBestScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycler.csv")
	writeRows(t, path, []model.GenerationRow{
		{Generation: 1, Best: 1.5, Genome: "CCCD"},
		{Generation: 2, Best: 2.5, Genome: "CDCD"},
		{Generation: 3, Best: 2.0, Genome: "DDDD"},
	})
	factory, err := archetype.NewFactory(archetype.KindCycler, archetype.Options{Length: 4})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	top, err := LoadTop(path, 2, factory)
	if err != nil {
		t.Fatalf("load top: %v", err)
	}
	if len(top) != 2 || top[0].String() != "CDCD" || top[1].String() != "DDDD" {
		t.Fatalf("unexpected top genomes: %v", top)
	}

	all, err := LoadTop(path, 10, factory)
	if err != nil {
		t.Fatalf("load top: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all rows when k exceeds file, got %d", len(all))
	}
}

func TestLoadTopReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	writeRows(t, path, []model.GenerationRow{{Generation: 1, Best: 1, Genome: "CCCCCC"}})
	factory, err := archetype.NewFactory(archetype.KindCycler, archetype.Options{Length: 4})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, err := LoadTop(path, 1, factory); !errors.Is(err, archetype.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestBestRowsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	writeRows(t, a, []model.GenerationRow{{Generation: 1, Best: 1, Genome: "A1"}, {Generation: 2, Best: 3, Genome: "A2"}})
	writeRows(t, b, []model.GenerationRow{{Generation: 1, Best: 2, Genome: "B1"}})

	best, err := BestRows([]string{a, b}, 2)
	if err != nil {
		t.Fatalf("best rows: %v", err)
	}
	if len(best) != 2 || best[0].Row.Genome != "A2" || best[1].Path != b {
		t.Fatalf("unexpected best rows: %+v", best)
	}
}

func TestStoreAndMultiSink(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	mem := &MemorySink{}
	sink := MultiSink{NewStoreSink(store, "run-1"), mem}
	for g := 1; g <= 3; g++ {
		if err := sink.WriteRow(ctx, model.GenerationRow{Generation: g, Best: float64(g)}); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rows, ok, err := store.GetGenerations(ctx, "run-1")
	if err != nil || !ok || len(rows) != 3 {
		t.Fatalf("unexpected stored rows: %+v ok=%v err=%v", rows, ok, err)
	}
	if len(mem.Rows()) != 3 || !mem.Closed() {
		t.Fatalf("unexpected memory sink state: rows=%d closed=%v", len(mem.Rows()), mem.Closed())
	}
}
