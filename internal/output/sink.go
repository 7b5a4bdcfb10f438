package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/storage"
)

// BaseColumns is the number of fixed columns in every report row.
const BaseColumns = 5

// Sink receives one row per completed generation. Rows are written by a
// single goroutine.
type Sink interface {
	WriteRow(ctx context.Context, row model.GenerationRow) error
	Close() error
}

// Record renders row as CSV fields.
func Record(row model.GenerationRow) []string {
	out := make([]string, 0, BaseColumns+len(row.Extra))
	out = append(out,
		strconv.Itoa(row.Generation),
		formatFloat(row.Mean),
		formatFloat(row.StdDev),
		formatFloat(row.Best),
		row.Genome,
	)
	return append(out, row.Extra...)
}

// ParseRecord is the inverse of Record.
func ParseRecord(fields []string) (model.GenerationRow, error) {
	if len(fields) < BaseColumns {
		return model.GenerationRow{}, fmt.Errorf("row has %d columns, want at least %d", len(fields), BaseColumns)
	}
	generation, err := strconv.Atoi(fields[0])
	if err != nil {
		return model.GenerationRow{}, fmt.Errorf("generation: %w", err)
	}
	var values [3]float64
	for i := range values {
		values[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return model.GenerationRow{}, fmt.Errorf("column %d: %w", i+1, err)
		}
	}
	row := model.GenerationRow{
		Generation: generation,
		Mean:       values[0],
		StdDev:     values[1],
		Best:       values[2],
		Genome:     fields[4],
	}
	if len(fields) > BaseColumns {
		row.Extra = append([]string(nil), fields[BaseColumns:]...)
	}
	return row, nil
}

// CSVSink appends rows to a file and syncs after each one, so an
// interrupted run keeps every completed generation.
type CSVSink struct {
	path string
	file *os.File
	w    *csv.Writer
}

func OpenCSV(path string) (*CSVSink, error) {
	if path == "" {
		return nil, errors.New("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &CSVSink{path: path, file: file, w: csv.NewWriter(file)}, nil
}

func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) WriteRow(_ context.Context, row model.GenerationRow) error {
	if s.file == nil {
		return fmt.Errorf("write %s: sink is closed", s.path)
	}
	if err := s.w.Write(Record(row)); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	s.w.Flush()
	err := errors.Join(s.w.Error(), s.file.Close())
	s.file = nil
	return err
}

// StoreSink records rows under a run ID. The store's lifetime belongs to
// the caller.
type StoreSink struct {
	store storage.Store
	runID string
}

func NewStoreSink(store storage.Store, runID string) *StoreSink {
	return &StoreSink{store: store, runID: runID}
}

func (s *StoreSink) WriteRow(ctx context.Context, row model.GenerationRow) error {
	if err := s.store.AppendGeneration(ctx, s.runID, row); err != nil {
		return fmt.Errorf("store generation %d for run %s: %w", row.Generation, s.runID, err)
	}
	return nil
}

func (s *StoreSink) Close() error { return nil }

// MultiSink writes each row to every sink in order, stopping at the first
// error.
type MultiSink []Sink

func (m MultiSink) WriteRow(ctx context.Context, row model.GenerationRow) error {
	for _, sink := range m {
		if err := sink.WriteRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}

// MemorySink keeps rows in memory.
type MemorySink struct {
	mu     sync.Mutex
	rows   []model.GenerationRow
	closed bool
}

func (m *MemorySink) WriteRow(_ context.Context, row model.GenerationRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.Extra = append([]string(nil), row.Extra...)
	m.rows = append(m.rows, row)
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemorySink) Rows() []model.GenerationRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.GenerationRow(nil), m.rows...)
}

func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
