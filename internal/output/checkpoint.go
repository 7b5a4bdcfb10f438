package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/model"
)

// LoadRows reads every report row from a CSV run file.
func LoadRows(path string) ([]model.GenerationRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var rows []model.GenerationRow
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row, err := ParseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SortByBest orders rows by best score, highest first. Equal scores keep
// file order.
func SortByBest(rows []model.GenerationRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Best > rows[j].Best })
}

// LoadTop parses the genomes of the k best rows of a run file. Fewer than
// k genomes are returned when the file is shorter.
func LoadTop(path string, k int, factory archetype.Factory) ([]archetype.Params, error) {
	if k < 0 {
		return nil, fmt.Errorf("k must be >= 0")
	}
	rows, err := LoadRows(path)
	if err != nil {
		return nil, err
	}
	SortByBest(rows)
	if k > len(rows) {
		k = len(rows)
	}
	out := make([]archetype.Params, 0, k)
	for _, row := range rows[:k] {
		params, err := factory.Parse(row.Genome)
		if err != nil {
			return nil, fmt.Errorf("%s generation %d: %w", path, row.Generation, err)
		}
		out = append(out, params)
	}
	return out, nil
}

// RankedRow is a report row tagged with the file it came from.
type RankedRow struct {
	Path string
	Row  model.GenerationRow
}

// BestRows returns the k best rows across several run files.
func BestRows(paths []string, k int) ([]RankedRow, error) {
	var all []RankedRow
	for _, path := range paths {
		rows, err := LoadRows(path)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			all = append(all, RankedRow{Path: path, Row: row})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Row.Best > all[j].Row.Best })
	if k > 0 && k < len(all) {
		all = all[:k]
	}
	return all, nil
}
