package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sumeru-26/axelrod-dojo/internal/model"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const runIndexFile = "run_index.json"

var artifactFiles = []string{"config.json", "fitness_history.json", "top_genomes.json", "summary.json", "series.csv"}

type RunConfig struct {
	RunID       string                `json:"run_id"`
	Mode        string                `json:"mode"`
	Archetype   string                `json:"archetype"`
	Objective   string                `json:"objective"`
	Game        string                `json:"game"`
	Turns       int                   `json:"turns"`
	Noise       float64               `json:"noise"`
	Repetitions int                   `json:"repetitions"`
	NMoran      int                   `json:"nmoran,omitempty"`
	Opponents   []strategy.PlayerInfo `json:"opponents"`
	Weights     []float64             `json:"weights,omitempty"`
	SampleCount int                   `json:"sample_count,omitempty"`
	Population  int                   `json:"population"`
	Bottleneck  int                   `json:"bottleneck,omitempty"`
	Generations int                   `json:"generations"`
	Seed        int64                 `json:"seed"`
	Workers     int                   `json:"workers"`
}

type TopGenome struct {
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
	Genome string  `json:"genome"`
}

type RunArtifacts struct {
	Config         RunConfig             `json:"config"`
	Rows           []model.GenerationRow `json:"rows"`
	FinalBestScore float64               `json:"final_best_score"`
	TopGenomes     []TopGenome           `json:"top_genomes"`
}

// SeriesSummary describes the best-score trajectory of one run.
type SeriesSummary struct {
	RunID       string  `json:"run_id"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	BestMin     float64 `json:"best_min"`
	Improvement float64 `json:"improvement"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Mode           string  `json:"mode"`
	Archetype      string  `json:"archetype"`
	Objective      string  `json:"objective"`
	Population     int     `json:"population"`
	Generations    int     `json:"generations"`
	Seed           int64   `json:"seed"`
	FinalBestScore float64 `json:"final_best_score"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

func BestSeries(rows []model.GenerationRow) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row.Best
	}
	return out
}

func Summarize(runID string, best []float64) SeriesSummary {
	s := SeriesSummary{RunID: runID}
	if len(best) == 0 {
		return s
	}
	s.InitialBest = best[0]
	s.FinalBest = best[len(best)-1]
	s.BestMean, s.BestStd = stat.PopMeanStdDev(best, nil)
	s.BestMax = floats.Max(best)
	s.BestMin = floats.Min(best)
	s.Improvement = s.FinalBest - s.InitialBest
	return s
}

// WriteRunArtifacts lays out baseDir/<run id>/ with the run configuration,
// per-generation history, top genomes, a summary and a CSV best series.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	best := BestSeries(artifacts.Rows)
	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{"rows": artifacts.Rows, "final_best_score": artifacts.FinalBestScore}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_genomes.json"), artifacts.TopGenomes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), Summarize(artifacts.Config.RunID, best)); err != nil {
		return "", err
	}
	if err := WriteBestSeries(runDir, best); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range artifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadTopGenomes(baseDir, runID string) ([]TopGenome, bool, error) {
	var top []TopGenome
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_genomes.json"), &top)
	return top, ok, err
}

func ReadSummary(baseDir, runID string) (SeriesSummary, bool, error) {
	var summary SeriesSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "summary.json"), &summary)
	return summary, ok, err
}

func WriteBestSeries(runDir string, best []float64) error {
	file, err := os.Create(filepath.Join(runDir, "series.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_score"}); err != nil {
		return err
	}
	for i, v := range best {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(v, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadBestSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "series.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("best series header must have at least 2 columns")
	}

	series := make([]float64, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("best series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
