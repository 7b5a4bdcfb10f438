package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GenerationRow is one report row: generation index, mean and population
// standard deviation of the scores, the best score and the best genome's
// serialized form, followed by archetype-specific columns.
type GenerationRow struct {
	Generation int      `json:"generation"`
	Mean       float64  `json:"mean"`
	StdDev     float64  `json:"stddev"`
	Best       float64  `json:"best"`
	Genome     string   `json:"genome"`
	Extra      []string `json:"extra,omitempty"`
}

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunRecord describes one evolutionary or swarm run. A failed run keeps the
// best genome found before the failure; FailedAt is the generation (or swarm
// iteration, 0 for the initial scoring) that failed.
type RunRecord struct {
	VersionedRecord
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	Archetype   string    `json:"archetype"`
	Objective   string    `json:"objective"`
	Game        string    `json:"game"`
	Opponents   []string  `json:"opponents"`
	Population  int       `json:"population"`
	Bottleneck  int       `json:"bottleneck,omitempty"`
	Generations int       `json:"generations"`
	Seed        int64     `json:"seed"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	BestScore   float64   `json:"best_score"`
	BestGenome  string    `json:"best_genome"`
	Status      string    `json:"status,omitempty"`
	FailedAt    int       `json:"failed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type TopGenomeRecord struct {
	VersionedRecord
	Rank      int     `json:"rank"`
	Archetype string  `json:"archetype"`
	Score     float64 `json:"score"`
	Genome    string  `json:"genome"`
}
