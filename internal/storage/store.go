package storage

import (
	"context"

	"github.com/sumeru-26/axelrod-dojo/internal/model"
)

// Store persists run metadata, per-generation report rows and the final
// ranking of each run.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendGeneration(ctx context.Context, runID string, row model.GenerationRow) error
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationRow, bool, error)
	SaveTopGenomes(ctx context.Context, runID string, top []model.TopGenomeRecord) error
	GetTopGenomes(ctx context.Context, runID string) ([]model.TopGenomeRecord, bool, error)
}
