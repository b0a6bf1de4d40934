package storage

import (
	"context"

	"synapsis/internal/model"
)

// Store defines persistence operations for run summaries and
// connectivity snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveSnapshot(ctx context.Context, snapshot model.ConnectivitySnapshot) error
	GetSnapshot(ctx context.Context, runID string) (model.ConnectivitySnapshot, bool, error)
}

// Resetter is implemented by stores that can drop all persisted data.
type Resetter interface {
	Reset(ctx context.Context) error
}
