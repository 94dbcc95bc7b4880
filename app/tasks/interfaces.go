package tasks

import (
	"context"

	"github.com/subtide/subtide/app/ingest"
)

// TaskSchedulerInterface is the surface consumed by the API layer for
// enqueueing manual tasks.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// IngestRunner is the ingestion surface tasks execute against.
type IngestRunner interface {
	FetchAll(ctx context.Context) (ingest.BatchStats, error)
	FetchSource(ctx context.Context, sourceRowID string) (ingest.SourceStats, error)
	TopUpBacklog(ctx context.Context) (ingest.BatchStats, error)
}
