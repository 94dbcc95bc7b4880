package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// FetchSourceTask fetches a single source, for manual API triggers.
type FetchSourceTask struct {
	Task
	SourceRowID  string
	orchestrator IngestRunner
}

func NewFetchSourceTask(orchestrator IngestRunner, sourceRowID string) *FetchSourceTask {
	return &FetchSourceTask{
		Task:         NewTask(TaskTypeFetchSource, sourceRowID),
		SourceRowID:  sourceRowID,
		orchestrator: orchestrator,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	stats, err := t.orchestrator.FetchSource(ctx, t.SourceRowID)
	if err != nil {
		return fmt.Errorf("failed to fetch source %s: %w", t.SourceRowID, err)
	}

	slog.Info("Task completed",
		"type", "FetchSource",
		"source_row_id", t.SourceRowID,
		"duration", t.GetDuration(),
		"new", stats.New,
		"known", stats.Known,
		"backlog_new", stats.BacklogNew)

	return nil
}
