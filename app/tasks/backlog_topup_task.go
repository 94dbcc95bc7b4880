package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/subtide/subtide/app/ingest"
)

// BacklogTopUpTask resumes backlog crawls for under-filled sources. The
// orchestrator's debounce guard makes frequent enqueueing cheap: a
// throttled run is a skip, not a failure.
type BacklogTopUpTask struct {
	Task
	orchestrator IngestRunner
}

func NewBacklogTopUpTask(orchestrator IngestRunner) *BacklogTopUpTask {
	task := NewTask(TaskTypeBacklogTopUp, "backlog top-up")
	task.MaxRetries = 0

	return &BacklogTopUpTask{
		Task:         task,
		orchestrator: orchestrator,
	}
}

func (t *BacklogTopUpTask) Execute(ctx context.Context) error {
	stats, err := t.orchestrator.TopUpBacklog(ctx)
	if errors.Is(err, ingest.ErrTopUpThrottled) {
		slog.Debug("Backlog top-up throttled, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "BacklogTopUp",
		"duration", t.GetDuration(),
		"sources", stats.Sources,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"new_items", stats.NewItems)

	return nil
}
