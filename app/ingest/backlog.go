package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrTopUpThrottled is returned when a backlog top-up is refused because a
// prior run is still active or ran too recently.
var ErrTopUpThrottled = errors.New("backlog top-up throttled")

// topUpGuard is the in-process debounce for the scheduled backlog top-up.
// It is a soft advisory lock assuming a single active ingestion process; a
// multi-instance deployment would need a storage-backed lease instead.
type topUpGuard struct {
	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// tryAcquire reserves a run unless one is active or the cooldown has not
// elapsed since the previous run started.
func (g *topUpGuard) tryAcquire(cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return false
	}
	if !g.lastRun.IsZero() && time.Since(g.lastRun) < cooldown {
		return false
	}

	g.running = true
	g.lastRun = time.Now()
	return true
}

func (g *topUpGuard) release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

// TopUpBacklog resumes backlog crawls for a bounded batch of sources whose
// crawl is incomplete and outside the cooldown, prioritizing sources with
// the smallest accumulated backlog. Per-source errors are recorded and do
// not abort the batch.
func (o *Orchestrator) TopUpBacklog(ctx context.Context) (BatchStats, error) {
	if !o.guard.tryAcquire(o.topUpCooldown) {
		return BatchStats{}, ErrTopUpThrottled
	}
	defer o.guard.release()

	started := time.Now()

	candidates, err := o.sourceRepo.ListBacklogCandidates(o.topUpCooldown, o.backlogBatch)
	if err != nil {
		return BatchStats{}, err
	}

	stats := BatchStats{Sources: len(candidates)}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(started)
			return stats, err
		}

		if i > 0 {
			if err := o.pause(ctx); err != nil {
				stats.Duration = time.Since(started)
				return stats, err
			}
		}

		src := &candidates[i]
		now := time.Now().UTC()

		adapter, err := o.registry.Lookup(src.Type)
		if err != nil {
			o.recordError(src.ID, now, err)
			stats.Failed++
			continue
		}

		newCount, err := o.crawlBacklogPage(ctx, adapter, src, now)
		if err != nil {
			o.recordError(src.ID, now, err)
			stats.Failed++
			slog.Warn("Backlog crawl failed", "source", src.DisplayName, "source_row_id", src.ID, "error", err)
			continue
		}

		stats.Succeeded++
		stats.NewItems += newCount
	}

	stats.Duration = time.Since(started)
	slog.Info("Backlog top-up completed",
		"sources", stats.Sources,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"new_items", stats.NewItems,
		"duration", stats.Duration)

	return stats, nil
}
