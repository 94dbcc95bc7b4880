package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/subtide/subtide/app/adapters"
	"github.com/subtide/subtide/app/cfg"
	"github.com/subtide/subtide/app/database"
)

// SourceStats summarizes one source's fetch.
type SourceStats struct {
	SourceRowID string
	New         int
	Known       int
	BacklogNew  int
}

// BatchStats summarizes a fetch-all or top-up run.
type BatchStats struct {
	Sources   int
	Succeeded int
	Failed    int
	NewItems  int
	Duration  time.Duration
}

// Orchestrator drives recent and backlog fetches across sources. Sources
// are always processed sequentially with a delay in between; external
// platforms rate-limit aggressively and parallel crawls trip bot detection.
type Orchestrator struct {
	registry   *adapters.Registry
	sourceRepo database.SourceRepository
	itemRepo   database.ItemRepository

	delay         time.Duration
	staleAfter    time.Duration
	recencyDays   int
	backlogLimit  int
	backlogBatch  int
	topUpCooldown time.Duration

	guard topUpGuard
}

func NewOrchestrator(registry *adapters.Registry, sourceRepo database.SourceRepository, itemRepo database.ItemRepository) *Orchestrator {
	c := cfg.Get()

	return &Orchestrator{
		registry:      registry,
		sourceRepo:    sourceRepo,
		itemRepo:      itemRepo,
		delay:         time.Duration(c.FetchDelaySeconds) * time.Second,
		staleAfter:    time.Duration(c.BacklogStaleDays) * 24 * time.Hour,
		recencyDays:   c.RecencyWindowDays,
		backlogLimit:  c.BacklogPageSize,
		backlogBatch:  c.BacklogBatchSize,
		topUpCooldown: time.Duration(c.BacklogCooldownHours) * time.Hour,
	}
}

// FetchAll processes every non-muted source in sequence. A source's failure
// is recorded on that source and never aborts the batch; only context
// cancellation stops the loop, and only between sources since adapter calls
// are opaque I/O.
func (o *Orchestrator) FetchAll(ctx context.Context) (BatchStats, error) {
	started := time.Now()

	sources, err := o.sourceRepo.ListFetchableSources()
	if err != nil {
		return BatchStats{}, fmt.Errorf("failed to list sources: %w", err)
	}

	stats := BatchStats{Sources: len(sources)}

	for i := range sources {
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

		src := &sources[i]
		srcStats, err := o.fetchSource(ctx, src)
		if err != nil {
			stats.Failed++
			slog.Warn("Source fetch failed", "source", src.DisplayName, "source_row_id", src.ID, "error", err)
			continue
		}

		stats.Succeeded++
		stats.NewItems += srcStats.New + srcStats.BacklogNew
	}

	stats.Duration = time.Since(started)
	slog.Info("Fetch-all completed",
		"sources", stats.Sources,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"new_items", stats.NewItems,
		"duration", stats.Duration)

	return stats, nil
}

// FetchSource fetches a single source by its row ID, for manual triggers.
func (o *Orchestrator) FetchSource(ctx context.Context, sourceRowID string) (SourceStats, error) {
	src, err := o.sourceRepo.GetSource(sourceRowID)
	if err != nil {
		return SourceStats{}, err
	}
	return o.fetchSource(ctx, src)
}

// fetchSource runs one source's recent fetch and, when the backlog crawl is
// due, one backlog page. An adapter error aborts the whole source fetch so
// partial recent+backlog results with undefined provenance are never
// persisted; the error is recorded on the source and the source stays
// eligible for future attempts.
func (o *Orchestrator) fetchSource(ctx context.Context, src *database.Source) (SourceStats, error) {
	now := time.Now().UTC()
	stats := SourceStats{SourceRowID: src.ID}

	adapter, err := o.registry.Lookup(src.Type)
	if err != nil {
		o.recordError(src.ID, now, err)
		return stats, err
	}

	backlogDue := o.backlogDue(src, now)

	items, err := adapter.FetchRecent(ctx, src.SourceID, o.recencyDays)
	if err != nil {
		o.recordError(src.ID, now, err)
		return stats, fmt.Errorf("failed to fetch recent items: %w", err)
	}

	newCount, err := o.itemRepo.StoreBatch(src.ID, convertItems(src.Type, items), now)
	if err != nil {
		o.recordError(src.ID, now, err)
		return stats, fmt.Errorf("failed to store recent items: %w", err)
	}
	stats.New = newCount
	stats.Known = len(items) - newCount

	if backlogDue {
		backlogNew, err := o.crawlBacklogPage(ctx, adapter, src, now)
		if err != nil {
			o.recordError(src.ID, now, err)
			return stats, err
		}
		stats.BacklogNew = backlogNew
	}

	if err := o.sourceRepo.MarkFetchSuccess(src.ID, now); err != nil {
		return stats, fmt.Errorf("failed to mark fetch success: %w", err)
	}

	slog.Debug("Source fetched",
		"source", src.DisplayName,
		"new", stats.New,
		"known", stats.Known,
		"backlog_new", stats.BacklogNew,
		"backlog_due", backlogDue)

	return stats, nil
}

// crawlBacklogPage fetches one backlog page using the stored cursor and
// persists the advanced cursor atomically with the item-count increment.
// An empty page means the crawl is exhausted regardless of HasMore.
func (o *Orchestrator) crawlBacklogPage(ctx context.Context, adapter adapters.Adapter, src *database.Source, now time.Time) (int, error) {
	page, err := adapter.FetchBacklog(ctx, src.SourceID, o.backlogLimit, src.BacklogPageToken)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch backlog page: %w", err)
	}

	newCount := 0
	if len(page.Items) > 0 {
		newCount, err = o.itemRepo.StoreBatch(src.ID, convertItems(src.Type, page.Items), now)
		if err != nil {
			return 0, fmt.Errorf("failed to store backlog items: %w", err)
		}
	}

	complete := !page.HasMore || len(page.Items) == 0
	token := page.NextPageToken
	if complete {
		token = ""
	}

	if err := o.sourceRepo.UpdateBacklogCursor(src.ID, token, complete, now, len(page.Items)); err != nil {
		return 0, fmt.Errorf("failed to persist backlog cursor: %w", err)
	}

	return newCount, nil
}

// backlogDue reports whether this fetch should also pull a backlog page:
// the crawl is incomplete and the source is new or has not been fetched
// within the staleness threshold.
func (o *Orchestrator) backlogDue(src *database.Source, now time.Time) bool {
	if src.BacklogComplete {
		return false
	}
	if src.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*src.LastFetchedAt) > o.staleAfter
}

func (o *Orchestrator) recordError(sourceRowID string, at time.Time, cause error) {
	if err := o.sourceRepo.MarkFetchError(sourceRowID, at, cause.Error()); err != nil {
		slog.Error("Failed to record source fetch error", "source_row_id", sourceRowID, "error", err)
	}
}

// pause sleeps the jittered inter-source delay, honoring cancellation.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.delay <= 0 {
		return nil
	}

	jittered := o.delay + time.Duration(rand.Int63n(int64(time.Second)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jittered):
		return nil
	}
}

func convertItems(sourceType database.SourceType, items []adapters.Item) []database.NewItem {
	converted := make([]database.NewItem, 0, len(items))
	for _, item := range items {
		converted = append(converted, database.NewItem{
			SourceType:      sourceType,
			OriginalID:      item.OriginalID,
			Title:           item.Title,
			Description:     item.Description,
			ThumbnailURL:    item.ThumbnailURL,
			URL:             item.URL,
			DurationSeconds: item.DurationSeconds,
			PublishedAt:     item.PublishedAt,
		})
	}
	return converted
}
