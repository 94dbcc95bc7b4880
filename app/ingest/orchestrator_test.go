package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/subtide/subtide/app/adapters"
	"github.com/subtide/subtide/app/cfg"
	"github.com/subtide/subtide/app/database"
)

func setupIngestCfg(t *testing.T) {
	t.Helper()
	cfg.Set(&cfg.Cfg{
		FetchDelaySeconds:    0,
		BacklogStaleDays:     7,
		BacklogCooldownHours: 23,
		BacklogPageSize:      50,
		BacklogBatchSize:     5,
		RecencyWindowDays:    7,
	})
}

// fakeSourceRepo implements database.SourceRepository in memory.
type fakeSourceRepo struct {
	mu      sync.Mutex
	sources map[string]*database.Source

	successCalls []string
	errorCalls   map[string]string
}

func newFakeSourceRepo(sources ...*database.Source) *fakeSourceRepo {
	repo := &fakeSourceRepo{
		sources:    make(map[string]*database.Source),
		errorCalls: make(map[string]string),
	}
	for _, src := range sources {
		repo.sources[src.ID] = src
	}
	return repo
}

func (r *fakeSourceRepo) EnsureUser(userID, name string) error { return nil }
func (r *fakeSourceRepo) ListUsers() ([]string, error)         { return nil, nil }

func (r *fakeSourceRepo) RegisterSource(s *database.Source) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = fmt.Sprintf("src-%d", len(r.sources)+1)
	}
	r.sources[s.ID] = s
	return s.ID, nil
}

func (r *fakeSourceRepo) GetSource(id string) (*database.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *src
	return &copied, nil
}

func (r *fakeSourceRepo) ListSourcesForUser(userID string) ([]database.Source, error) {
	return nil, nil
}

func (r *fakeSourceRepo) ListFetchableSources() ([]database.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.Source
	for _, src := range r.sources {
		if !src.Muted {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (r *fakeSourceRepo) SetMuted(id string, muted bool) error { return nil }
func (r *fakeSourceRepo) RemoveSource(id string) error         { return nil }
func (r *fakeSourceRepo) GetSourceCount() (int, error)         { return len(r.sources), nil }

func (r *fakeSourceRepo) MarkFetchSuccess(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successCalls = append(r.successCalls, id)
	if src, ok := r.sources[id]; ok {
		src.FetchStatus = database.FetchStatusSuccess
		src.LastFetchedAt = &at
		src.FetchError = ""
	}
	return nil
}

func (r *fakeSourceRepo) MarkFetchError(id string, at time.Time, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCalls[id] = message
	if src, ok := r.sources[id]; ok {
		src.FetchStatus = database.FetchStatusError
		src.FetchError = message
	}
	return nil
}

func (r *fakeSourceRepo) UpdateBacklogCursor(id string, token string, complete bool, at time.Time, countDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[id]
	if !ok {
		return database.ErrNotFound
	}
	src.BacklogPageToken = token
	src.BacklogComplete = complete
	src.BacklogFetchedAt = &at
	src.BacklogVideoCount += countDelta
	return nil
}

func (r *fakeSourceRepo) ListBacklogCandidates(cooldown time.Duration, limit int) ([]database.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.Source
	for _, src := range r.sources {
		if !src.Muted && !src.BacklogComplete && len(out) < limit {
			out = append(out, *src)
		}
	}
	return out, nil
}

// fakeItemRepo records StoreBatch calls and deduplicates by item key.
type fakeItemRepo struct {
	mu    sync.Mutex
	items map[database.ItemKey]database.NewItem
	calls int
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[database.ItemKey]database.NewItem)}
}

func (r *fakeItemRepo) StoreBatch(sourceRowID string, items []database.NewItem, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	fresh := 0
	for _, item := range items {
		if _, ok := r.items[item.Key()]; ok {
			continue
		}
		r.items[item.Key()] = item
		fresh++
	}
	return fresh, nil
}

func (r *fakeItemRepo) FindExistingKeys(keys []database.ItemKey) (map[database.ItemKey]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[database.ItemKey]struct{})
	for _, key := range keys {
		if _, ok := r.items[key]; ok {
			out[key] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeItemRepo) ListItemsForSources(sourceRowIDs []string) ([]database.ContentItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) GetItemCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items), nil
}

// fakeAdapter serves canned recent items and a scripted backlog.
type fakeAdapter struct {
	recent     []adapters.Item
	recentErr  error
	backlog    []adapters.Item
	backlogErr error
}

func (a *fakeAdapter) FetchRecent(ctx context.Context, sourceID string, days int) ([]adapters.Item, error) {
	if a.recentErr != nil {
		return nil, a.recentErr
	}
	return a.recent, nil
}

func (a *fakeAdapter) FetchBacklog(ctx context.Context, sourceID string, limit int, pageToken string) (adapters.BacklogPage, error) {
	if a.backlogErr != nil {
		return adapters.BacklogPage{}, a.backlogErr
	}

	offset := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "off-%d", &offset)
	}
	if offset >= len(a.backlog) {
		return adapters.BacklogPage{}, nil
	}

	end := offset + limit
	if end > len(a.backlog) {
		end = len(a.backlog)
	}

	page := adapters.BacklogPage{Items: a.backlog[offset:end]}
	if end < len(a.backlog) {
		page.HasMore = true
		page.NextPageToken = fmt.Sprintf("off-%d", end)
	}
	return page, nil
}

func (a *fakeAdapter) ValidateSource(ctx context.Context, identifier string) (adapters.Validation, error) {
	return adapters.Validation{Valid: true, ResolvedID: identifier}, nil
}

func (a *fakeAdapter) SourceMetadata(ctx context.Context, sourceID string) (adapters.Metadata, error) {
	return adapters.Metadata{}, nil
}

func recentItem(id string) adapters.Item {
	return adapters.Item{OriginalID: id, Title: "Video " + id, PublishedAt: time.Now().UTC()}
}

func testSource(id string) *database.Source {
	return &database.Source{ID: id, Type: "fake", SourceID: "feed-" + id, DisplayName: "Source " + id}
}

func TestOrchestrator_FetchAllStoresNewItems(t *testing.T) {
	setupIngestCfg(t)

	sourceRepo := newFakeSourceRepo(testSource("s1"))
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	registry.Register("fake", &fakeAdapter{recent: []adapters.Item{recentItem("v1"), recentItem("v2")}})

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	stats, err := o.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if stats.Succeeded != 1 || stats.Failed != 0 {
		t.Errorf("Expected 1 success, got %+v", stats)
	}
	if count, _ := itemRepo.GetItemCount(); count != 2 {
		t.Errorf("Expected 2 stored items, got %d", count)
	}
	if len(sourceRepo.successCalls) != 1 {
		t.Errorf("Expected fetch success to be recorded once, got %d", len(sourceRepo.successCalls))
	}
}

func TestOrchestrator_RefetchIsIdempotent(t *testing.T) {
	setupIngestCfg(t)

	sourceRepo := newFakeSourceRepo(testSource("s1"))
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	registry.Register("fake", &fakeAdapter{recent: []adapters.Item{recentItem("v1")}})

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	if _, err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("First FetchAll failed: %v", err)
	}
	stats, err := o.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("Second FetchAll failed: %v", err)
	}

	if count, _ := itemRepo.GetItemCount(); count != 1 {
		t.Errorf("Refetching the same item must not duplicate it, got %d items", count)
	}
	if stats.NewItems != 0 {
		t.Errorf("Second pass should report 0 new items, got %d", stats.NewItems)
	}
}

func TestOrchestrator_SourceFailureDoesNotAbortBatch(t *testing.T) {
	setupIngestCfg(t)

	good := testSource("good")
	bad := testSource("bad")
	bad.Type = "broken"

	sourceRepo := newFakeSourceRepo(good, bad)
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	registry.Register("fake", &fakeAdapter{recent: []adapters.Item{recentItem("v1")}})
	registry.Register("broken", &fakeAdapter{recentErr: errors.New("upstream down")})

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	stats, err := o.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if stats.Succeeded != 1 || stats.Failed != 1 {
		t.Errorf("Expected 1 success and 1 failure, got %+v", stats)
	}
	if _, ok := sourceRepo.errorCalls["bad"]; !ok {
		t.Error("Expected the failure to be recorded on the failing source")
	}
	if count, _ := itemRepo.GetItemCount(); count != 1 {
		t.Errorf("Healthy source's items must still be stored, got %d", count)
	}

	// A failed source stays eligible; the status is not terminal.
	src, _ := sourceRepo.GetSource("bad")
	if src.FetchStatus != database.FetchStatusError {
		t.Errorf("Expected error status, got %s", src.FetchStatus)
	}
	fetchable, _ := sourceRepo.ListFetchableSources()
	if len(fetchable) != 2 {
		t.Errorf("Failed sources must remain fetchable, got %d", len(fetchable))
	}
}

func TestOrchestrator_BacklogCursorAdvances(t *testing.T) {
	setupIngestCfg(t)
	cfg.Set(&cfg.Cfg{
		BacklogStaleDays:     7,
		BacklogCooldownHours: 23,
		BacklogPageSize:      2,
		BacklogBatchSize:     5,
		RecencyWindowDays:    7,
	})

	src := testSource("s1")
	sourceRepo := newFakeSourceRepo(src)
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	registry.Register("fake", &fakeAdapter{
		backlog: []adapters.Item{recentItem("b1"), recentItem("b2"), recentItem("b3")},
	})

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	// Never-fetched source: the first pass pulls one backlog page.
	if _, err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	after, _ := sourceRepo.GetSource("s1")
	if after.BacklogComplete {
		t.Error("Crawl should not be complete after the first page")
	}
	if after.BacklogPageToken == "" {
		t.Error("Expected a stored cursor after the first page")
	}
	if after.BacklogVideoCount != 2 {
		t.Errorf("Expected backlog count 2, got %d", after.BacklogVideoCount)
	}
}

func TestOrchestrator_BacklogCompletesOnFinalPage(t *testing.T) {
	setupIngestCfg(t)

	src := testSource("s1")
	src.BacklogPageToken = "off-1"
	sourceRepo := newFakeSourceRepo(src)
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	adapter := &fakeAdapter{backlog: []adapters.Item{recentItem("b1"), recentItem("b2")}}
	registry.Register("fake", adapter)

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	if _, err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	after, _ := sourceRepo.GetSource("s1")
	if !after.BacklogComplete {
		t.Error("Expected the crawl to be marked complete")
	}
	if after.BacklogPageToken != "" {
		t.Errorf("Completed crawl must clear the cursor, got %q", after.BacklogPageToken)
	}
}

func TestOrchestrator_BacklogSkippedWhenFresh(t *testing.T) {
	setupIngestCfg(t)

	recentTime := time.Now().UTC().Add(-time.Hour)
	src := testSource("s1")
	src.LastFetchedAt = &recentTime
	sourceRepo := newFakeSourceRepo(src)
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	registry.Register("fake", &fakeAdapter{backlog: []adapters.Item{recentItem("b1")}})

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	if _, err := o.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	after, _ := sourceRepo.GetSource("s1")
	if after.BacklogVideoCount != 0 {
		t.Errorf("Recently fetched source should not pull backlog, got count %d", after.BacklogVideoCount)
	}
}

func TestOrchestrator_CancellationStopsBetweenSources(t *testing.T) {
	setupIngestCfg(t)

	sourceRepo := newFakeSourceRepo(testSource("s1"), testSource("s2"), testSource("s3"))
	itemRepo := newFakeItemRepo()
	registry := adapters.NewRegistry()
	registry.Register("fake", &fakeAdapter{recent: []adapters.Item{recentItem("v1")}})

	o := NewOrchestrator(registry, sourceRepo, itemRepo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.FetchAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(sourceRepo.successCalls) != 0 {
		t.Errorf("No source should be fetched after cancellation, got %d", len(sourceRepo.successCalls))
	}
}

func TestOrchestrator_FetchSourceUnknownID(t *testing.T) {
	setupIngestCfg(t)

	o := NewOrchestrator(adapters.NewRegistry(), newFakeSourceRepo(), newFakeItemRepo())

	if _, err := o.FetchSource(context.Background(), "missing"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
