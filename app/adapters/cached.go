package adapters

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/subtide/subtide/app/cache"
)

// Per-operation TTLs, scaled to how quickly each result goes stale.
const (
	metadataTTL   = 6 * time.Hour
	validationTTL = 1 * time.Hour
	recentTTL     = 10 * time.Minute
)

const (
	opFetchRecent    = "fetch_recent"
	opValidateSource = "validate_source"
	opMetadata       = "source_metadata"
)

// CachedAdapter decorates an Adapter with the response cache. Backlog
// fetches are never cached because they carry a crawl cursor. A cache
// failure of any kind falls through to the wrapped adapter.
type CachedAdapter struct {
	inner Adapter
	cache cache.Cache
}

var _ Adapter = (*CachedAdapter)(nil)

func NewCachedAdapter(inner Adapter, c cache.Cache) *CachedAdapter {
	return &CachedAdapter{inner: inner, cache: c}
}

func (a *CachedAdapter) FetchRecent(ctx context.Context, sourceID string, days int) ([]Item, error) {
	params := map[string]string{"source_id": sourceID, "days": strconv.Itoa(days)}

	if raw, ok := a.cache.Get(opFetchRecent, params); ok {
		var items []Item
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return items, nil
		}
		slog.Debug("Cached recent fetch corrupt, refetching", "source_id", sourceID)
		a.cache.Invalidate(opFetchRecent, params)
	}

	items, err := a.inner.FetchRecent(ctx, sourceID, days)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(items); err == nil {
		a.cache.Set(opFetchRecent, params, string(raw), recentTTL)
	}

	return items, nil
}

func (a *CachedAdapter) FetchBacklog(ctx context.Context, sourceID string, limit int, pageToken string) (BacklogPage, error) {
	return a.inner.FetchBacklog(ctx, sourceID, limit, pageToken)
}

func (a *CachedAdapter) ValidateSource(ctx context.Context, identifier string) (Validation, error) {
	params := map[string]string{"identifier": identifier}

	if raw, ok := a.cache.Get(opValidateSource, params); ok {
		var v Validation
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
		a.cache.Invalidate(opValidateSource, params)
	}

	v, err := a.inner.ValidateSource(ctx, identifier)
	if err != nil {
		return Validation{}, err
	}

	if raw, err := json.Marshal(v); err == nil {
		a.cache.Set(opValidateSource, params, string(raw), validationTTL)
	}

	return v, nil
}

func (a *CachedAdapter) SourceMetadata(ctx context.Context, sourceID string) (Metadata, error) {
	params := map[string]string{"source_id": sourceID}

	if raw, ok := a.cache.Get(opMetadata, params); ok {
		var m Metadata
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			return m, nil
		}
		a.cache.Invalidate(opMetadata, params)
	}

	m, err := a.inner.SourceMetadata(ctx, sourceID)
	if err != nil {
		return Metadata{}, err
	}

	if raw, err := json.Marshal(m); err == nil {
		a.cache.Set(opMetadata, params, string(raw), metadataTTL)
	}

	return m, nil
}
