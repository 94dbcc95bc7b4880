package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/subtide/subtide/app/database"
)

// Item is the adapter-side shape of a fetched piece of content, before it
// is attributed to a source row and persisted.
type Item struct {
	OriginalID      string
	Title           string
	Description     string
	ThumbnailURL    string
	URL             string
	DurationSeconds *int // nil when the source does not report a duration
	PublishedAt     time.Time
}

// BacklogPage is one page of a resumable backlog crawl. NextPageToken is
// opaque and must only be interpreted by the adapter that produced it.
// Invariant: HasMore == false implies NextPageToken == "".
type BacklogPage struct {
	Items         []Item
	NextPageToken string
	HasMore       bool
}

// Validation is the result of resolving a user-supplied identifier.
type Validation struct {
	Valid       bool
	ResolvedID  string
	DisplayName string
	AvatarURL   string
	Message     string
}

// Metadata describes a source as reported by the external platform.
type Metadata struct {
	DisplayName     string
	Description     string
	AvatarURL       string
	SubscriberCount *int
	TotalContent    *int
}

// Adapter is the contract every content source implements. Adapters report
// transport failures as errors and never silently return empty results; the
// orchestrator decides whether to retry, skip, or mark the source failed.
type Adapter interface {
	// FetchRecent returns items published within the last `days`. Returning
	// fewer items than exist is acceptable; callers treat it as "no more
	// this round".
	FetchRecent(ctx context.Context, sourceID string, days int) ([]Item, error)

	// FetchBacklog resumes the backlog crawl from pageToken (empty token
	// starts from the beginning). Calling again with the returned
	// NextPageToken continues the crawl, never restarts it.
	FetchBacklog(ctx context.Context, sourceID string, limit int, pageToken string) (BacklogPage, error)

	// ValidateSource resolves a user-supplied identifier to a canonical ID
	// and metadata without fetching content.
	ValidateSource(ctx context.Context, identifier string) (Validation, error)

	// SourceMetadata looks up a source's current metadata, failing with a
	// NotFoundError when the source no longer exists.
	SourceMetadata(ctx context.Context, sourceID string) (Metadata, error)
}

// TransportError is a network or API failure. Retryable on a later run.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure for %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError means the source does not exist on the external platform.
// Not retryable; surfaced to the user.
type NotFoundError struct {
	SourceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source %q not found", e.SourceID)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Registry maps source types to adapter implementations for runtime
// dispatch.
type Registry struct {
	adapters map[database.SourceType]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[database.SourceType]Adapter)}
}

func (r *Registry) Register(t database.SourceType, a Adapter) {
	r.adapters[t] = a
}

func (r *Registry) Lookup(t database.SourceType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source type %q", t)
	}
	return a, nil
}

func (r *Registry) Types() []database.SourceType {
	types := make([]database.SourceType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
