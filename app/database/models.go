package database

import (
	"time"
)

type SourceType string

type FetchStatus string

const (
	FetchStatusPending FetchStatus = "pending"
	FetchStatusSuccess FetchStatus = "success"
	FetchStatusError   FetchStatus = "error"
)

type InteractionKind string

const (
	InteractionWatched   InteractionKind = "watched"
	InteractionSaved     InteractionKind = "saved"
	InteractionDismissed InteractionKind = "dismissed"
	InteractionNotNow    InteractionKind = "not_now"
	InteractionBlocked   InteractionKind = "blocked"
)

// Source is a user-configured subscription to an external channel/feed.
type Source struct {
	ID                string // Database UUID
	UserID            string
	Type              SourceType
	SourceID          string // Canonical identifier within the source type
	DisplayName       string
	AvatarURL         string
	Muted             bool
	LastFetchedAt     *time.Time
	FetchStatus       FetchStatus
	FetchError        string
	BacklogPageToken  string // Opaque cursor, owned by the source's adapter
	BacklogComplete   bool
	BacklogFetchedAt  *time.Time
	BacklogVideoCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ItemKey is the global dedup key for content items.
type ItemKey struct {
	SourceType SourceType
	OriginalID string
}

// ContentItem is a deduplicated piece of content. Re-fetching an existing
// item refreshes LastSeenAt only; the remaining fields are written once.
type ContentItem struct {
	ID              string // Database UUID
	SourceType      SourceType
	OriginalID      string
	SourceRowID     string // FK to Source.ID
	Title           string
	Description     string
	ThumbnailURL    string
	URL             string
	DurationSeconds *int // nil when the source does not report a duration
	PublishedAt     time.Time
	FirstFetchedAt  time.Time
	LastSeenAt      time.Time
}

func (i ContentItem) Key() ItemKey {
	return ItemKey{SourceType: i.SourceType, OriginalID: i.OriginalID}
}

// NewItem is the write-side shape of a fetched item before it is persisted.
type NewItem struct {
	SourceType      SourceType
	OriginalID      string
	Title           string
	Description     string
	ThumbnailURL    string
	URL             string
	DurationSeconds *int
	PublishedAt     time.Time
}

func (i NewItem) Key() ItemKey {
	return ItemKey{SourceType: i.SourceType, OriginalID: i.OriginalID}
}

// Interaction is an append-only event a user performed on a content item.
type Interaction struct {
	ID             string // Database UUID
	UserID         string
	ItemID         string // FK to ContentItem.ID
	Kind           InteractionKind
	WatchSeconds   *int
	CompletionRate *float64
	DismissReason  string
	Collection     string
	CreatedAt      time.Time
}

// Preferences is the per-user feed-shaping configuration.
type Preferences struct {
	UserID             string
	BacklogRatio       float64 // Fraction of the feed drawn from backlog, 0-1
	MaxConsecutive     int     // Diversity bound on consecutive same-source items
	MinDurationSeconds *int
	MaxDurationSeconds *int
	Theme              string // UI-only
	Density            string // UI-only
	UpdatedAt          time.Time
}

const (
	DefaultBacklogRatio   = 0.3
	DefaultMaxConsecutive = 2
)

// DefaultPreferences returns the documented fallback used when a user has
// never stored preferences.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:         userID,
		BacklogRatio:   DefaultBacklogRatio,
		MaxConsecutive: DefaultMaxConsecutive,
		Theme:          "system",
		Density:        "comfortable",
	}
}

type FilterRuleKind string

const (
	FilterRuleKeyword  FilterRuleKind = "keyword"
	FilterRuleDuration FilterRuleKind = "duration"
)

// FilterRule is a user-configured exclusion rule evaluated at feed
// composition time.
type FilterRule struct {
	ID         string // Database UUID
	UserID     string
	Kind       FilterRuleKind
	Pattern    string // Keyword rules: exact word or *wildcard* pattern
	MinSeconds *int   // Duration rules: keep-range lower bound
	MaxSeconds *int   // Duration rules: keep-range upper bound
	CreatedAt  time.Time
}
