package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type SourceRepository interface {
	EnsureUser(userID, name string) error
	ListUsers() ([]string, error)

	RegisterSource(s *Source) (string, error)
	GetSource(id string) (*Source, error)
	ListSourcesForUser(userID string) ([]Source, error)
	ListFetchableSources() ([]Source, error)
	SetMuted(id string, muted bool) error
	RemoveSource(id string) error
	GetSourceCount() (int, error)

	MarkFetchSuccess(id string, at time.Time) error
	MarkFetchError(id string, at time.Time, message string) error
	UpdateBacklogCursor(id string, token string, complete bool, at time.Time, countDelta int) error
	ListBacklogCandidates(cooldown time.Duration, limit int) ([]Source, error)
}

type ItemRepository interface {
	// StoreBatch performs the two-phase deduplicated write for a fetched
	// batch: one bulk key lookup, bulk insert of unknown items, bulk
	// last-seen refresh for known ones, all inside a single transaction.
	// Returns the count of genuinely new items.
	StoreBatch(sourceRowID string, items []NewItem, now time.Time) (int, error)

	FindExistingKeys(keys []ItemKey) (map[ItemKey]struct{}, error)
	ListItemsForSources(sourceRowIDs []string) ([]ContentItem, error)
	GetItemCount() (int, error)
}

type InteractionRepository interface {
	Add(i *Interaction) error
	ListForUser(userID string) ([]Interaction, error)
}

type PreferenceRepository interface {
	Get(userID string) (*Preferences, error)
	Upsert(p *Preferences) error

	ListFilterRules(userID string) ([]FilterRule, error)
	AddFilterRule(r *FilterRule) error
	DeleteFilterRule(id string) error
}
