package feedgen

import (
	"github.com/subtide/subtide/app/database"
)

// FeedItem is the request-scoped output of feed composition: a content item
// with its assigned position and resolved presentation fields. Never
// persisted.
type FeedItem struct {
	Item              database.ContentItem
	Position          int
	SourceDisplayName string
	IsNew             bool
}

// Inputs carries everything Build needs, already loaded by the caller.
// Composition itself performs no I/O.
type Inputs struct {
	Sources      []database.Source
	Items        []database.ContentItem
	Preferences  *database.Preferences
	Rules        []database.FilterRule
	Interactions []database.Interaction
}
