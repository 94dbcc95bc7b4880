package feedgen

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/subtide/subtide/app/cfg"
	"github.com/subtide/subtide/app/database"
)

// Generator composes a user's feed from stored items, preferences, and the
// interaction log. Build is a pure transform over its inputs and is safe to
// call concurrently for different users; callers must snapshot inputs when
// calling concurrently for the same user.
type Generator struct {
	recencyWindow  time.Duration
	targetSize     int
	notNowFraction float64

	// rngMu serializes access to rng; rand.Rand is not safe for
	// concurrent use and Build may run on many goroutines.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewGenerator creates a generator. The random source drives NOT_NOW
// reintegration; tests pass a fixed seed, wiring passes a time-seeded one.
func NewGenerator(rng *rand.Rand) *Generator {
	c := cfg.Get()

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Generator{
		recencyWindow:  time.Duration(c.RecencyWindowDays) * 24 * time.Hour,
		targetSize:     c.TargetFeedSize,
		notNowFraction: c.NotNowFraction,
		rng:            rng,
	}
}

// Build runs the composition pipeline: interaction-based exclusion, filter
// rules, recency partition, backlog mixing, NOT_NOW reintegration,
// diversity enforcement, and position assignment. Empty inputs produce an
// empty feed, never an error; malformed preference values are clamped.
func (g *Generator) Build(in Inputs) []FeedItem {
	if len(in.Items) == 0 {
		return nil
	}

	prefs := in.Preferences
	if prefs == nil {
		prefs = database.DefaultPreferences("")
	}

	eligible, notNowPool := g.partitionByInteraction(in.Items, in.Interactions)

	engine := NewFilterEngine(g.effectiveRules(in.Rules, prefs))
	eligible = engine.Apply(eligible)
	notNowPool = engine.Apply(notNowPool)

	now := time.Now().UTC()
	recentCutoff := now.Add(-g.recencyWindow)

	var recent, backlog []database.ContentItem
	for _, item := range eligible {
		if item.PublishedAt.After(recentCutoff) {
			recent = append(recent, item)
		} else {
			backlog = append(backlog, item)
		}
	}

	mixed := MixBacklog(recent, backlog, prefs.BacklogRatio, g.targetSize)

	mixed = g.reintegrateNotNow(mixed, notNowPool)

	ordered := EnforceDiversity(mixed, prefs.MaxConsecutive)

	names := make(map[string]string, len(in.Sources))
	for _, src := range in.Sources {
		names[src.ID] = src.DisplayName
	}

	feed := make([]FeedItem, 0, len(ordered))
	for i, item := range ordered {
		name, ok := names[item.SourceRowID]
		if !ok || name == "" {
			name = "Unknown source"
		}
		feed = append(feed, FeedItem{
			Item:              item,
			Position:          i,
			SourceDisplayName: name,
			IsNew:             item.PublishedAt.After(recentCutoff),
		})
	}

	return feed
}

// partitionByInteraction drops items with a watched, dismissed, saved, or
// blocked interaction and sets aside items whose only interactions are
// NOT_NOW deferrals. The interaction log is append-only, so existence of a
// kind is what matters, not any "current" state.
func (g *Generator) partitionByInteraction(items []database.ContentItem, interactions []database.Interaction) (eligible, notNowOnly []database.ContentItem) {
	hard := make(map[string]bool)
	notNow := make(map[string]bool)
	for _, in := range interactions {
		switch in.Kind {
		case database.InteractionWatched, database.InteractionDismissed, database.InteractionSaved, database.InteractionBlocked:
			hard[in.ItemID] = true
		case database.InteractionNotNow:
			notNow[in.ItemID] = true
		}
	}

	for _, item := range items {
		switch {
		case hard[item.ID]:
			continue
		case notNow[item.ID]:
			notNowOnly = append(notNowOnly, item)
		default:
			eligible = append(eligible, item)
		}
	}
	return eligible, notNowOnly
}

// reintegrateNotNow injects a bounded, uniformly random selection of
// deferred items back into the pool, so NOT_NOW stays a soft deferral.
// Repeated calls may surface different items.
func (g *Generator) reintegrateNotNow(mixed, pool []database.ContentItem) []database.ContentItem {
	if len(pool) == 0 || len(mixed) == 0 {
		return mixed
	}

	budget := int(math.Round(clampRatio(g.notNowFraction) * float64(len(mixed))))
	if budget > len(pool) {
		budget = len(pool)
	}
	if budget == 0 {
		return mixed
	}

	shuffled := make([]database.ContentItem, len(pool))
	copy(shuffled, pool)
	g.rngMu.Lock()
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	g.rngMu.Unlock()

	return append(mixed, shuffled[:budget]...)
}

// effectiveRules combines the user's stored rules with the duration bounds
// from preferences, expressed as one more duration rule.
func (g *Generator) effectiveRules(rules []database.FilterRule, prefs *database.Preferences) []database.FilterRule {
	if prefs.MinDurationSeconds == nil && prefs.MaxDurationSeconds == nil {
		return rules
	}

	combined := make([]database.FilterRule, 0, len(rules)+1)
	combined = append(combined, rules...)
	combined = append(combined, database.FilterRule{
		Kind:       database.FilterRuleDuration,
		MinSeconds: prefs.MinDurationSeconds,
		MaxSeconds: prefs.MaxDurationSeconds,
	})
	return combined
}
