package feedgen

import (
	"testing"

	"github.com/subtide/subtide/app/database"
)

func intPtr(v int) *int {
	return &v
}

func TestFilterEngine_NoRules(t *testing.T) {
	engine := NewFilterEngine(nil)

	items := []database.ContentItem{
		{ID: "1", Title: "First"},
		{ID: "2", Title: "Second"},
	}

	result := engine.Apply(items)

	if len(result) != 2 {
		t.Errorf("Expected 2 items with no rules, got %d", len(result))
	}
}

func TestFilterEngine_KeywordWholeWord(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleKeyword, Pattern: "war"},
	})

	items := []database.ContentItem{
		{ID: "1", Title: "Ukraine War Update"},
		{ID: "2", Title: "Star Wars Movie Review"},
		{ID: "3", Title: "Cooking with Cast Iron"},
	}

	result := engine.Apply(items)

	if len(result) != 2 {
		t.Fatalf("Expected 2 surviving items, got %d", len(result))
	}
	if result[0].ID != "2" || result[1].ID != "3" {
		t.Errorf("Wrong survivors: got %s, %s", result[0].ID, result[1].ID)
	}
}

func TestFilterEngine_KeywordWildcardSubstring(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleKeyword, Pattern: "*war*"},
	})

	items := []database.ContentItem{
		{ID: "1", Title: "Ukraine War Update"},
		{ID: "2", Title: "Star Wars Movie Review"},
		{ID: "3", Title: "Cooking with Cast Iron"},
	}

	result := engine.Apply(items)

	if len(result) != 1 {
		t.Fatalf("Expected 1 surviving item with wildcard pattern, got %d", len(result))
	}
	if result[0].ID != "3" {
		t.Errorf("Expected item 3 to survive, got %s", result[0].ID)
	}
}

func TestFilterEngine_KeywordCaseInsensitive(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleKeyword, Pattern: "SPOILER"},
	})

	items := []database.ContentItem{
		{ID: "1", Title: "Finale recap", Description: "Full of spoilers? No, spoiler free."},
		{ID: "2", Title: "Behind the scenes"},
	}

	result := engine.Apply(items)

	if len(result) != 1 {
		t.Fatalf("Expected 1 surviving item, got %d", len(result))
	}
	if result[0].ID != "2" {
		t.Errorf("Expected item 2 to survive, got %s", result[0].ID)
	}
}

func TestFilterEngine_KeywordMatchesDescription(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleKeyword, Pattern: "giveaway"},
	})

	items := []database.ContentItem{
		{ID: "1", Title: "Channel update", Description: "Big giveaway inside!"},
		{ID: "2", Title: "Channel update"},
	}

	result := engine.Apply(items)

	if len(result) != 1 || result[0].ID != "2" {
		t.Errorf("Keyword rules should match against the description too")
	}
}

func TestFilterEngine_DurationBounds(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleDuration, MinSeconds: intPtr(120), MaxSeconds: intPtr(3600)},
	})

	items := []database.ContentItem{
		{ID: "short", DurationSeconds: intPtr(45)},
		{ID: "fits", DurationSeconds: intPtr(600)},
		{ID: "long", DurationSeconds: intPtr(7200)},
	}

	result := engine.Apply(items)

	if len(result) != 1 {
		t.Fatalf("Expected 1 surviving item, got %d", len(result))
	}
	if result[0].ID != "fits" {
		t.Errorf("Expected the in-range item to survive, got %s", result[0].ID)
	}
}

func TestFilterEngine_NilDurationAlwaysPasses(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleDuration, MinSeconds: intPtr(120)},
	})

	items := []database.ContentItem{
		{ID: "unknown", DurationSeconds: nil},
	}

	result := engine.Apply(items)

	if len(result) != 1 {
		t.Errorf("Items without a duration should pass duration rules, got %d survivors", len(result))
	}
}

func TestFilterEngine_EvaluateReportsMatchingRule(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{ID: "r1", Kind: database.FilterRuleKeyword, Pattern: "crypto"},
		{ID: "r2", Kind: database.FilterRuleKeyword, Pattern: "nft"},
	})

	excluded, rule := engine.Evaluate(database.ContentItem{Title: "Why NFT prices crashed"})

	if !excluded {
		t.Fatal("Expected the item to be excluded")
	}
	if rule == nil || rule.ID != "r2" {
		t.Errorf("Expected rule r2 to be reported as the match")
	}
}

func TestFilterEngine_EmptyPatternIgnored(t *testing.T) {
	engine := NewFilterEngine([]database.FilterRule{
		{Kind: database.FilterRuleKeyword, Pattern: "   "},
	})

	result := engine.Apply([]database.ContentItem{{ID: "1", Title: "Anything"}})

	if len(result) != 1 {
		t.Errorf("Blank keyword patterns should never exclude items")
	}
}

func TestFilterEngine_AsteriskOnlyPatternIgnored(t *testing.T) {
	for _, pattern := range []string{"*", "**", "***"} {
		engine := NewFilterEngine([]database.FilterRule{
			{Kind: database.FilterRuleKeyword, Pattern: pattern},
		})

		result := engine.Apply([]database.ContentItem{{ID: "1", Title: "Anything"}})

		if len(result) != 1 {
			t.Errorf("Pattern %q should never exclude items, got %d survivors", pattern, len(result))
		}
	}
}
