package feedgen

import (
	"testing"

	"github.com/subtide/subtide/app/database"
)

func itemFromSource(id, sourceRowID string) database.ContentItem {
	return database.ContentItem{ID: id, SourceRowID: sourceRowID}
}

func maxRunLength(items []database.ContentItem) int {
	longest, run := 0, 0
	last := ""
	for _, item := range items {
		if item.SourceRowID == last {
			run++
		} else {
			last = item.SourceRowID
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func TestEnforceDiversity_BreaksLongRuns(t *testing.T) {
	items := []database.ContentItem{
		itemFromSource("1", "A"),
		itemFromSource("2", "A"),
		itemFromSource("3", "A"),
		itemFromSource("4", "A"),
		itemFromSource("5", "B"),
		itemFromSource("6", "B"),
		itemFromSource("7", "C"),
	}

	result := EnforceDiversity(items, 2)

	if len(result) != len(items) {
		t.Fatalf("Expected %d items, got %d", len(items), len(result))
	}
	if got := maxRunLength(result); got > 2 {
		t.Errorf("Expected no run longer than 2, got %d: %v", got, resultIDs(result))
	}
}

func TestEnforceDiversity_PreservesAllItems(t *testing.T) {
	items := []database.ContentItem{
		itemFromSource("1", "A"),
		itemFromSource("2", "A"),
		itemFromSource("3", "A"),
		itemFromSource("4", "B"),
	}

	result := EnforceDiversity(items, 1)

	seen := make(map[string]bool)
	for _, item := range result {
		seen[item.ID] = true
	}
	for _, item := range items {
		if !seen[item.ID] {
			t.Errorf("Item %s was dropped during reordering", item.ID)
		}
	}
}

func TestEnforceDiversity_SingleSourceRelaxesBound(t *testing.T) {
	items := []database.ContentItem{
		itemFromSource("1", "A"),
		itemFromSource("2", "A"),
		itemFromSource("3", "A"),
		itemFromSource("4", "A"),
	}

	result := EnforceDiversity(items, 2)

	// All items come from one source, so the bound cannot be satisfied.
	// Everything must still be kept, in original order.
	if len(result) != 4 {
		t.Fatalf("Expected all 4 items, got %d", len(result))
	}
	for i, item := range result {
		if item.ID != items[i].ID {
			t.Errorf("Position %d: expected %s, got %s", i, items[i].ID, item.ID)
		}
	}
}

func TestEnforceDiversity_AlreadyDiverse(t *testing.T) {
	items := []database.ContentItem{
		itemFromSource("1", "A"),
		itemFromSource("2", "B"),
		itemFromSource("3", "A"),
		itemFromSource("4", "B"),
	}

	result := EnforceDiversity(items, 2)

	for i, item := range result {
		if item.ID != items[i].ID {
			t.Errorf("Already-diverse order should be untouched, position %d changed", i)
		}
	}
}

func TestEnforceDiversity_ZeroBoundTreatedAsOne(t *testing.T) {
	items := []database.ContentItem{
		itemFromSource("1", "A"),
		itemFromSource("2", "A"),
		itemFromSource("3", "B"),
	}

	result := EnforceDiversity(items, 0)

	if len(result) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(result))
	}
	if result[0].SourceRowID == result[1].SourceRowID && result[1].SourceRowID == "A" && result[2].SourceRowID == "A" {
		t.Error("Bound of 0 should behave like 1, not disable reordering")
	}
}

func resultIDs(items []database.ContentItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
