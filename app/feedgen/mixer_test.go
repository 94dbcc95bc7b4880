package feedgen

import (
	"math"
	"testing"

	"github.com/subtide/subtide/app/database"
)

func makeItems(prefix string, n int) []database.ContentItem {
	items := make([]database.ContentItem, n)
	for i := range items {
		items[i] = database.ContentItem{ID: prefix + string(rune('a'+i))}
	}
	return items
}

func TestMixBacklog_RatioSplit(t *testing.T) {
	recent := makeItems("r", 7)
	backlog := makeItems("b", 7)

	mixed := MixBacklog(recent, backlog, 0.3, 10)

	if len(mixed) != 10 {
		t.Fatalf("Expected 10 items, got %d", len(mixed))
	}

	backlogCount := 0
	for _, item := range mixed {
		if item.ID[0] == 'b' {
			backlogCount++
		}
	}
	if backlogCount != 3 {
		t.Errorf("Expected 3 backlog items at ratio 0.3, got %d", backlogCount)
	}
}

func TestMixBacklog_ClampsToAvailability(t *testing.T) {
	// round(4 * 0.4) = 2 requested from backlog, but only 1 exists.
	recent := makeItems("r", 3)
	backlog := makeItems("b", 1)

	mixed := MixBacklog(recent, backlog, 0.4, 6)

	if len(mixed) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(mixed))
	}

	backlogCount := 0
	for _, item := range mixed {
		if item.ID[0] == 'b' {
			backlogCount++
		}
	}
	if backlogCount != 1 {
		t.Errorf("Expected 1 backlog item after clamping, got %d", backlogCount)
	}
}

func TestMixBacklog_BackfillsFromBacklog(t *testing.T) {
	// Few recent items: the deficit is covered from backlog up to the target.
	recent := makeItems("r", 2)
	backlog := makeItems("b", 10)

	mixed := MixBacklog(recent, backlog, 0.3, 8)

	if len(mixed) != 8 {
		t.Fatalf("Expected 8 items, got %d", len(mixed))
	}

	backlogCount := 0
	for _, item := range mixed {
		if item.ID[0] == 'b' {
			backlogCount++
		}
	}
	if backlogCount != 6 {
		t.Errorf("Expected 6 backlog items after backfill, got %d", backlogCount)
	}
}

func TestMixBacklog_EmptyInputs(t *testing.T) {
	if got := MixBacklog(nil, nil, 0.3, 10); len(got) != 0 {
		t.Errorf("Expected empty result for empty inputs, got %d items", len(got))
	}
}

func TestMixBacklog_ZeroTarget(t *testing.T) {
	if got := MixBacklog(makeItems("r", 3), nil, 0.3, 0); got != nil {
		t.Errorf("Expected nil result for zero target, got %d items", len(got))
	}
}

func TestMixBacklog_NoDuplicates(t *testing.T) {
	recent := makeItems("r", 5)
	backlog := makeItems("b", 5)

	mixed := MixBacklog(recent, backlog, 0.5, 20)

	seen := make(map[string]bool)
	for _, item := range mixed {
		if seen[item.ID] {
			t.Errorf("Item %s appears twice", item.ID)
		}
		seen[item.ID] = true
	}
	if len(mixed) != 10 {
		t.Errorf("Expected all 10 items when target exceeds availability, got %d", len(mixed))
	}
}

func TestClampRatio(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
	}

	for _, c := range cases {
		if got := clampRatio(c.in); got != c.want {
			t.Errorf("clampRatio(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
