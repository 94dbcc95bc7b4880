package feedgen

import (
	"github.com/subtide/subtide/app/database"
)

// EnforceDiversity reorders items so that no more than maxConsecutive
// adjacent items share a source. When the next candidate would exceed the
// bound, the nearest later item from a different source is pulled forward;
// everything else keeps its relative order. With a single-source pool the
// bound is relaxed instead of dropping items; availability wins over the
// constraint.
func EnforceDiversity(items []database.ContentItem, maxConsecutive int) []database.ContentItem {
	if maxConsecutive < 1 {
		maxConsecutive = 1
	}
	if len(items) <= maxConsecutive {
		return items
	}

	pool := make([]database.ContentItem, len(items))
	copy(pool, items)

	out := make([]database.ContentItem, 0, len(items))
	var lastSource string
	run := 0

	for len(pool) > 0 {
		idx := 0
		if run >= maxConsecutive && sourceKey(pool[0]) == lastSource {
			idx = -1
			for k := 1; k < len(pool); k++ {
				if sourceKey(pool[k]) != lastSource {
					idx = k
					break
				}
			}
			if idx == -1 {
				// No alternative source left; relax the bound.
				idx = 0
			}
		}

		chosen := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		if sourceKey(chosen) == lastSource {
			run++
		} else {
			lastSource = sourceKey(chosen)
			run = 1
		}

		out = append(out, chosen)
	}

	return out
}

// sourceKey identifies the owning source; the source row ID already encodes
// the (sourceId, sourceType) pair uniquely.
func sourceKey(item database.ContentItem) string {
	if item.SourceRowID != "" {
		return item.SourceRowID
	}
	return string(item.SourceType)
}
