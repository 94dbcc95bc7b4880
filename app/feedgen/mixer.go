package feedgen

import (
	"math"

	"github.com/subtide/subtide/app/database"
)

// MixBacklog blends recent and backlog items at the target ratio (fraction
// backlog), capped to the target feed size. Counts are clamped to each
// list's actual availability: a short backlog is backfilled from recent and
// vice versa, and nothing is ever fabricated or duplicated. The output
// order is not final; diversity enforcement runs afterwards.
func MixBacklog(recent, backlog []database.ContentItem, ratio float64, target int) []database.ContentItem {
	if target <= 0 {
		return nil
	}

	ratio = clampRatio(ratio)

	total := len(recent) + len(backlog)
	if total > target {
		total = target
	}
	if total == 0 {
		return nil
	}

	fromBacklog := int(math.Round(float64(total) * ratio))
	if fromBacklog > len(backlog) {
		fromBacklog = len(backlog)
	}

	fromRecent := total - fromBacklog
	if fromRecent > len(recent) {
		fromRecent = len(recent)
		// Backfill the deficit from backlog.
		if fromRecent+fromBacklog < total {
			fromBacklog = min(len(backlog), total-fromRecent)
		}
	}

	mixed := make([]database.ContentItem, 0, fromRecent+fromBacklog)
	mixed = append(mixed, recent[:fromRecent]...)
	mixed = append(mixed, backlog[:fromBacklog]...)
	return mixed
}

func clampRatio(ratio float64) float64 {
	switch {
	case math.IsNaN(ratio), ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
