package balance

import (
	"slices"

	"github.com/cleared-dev/runbal/internal/model"
)

// SelectAnchors returns the earliest snapshot of every consumer, keyed by
// consumer ID. Input must come from AggregateSnapshots: aggregation leaves at
// most one snapshot per (consumer, date), so the minimum date is unique.
func SelectAnchors(aggregated []model.BalanceSnapshot) map[string]model.Anchor {
	anchors := make(map[string]model.Anchor)
	for _, s := range aggregated {
		if a, ok := anchors[s.ConsumerID]; ok && !s.Date.Before(a.StartDate) {
			continue
		}
		anchors[s.ConsumerID] = model.Anchor{
			ConsumerID:   s.ConsumerID,
			StartDate:    s.Date,
			StartBalance: s.Balance,
		}
	}
	return anchors
}

// MissingAnchors returns the consumers among wanted that have no anchor, or
// nil when every one of them is covered. IDs are deduplicated and sorted.
func MissingAnchors(anchors map[string]model.Anchor, wanted ...[]string) *MissingAnchorError {
	seen := make(map[string]bool)
	var missing []string
	for _, ids := range wanted {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := anchors[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &MissingAnchorError{ConsumerIDs: missing}
}
