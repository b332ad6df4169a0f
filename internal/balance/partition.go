package balance

import (
	"slices"

	"github.com/cleared-dev/runbal/internal/model"
)

// Partition is the unit of parallel work: one consumer's anchor and all of
// that consumer's transactions in input order.
type Partition struct {
	Anchor       model.Anchor
	Transactions []model.SignedTransaction
}

// PartitionByConsumer splits txns by consumer and pairs each group with its
// anchor. Every anchored consumer gets a partition, including consumers with
// no transactions. Partitions are ordered by consumer ID. The second result
// lists consumers that have transactions but no anchor, sorted.
func PartitionByConsumer(anchors map[string]model.Anchor, txns []model.SignedTransaction) ([]Partition, []string) {
	byConsumer := make(map[string][]model.SignedTransaction, len(anchors))
	var orphans []string
	for _, t := range txns {
		if _, ok := anchors[t.ConsumerID]; !ok {
			if _, seen := byConsumer[t.ConsumerID]; !seen {
				orphans = append(orphans, t.ConsumerID)
			}
		}
		byConsumer[t.ConsumerID] = append(byConsumer[t.ConsumerID], t)
	}

	ids := make([]string, 0, len(anchors))
	for id := range anchors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	parts := make([]Partition, len(ids))
	for i, id := range ids {
		parts[i] = Partition{Anchor: anchors[id], Transactions: byConsumer[id]}
	}

	slices.Sort(orphans)
	return parts, orphans
}
