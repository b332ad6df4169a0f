package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/runbal/internal/model"
)

func TestSelectAnchors_EarliestDate(t *testing.T) {
	agg := AggregateSnapshots([]model.BalanceSnapshot{
		{ConsumerID: "C1", Date: date(2023, 3, 1), Balance: dec("300")},
		{ConsumerID: "C1", Date: date(2023, 1, 10), Balance: dec("60")},
		{ConsumerID: "C1", Date: date(2023, 1, 10), Balance: dec("40")},
		{ConsumerID: "C2", Date: date(2023, 2, 1), Balance: dec("200")},
	})

	anchors := SelectAnchors(agg)
	require.Len(t, anchors, 2)

	a := anchors["C1"]
	assert.True(t, a.StartDate.Equal(date(2023, 1, 10)))
	assert.Equal(t, "100", a.StartBalance.String(), "same-day accounts are summed before selection")

	b := anchors["C2"]
	assert.True(t, b.StartDate.Equal(date(2023, 2, 1)))
	assert.Equal(t, "200", b.StartBalance.String())
}

func TestSelectAnchors_Unsorted(t *testing.T) {
	anchors := SelectAnchors([]model.BalanceSnapshot{
		{ConsumerID: "C1", Date: date(2023, 5, 1), Balance: dec("5")},
		{ConsumerID: "C1", Date: date(2023, 4, 1), Balance: dec("4")},
		{ConsumerID: "C1", Date: date(2023, 6, 1), Balance: dec("6")},
	})
	assert.Equal(t, "4", anchors["C1"].StartBalance.String())
}

func TestSelectAnchors_Empty(t *testing.T) {
	assert.Empty(t, SelectAnchors(nil))
}

func TestMissingAnchors(t *testing.T) {
	anchors := map[string]model.Anchor{"C1": anchor("C1", date(2023, 1, 1), "1")}

	assert.Nil(t, MissingAnchors(anchors, []string{"C1"}))

	err := MissingAnchors(anchors, []string{"C3", "C1"}, []string{"C2", "C3"})
	require.NotNil(t, err)
	assert.Equal(t, []string{"C2", "C3"}, err.ConsumerIDs)
	assert.Contains(t, err.Error(), "2 consumer(s)")
}

func TestMissingAnchorError_TruncatesPreview(t *testing.T) {
	err := &MissingAnchorError{ConsumerIDs: []string{"a", "b", "c", "d", "e", "f", "g"}}
	assert.Equal(t, "7 consumer(s) without a balance snapshot: a, b, c, d, e, ...", err.Error())
}
