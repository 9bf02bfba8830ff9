package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func at(days int, views int64) Snapshot {
	return Snapshot{CapturedAt: day0.AddDate(0, 0, days), Views: views}
}

func TestTrendSortsAndComputesGrowth(t *testing.T) {
	res := Trend([]Snapshot{at(2, 150), at(0, 100), at(1, 120)})
	require.Len(t, res.Intervals, 2)

	assert.Equal(t, int64(20), res.Intervals[0].Delta)
	assert.InDelta(t, 20.0, res.Intervals[0].GrowthPct, 1e-9)
	assert.Equal(t, int64(30), res.Intervals[1].Delta)
	assert.InDelta(t, 25.0, res.Intervals[1].GrowthPct, 1e-9)

	assert.Equal(t, int64(50), res.TotalDelta)
	assert.InDelta(t, 50.0, res.TotalGrowthPct, 1e-9)
	assert.InDelta(t, 25.0, res.AvgDailyDelta, 1e-9)
	assert.Equal(t, int64(150), res.LatestViews)
	assert.Equal(t, 3, res.Snapshots)
}

func TestTrendZeroBase(t *testing.T) {
	res := Trend([]Snapshot{at(0, 0), at(1, 40)})
	require.Len(t, res.Intervals, 1)
	assert.Equal(t, int64(40), res.Intervals[0].Delta)
	assert.Zero(t, res.Intervals[0].GrowthPct)
	assert.Zero(t, res.TotalGrowthPct)
}

func TestTrendDoesNotMutateInput(t *testing.T) {
	in := []Snapshot{at(1, 10), at(0, 5)}
	Trend(in)
	assert.Equal(t, int64(10), in[0].Views)
}

func TestTrendEmptyAndSingle(t *testing.T) {
	res := Trend(nil)
	assert.NotNil(t, res.Intervals)
	assert.Empty(t, res.Intervals)

	res = Trend([]Snapshot{at(0, 7)})
	assert.Empty(t, res.Intervals)
	assert.Equal(t, int64(7), res.LatestViews)
	assert.Zero(t, res.AvgDailyDelta)
}

func TestWinner(t *testing.T) {
	res := Winner([]Variant{{ID: "a", Value: 300}, {ID: "b", Value: 100}})
	require.NotNil(t, res.Winner)
	assert.Equal(t, "a", res.Winner.ID)
	assert.InDelta(t, 75.0, res.Winner.SharePct, 1e-9)
	assert.InDelta(t, 25.0, res.Variants[1].SharePct, 1e-9)
	assert.Equal(t, int64(400), res.Total)
	assert.False(t, res.Tied)
}

func TestWinnerTieAtTop(t *testing.T) {
	res := Winner([]Variant{{ID: "a", Value: 50}, {ID: "b", Value: 50}, {ID: "c", Value: 10}})
	assert.Nil(t, res.Winner)
	assert.True(t, res.Tied)
}

func TestWinnerTieBelowTopStillWins(t *testing.T) {
	res := Winner([]Variant{{ID: "a", Value: 10}, {ID: "b", Value: 10}, {ID: "c", Value: 30}})
	require.NotNil(t, res.Winner)
	assert.Equal(t, "c", res.Winner.ID)
	assert.False(t, res.Tied)
}

func TestWinnerAllZero(t *testing.T) {
	res := Winner([]Variant{{ID: "a"}, {ID: "b"}})
	assert.Nil(t, res.Winner)
	assert.True(t, res.Tied)
	assert.Zero(t, res.Variants[0].SharePct)
}

func TestWinnerEmpty(t *testing.T) {
	res := Winner(nil)
	assert.Nil(t, res.Winner)
	assert.False(t, res.Tied)
	assert.Empty(t, res.Variants)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ValidateSnapshots([]Snapshot{at(0, 1)}))
	assert.Error(t, ValidateSnapshots([]Snapshot{at(0, -1)}))

	assert.NoError(t, ValidateVariants([]Variant{{ID: "a"}, {ID: "b"}}))
	assert.Error(t, ValidateVariants([]Variant{{ID: ""}}))
	assert.Error(t, ValidateVariants([]Variant{{ID: "a"}, {ID: "a"}}))
	assert.Error(t, ValidateVariants([]Variant{{ID: "a", Value: -3}}))
}

func TestWinnerLargeValuesDoNotOverflow(t *testing.T) {
	vs := []Variant{{ID: "a", Value: math.MaxInt64}, {ID: "b", Value: math.MaxInt64 / 2}}
	assert.Error(t, ValidateVariants(vs))

	res := Winner(vs)
	assert.Equal(t, int64(math.MaxInt64), res.Total)
	require.NotNil(t, res.Winner)
	assert.Equal(t, "a", res.Winner.ID)
	for _, v := range res.Variants {
		assert.GreaterOrEqual(t, v.SharePct, 0.0)
		assert.LessOrEqual(t, v.SharePct, 100.0)
	}
	assert.InDelta(t, 200.0/3, res.Winner.SharePct, 1e-6)
}

func TestValidateVariantsAcceptsMaxTotal(t *testing.T) {
	assert.NoError(t, ValidateVariants([]Variant{{ID: "a", Value: math.MaxInt64 - 1}, {ID: "b", Value: 1}}))
}
