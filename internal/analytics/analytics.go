// Package analytics computes the channel dashboard's view trends and
// A/B test outcomes from caller-supplied measurements.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Snapshot is a cumulative view count captured at a point in time.
type Snapshot struct {
	CapturedAt time.Time `json:"captured_at"`
	Views      int64     `json:"views"`
}

// Interval is the change between two consecutive snapshots.
type Interval struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Delta     int64     `json:"delta"`
	GrowthPct float64   `json:"growth_pct"`
}

// TrendResult summarizes a snapshot series.
type TrendResult struct {
	Intervals      []Interval `json:"intervals"`
	TotalDelta     int64      `json:"total_delta"`
	TotalGrowthPct float64    `json:"total_growth_pct"`
	AvgDailyDelta  float64    `json:"avg_daily_delta"`
	LatestViews    int64      `json:"latest_views"`
	Snapshots      int        `json:"snapshots"`
}

// Variant is one arm of an A/B test (a title or thumbnail) with its
// measured value, typically views or clicks.
type Variant struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

// VariantShare is a variant with its share of the total.
type VariantShare struct {
	Variant
	SharePct float64 `json:"share_pct"`
}

// ABResult is the outcome of an A/B test.
type ABResult struct {
	Variants []VariantShare `json:"variants"`
	Total    int64          `json:"total"`
	Winner   *VariantShare  `json:"winner,omitempty"`
	Tied     bool           `json:"tied"`
}

// ValidateSnapshots rejects negative view counts.
func ValidateSnapshots(snaps []Snapshot) error {
	for i, s := range snaps {
		if s.Views < 0 {
			return fmt.Errorf("snapshots[%d].views must not be negative", i)
		}
	}
	return nil
}

// ValidateVariants rejects blank or duplicate IDs, negative values and
// values whose sum does not fit in an int64.
func ValidateVariants(vs []Variant) error {
	seen := make(map[string]bool, len(vs))
	var total int64
	for i, v := range vs {
		if v.ID == "" {
			return fmt.Errorf("variants[%d].id is required", i)
		}
		if seen[v.ID] {
			return fmt.Errorf("variants[%d].id %q is duplicated", i, v.ID)
		}
		seen[v.ID] = true
		if v.Value < 0 {
			return fmt.Errorf("variants[%d].value must not be negative", i)
		}
		if v.Value > math.MaxInt64-total {
			return fmt.Errorf("variants[%d].value overflows the total", i)
		}
		total += v.Value
	}
	return nil
}

// Trend orders snapshots by capture time and reports per-interval deltas.
// Growth is relative to the earlier snapshot and is 0 when that is 0.
func Trend(snaps []Snapshot) TrendResult {
	sorted := make([]Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})

	res := TrendResult{Intervals: []Interval{}, Snapshots: len(sorted)}
	if len(sorted) == 0 {
		return res
	}
	first, last := sorted[0], sorted[len(sorted)-1]
	res.LatestViews = last.Views

	for k := 1; k < len(sorted); k++ {
		prev, cur := sorted[k-1], sorted[k]
		delta := cur.Views - prev.Views
		res.Intervals = append(res.Intervals, Interval{
			From:      prev.CapturedAt,
			To:        cur.CapturedAt,
			Delta:     delta,
			GrowthPct: growth(delta, prev.Views),
		})
	}

	res.TotalDelta = last.Views - first.Views
	res.TotalGrowthPct = growth(res.TotalDelta, first.Views)
	if days := last.CapturedAt.Sub(first.CapturedAt).Hours() / 24; days > 0 {
		res.AvgDailyDelta = float64(res.TotalDelta) / days
	}
	return res
}

func growth(delta, base int64) float64 {
	if base == 0 {
		return 0
	}
	return float64(delta) / float64(base) * 100
}

// Winner computes each variant's share and picks the one with the highest
// value. When two or more variants share the top value there is no winner.
// Total saturates at math.MaxInt64; shares are computed in float64 so they
// stay within 0..100 either way.
func Winner(vs []Variant) ABResult {
	res := ABResult{Variants: make([]VariantShare, 0, len(vs))}
	var sum float64
	for _, v := range vs {
		sum += float64(v.Value)
		if v.Value > 0 && res.Total > math.MaxInt64-v.Value {
			res.Total = math.MaxInt64
		} else {
			res.Total += v.Value
		}
	}

	best := -1
	tied := false
	for i, v := range vs {
		share := VariantShare{Variant: v}
		if sum > 0 {
			share.SharePct = float64(v.Value) / sum * 100
		}
		res.Variants = append(res.Variants, share)

		switch {
		case best < 0 || v.Value > vs[best].Value:
			best = i
			tied = false
		case v.Value == vs[best].Value:
			tied = true
		}
	}

	if best < 0 {
		return res
	}
	if tied {
		res.Tied = true
		return res
	}
	w := res.Variants[best]
	res.Winner = &w
	return res
}
