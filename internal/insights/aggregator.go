// Package insights computes review KPIs and daily activity buckets
// from review item snapshots.
package insights

import (
	"math"
	"sort"
	"time"

	"github.com/revuehq/revue-api/internal/models"
)

// Range selects the aggregation window.
type Range string

const (
	Range7d  Range = "7d"
	Range30d Range = "30d"
	RangeAll Range = "all"
)

// Valid reports whether the range is a known value.
func (r Range) Valid() bool {
	return r == Range7d || r == Range30d || r == RangeAll
}

// Days returns the window length in days, 0 for the unbounded range.
func (r Range) Days() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	}
	return 0
}

// KPIs summarises review throughput over a window.
type KPIs struct {
	Total            int  `json:"total"`
	Pending          int  `json:"pending"`
	Approved         int  `json:"approved"`
	Rejected         int  `json:"rejected"`
	ApprovalRate     int  `json:"approval_rate"`
	AvgReviewMinutes *int `json:"avg_review_minutes"`
}

// DailyBucket holds per-day decision counts keyed by ISO date (UTC).
type DailyBucket struct {
	Date     string `json:"date"`
	Approved int    `json:"approved"`
	Rejected int    `json:"rejected"`
	Pending  int    `json:"pending"`
	Reviewed int    `json:"reviewed"`
}

// Aggregate folds item snapshots, already filtered to the range by the
// caller, into KPIs and ascending daily buckets. For bounded ranges one
// bucket per calendar day is emitted even with zero activity; the
// unbounded range creates buckets only for dates that have data.
func Aggregate(items []models.ReviewItem, rng Range, now time.Time) (KPIs, []DailyBucket) {
	kpis := KPIs{Total: len(items)}

	var cutoff time.Time
	bounded := rng.Days() > 0
	if bounded {
		cutoff = now.UTC().AddDate(0, 0, -rng.Days())
	}

	buckets := make(map[string]*DailyBucket)
	if bounded {
		for d := dayOf(cutoff); !d.After(dayOf(now.UTC())); d = d.AddDate(0, 0, 1) {
			key := d.Format("2006-01-02")
			buckets[key] = &DailyBucket{Date: key}
		}
	}

	var reviewMinutes float64
	var reviewedCount int

	for _, item := range items {
		switch item.Status {
		case models.StatusApproved:
			kpis.Approved++
		case models.StatusRejected:
			kpis.Rejected++
		default:
			kpis.Pending++
		}

		if item.ReviewedAt != nil && (!bounded || !item.ReviewedAt.Before(cutoff)) {
			reviewMinutes += item.ReviewedAt.Sub(item.CreatedAt).Minutes()
			reviewedCount++
		}

		// Pending items land in the bucket of their creation date so
		// they still appear somewhere.
		at := item.CreatedAt
		if item.ReviewedAt != nil {
			at = *item.ReviewedAt
		}
		key := dayOf(at.UTC()).Format("2006-01-02")
		bucket, ok := buckets[key]
		if !ok {
			if bounded {
				continue
			}
			bucket = &DailyBucket{Date: key}
			buckets[key] = bucket
		}
		switch item.Status {
		case models.StatusApproved:
			bucket.Approved++
		case models.StatusRejected:
			bucket.Rejected++
		default:
			bucket.Pending++
		}
		bucket.Reviewed = bucket.Approved + bucket.Rejected
	}

	if decided := kpis.Approved + kpis.Rejected; decided > 0 {
		kpis.ApprovalRate = int(math.Round(float64(kpis.Approved) / float64(decided) * 100))
	}
	if reviewedCount > 0 {
		avg := int(math.Round(reviewMinutes / float64(reviewedCount)))
		kpis.AvgReviewMinutes = &avg
	}

	daily := make([]DailyBucket, 0, len(buckets))
	for _, b := range buckets {
		daily = append(daily, *b)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	return kpis, daily
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
