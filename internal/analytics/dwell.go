// Package analytics computes dwell-time and revenue reports from persisted
// session history. It is read-only over the database records and never
// feeds back into engine state.
package analytics

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dwell.report/internal/db"
)

// DwellOptions controls which sessions enter a summary and where the
// visit-classification cutoffs sit.
type DwellOptions struct {
	// IncludeAmbiguous counts force-closed sessions in the statistics.
	// Off by default: their dwell times reflect when tracking lost the
	// visitor, not when the visitor left.
	IncludeAmbiguous bool

	QuickVisitUnder time.Duration // below this is a quick visit
	CamperAt        time.Duration // at or above this is a camper
	HeavyCamperAt   time.Duration // at or above this is a heavy camper
}

// DefaultDwellOptions mirrors the venue reporting cutoffs: under 30
// minutes is a quick visit, 90 minutes makes a camper, 120 a heavy one.
func DefaultDwellOptions() DwellOptions {
	return DwellOptions{
		QuickVisitUnder: 30 * time.Minute,
		CamperAt:        90 * time.Minute,
		HeavyCamperAt:   120 * time.Minute,
	}
}

// DwellSummary is the statistical picture of closed sessions in a period.
type DwellSummary struct {
	TotalVisits       int     `json:"total_visits"`
	AmbiguousExcluded int     `json:"ambiguous_excluded"`
	MeanMinutes       float64 `json:"mean_minutes"`
	MedianMinutes     float64 `json:"median_minutes"`
	P85Minutes        float64 `json:"p85_minutes"`
	P95Minutes        float64 `json:"p95_minutes"`
	MinMinutes        float64 `json:"min_minutes"`
	MaxMinutes        float64 `json:"max_minutes"`

	QuickVisits        int     `json:"quick_visits"`
	Campers            int     `json:"campers"`
	HeavyCampers       int     `json:"heavy_campers"`
	CampingRatePercent float64 `json:"camping_rate_percent"`
}

// Summarize computes dwell statistics over closed session records.
// Sessions without a recorded dwell time are skipped.
func Summarize(sessions []db.SessionRecord, opts DwellOptions) DwellSummary {
	var summary DwellSummary
	var dwells []float64

	for _, s := range sessions {
		if s.DwellMinutes == nil {
			continue
		}
		if s.Status == "closed_ambiguous" && !opts.IncludeAmbiguous {
			summary.AmbiguousExcluded++
			continue
		}

		d := *s.DwellMinutes
		dwells = append(dwells, d)

		switch {
		case d >= opts.HeavyCamperAt.Minutes():
			summary.HeavyCampers++
			summary.Campers++
		case d >= opts.CamperAt.Minutes():
			summary.Campers++
		case d < opts.QuickVisitUnder.Minutes():
			summary.QuickVisits++
		}
	}

	summary.TotalVisits = len(dwells)
	if len(dwells) == 0 {
		return summary
	}

	sort.Float64s(dwells)
	summary.MeanMinutes = stat.Mean(dwells, nil)
	summary.MedianMinutes = stat.Quantile(0.5, stat.Empirical, dwells, nil)
	summary.P85Minutes = stat.Quantile(0.85, stat.Empirical, dwells, nil)
	summary.P95Minutes = stat.Quantile(0.95, stat.Empirical, dwells, nil)
	summary.MinMinutes = dwells[0]
	summary.MaxMinutes = dwells[len(dwells)-1]
	summary.CampingRatePercent = float64(summary.Campers) / float64(summary.TotalVisits) * 100

	return summary
}

// HourBucket is dwell activity for one hour of day across the period.
type HourBucket struct {
	Hour        int     `json:"hour"`
	Visits      int     `json:"visits"`
	MeanMinutes float64 `json:"mean_minutes"`
}

// ByHour groups sessions by entry hour. Hours with no visits are omitted;
// the result is ordered by hour.
func ByHour(sessions []db.SessionRecord, opts DwellOptions) []HourBucket {
	perHour := make(map[int][]float64)
	for _, s := range sessions {
		if s.DwellMinutes == nil {
			continue
		}
		if s.Status == "closed_ambiguous" && !opts.IncludeAmbiguous {
			continue
		}
		perHour[s.EntryHour] = append(perHour[s.EntryHour], *s.DwellMinutes)
	}

	hours := make([]int, 0, len(perHour))
	for h := range perHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	buckets := make([]HourBucket, 0, len(hours))
	for _, h := range hours {
		buckets = append(buckets, HourBucket{
			Hour:        h,
			Visits:      len(perHour[h]),
			MeanMinutes: stat.Mean(perHour[h], nil),
		})
	}
	return buckets
}

// DayBucket is dwell activity for one day of week across the period.
type DayBucket struct {
	Day         string  `json:"day"`
	Visits      int     `json:"visits"`
	MeanMinutes float64 `json:"mean_minutes"`
	Campers     int     `json:"campers"`
}

// ByDay groups sessions by entry weekday, ordered Monday through Sunday.
func ByDay(sessions []db.SessionRecord, opts DwellOptions) []DayBucket {
	order := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	perDay := make(map[string][]float64)
	campers := make(map[string]int)

	for _, s := range sessions {
		if s.DwellMinutes == nil {
			continue
		}
		if s.Status == "closed_ambiguous" && !opts.IncludeAmbiguous {
			continue
		}
		perDay[s.DayOfWeek] = append(perDay[s.DayOfWeek], *s.DwellMinutes)
		if *s.DwellMinutes >= opts.CamperAt.Minutes() {
			campers[s.DayOfWeek]++
		}
	}

	var buckets []DayBucket
	for _, day := range order {
		dwells, ok := perDay[day]
		if !ok {
			continue
		}
		buckets = append(buckets, DayBucket{
			Day:         day,
			Visits:      len(dwells),
			MeanMinutes: stat.Mean(dwells, nil),
			Campers:     campers[day],
		})
	}
	return buckets
}
