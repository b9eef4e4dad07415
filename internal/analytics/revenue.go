package analytics

import (
	"time"

	"github.com/banshee-data/dwell.report/internal/db"
)

// LinkResult pairs a purchase with the session it most likely belongs to.
type LinkResult struct {
	PurchaseID int64  `json:"purchase_id"`
	SessionID  string `json:"session_id"`
}

// LinkPurchases matches purchases to closed sessions. A purchase belongs
// to a session when its timestamp falls between the session's entry and
// its exit plus the window (tabs are often settled after leaving the
// seat). When several sessions qualify, the one with the latest entry
// wins. Unmatched purchases are simply absent from the result; linkage
// never alters session state.
func LinkPurchases(sessions []db.SessionRecord, purchases []db.PurchaseRecord, window time.Duration) []LinkResult {
	var links []LinkResult
	for _, p := range purchases {
		var best *db.SessionRecord
		for i := range sessions {
			s := &sessions[i]
			if s.ExitTime == nil {
				continue
			}
			if p.Timestamp.Before(s.EntryTime) || p.Timestamp.After(s.ExitTime.Add(window)) {
				continue
			}
			if best == nil || s.EntryTime.After(best.EntryTime) {
				best = s
			}
		}
		if best != nil {
			links = append(links, LinkResult{PurchaseID: p.ID, SessionID: best.SessionID})
		}
	}
	return links
}

// SpendClass buckets a visitor by revenue per minute of seat time.
type SpendClass string

const (
	SpendHigh   SpendClass = "high"
	SpendMedium SpendClass = "medium"
	SpendLow    SpendClass = "low"
	SpendNone   SpendClass = "none"
)

// ClassifySpend rates revenue against minutes of dwell. Cutoffs follow
// the venue's rule of thumb: above a dollar a minute the seat pays for
// itself, above fifty cents it breaks even.
func ClassifySpend(revenue, dwellMinutes float64) SpendClass {
	if dwellMinutes <= 0 || revenue <= 0 {
		return SpendNone
	}
	perMinute := revenue / dwellMinutes
	switch {
	case perMinute > 1.0:
		return SpendHigh
	case perMinute > 0.5:
		return SpendMedium
	default:
		return SpendLow
	}
}

// RevenueSummary relates seat time to spend for a period.
type RevenueSummary struct {
	TotalRevenue       float64 `json:"total_revenue"`
	LinkedRevenue      float64 `json:"linked_revenue"`
	LinkedPurchases    int     `json:"linked_purchases"`
	UnlinkedPurchases  int     `json:"unlinked_purchases"`
	RevenuePerVisit    float64 `json:"revenue_per_visit"`
	RevenuePerMinute   float64 `json:"revenue_per_minute"`
	OverstayedVisits   int     `json:"overstayed_visits"`
	OverstayedLowSpend int     `json:"overstayed_low_spend"`
}

// SummarizeRevenue joins purchases to sessions and reports how spend
// relates to dwell. targetDwell marks the turnover goal: visits past it
// with low spend are the seats to watch.
func SummarizeRevenue(sessions []db.SessionRecord, purchases []db.PurchaseRecord, window, targetDwell time.Duration) RevenueSummary {
	var summary RevenueSummary

	links := LinkPurchases(sessions, purchases, window)
	bySession := make(map[string]float64)
	linked := make(map[int64]bool)
	for _, l := range links {
		linked[l.PurchaseID] = true
	}

	for _, p := range purchases {
		summary.TotalRevenue += p.Amount
		if !linked[p.ID] {
			summary.UnlinkedPurchases++
		}
	}
	for _, l := range links {
		for _, p := range purchases {
			if p.ID == l.PurchaseID {
				bySession[l.SessionID] += p.Amount
				summary.LinkedRevenue += p.Amount
				summary.LinkedPurchases++
			}
		}
	}

	var visits int
	var minutes float64
	for _, s := range sessions {
		if s.DwellMinutes == nil {
			continue
		}
		visits++
		minutes += *s.DwellMinutes

		if *s.DwellMinutes >= targetDwell.Minutes() {
			summary.OverstayedVisits++
			class := ClassifySpend(bySession[s.SessionID], *s.DwellMinutes)
			if class == SpendLow || class == SpendNone {
				summary.OverstayedLowSpend++
			}
		}
	}
	if visits > 0 {
		summary.RevenuePerVisit = summary.LinkedRevenue / float64(visits)
	}
	if minutes > 0 {
		summary.RevenuePerMinute = summary.LinkedRevenue / minutes
	}

	return summary
}
