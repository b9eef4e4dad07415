package vision

import (
	"time"

	"github.com/banshee-data/dwell.report/internal/monitoring"
)

// AggregateState holds the running totals updated from crossing events. It
// is plain instance state owned by the engine, never package globals, so
// one process can run an engine per camera.
type AggregateState struct {
	TotalEntries     int64 `json:"total_entries"`
	TotalExits       int64 `json:"total_exits"`
	CurrentOccupancy int64 `json:"current_occupancy"`

	// PeakOccupancy is the day's high-water mark; it resets to the live
	// occupancy on the first sample of each new calendar day.
	PeakOccupancy int64 `json:"peak_occupancy"`

	// Soft-error metrics. Non-zero values indicate tracking error, not
	// engine failure.
	UnderflowClamps    int64 `json:"underflow_clamps"`
	ProtocolViolations int64 `json:"protocol_violations"`

	peakDay string
}

// RollDay resets the peak at the first sample of a new calendar day.
func (a *AggregateState) RollDay(ts time.Time) {
	day := ts.Format("2006-01-02")
	if day == a.peakDay {
		return
	}
	a.peakDay = day
	a.PeakOccupancy = a.CurrentOccupancy
}

// Apply folds one crossing into the totals. Occupancy is derived from the
// totals and never goes negative: over-counted exits clamp at zero and bump
// the UnderflowClamps metric.
func (a *AggregateState) Apply(dir Direction, ts time.Time) {
	a.RollDay(ts)

	switch dir {
	case DirectionEntry:
		a.TotalEntries++
	case DirectionExit:
		a.TotalExits++
	}

	net := a.TotalEntries - a.TotalExits
	if net < 0 {
		net = 0
		if dir == DirectionExit {
			a.UnderflowClamps++
			monitoring.Logf("occupancy underflow clamped at zero (entries=%d exits=%d)", a.TotalEntries, a.TotalExits)
		}
	}
	a.CurrentOccupancy = net
	if a.CurrentOccupancy > a.PeakOccupancy {
		a.PeakOccupancy = a.CurrentOccupancy
	}
}
