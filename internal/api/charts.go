package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// chartOccupancy renders an occupancy timeline (HTML) from persisted
// snapshots using go-echarts. This is a debugging-only endpoint for eyeballing
// the day without a dashboard deployment.
func (s *Server) chartOccupancy(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.daysWindow(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshots, err := s.db.SnapshotsBetween(start, end)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve snapshots: %v", err))
		return
	}
	if len(snapshots) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no snapshots in window")
		return
	}

	labels := make([]string, 0, len(snapshots))
	occupancy := make([]opts.LineData, 0, len(snapshots))
	peak := make([]opts.LineData, 0, len(snapshots))
	for _, snap := range snapshots {
		labels = append(labels, snap.Timestamp.Format(time.Kitchen))
		occupancy = append(occupancy, opts.LineData{Value: snap.CurrentOccupancy})
		peak = append(peak, opts.LineData{Value: snap.PeakOccupancy})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy", Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy", Subtitle: fmt.Sprintf("%d snapshots since %s", len(snapshots), start.Format(time.DateTime))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "people"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("occupancy", occupancy)
	line.AddSeries("peak", peak, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// dwellHistogramBuckets is the fixed bucketing for the dwell chart, in
// minutes. The last bucket is open-ended.
var dwellHistogramBuckets = []float64{15, 30, 45, 60, 90, 120, 180}

// chartDwellHistogram renders a dwell-time histogram (HTML) of closed
// sessions in the window.
func (s *Server) chartDwellHistogram(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.daysWindow(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := s.db.ClosedSessionsBetween(start, end)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}

	counts := make([]int, len(dwellHistogramBuckets)+1)
	for _, sess := range sessions {
		if sess.DwellMinutes == nil || sess.Status != "closed" {
			continue
		}
		bucket := len(dwellHistogramBuckets)
		for i, edge := range dwellHistogramBuckets {
			if *sess.DwellMinutes < edge {
				bucket = i
				break
			}
		}
		counts[bucket]++
	}

	labels := make([]string, 0, len(counts))
	prev := 0.0
	for _, edge := range dwellHistogramBuckets {
		labels = append(labels, fmt.Sprintf("%.0f-%.0fm", prev, edge))
		prev = edge
	}
	labels = append(labels, fmt.Sprintf("%.0fm+", prev))

	data := make([]opts.BarData, len(counts))
	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Dwell Histogram", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Dwell time distribution", Subtitle: fmt.Sprintf("%d closed sessions", len(sessions))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "visits"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("visits", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
