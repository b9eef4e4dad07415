package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/dwell.report/internal/analytics"
	"github.com/banshee-data/dwell.report/internal/config"
	"github.com/banshee-data/dwell.report/internal/db"
	"github.com/banshee-data/dwell.report/internal/vision"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the read-only reporting API. Live numbers come from the
// engine snapshot; historical queries go to the database. Nothing here
// mutates engine state.
type Server struct {
	engine *vision.Engine
	db     *db.DB
	tuning *config.TuningConfig
}

func NewServer(engine *vision.Engine, db *db.DB, tuning *config.TuningConfig) *Server {
	return &Server{
		engine: engine,
		db:     db,
		tuning: tuning,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/occupancy/history", s.showOccupancyHistory)
	mux.HandleFunc("/api/dwell/summary", s.showDwellSummary)
	mux.HandleFunc("/api/revenue/summary", s.showRevenueSummary)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/occupancy", s.chartOccupancy)
	mux.HandleFunc("/charts/dwell", s.chartDwellHistogram)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// requireGet writes a 405 and returns false for non-GET requests.
func (s *Server) requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// daysWindow parses the 'days' query parameter (default 1) and returns
// the [start, end) interval it covers, ending now.
func (s *Server) daysWindow(r *http.Request) (time.Time, time.Time, error) {
	days := 1
	if d := r.URL.Query().Get("days"); d != "" {
		parsedDays, err := strconv.Atoi(d)
		if err != nil || parsedDays < 1 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'days' parameter")
		}
		days = parsedDays
	}
	end := time.Now().Add(time.Minute) // include rows stamped just now
	return end.Add(-time.Duration(days) * 24 * time.Hour), end, nil
}

// showStats returns the engine's live snapshot.
func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

	if err := json.NewEncoder(w).Encode(s.engine.Snapshot()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write snapshot")
	}
}

// listSessions returns session records. ?status=open limits to sessions
// still in progress; otherwise the 'days' window applies.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

	var sessions []db.SessionRecord
	var err error
	if r.URL.Query().Get("status") == "open" {
		sessions, err = s.db.OpenSessions()
	} else {
		var start, end time.Time
		start, end, err = s.daysWindow(r)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		sessions, err = s.db.SessionsBetween(start, end)
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}

	if sessions == nil {
		sessions = []db.SessionRecord{}
	}
	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
	}
}

// listEvents returns the most recent crossing events (default 100,
// capped at 1000 via the 'limit' parameter).
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	events, err := s.db.RecentEvents(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}

	if events == nil {
		events = []db.EventRecord{}
	}
	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write events")
	}
}

// showOccupancyHistory returns persisted occupancy snapshots for the
// 'days' window.
func (s *Server) showOccupancyHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

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

	if snapshots == nil {
		snapshots = []db.SnapshotRecord{}
	}
	if err := json.NewEncoder(w).Encode(snapshots); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write snapshots")
	}
}

// dwellReport is the /api/dwell/summary response body.
type dwellReport struct {
	Summary analytics.DwellSummary `json:"summary"`
	ByHour  []analytics.HourBucket `json:"by_hour"`
	ByDay   []analytics.DayBucket  `json:"by_day"`
}

// showDwellSummary computes dwell statistics over the 'days' window.
// ?include_ambiguous=true folds force-closed sessions into the numbers.
func (s *Server) showDwellSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

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

	opts := analytics.DefaultDwellOptions()
	opts.IncludeAmbiguous = r.URL.Query().Get("include_ambiguous") == "true"

	report := dwellReport{
		Summary: analytics.Summarize(sessions, opts),
		ByHour:  analytics.ByHour(sessions, opts),
		ByDay:   analytics.ByDay(sessions, opts),
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write dwell summary")
	}
}

// showRevenueSummary joins purchases to sessions over the 'days' window.
func (s *Server) showRevenueSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

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
	purchases, err := s.db.PurchasesBetween(start, end)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve purchases: %v", err))
		return
	}

	summary := analytics.SummarizeRevenue(sessions, purchases,
		s.tuning.GetPurchaseWindow(), s.tuning.GetTargetDwell())
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write revenue summary")
	}
}

// showConfig returns the effective tuning values after defaults.
func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.requireGet(w, r) {
		return
	}

	cfg := map[string]interface{}{
		"line_y":               s.tuning.GetLineY(),
		"frame_height":         s.tuning.GetFrameHeight(),
		"entry_direction":      s.tuning.GetEntryDirection(),
		"max_distance":         s.tuning.GetMaxDistance(),
		"max_disappeared":      s.tuning.GetMaxDisappeared(),
		"history_size":         s.tuning.GetHistorySize(),
		"assignment":           s.tuning.GetAssignment(),
		"confidence_threshold": s.tuning.GetConfidenceThreshold(),
		"warning_threshold":    s.tuning.GetWarningThreshold().String(),
		"alert_threshold":      s.tuning.GetAlertThreshold().String(),
		"target_dwell":         s.tuning.GetTargetDwell().String(),
		"tick_interval":        s.tuning.GetTickInterval().String(),
		"snapshot_interval":    s.tuning.GetSnapshotInterval().String(),
		"purchase_window":      s.tuning.GetPurchaseWindow().String(),
	}
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
	}
}
