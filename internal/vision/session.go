package vision

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dwell.report/internal/monitoring"
)

// SessionStatus is the lifecycle state of a dwell session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionWarning SessionStatus = "warning"
	SessionAlert   SessionStatus = "alert"
	SessionClosed  SessionStatus = "closed"
	// SessionClosedAmbiguous marks a session force-closed because its
	// track disappeared without a clean exit crossing (walked out of
	// view sideways, occlusion, shutdown). Downstream analytics exclude
	// these from dwell averages by default.
	SessionClosedAmbiguous SessionStatus = "closed_ambiguous"
)

// Terminal reports whether the status is a closed state.
func (s SessionStatus) Terminal() bool {
	return s == SessionClosed || s == SessionClosedAmbiguous
}

// Session is one visitor's timed visit, from entry crossing to exit
// crossing or forced closure.
type Session struct {
	SessionID    string        `json:"session_id"`
	TrackID      int64         `json:"track_id"`
	EntryTime    time.Time     `json:"entry_time"`
	ExitTime     time.Time     `json:"exit_time,omitempty"` // zero while open
	Status       SessionStatus `json:"status"`
	DwellMinutes float64       `json:"dwell_minutes"` // set on close
}

// Protocol violations. Both are data-integrity warnings: the offending
// event is dropped and the frame loop continues.
var (
	ErrDuplicateEntry = errors.New("entry event for track with open session")
	ErrUnknownExit    = errors.New("exit event for track with no open session")
)

// SessionManager maps track lifecycle to dwell sessions. Escalation is
// evaluated against the clock on periodic ticks, deliberately separate from
// the event-driven crossing logic so tests can drive it with a mock clock.
//
// Not safe for concurrent use; the engine serializes access.
type SessionManager struct {
	clock   timeClock
	warning time.Duration
	alert   time.Duration

	open map[int64]*Session
}

// timeClock is the subset of timeutil.Clock the manager needs. Declared
// locally so the core package keeps a minimal dependency surface.
type timeClock interface {
	Now() time.Time
}

// NewSessionManager creates a manager with the configured thresholds.
func NewSessionManager(cfg EngineConfig, clock timeClock) *SessionManager {
	return &SessionManager{
		clock:   clock,
		warning: cfg.WarningThreshold,
		alert:   cfg.AlertThreshold,
		open:    make(map[int64]*Session),
	}
}

// RecordEntry opens a session for a track. A second entry for a track with
// an open session is a protocol violation: the event is rejected and the
// existing session is left untouched.
func (m *SessionManager) RecordEntry(trackID int64, ts time.Time) (*Session, error) {
	if existing, ok := m.open[trackID]; ok {
		return nil, fmt.Errorf("track %d opened %s: %w", trackID, existing.EntryTime.Format(time.RFC3339), ErrDuplicateEntry)
	}

	s := &Session{
		SessionID: uuid.New().String(),
		TrackID:   trackID,
		EntryTime: ts,
		Status:    SessionActive,
	}
	m.open[trackID] = s
	monitoring.Logf("session %s opened: track=%d entry=%s", s.SessionID, trackID, ts.Format(time.RFC3339))
	return s, nil
}

// RecordExit closes the open session for a track on its exit crossing.
func (m *SessionManager) RecordExit(trackID int64, ts time.Time) (*Session, SessionTransition, error) {
	s, ok := m.open[trackID]
	if !ok {
		return nil, SessionTransition{}, fmt.Errorf("track %d: %w", trackID, ErrUnknownExit)
	}

	tr := m.close(s, SessionClosed, ts)
	monitoring.Logf("session %s closed: track=%d dwell=%.1fm", s.SessionID, trackID, s.DwellMinutes)
	return s, tr, nil
}

// ForceClose closes an open session without a clean exit crossing, using
// the eviction timestamp. Returns false when the track had no open session
// (it never produced an entry crossing), which is the common case and not
// an error.
func (m *SessionManager) ForceClose(trackID int64, ts time.Time) (*Session, SessionTransition, bool) {
	s, ok := m.open[trackID]
	if !ok {
		return nil, SessionTransition{}, false
	}

	tr := m.close(s, SessionClosedAmbiguous, ts)
	monitoring.Logf("session %s force-closed: track=%d dwell=%.1fm (no exit crossing)", s.SessionID, trackID, s.DwellMinutes)
	return s, tr, true
}

func (m *SessionManager) close(s *Session, status SessionStatus, ts time.Time) SessionTransition {
	from := s.Status
	s.Status = status
	s.ExitTime = ts
	s.DwellMinutes = ts.Sub(s.EntryTime).Minutes()
	delete(m.open, s.TrackID)
	return SessionTransition{SessionID: s.SessionID, TrackID: s.TrackID, From: from, To: status, Timestamp: ts}
}

// CloseAll force-closes every open session. Part of the clean-stop
// procedure: shutdown is treated as eviction of all tracks.
func (m *SessionManager) CloseAll(ts time.Time) []SessionTransition {
	ids := make([]int64, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	transitions := make([]SessionTransition, 0, len(ids))
	for _, id := range ids {
		if _, tr, ok := m.ForceClose(id, ts); ok {
			transitions = append(transitions, tr)
		}
	}
	return transitions
}

// Tick re-evaluates every open session against elapsed time, escalating
// active → warning → alert in threshold order. A tick arriving after both
// thresholds have elapsed emits both transitions in order; the warning step
// never disappears from the event feed.
func (m *SessionManager) Tick(now time.Time) []SessionTransition {
	ids := make([]int64, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	var transitions []SessionTransition
	for _, id := range ids {
		s := m.open[id]
		elapsed := now.Sub(s.EntryTime)

		if s.Status == SessionActive && elapsed >= m.warning {
			transitions = append(transitions, m.escalate(s, SessionWarning, now))
		}
		if s.Status == SessionWarning && elapsed >= m.alert {
			transitions = append(transitions, m.escalate(s, SessionAlert, now))
		}
	}
	return transitions
}

func (m *SessionManager) escalate(s *Session, to SessionStatus, now time.Time) SessionTransition {
	from := s.Status
	s.Status = to
	monitoring.Logf("session %s escalated %s -> %s: track=%d elapsed=%.1fm", s.SessionID, from, to, s.TrackID, now.Sub(s.EntryTime).Minutes())
	return SessionTransition{SessionID: s.SessionID, TrackID: s.TrackID, From: from, To: to, Timestamp: now}
}

// SessionView is a read-only picture of one open session for snapshots.
type SessionView struct {
	SessionID      string        `json:"session_id"`
	TrackID        int64         `json:"track_id"`
	EntryTime      time.Time     `json:"entry_time"`
	ElapsedMinutes float64       `json:"elapsed_minutes"`
	Status         SessionStatus `json:"status"`
}

// ActiveSessions returns open sessions ordered by entry time (longest
// dwell first), with elapsed minutes computed against the clock.
func (m *SessionManager) ActiveSessions() []SessionView {
	now := m.clock.Now()
	views := make([]SessionView, 0, len(m.open))
	for _, s := range m.open {
		views = append(views, SessionView{
			SessionID:      s.SessionID,
			TrackID:        s.TrackID,
			EntryTime:      s.EntryTime,
			ElapsedMinutes: now.Sub(s.EntryTime).Minutes(),
			Status:         s.Status,
		})
	}
	sort.Slice(views, func(a, b int) bool { return views[a].EntryTime.Before(views[b].EntryTime) })
	return views
}

// OpenCount returns the number of open sessions.
func (m *SessionManager) OpenCount() int { return len(m.open) }
