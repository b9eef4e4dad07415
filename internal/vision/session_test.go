package vision

import (
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/dwell.report/internal/timeutil"
)

var sessionEpoch = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func newTestManager() (*SessionManager, *timeutil.MockClock) {
	cfg := testConfig()
	cfg.WarningThreshold = 90 * time.Minute
	cfg.AlertThreshold = 120 * time.Minute
	clock := timeutil.NewMockClock(sessionEpoch)
	return NewSessionManager(cfg, clock), clock
}

func TestSessionEntryExit(t *testing.T) {
	m, clock := newTestManager()

	s, err := m.RecordEntry(1, clock.Now())
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}
	if s.Status != SessionActive {
		t.Errorf("status = %v, want active", s.Status)
	}
	if s.SessionID == "" {
		t.Error("session ID must be assigned on entry")
	}
	if m.OpenCount() != 1 {
		t.Errorf("open count = %d, want 1", m.OpenCount())
	}

	clock.Advance(45 * time.Minute)
	closed, tr, err := m.RecordExit(1, clock.Now())
	if err != nil {
		t.Fatalf("RecordExit: %v", err)
	}
	if closed.Status != SessionClosed {
		t.Errorf("status = %v, want closed", closed.Status)
	}
	if closed.DwellMinutes != 45 {
		t.Errorf("dwell = %v minutes, want 45", closed.DwellMinutes)
	}
	if tr.From != SessionActive || tr.To != SessionClosed {
		t.Errorf("transition %v -> %v, want active -> closed", tr.From, tr.To)
	}
	if m.OpenCount() != 0 {
		t.Errorf("open count = %d, want 0", m.OpenCount())
	}
}

func TestSessionDuplicateEntryRejected(t *testing.T) {
	m, clock := newTestManager()

	first, _ := m.RecordEntry(1, clock.Now())
	clock.Advance(time.Minute)

	_, err := m.RecordEntry(1, clock.Now())
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}

	// The original session is untouched.
	if m.OpenCount() != 1 {
		t.Errorf("open count = %d, want 1", m.OpenCount())
	}
	views := m.ActiveSessions()
	if len(views) != 1 || views[0].SessionID != first.SessionID {
		t.Errorf("original session replaced: %+v", views)
	}
}

func TestSessionUnknownExitRejected(t *testing.T) {
	m, clock := newTestManager()

	_, _, err := m.RecordExit(7, clock.Now())
	if !errors.Is(err, ErrUnknownExit) {
		t.Fatalf("expected ErrUnknownExit, got %v", err)
	}
}

func TestSessionForceClose(t *testing.T) {
	m, clock := newTestManager()

	m.RecordEntry(1, clock.Now())
	clock.Advance(30 * time.Minute)

	s, tr, ok := m.ForceClose(1, clock.Now())
	if !ok {
		t.Fatal("expected force-close to find an open session")
	}
	if s.Status != SessionClosedAmbiguous {
		t.Errorf("status = %v, want closed_ambiguous", s.Status)
	}
	if s.DwellMinutes != 30 {
		t.Errorf("dwell = %v, want 30", s.DwellMinutes)
	}
	if tr.To != SessionClosedAmbiguous {
		t.Errorf("transition to %v, want closed_ambiguous", tr.To)
	}

	// Tracks with no open session are the common case, not an error.
	if _, _, ok := m.ForceClose(99, clock.Now()); ok {
		t.Error("force-close of unknown track must report false")
	}
}

func TestSessionEscalationOrder(t *testing.T) {
	m, clock := newTestManager()

	m.RecordEntry(1, clock.Now())

	// Below the warning threshold nothing moves.
	clock.Advance(89 * time.Minute)
	if trs := m.Tick(clock.Now()); len(trs) != 0 {
		t.Fatalf("premature escalation: %+v", trs)
	}

	clock.Advance(time.Minute)
	trs := m.Tick(clock.Now())
	if len(trs) != 1 || trs[0].From != SessionActive || trs[0].To != SessionWarning {
		t.Fatalf("expected active -> warning, got %+v", trs)
	}

	// A repeated tick in the warning band emits nothing.
	clock.Advance(time.Minute)
	if trs := m.Tick(clock.Now()); len(trs) != 0 {
		t.Fatalf("duplicate warning transition: %+v", trs)
	}

	clock.Advance(29 * time.Minute)
	trs = m.Tick(clock.Now())
	if len(trs) != 1 || trs[0].From != SessionWarning || trs[0].To != SessionAlert {
		t.Fatalf("expected warning -> alert, got %+v", trs)
	}
}

func TestSessionLateTickEmitsBothTransitions(t *testing.T) {
	m, clock := newTestManager()

	m.RecordEntry(1, clock.Now())

	// A single tick after both thresholds have elapsed must still pass
	// through warning before alert.
	clock.Advance(3 * time.Hour)
	trs := m.Tick(clock.Now())
	if len(trs) != 2 {
		t.Fatalf("expected 2 transitions, got %+v", trs)
	}
	if trs[0].From != SessionActive || trs[0].To != SessionWarning {
		t.Errorf("first transition %v -> %v, want active -> warning", trs[0].From, trs[0].To)
	}
	if trs[1].From != SessionWarning || trs[1].To != SessionAlert {
		t.Errorf("second transition %v -> %v, want warning -> alert", trs[1].From, trs[1].To)
	}
}

func TestSessionExitFromAlert(t *testing.T) {
	m, clock := newTestManager()

	m.RecordEntry(1, clock.Now())
	clock.Advance(130 * time.Minute)
	m.Tick(clock.Now())

	_, tr, err := m.RecordExit(1, clock.Now())
	if err != nil {
		t.Fatalf("RecordExit: %v", err)
	}
	if tr.From != SessionAlert || tr.To != SessionClosed {
		t.Errorf("transition %v -> %v, want alert -> closed", tr.From, tr.To)
	}
}

func TestSessionCloseAll(t *testing.T) {
	m, clock := newTestManager()

	m.RecordEntry(3, clock.Now())
	m.RecordEntry(1, clock.Now())
	m.RecordEntry(2, clock.Now())
	clock.Advance(10 * time.Minute)

	trs := m.CloseAll(clock.Now())
	if len(trs) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(trs))
	}
	// Deterministic order by track ID.
	for i, want := range []int64{1, 2, 3} {
		if trs[i].TrackID != want {
			t.Errorf("transition %d for track %d, want %d", i, trs[i].TrackID, want)
		}
		if trs[i].To != SessionClosedAmbiguous {
			t.Errorf("transition %d to %v, want closed_ambiguous", i, trs[i].To)
		}
	}
	if m.OpenCount() != 0 {
		t.Errorf("open count = %d, want 0", m.OpenCount())
	}
}

func TestActiveSessionsOrderedByEntry(t *testing.T) {
	m, clock := newTestManager()

	m.RecordEntry(5, clock.Now())
	clock.Advance(20 * time.Minute)
	m.RecordEntry(2, clock.Now())
	clock.Advance(10 * time.Minute)

	views := m.ActiveSessions()
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].TrackID != 5 || views[1].TrackID != 2 {
		t.Errorf("views not ordered by entry time: %+v", views)
	}
	if views[0].ElapsedMinutes != 30 {
		t.Errorf("elapsed = %v, want 30", views[0].ElapsedMinutes)
	}
	if views[1].ElapsedMinutes != 10 {
		t.Errorf("elapsed = %v, want 10", views[1].ElapsedMinutes)
	}
}
