package db

import (
	"fmt"
	"time"

	"github.com/banshee-data/dwell.report/internal/monitoring"
	"github.com/banshee-data/dwell.report/internal/vision"
)

// Recorder persists the engine's event feed. It implements
// vision.EventSink and vision.SnapshotSink; the engine calls it inline on
// the frame path, which sqlite absorbs comfortably at doorway event rates.
//
// Persistence failures are logged and dropped. The engine's in-memory
// state stays authoritative; a write error must never stall the frame
// loop.
type Recorder struct {
	db *DB
}

// NewRecorder creates a recorder writing to db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// HandleCrossing appends the crossing to the events table.
func (r *Recorder) HandleCrossing(ev vision.CrossingEvent) {
	if err := r.db.RecordCrossing(ev.TrackID, string(ev.Direction), ev.OccupancyAfter, ev.Timestamp); err != nil {
		monitoring.Logf("recorder: %v", err)
	}
}

// HandleSessionTransition mirrors the session state machine into the
// sessions table.
func (r *Recorder) HandleSessionTransition(tr vision.SessionTransition) {
	var err error
	switch tr.To {
	case vision.SessionActive:
		err = r.db.OpenSession(tr.SessionID, tr.TrackID, tr.Timestamp)
	case vision.SessionWarning, vision.SessionAlert:
		err = r.db.UpdateSessionStatus(tr.SessionID, string(tr.To))
	case vision.SessionClosed, vision.SessionClosedAmbiguous:
		err = r.db.FinalizeSession(tr.SessionID, tr.Timestamp, string(tr.To))
	default:
		err = fmt.Errorf("unknown session state %q", tr.To)
	}
	if err != nil {
		monitoring.Logf("recorder: session %s: %v", tr.SessionID, err)
	}
}

// HandleSnapshot appends the periodic occupancy snapshot.
func (r *Recorder) HandleSnapshot(s vision.Snapshot) {
	rec := SnapshotRecord{
		Timestamp:          s.Timestamp,
		TotalEntries:       s.Aggregates.TotalEntries,
		TotalExits:         s.Aggregates.TotalExits,
		CurrentOccupancy:   s.Aggregates.CurrentOccupancy,
		PeakOccupancy:      s.Aggregates.PeakOccupancy,
		ActiveTracks:       int64(s.ActiveTracks),
		ActiveSessions:     int64(len(s.ActiveSessions)),
		UnderflowClamps:    s.Aggregates.UnderflowClamps,
		ProtocolViolations: s.Aggregates.ProtocolViolations,
	}
	if err := r.db.RecordSnapshot(rec); err != nil {
		monitoring.Logf("recorder: %v", err)
	}
}

// FinalizeSession closes a session row at exitTime, computing dwell
// minutes from the stored entry time.
func (db *DB) FinalizeSession(sessionID string, exitTime time.Time, status string) error {
	res, err := db.Exec(
		`UPDATE sessions
		 SET exit_time = ?,
		     dwell_minutes = (julianday(?) - julianday(entry_time)) * 1440,
		     status = ?
		 WHERE session_id = ?`,
		exitTime, exitTime, status, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}
