package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	SessionID    string     `json:"session_id"`
	TrackID      int64      `json:"track_id"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time,omitempty"`
	DwellMinutes *float64   `json:"dwell_minutes,omitempty"`
	Status       string     `json:"status"`
	DayOfWeek    string     `json:"day_of_week"`
	EntryHour    int        `json:"entry_hour"`
}

// OpenSession inserts a new session row in active state. The day_of_week
// and entry_hour columns are denormalized at write time so by-day and
// by-hour reports need no date arithmetic in SQL.
func (db *DB) OpenSession(sessionID string, trackID int64, entryTime time.Time) error {
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, track_id, entry_time, status, day_of_week, entry_hour)
		 VALUES (?, ?, ?, 'active', ?, ?)`,
		sessionID, trackID, entryTime, entryTime.Weekday().String(), entryTime.Hour(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sessionID, err)
	}
	return nil
}

// UpdateSessionStatus records a threshold escalation on an open session.
func (db *DB) UpdateSessionStatus(sessionID, status string) error {
	res, err := db.Exec(`UPDATE sessions SET status = ? WHERE session_id = ?`, status, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// CloseSession finalizes a session row with its exit time, dwell minutes,
// and terminal status (closed or closed_ambiguous).
func (db *DB) CloseSession(sessionID string, exitTime time.Time, dwellMinutes float64, status string) error {
	res, err := db.Exec(
		`UPDATE sessions SET exit_time = ?, dwell_minutes = ?, status = ? WHERE session_id = ?`,
		exitTime, dwellMinutes, status, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to close session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// GetSession returns one session by ID.
func (db *DB) GetSession(sessionID string) (*SessionRecord, error) {
	row := db.QueryRow(
		`SELECT session_id, track_id, entry_time, exit_time, dwell_minutes, status, day_of_week, entry_hour
		 FROM sessions WHERE session_id = ?`, sessionID,
	)
	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return rec, err
}

// SessionsBetween returns sessions whose entry time falls in [start, end),
// newest first.
func (db *DB) SessionsBetween(start, end time.Time) ([]SessionRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, track_id, entry_time, exit_time, dwell_minutes, status, day_of_week, entry_hour
		 FROM sessions WHERE entry_time >= ? AND entry_time < ?
		 ORDER BY entry_time DESC`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ClosedSessionsBetween returns terminal sessions with a recorded dwell
// time in [start, end). Ambiguous closures are included; analytics callers
// filter on status.
func (db *DB) ClosedSessionsBetween(start, end time.Time) ([]SessionRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, track_id, entry_time, exit_time, dwell_minutes, status, day_of_week, entry_hour
		 FROM sessions
		 WHERE entry_time >= ? AND entry_time < ?
		   AND status IN ('closed', 'closed_ambiguous')
		   AND dwell_minutes IS NOT NULL
		 ORDER BY entry_time`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// OpenSessions returns sessions not yet in a terminal state, oldest first.
func (db *DB) OpenSessions() ([]SessionRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, track_id, entry_time, exit_time, dwell_minutes, status, day_of_week, entry_hour
		 FROM sessions
		 WHERE status NOT IN ('closed', 'closed_ambiguous')
		 ORDER BY entry_time`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query open sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// CloseStaleSessions force-closes any session rows left open by an unclean
// shutdown. Called once at startup before the engine begins.
func (db *DB) CloseStaleSessions(now time.Time) (int64, error) {
	res, err := db.Exec(
		`UPDATE sessions
		 SET exit_time = ?,
		     dwell_minutes = (julianday(?) - julianday(entry_time)) * 1440,
		     status = 'closed_ambiguous'
		 WHERE status NOT IN ('closed', 'closed_ambiguous')`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var exitTime sql.NullTime
	var dwell sql.NullFloat64
	err := row.Scan(&rec.SessionID, &rec.TrackID, &rec.EntryTime, &exitTime, &dwell, &rec.Status, &rec.DayOfWeek, &rec.EntryHour)
	if err != nil {
		return nil, err
	}
	if exitTime.Valid {
		rec.ExitTime = &exitTime.Time
	}
	if dwell.Valid {
		rec.DwellMinutes = &dwell.Float64
	}
	return &rec, nil
}

func collectSessions(rows *sql.Rows) ([]SessionRecord, error) {
	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
