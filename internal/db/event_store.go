package db

import (
	"database/sql"
	"fmt"
	"time"
)

// EventRecord is one row of the events table: a single line crossing.
type EventRecord struct {
	ID             int64     `json:"id"`
	TrackID        int64     `json:"track_id"`
	Direction      string    `json:"direction"`
	OccupancyAfter int64     `json:"occupancy_after"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecordCrossing appends one crossing event.
func (db *DB) RecordCrossing(trackID int64, direction string, occupancyAfter int64, ts time.Time) error {
	_, err := db.Exec(
		`INSERT INTO events (track_id, direction, occupancy_after, timestamp)
		 VALUES (?, ?, ?, ?)`,
		trackID, direction, occupancyAfter, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crossing event: %w", err)
	}
	return nil
}

// EventsBetween returns crossing events in [start, end), oldest first.
func (db *DB) EventsBetween(start, end time.Time) ([]EventRecord, error) {
	rows, err := db.Query(
		`SELECT id, track_id, direction, occupancy_after, timestamp
		 FROM events WHERE timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp, id`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.TrackID, &rec.Direction, &rec.OccupancyAfter, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentEvents returns the latest n crossing events, newest first.
func (db *DB) RecentEvents(n int) ([]EventRecord, error) {
	rows, err := db.Query(
		`SELECT id, track_id, direction, occupancy_after, timestamp
		 FROM events ORDER BY timestamp DESC, id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.TrackID, &rec.Direction, &rec.OccupancyAfter, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SnapshotRecord is one row of the snapshots table: the engine's counters
// at one instant.
type SnapshotRecord struct {
	ID                 int64     `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	TotalEntries       int64     `json:"total_entries"`
	TotalExits         int64     `json:"total_exits"`
	CurrentOccupancy   int64     `json:"current_occupancy"`
	PeakOccupancy      int64     `json:"peak_occupancy"`
	ActiveTracks       int64     `json:"active_tracks"`
	ActiveSessions     int64     `json:"active_sessions"`
	UnderflowClamps    int64     `json:"underflow_clamps"`
	ProtocolViolations int64     `json:"protocol_violations"`
}

// RecordSnapshot appends one occupancy snapshot.
func (db *DB) RecordSnapshot(s SnapshotRecord) error {
	_, err := db.Exec(
		`INSERT INTO snapshots (timestamp, total_entries, total_exits, current_occupancy,
		                        peak_occupancy, active_tracks, active_sessions,
		                        underflow_clamps, protocol_violations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp, s.TotalEntries, s.TotalExits, s.CurrentOccupancy,
		s.PeakOccupancy, s.ActiveTracks, s.ActiveSessions,
		s.UnderflowClamps, s.ProtocolViolations,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// SnapshotsBetween returns occupancy snapshots in [start, end), oldest
// first. This backs the occupancy history endpoint and chart.
func (db *DB) SnapshotsBetween(start, end time.Time) ([]SnapshotRecord, error) {
	rows, err := db.Query(
		`SELECT id, timestamp, total_entries, total_exits, current_occupancy,
		        peak_occupancy, active_tracks, active_sessions,
		        underflow_clamps, protocol_violations
		 FROM snapshots WHERE timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.TotalEntries, &rec.TotalExits,
			&rec.CurrentOccupancy, &rec.PeakOccupancy, &rec.ActiveTracks,
			&rec.ActiveSessions, &rec.UnderflowClamps, &rec.ProtocolViolations); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent snapshot, or nil when none exist.
func (db *DB) LatestSnapshot() (*SnapshotRecord, error) {
	row := db.QueryRow(
		`SELECT id, timestamp, total_entries, total_exits, current_occupancy,
		        peak_occupancy, active_tracks, active_sessions,
		        underflow_clamps, protocol_violations
		 FROM snapshots ORDER BY timestamp DESC, id DESC LIMIT 1`,
	)
	var rec SnapshotRecord
	err := row.Scan(&rec.ID, &rec.Timestamp, &rec.TotalEntries, &rec.TotalExits,
		&rec.CurrentOccupancy, &rec.PeakOccupancy, &rec.ActiveTracks,
		&rec.ActiveSessions, &rec.UnderflowClamps, &rec.ProtocolViolations)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return &rec, nil
}
