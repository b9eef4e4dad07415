package db

import (
	"database/sql"
	"fmt"
	"time"
)

// PurchaseRecord is one row of the purchases table: an external POS
// transaction, optionally linked to the session whose visitor likely made
// it.
type PurchaseRecord struct {
	ID              int64     `json:"id"`
	Amount          float64   `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
	LinkedSessionID *string   `json:"linked_session_id,omitempty"`
}

// RecordPurchase appends a purchase with no session link.
func (db *DB) RecordPurchase(amount float64, ts time.Time) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO purchases (amount, timestamp) VALUES (?, ?)`, amount, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert purchase: %w", err)
	}
	return res.LastInsertId()
}

// LinkPurchase associates a purchase with a session. Linking never alters
// session rows.
func (db *DB) LinkPurchase(purchaseID int64, sessionID string) error {
	res, err := db.Exec(
		`UPDATE purchases SET linked_session_id = ? WHERE id = ?`, sessionID, purchaseID,
	)
	if err != nil {
		return fmt.Errorf("failed to link purchase %d: %w", purchaseID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("purchase %d not found", purchaseID)
	}
	return nil
}

// PurchasesBetween returns purchases in [start, end), oldest first.
func (db *DB) PurchasesBetween(start, end time.Time) ([]PurchaseRecord, error) {
	rows, err := db.Query(
		`SELECT id, amount, timestamp, linked_session_id
		 FROM purchases WHERE timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp, id`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()
	return collectPurchases(rows)
}

// PurchasesForSession returns purchases linked to one session.
func (db *DB) PurchasesForSession(sessionID string) ([]PurchaseRecord, error) {
	rows, err := db.Query(
		`SELECT id, amount, timestamp, linked_session_id
		 FROM purchases WHERE linked_session_id = ?
		 ORDER BY timestamp, id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases for session %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func collectPurchases(rows *sql.Rows) ([]PurchaseRecord, error) {
	var out []PurchaseRecord
	for rows.Next() {
		var rec PurchaseRecord
		var linked sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Amount, &rec.Timestamp, &linked); err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		if linked.Valid {
			rec.LinkedSessionID = &linked.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
