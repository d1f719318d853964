// Package ledger provides an append-only history of zone writes, session reloads and
// script actions.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventZoneWriteOK          EventType = "zone_write_ok"
	EventZoneWriteFailed      EventType = "zone_write_failed"
	EventZoneWriteUnsupported EventType = "zone_write_unsupported"
	EventSessionReloaded      EventType = "session_reloaded"
	EventSessionReloadFailed  EventType = "session_reload_failed"
	EventProfileApplied       EventType = "profile_applied"
	EventActionCompleted      EventType = "action_completed"
	EventActionFailed         EventType = "action_failed"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID            int64          `json:"id"`
	EventType     EventType      `json:"event_type"`
	Timestamp     time.Time      `json:"timestamp"`
	Device        string         `json:"device,omitempty"`
	Zone          string         `json:"zone,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Source        string         `json:"source,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Record is what callers append. Timestamp is assigned by the ledger.
type Record struct {
	EventType     EventType
	Device        string
	Zone          string
	Payload       map[string]any
	Source        string
	CorrelationID string
}

// Query filters entries. Zero fields do not filter.
type Query struct {
	EventType EventType
	Device    string
	Zone      string
	Since     time.Time
	Limit     int
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(r Record) error {
	var payloadJSON []byte
	var err error

	if r.Payload != nil {
		payloadJSON, err = json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = l.db.Exec(`
		INSERT INTO event_ledger (event_type, timestamp, device, zone, payload, source, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(r.EventType), l.now().UTC().UnixMilli(), r.Device, r.Zone, string(payloadJSON), r.Source, r.CorrelationID)
	return err
}

// Find returns entries matching q, newest first.
func (l *Ledger) Find(q Query) ([]*Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, device, zone, payload, source, correlation_id
		FROM event_ledger
		WHERE (? = '' OR event_type = ?)
		  AND (? = '' OR device = ?)
		  AND (? = '' OR zone = ?)
		  AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`,
		string(q.EventType), string(q.EventType),
		q.Device, q.Device,
		q.Zone, q.Zone,
		q.Since.UnixMilli(),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// ByCorrelation returns every entry written under one correlation id, oldest first.
func (l *Ledger) ByCorrelation(id string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, device, zone, payload, source, correlation_id
		FROM event_ledger
		WHERE correlation_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UnixMilli()
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr sql.NullString
		var device, zone, source, correlationID sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &device, &zone, &payloadStr, &source, &correlationID,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		entry.Device = device.String
		entry.Zone = zone.String
		entry.Source = source.String
		entry.CorrelationID = correlationID.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
