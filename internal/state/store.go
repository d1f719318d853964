// Package state persists versioned JSON documents such as lighting profiles and the
// last state written to each zone.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrVersionConflict is returned by SetIfVersion when the stored version moved on.
var ErrVersionConflict = errors.New("state version conflict")

// Store keeps one JSON document per (kind, id). Every write bumps the document's
// version, starting at 1; version 0 means absent.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store over the resource_state table.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record is one stored document with its metadata.
type Record struct {
	ID        string
	Payload   []byte
	Version   int64
	UpdatedAt time.Time
}

// Get returns the payload and version of a document, or nil and 0 if absent.
func (s *Store) Get(kind, id string) ([]byte, int64, error) {
	var payload string
	var version int64
	err := s.db.QueryRow(
		`SELECT payload, version FROM resource_state WHERE kind = ? AND id = ?`,
		kind, id,
	).Scan(&payload, &version)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, 0, nil
	case err != nil:
		return nil, 0, fmt.Errorf("get %s/%s: %w", kind, id, err)
	}
	return []byte(payload), version, nil
}

// Set writes a document unconditionally.
func (s *Store) Set(kind, id string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO resource_state (kind, id, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
	`, kind, id, string(payload), s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", kind, id, err)
	}

	log.Debug().Str("kind", kind).Str("id", id).Int("bytes", len(payload)).Msg("State stored")
	return nil
}

// SetIfVersion writes a document only if its stored version is still expected.
// expected 0 requires the document to be absent. It returns the new version.
func (s *Store) SetIfVersion(kind, id string, payload []byte, expected int64) (int64, error) {
	now := s.now().UTC().UnixMilli()

	var res sql.Result
	var err error
	if expected == 0 {
		res, err = s.db.Exec(`
			INSERT INTO resource_state (kind, id, payload, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(kind, id) DO NOTHING
		`, kind, id, string(payload), now)
	} else {
		res, err = s.db.Exec(`
			UPDATE resource_state SET payload = ?, version = version + 1, updated_at = ?
			WHERE kind = ? AND id = ? AND version = ?
		`, string(payload), now, kind, id, expected)
	}
	if err != nil {
		return 0, fmt.Errorf("set %s/%s: %w", kind, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s/%s at version %d", ErrVersionConflict, kind, id, expected)
	}
	return expected + 1, nil
}

// Delete removes a document. It reports whether one existed.
func (s *Store) Delete(kind, id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM resource_state WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Clear removes every document of a kind, or every document when kind is empty.
func (s *Store) Clear(kind string) error {
	var err error
	if kind == "" {
		_, err = s.db.Exec(`DELETE FROM resource_state`)
	} else {
		_, err = s.db.Exec(`DELETE FROM resource_state WHERE kind = ?`, kind)
	}
	if err != nil {
		return fmt.Errorf("clear %q: %w", kind, err)
	}
	return nil
}

// List returns every document of a kind ordered by id.
func (s *Store) List(kind string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, payload, version, updated_at FROM resource_state
		WHERE kind = ?
		ORDER BY id
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var payload string
		var updatedAt int64
		if err := rows.Scan(&r.ID, &payload, &r.Version, &updatedAt); err != nil {
			return nil, err
		}
		r.Payload = []byte(payload)
		r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
