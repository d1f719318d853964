// Package db provides the shared SQLite connection and schema for mysticd.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and applies pending migrations. ":memory:" opens a
// private in-memory database.
func Open(dbPath string) (*DB, error) {
	memory := strings.HasPrefix(dbPath, ":memory:")

	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	if memory {
		dsn = dbPath
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: a single database.
	conn.SetMaxOpenConns(1)

	db := &DB{conn}
	applied, err := db.Migrate()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.Debug().Str("path", dbPath).Strs("migrations", applied).Msg("Database migrated")
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
