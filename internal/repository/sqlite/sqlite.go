// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain and tests can run against ":memory:" databases.
//
// STORAGE CONVENTIONS:
//   - IDs are xids (20 chars, URL-safe, time-sortable).
//   - Timestamps are stored as INTEGER Unix milliseconds in UTC. Range
//     filters on created_at are then plain integer comparisons, and the
//     precision matches the Mongo store.
//   - Free-form values (activity metadata, the smoking profile) are stored
//     as JSON text.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB owns the connection pool. Activities and Users expose the two
// repository implementations that share it.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (a file path or ":memory:") and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and every pooled connection to
	// ":memory:" would otherwise see its own empty database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Activities returns the activity repository backed by this database.
func (db *DB) Activities() *ActivityDB {
	return &ActivityDB{conn: db.conn}
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// migrate creates the schema. Every statement is idempotent so it runs on
// each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			display_name         TEXT NOT NULL,
			email                TEXT UNIQUE,
			password_hash        TEXT NOT NULL DEFAULT '',
			github_id            INTEGER UNIQUE,
			avatar_url           TEXT NOT NULL DEFAULT '',
			smoking_history      TEXT,
			onboarding_completed INTEGER NOT NULL DEFAULT 0,
			aura_score           INTEGER NOT NULL DEFAULT 0,
			cigarettes_avoided   INTEGER NOT NULL DEFAULT 0,
			total_money_saved    REAL    NOT NULL DEFAULT 0,
			streak_start_time    INTEGER,
			last_smoked          INTEGER,
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS activities (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			type       TEXT NOT NULL,
			points     INTEGER NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activities_user_created ON activities(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_activities_user_type ON activities(user_id, type);
	`)
	if err != nil {
		return fmt.Errorf("creating activities table: %w", err)
	}

	return nil
}

// toMillis and fromMillis convert between time.Time and the stored integer
// representation.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

// normalize truncates t to the stored precision so callers hold the same
// value a later read returns.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
