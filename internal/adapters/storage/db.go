package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// migration is one forward-only schema step. Steps use IF NOT EXISTS so a
// database created before version tracking can be brought under it.
type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "baseline", apply: migrateBaseline},
	{version: 2, name: "handoff_expiry_index", apply: migrateHandoffExpiryIndex},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
// PRE: none
// POST: returns the highest registered migration version
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion reads the current schema version, 0 for an untracked database.
// PRE: db is a valid database connection
// POST: returns the recorded version or 0
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// MigrateDB enables the connection pragmas and applies every pending migration.
// dbPath is only used for logging.
// PRE: db is a valid database connection
// POST: schema is at LatestSchemaVersion, WAL mode and foreign keys enabled
func MigrateDB(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		slog.Info("schema_migrated", "db", dbPath, "version", m.version, "name", m.name)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func migrateBaseline(tx *sql.Tx) error {
	schema := `
	CREATE TABLE IF NOT EXISTS visitor (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		last_seen_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS handoff_slot (
		visitor_id TEXT NOT NULL,
		slot_key TEXT NOT NULL,
		value TEXT NOT NULL,
		written_at TEXT NOT NULL,
		expires_at TEXT,
		PRIMARY KEY (visitor_id, slot_key),
		FOREIGN KEY (visitor_id) REFERENCES visitor(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS backend_cookie (
		visitor_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		expires_at TEXT,
		PRIMARY KEY (visitor_id, name),
		FOREIGN KEY (visitor_id) REFERENCES visitor(id) ON DELETE CASCADE
	);
	`
	_, err := tx.Exec(schema)
	return err
}

func migrateHandoffExpiryIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE INDEX IF NOT EXISTS idx_handoff_slot_expires ON handoff_slot(expires_at) WHERE expires_at IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_visitor_last_seen ON visitor(last_seen_at);
	`)
	return err
}

// timeLayout is the storage format for every timestamp column. It is fixed
// width so that string comparison in SQL orders timestamps correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for a TEXT timestamp column. The zero time maps to NULL.
func FormatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a TEXT timestamp column, accepting the formats older rows used.
// PRE: none
// POST: returns the zero time for NULL or empty input
func ParseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	for _, f := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(f, s.String); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s.String)
}
