package handoff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"animeai/internal/adapters/storage"
	domain "animeai/internal/domain/handoff"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new handoff store.
// PRE: db has been migrated with storage.MigrateDB
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Put writes a slot, replacing any previous value for the same key.
// The owning visitor row is created if it does not exist yet.
// PRE: entry passes Validate
// POST: exactly one row exists for (visitor, key) holding entry's value
func (s *SQLiteStore) Put(ctx context.Context, entry domain.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.WrittenAt.IsZero() {
		entry.WrittenAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	written := storage.FormatTime(entry.WrittenAt)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO visitor (id, created_at, last_seen_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		entry.VisitorID, written, written,
	); err != nil {
		return fmt.Errorf("ensure visitor: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO handoff_slot (visitor_id, slot_key, value, written_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(visitor_id, slot_key) DO UPDATE SET
			value=excluded.value, written_at=excluded.written_at, expires_at=excluded.expires_at`,
		entry.VisitorID, string(entry.Key), entry.Value, written, storage.FormatTime(entry.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", entry.Key, err)
	}
	return tx.Commit()
}

// Take reads and removes a slot in one statement, so two concurrent readers
// cannot both observe the value.
// PRE: visitorID is non-empty
// POST: the slot no longer exists; returns domain.ErrNotFound if it was absent or expired
func (s *SQLiteStore) Take(ctx context.Context, visitorID string, key domain.Key, now time.Time) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM handoff_slot WHERE visitor_id = ? AND slot_key = ?
		RETURNING visitor_id, slot_key, value, written_at, expires_at`,
		visitorID, string(key),
	)
	return liveEntry(row.Scan, now)
}

// Peek reads a slot without removing it.
// PRE: visitorID is non-empty
// POST: returns domain.ErrNotFound if the slot is absent or expired
func (s *SQLiteStore) Peek(ctx context.Context, visitorID string, key domain.Key, now time.Time) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT visitor_id, slot_key, value, written_at, expires_at FROM handoff_slot WHERE visitor_id = ? AND slot_key = ?`,
		visitorID, string(key),
	)
	return liveEntry(row.Scan, now)
}

// Delete removes one slot. Removing an absent slot is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, visitorID string, key domain.Key) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM handoff_slot WHERE visitor_id = ? AND slot_key = ?", visitorID, string(key))
	return err
}

// Clear removes the given slots for a visitor, or every slot when keys is empty.
// PRE: visitorID is non-empty
// POST: none of the named slots exist for the visitor
func (s *SQLiteStore) Clear(ctx context.Context, visitorID string, keys ...domain.Key) error {
	if len(keys) == 0 {
		_, err := s.db.ExecContext(ctx, "DELETE FROM handoff_slot WHERE visitor_id = ?", visitorID)
		return err
	}
	placeholders := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	args = append(args, visitorID)
	for i, k := range keys {
		placeholders[i] = "?"
		args = append(args, string(k))
	}
	query := fmt.Sprintf("DELETE FROM handoff_slot WHERE visitor_id = ? AND slot_key IN (%s)", strings.Join(placeholders, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteExpired sweeps every slot whose expiry is at or before now.
// POST: returns the number of rows removed
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM handoff_slot WHERE expires_at IS NOT NULL AND expires_at <= ?",
		storage.FormatTime(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// liveEntry scans a slot row and hides it if it has expired.
func liveEntry(scan func(dest ...any) error, now time.Time) (domain.Entry, error) {
	var e domain.Entry
	var key string
	var written, expires sql.NullString
	if err := scan(&e.VisitorID, &key, &e.Value, &written, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, domain.ErrNotFound
		}
		return domain.Entry{}, err
	}
	e.Key = domain.Key(key)
	e.WrittenAt, _ = storage.ParseTime(written)
	var err error
	if e.ExpiresAt, err = storage.ParseTime(expires); err != nil {
		return domain.Entry{}, err
	}
	if e.Expired(now) {
		return domain.Entry{}, domain.ErrNotFound
	}
	return e, nil
}
