package visitor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"animeai/internal/adapters/storage"
	domain "animeai/internal/domain/visitor"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new visitor store.
// PRE: db has been migrated with storage.MigrateDB
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Touch records that the visitor was seen at now, creating it on first sight.
// PRE: id is non-empty
// POST: the visitor row exists with last_seen_at = now
func (s *SQLiteStore) Touch(ctx context.Context, id string, now time.Time) error {
	if id == "" {
		return domain.ErrEmptyID
	}
	ts := storage.FormatTime(now)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitor (id, created_at, last_seen_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen_at=excluded.last_seen_at`,
		id, ts, ts,
	)
	return err
}

// Get retrieves a visitor by ID.
// PRE: id is non-empty
// POST: returns the visitor or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Visitor, error) {
	var v domain.Visitor
	var created, seen sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, last_seen_at FROM visitor WHERE id = ?", id,
	).Scan(&v.ID, &created, &seen)
	if err == sql.ErrNoRows {
		return domain.Visitor{}, fmt.Errorf("visitor not found: %w", err)
	}
	if err != nil {
		return domain.Visitor{}, err
	}
	v.CreatedAt, _ = storage.ParseTime(created)
	v.LastSeenAt, _ = storage.ParseTime(seen)
	return v, nil
}

// Delete removes a visitor; its slots and cookies cascade.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM visitor WHERE id = ?", id)
	return err
}

// DeleteIdle removes every visitor last seen before cutoff.
// POST: returns the number of visitors removed
func (s *SQLiteStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM visitor WHERE last_seen_at < ?", storage.FormatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveCookies replaces the visitor's stored backend cookies with cookies.
// PRE: every cookie passes Validate
// POST: exactly the given cookies are stored for the visitor
func (s *SQLiteStore) SaveCookies(ctx context.Context, id string, cookies []domain.BackendCookie) error {
	if id == "" {
		return domain.ErrEmptyID
	}
	for i := range cookies {
		if err := cookies[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := storage.FormatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO visitor (id, created_at, last_seen_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, ts, ts,
	); err != nil {
		return fmt.Errorf("ensure visitor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM backend_cookie WHERE visitor_id = ?", id); err != nil {
		return err
	}
	for _, c := range cookies {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO backend_cookie (visitor_id, name, value, expires_at) VALUES (?, ?, ?, ?)",
			id, c.Name, c.Value, storage.FormatTime(c.ExpiresAt),
		); err != nil {
			return fmt.Errorf("save cookie %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// LoadCookies returns the visitor's unexpired backend cookies, ordered by name.
// POST: returns an empty slice when the visitor holds none
func (s *SQLiteStore) LoadCookies(ctx context.Context, id string, now time.Time) ([]domain.BackendCookie, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value, expires_at FROM backend_cookie WHERE visitor_id = ? ORDER BY name", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BackendCookie
	for rows.Next() {
		var c domain.BackendCookie
		var expires sql.NullString
		if err := rows.Scan(&c.Name, &c.Value, &expires); err != nil {
			return nil, err
		}
		c.ExpiresAt, _ = storage.ParseTime(expires)
		if c.Expired(now) {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClearCookies drops every backend cookie held for the visitor.
func (s *SQLiteStore) ClearCookies(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM backend_cookie WHERE visitor_id = ?", id)
	return err
}
