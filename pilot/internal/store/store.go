// CLAUDE:SUMMARY SQLite-backed key/value areas (session in memory, local on disk), granted permissions, and download records.
// Package store persists tabpilot's key/value records. The session area lives
// in an in-memory database that disappears with the process; the local area,
// granted permissions and the download log live in the on-disk database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/tabpilot/dbopen"
	"github.com/hazyhaar/tabpilot/host"
)

// Schema is applied to both databases.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS permissions (
	name       TEXT PRIMARY KEY,
	granted_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS downloads (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	filename   TEXT NOT NULL,
	path       TEXT NOT NULL,
	bytes      INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store routes storage areas to their database.
type Store struct {
	Local   *sql.DB
	Session *sql.DB
}

// Open opens the on-disk database at path and a fresh in-memory session
// database. opts apply to both, after the defaults.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	local, err := dbopen.Open(path, append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("store: local: %w", err)
	}
	session, err := dbopen.Open(dbopen.Memory, append([]dbopen.Option{dbopen.WithSchema(Schema)}, opts...)...)
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("store: session: %w", err)
	}
	return &Store{Local: local, Session: session}, nil
}

// Close closes both databases.
func (s *Store) Close() error {
	errS := s.Session.Close()
	if err := s.Local.Close(); err != nil {
		return err
	}
	return errS
}

func (s *Store) db(area host.StorageArea) (*sql.DB, error) {
	switch area {
	case host.AreaSession:
		return s.Session, nil
	case host.AreaLocal:
		return s.Local, nil
	}
	return nil, fmt.Errorf("store: unknown area %q", area)
}

// Get returns the raw JSON stored under each present key. Missing keys are
// absent from the map.
func (s *Store) Get(ctx context.Context, area host.StorageArea, keys ...string) (map[string]json.RawMessage, error) {
	db, err := s.db(area)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		var v string
		err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, k).Scan(&v)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: get %s: %w", k, err)
		}
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

// Set JSON-encodes and upserts every item in one transaction.
func (s *Store) Set(ctx context.Context, area host.StorageArea, items map[string]any) error {
	db, err := s.db(area)
	if err != nil {
		return err
	}
	encoded := make(map[string]string, len(items))
	for k, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", k, err)
		}
		encoded[k] = string(data)
	}
	now := time.Now().Unix()
	return dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		for k, v := range encoded {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now); err != nil {
				return fmt.Errorf("store: set %s: %w", k, err)
			}
		}
		return nil
	})
}

// HasPermissions reports whether every perm has been granted.
func (s *Store) HasPermissions(ctx context.Context, perms []host.Permission) (bool, error) {
	for _, p := range perms {
		var n int
		if err := s.Local.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM permissions WHERE name = ?`, string(p)).Scan(&n); err != nil {
			return false, fmt.Errorf("store: permission %s: %w", p, err)
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// GrantPermissions records perms as granted.
func (s *Store) GrantPermissions(ctx context.Context, perms []host.Permission) error {
	now := time.Now().Unix()
	return dbopen.RunTx(ctx, s.Local, func(tx *sql.Tx) error {
		for _, p := range perms {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO permissions (name, granted_at) VALUES (?, ?)`, string(p), now); err != nil {
				return fmt.Errorf("store: grant %s: %w", p, err)
			}
		}
		return nil
	})
}

// Download is a completed file download.
type Download struct {
	ID        int       `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordDownload logs a download and returns its ID.
func (s *Store) RecordDownload(ctx context.Context, filename, path string, size int64) (int, error) {
	res, err := s.Local.ExecContext(ctx,
		`INSERT INTO downloads (filename, path, bytes, created_at) VALUES (?, ?, ?, ?)`,
		filename, path, size, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: record download: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: download id: %w", err)
	}
	return int(id), nil
}

// Downloads lists recorded downloads, newest first.
func (s *Store) Downloads(ctx context.Context, limit int) ([]Download, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Local.QueryContext(ctx,
		`SELECT id, filename, path, bytes, created_at FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var ts int64
		if err := rows.Scan(&d.ID, &d.Filename, &d.Path, &d.Bytes, &ts); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(ts, 0)
		out = append(out, d)
	}
	return out, rows.Err()
}
