package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scivant/go-mdsci/internal/fileutil"
)

// currentSchemaVersion is the latest index schema version.
// Bump this when adding migrations.
const currentSchemaVersion = 1

// SQLiteStore is the persistent cache: artifact files under
// <dir>/artifacts plus a SQLite index at <dir>/index.db. The directory
// is externally inspectable; nothing but this store writes to it.
type SQLiteStore struct {
	db  *sql.DB
	dir string
}

var _ Store = (*SQLiteStore)(nil)

// Open initializes the cache directory and index, creating both and
// running migrations as needed.
func Open(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	// Pragmas in the connection string apply to every connection.
	dsn := filepath.Join(dir, "index.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache index: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, dir: dir}, nil
}

// migrate applies index schema migrations based on user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
		  digest     TEXT PRIMARY KEY,
		  name       TEXT NOT NULL,
		  media_type TEXT NOT NULL,
		  created_at TEXT NOT NULL
		);`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("setting schema version: %w", err)
		}
	}

	return nil
}

// Get looks up key in the index. An indexed entry whose artifact file
// has been pruned externally is treated as a miss.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT digest, name, media_type, created_at FROM artifacts WHERE digest = ?", key,
	).Scan(&e.Key, &e.Name, &e.MediaType, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("querying cache index: %w", err)
	}

	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		e.CreatedAt = t
	}
	e.Path = filepath.Join(s.dir, "artifacts", e.Name)
	if !fileutil.FileExists(e.Path) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Put writes the artifact atomically (temp file + rename) and records it
// in the index. If another process stored the same digest first, the
// existing entry wins; content under one digest is identical by
// construction so there is nothing to reconcile.
func (s *SQLiteStore) Put(ctx context.Context, key string, content []byte, mediaType string) (Entry, error) {
	name := key + "." + extensionFor(mediaType)
	path := filepath.Join(s.dir, "artifacts", name)

	if err := fileutil.WriteFileAtomic(path, content, 0o644); err != nil {
		return Entry{}, fmt.Errorf("writing artifact: %w", err)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO artifacts (digest, name, media_type, created_at) VALUES (?, ?, ?, ?)",
		key, name, mediaType, now.Format(time.RFC3339),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("recording artifact: %w", err)
	}

	return Entry{Key: key, Name: name, Path: path, MediaType: mediaType, CreatedAt: now}, nil
}

// Close releases the index database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
