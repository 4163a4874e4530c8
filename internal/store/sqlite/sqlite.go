// Package sqlite is a store.Backend that keeps the library document in an
// embedded SQLite database instead of a bare JSON file.
//
// The document is still ONE value: a single row in the documents table
// whose body column holds the same JSON the file backend writes. SQLite
// contributes crash safety (every Write is one transaction, so a reader
// never sees half a document) and a single file that other tools can open.
// The driver is modernc.org/sqlite, a pure Go build of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

// documentName is the primary key of the library document row.
const documentName = "library"

// DB wraps a sql.DB connection pool holding the document table.
type DB struct {
	conn *sql.DB
	path string
}

var _ store.Backend = (*DB)(nil)

// New opens (creating if needed) the SQLite database at dbPath and runs
// migrations.
//
// dbPath examples:
//   - "data/library.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: the store already serializes every access, and an
	// in-memory database exists per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets external readers (backup tools, the admin CLI) read while
	// the backend writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			name       TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

func (db *DB) Location() string {
	return "sqlite:" + db.path
}

// Init inserts seed unless the document row already exists.
func (db *DB) Init(ctx context.Context, seed []byte) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (name, body, updated_at) VALUES (?, ?, ?)`,
		documentName, string(seed), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: seeding document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: seeding document: %w", err)
	}
	return n > 0, nil
}

// Read returns the document body. A missing row reports fs.ErrNotExist so
// the store recreates it exactly as it would a deleted file.
func (db *DB) Read(ctx context.Context) ([]byte, error) {
	var body string
	err := db.conn.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE name = ?`, documentName,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlite: document row: %w", fs.ErrNotExist)
		}
		return nil, fmt.Errorf("sqlite: reading document: %w", err)
	}
	return []byte(body), nil
}

// Write replaces the document body in one statement (one transaction).
func (db *DB) Write(ctx context.Context, data []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		documentName, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing document: %w", err)
	}
	return nil
}
