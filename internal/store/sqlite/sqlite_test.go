package sqlite

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReadBeforeInit_NotExist(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Read(context.Background())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Read() error = %v, want fs.ErrNotExist", err)
	}
}

func TestInit_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := db.Init(ctx, []byte(`{"users":[]}`))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.Init(ctx, []byte(`{"users":"other seed"}`))
	require.NoError(t, err)
	assert.False(t, created, "second Init must not overwrite the document")

	body, err := db.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[]}`, string(body))
}

func TestWriteThenRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []byte(`{"ebooks":[]}`)))
	require.NoError(t, db.Write(ctx, []byte(`{"ebooks":[{"id":"b1"}]}`)))

	body, err := db.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ebooks":[{"id":"b1"}]}`, string(body))
}

// TestStoreOverSQLite drives the real Store on top of the SQLite backend to
// show the backend is a drop-in replacement for the JSON file.
func TestStoreOverSQLite(t *testing.T) {
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := store.New(db, store.Options{}, logger)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))

	err := s.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		doc.Users = append(doc.Users, model.User{UID: "u1", Username: "reader"})
		return nil
	})
	require.NoError(t, err)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Users, 1)
	assert.Equal(t, "reader", doc.Users[0].Username)
	assert.NotNil(t, doc.Ebooks)
	assert.NotNil(t, doc.Collections)
}
