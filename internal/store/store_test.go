package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := New(backend, Options{}, testLogger())
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s
}

// =========================================================================
// INITIALIZE
// =========================================================================

func TestInitialize_CreatesEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "db.json")
	s := newTestStore(t, NewFileBackend(path, ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[],"ebooks":[],"collections":[],"currentUserId":null}`, string(data))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Users)
	assert.Nil(t, doc.CurrentUserID)
}

func TestInitialize_UsesTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{"users":[{"uid":"t1","username":"seeded"}]}`), 0o644))

	s := newTestStore(t, NewFileBackend(filepath.Join(dir, "db.json"), tmpl))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Users, 1)
	assert.Equal(t, "seeded", doc.Users[0].Username)
}

func TestInitialize_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	original := `{"users":[{"uid":"u1","username":"keep"}],"ebooks":[],"currentUserId":"u1"}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	s := newTestStore(t, NewFileBackend(path, ""))
	require.NoError(t, s.Initialize(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, original, string(data), "Initialize must not touch an existing document")
}

// =========================================================================
// LOAD / SAVE
// =========================================================================

func TestLoad_BackfillsMissingKeys(t *testing.T) {
	s := newTestStore(t, NewMemoryBackendWith([]byte(`{"users":[{"uid":"u1","username":"a"}]}`)))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Users, 1)
	assert.NotNil(t, doc.Ebooks)
	assert.NotNil(t, doc.Collections)
	assert.Nil(t, doc.CurrentUserID)
}

func TestLoad_NullCollectionsAreDefaulted(t *testing.T) {
	s := newTestStore(t, NewMemoryBackendWith([]byte(`{"users":null,"ebooks":null,"collections":null}`)))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Users)
	assert.NotNil(t, doc.Ebooks)
	assert.NotNil(t, doc.Collections)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		target error
	}{
		{"truncated JSON", `{"users":[`, apperror.ErrCorruptStore},
		{"empty file", ``, apperror.ErrCorruptStore},
		{"not JSON", `users: []`, apperror.ErrCorruptStore},
		{"top-level array", `[]`, apperror.ErrDatabase},
		{"top-level null", `null`, apperror.ErrDatabase},
		{"users is a string", `{"users":"nope"}`, apperror.ErrDatabase},
		{"ebooks is an object", `{"ebooks":{}}`, apperror.ErrDatabase},
		{"currentUserId is a number", `{"currentUserId":42}`, apperror.ErrDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(NewMemoryBackendWith([]byte(tt.data)), Options{}, testLogger())

			_, err := s.Load(context.Background())
			if !errors.Is(err, tt.target) {
				t.Errorf("Load() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestLoad_RecreatesDeletedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := newTestStore(t, NewFileBackend(path, ""))
	require.NoError(t, os.Remove(path))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Users)
	assert.FileExists(t, path)
}

func TestSaveLoad_RoundTripIsIdempotent(t *testing.T) {
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 30, 0, 123000000, time.UTC)
	exp := now.Add(24 * time.Hour)
	uid := "u1"
	doc := &model.Document{
		Users: []model.User{{
			UID: uid, Username: "reader", PasswordHash: "c2VjcmV0",
			TemporaryPass: model.StringPtr("ABCD1234"), TemporaryPassExpirationDate: &exp,
		}},
		Ebooks: []model.Ebook{{
			ID: "b1", Title: "Go", FileName: "Go_b1.pdf", FilePath: "ebooks://Go_b1.pdf",
			FileSize: 10, UploadedAt: now, UploadedBy: uid,
		}},
		Collections:   []model.ReadingRecord{{ID: "r1", UserID: uid, BookID: "b1", LastPage: 3, CreatedAt: now, UpdatedAt: now}},
		CurrentUserID: &uid,
	}
	require.NoError(t, s.Save(ctx, doc))
	first := backend.Bytes()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, loaded))

	assert.Equal(t, string(first), string(backend.Bytes()), "save(load()) must not change the document")
	assert.Equal(t, doc.Users, loaded.Users)
	assert.True(t, now.Equal(loaded.Ebooks[0].UploadedAt))
}

// desktopDocument is a library as the desktop UI writes it: JS ISO
// timestamps with millisecond precision and null for unset optionals.
const desktopDocument = `{
  "users": [
    {
      "uid": "1714557600000",
      "username": "Admin",
      "passwordHash": "QWRtaW5LZXkx",
      "isVerified": true,
      "temporaryPass": "",
      "temporaryPassExpirationDate": null
    },
    {
      "uid": "1714557600120",
      "username": "reader",
      "passwordHash": "c2VjcmV0",
      "isVerified": true,
      "temporaryPass": null,
      "temporaryPassExpirationDate": null
    },
    {
      "uid": "1714557600500",
      "username": "forgetful",
      "passwordHash": "b2xk",
      "isVerified": false,
      "temporaryPass": "K3Q9ZP2A",
      "temporaryPassExpirationDate": "2024-05-02T10:00:00.000Z"
    }
  ],
  "ebooks": [
    {
      "id": "lvp0a1b2c3",
      "title": "Go",
      "author": "A. Author",
      "publisher": "Acme",
      "doi": null,
      "filePath": "ebooks://Go_lvp0a1b2c3.pdf",
      "fileName": "Go_lvp0a1b2c3.pdf",
      "fileSize": 1024,
      "uploadedAt": "2024-05-01T10:00:00.120Z",
      "uploadedBy": "1714557600120"
    }
  ],
  "collections": [
    {
      "id": "1714557700000",
      "userId": "1714557600120",
      "bookId": "lvp0a1b2c3",
      "lastPage": 12,
      "createdAt": "2024-05-01T10:01:40.000Z",
      "updatedAt": "2024-05-01T10:05:00.007Z"
    }
  ],
  "currentUserId": null
}`

func TestSaveLoad_KeepsDesktopDocumentUnchanged(t *testing.T) {
	backend := NewMemoryBackendWith([]byte(desktopDocument))
	s := newTestStore(t, backend)
	ctx := context.Background()

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc.Ebooks[0].DOI)
	assert.Nil(t, doc.Users[1].TemporaryPass)
	require.NotNil(t, doc.Users[0].TemporaryPass)
	assert.Equal(t, "", *doc.Users[0].TemporaryPass)

	require.NoError(t, s.Save(ctx, doc))
	saved := string(backend.Bytes())
	assert.JSONEq(t, desktopDocument, saved)

	tests := []struct {
		name string
		want string
	}{
		{"null doi", `"doi": null`},
		{"null temporary password", `"temporaryPass": null`},
		{"empty temporary password", `"temporaryPass": ""`},
		{"millisecond timestamp", `"uploadedAt": "2024-05-01T10:00:00.120Z"`},
		{"whole second timestamp", `"createdAt": "2024-05-01T10:01:40.000Z"`},
		{"expiry timestamp", `"temporaryPassExpirationDate": "2024-05-02T10:00:00.000Z"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, saved, tt.want)
		})
	}

	again, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, again))
	assert.Equal(t, saved, string(backend.Bytes()))
}

func TestSaveLoad_PreservesUnknownKeys(t *testing.T) {
	backend := NewMemoryBackendWith([]byte(`{"users":[],"settings":{"theme":"dark"}}`))
	s := newTestStore(t, backend)
	ctx := context.Background()

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, doc))

	assert.JSONEq(t,
		`{"users":[],"ebooks":[],"collections":[],"currentUserId":null,"settings":{"theme":"dark"}}`,
		string(backend.Bytes()))
}

func TestFileBackend_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, NewFileBackend(filepath.Join(dir, "db.json"), ""))

	for i := 0; i < 5; i++ {
		err := s.WithExclusiveAccess(context.Background(), func(doc *model.Document) error {
			doc.Users = append(doc.Users, model.User{UID: fmt.Sprintf("u%d", i), Username: fmt.Sprintf("user%d", i)})
			return nil
		})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "db.json", entries[0].Name())
}

// =========================================================================
// EXCLUSIVE ACCESS
// =========================================================================

func TestWithExclusiveAccess_ErrorSkipsWrite(t *testing.T) {
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)
	before := backend.Writes

	boom := errors.New("validation failed")
	err := s.WithExclusiveAccess(context.Background(), func(doc *model.Document) error {
		doc.Users = append(doc.Users, model.User{UID: "ghost"})
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, backend.Writes)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Users)
}

func TestWithExclusiveAccess_SkipSave(t *testing.T) {
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)
	before := backend.Writes

	err := s.WithExclusiveAccess(context.Background(), func(doc *model.Document) error {
		return SkipSave
	})

	assert.NoError(t, err)
	assert.Equal(t, before, backend.Writes)
}

func TestWithExclusiveAccess_WriteFailureIsIOFailure(t *testing.T) {
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)
	backend.SetWriteErr(errors.New("disk full"))

	err := s.WithExclusiveAccess(context.Background(), func(doc *model.Document) error {
		doc.Users = append(doc.Users, model.User{UID: "u1"})
		return nil
	})

	assert.ErrorIs(t, err, apperror.ErrIO)
}

// TestWithExclusiveAccess_NoLostUpdates is the core property of the store:
// N concurrent appends through the lock must all survive.
func TestWithExclusiveAccess_NoLostUpdates(t *testing.T) {
	s := newTestStore(t, NewFileBackend(filepath.Join(t.TempDir(), "db.json"), ""))
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.WithExclusiveAccess(context.Background(), func(doc *model.Document) error {
				doc.Users = append(doc.Users, model.User{UID: fmt.Sprintf("u%03d", i), Username: fmt.Sprintf("user%03d", i)})
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Users, n)
}

func TestWithExclusiveAccess_TimesOutWithStoreBusy(t *testing.T) {
	s := New(NewMemoryBackend(), Options{LockTimeout: 20 * time.Millisecond}, testLogger())
	require.NoError(t, s.Initialize(context.Background()))

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.View(context.Background(), func(doc *model.Document) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	err := s.WithExclusiveAccess(context.Background(), func(doc *model.Document) error { return nil })
	assert.ErrorIs(t, err, apperror.ErrStoreBusy)
}

func TestWithExclusiveAccess_HonoursContext(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.View(context.Background(), func(doc *model.Document) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.WithExclusiveAccess(ctx, func(doc *model.Document) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestView_DoesNotWrite(t *testing.T) {
	backend := NewMemoryBackend()
	s := newTestStore(t, backend)
	before := backend.Writes

	err := s.View(context.Background(), func(doc *model.Document) error {
		doc.Users = append(doc.Users, model.User{UID: "u1"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, before, backend.Writes)
}

func TestMetrics_CountOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := New(NewMemoryBackend(), Options{Metrics: m}, testLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	require.NoError(t, s.WithExclusiveAccess(ctx, func(doc *model.Document) error { return nil }))
	require.NoError(t, s.View(ctx, func(doc *model.Document) error { return nil }))

	assert.Equal(t, 1.0, gathered(t, reg, "elibrary_store_operations_total", "update"))
	assert.Equal(t, 1.0, gathered(t, reg, "elibrary_store_operations_total", "view"))
	assert.Greater(t, gathered(t, reg, "elibrary_store_document_bytes", ""), 0.0)
}

// gathered returns the value of the named metric, filtered by its op label
// when op is non-empty.
func gathered(t *testing.T, reg *prometheus.Registry, name, op string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := op == ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "op" && lp.GetValue() == op {
					match = true
				}
			}
			if !match {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s{op=%q} not gathered", name, op)
	return 0
}
