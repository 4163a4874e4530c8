package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/auth"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository/docstore"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/storage"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

// =========================================================================
// TEST HARNESS
// =========================================================================
//
// The services run against the real docstore repositories over an
// in-memory document and a temp-dir file store. Only the clock is fake.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store     *store.Store
	backend   *store.MemoryBackend
	files     *storage.FileStore
	clock     *fakeClock
	userRepo  *docstore.UserRepo
	ebookRepo *docstore.EbookRepo
	users     *UserService
	ebooks    *EbookService
	readings  *ReadingService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEnv(t *testing.T, scheme auth.Scheme) *testEnv {
	t.Helper()
	logger := testLogger()

	backend := store.NewMemoryBackend()
	s := store.New(backend, store.Options{}, logger)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	files, err := storage.NewFileStore(filepath.Join(t.TempDir(), "ebooks"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	clock := newFakeClock()
	passwords := auth.NewPasswordServiceForTest(scheme)
	userRepo := docstore.NewUserRepo(s)
	ebookRepo := docstore.NewEbookRepo(s)

	return &testEnv{
		store:     s,
		backend:   backend,
		files:     files,
		clock:     clock,
		userRepo:  userRepo,
		ebookRepo: ebookRepo,
		users:     NewUserService(userRepo, docstore.NewSessionRepo(s), passwords, clock.Now, logger),
		ebooks:    NewEbookService(ebookRepo, files, clock.Now, logger, 2),
		readings:  NewReadingService(docstore.NewReadingRepo(s), clock.Now, logger),
	}
}

// sourceFile writes data to a file outside the managed directory, standing
// in for the file the user picked.
func sourceFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return path
}
