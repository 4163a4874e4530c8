// Package store owns the library document: the single JSON value holding
// every user, ebook, reading record and the current session pointer.
//
// THE CONCURRENCY CONTRACT:
// Every repository operation is a read-modify-write of the WHOLE document:
//
//	load → mutate → save
//
// Two of those cycles must never interleave. If they did, both would read
// the same snapshot and the second save would silently drop the first
// one's change (a lost update). Store therefore serializes all access
// behind one process-wide lock; there are no per-entity locks because
// there are no per-entity writes.
//
// The lock is a one-slot channel rather than a sync.Mutex so that waiting
// for it can give up: on context cancellation, or after Options.LockTimeout
// with apperror.ErrStoreBusy.
//
// Where the bytes live is the Backend's business (a file with atomic
// rename, a SQLite row, memory in tests). Store only sees []byte.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
)

// DefaultLockTimeout bounds how long an operation waits for the document.
const DefaultLockTimeout = 10 * time.Second

// SkipSave may be returned by a WithExclusiveAccess callback that decided
// not to change anything. The document is not rewritten and
// WithExclusiveAccess returns nil.
var SkipSave = errors.New("store: skip save")

// Backend persists the serialized document.
//
// Implementations need no locking of their own: Store never calls Read or
// Write concurrently. Write must be atomic with respect to readers of the
// same location (no half-written document may ever be observable).
type Backend interface {
	// Init prepares the location and writes seed if no document exists.
	// It reports whether a new document was created.
	Init(ctx context.Context, seed []byte) (bool, error)
	// Read returns the serialized document, or an error wrapping
	// fs.ErrNotExist when there is none.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the serialized document.
	Write(ctx context.Context, data []byte) error
	// Location describes where the document lives, for logs.
	Location() string
}

// Options tunes a Store.
type Options struct {
	// LockTimeout bounds the wait for exclusive access. Zero waits until
	// the context is done.
	LockTimeout time.Duration
	// Metrics is optional.
	Metrics *Metrics
}

// Store serializes access to the document held by a Backend.
type Store struct {
	backend Backend
	lock    chan struct{}
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger
}

// New creates a Store over backend. Call Initialize before first use.
func New(backend Backend, opts Options, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		lock:    make(chan struct{}, 1),
		timeout: opts.LockTimeout,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Initialize makes sure a document exists, creating an empty one if not.
// It is idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	seed, err := Encode(NewDocument())
	if err != nil {
		return err
	}

	release, err := s.acquire(ctx, "initialize")
	if err != nil {
		return err
	}
	defer release()

	created, err := s.backend.Init(ctx, seed)
	if err != nil {
		return apperror.IOFailure("Initializing library database", err)
	}
	if created {
		s.logger.Info("library database created", slog.String("location", s.backend.Location()))
	} else {
		s.logger.Debug("library database found", slog.String("location", s.backend.Location()))
	}
	return nil
}

// Load returns a fresh copy of the document, defaults applied.
func (s *Store) Load(ctx context.Context) (*model.Document, error) {
	release, err := s.acquire(ctx, "load")
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := s.load(ctx)
	s.metrics.observeOp("load", err)
	return doc, err
}

// Save replaces the document, defaults applied.
func (s *Store) Save(ctx context.Context, doc *model.Document) error {
	release, err := s.acquire(ctx, "save")
	if err != nil {
		return err
	}
	defer release()

	err = s.save(ctx, doc)
	s.metrics.observeOp("save", err)
	return err
}

// WithExclusiveAccess runs fn against the current document while holding
// the process-wide lock, then persists whatever fn left in the document.
//
// If fn returns an error nothing is written and the error is returned
// unchanged (SkipSave excepted, which yields nil). fn must not retain doc
// or call back into the Store.
func (s *Store) WithExclusiveAccess(ctx context.Context, fn func(doc *model.Document) error) error {
	release, err := s.acquire(ctx, "update")
	if err != nil {
		return err
	}
	defer release()

	err = s.update(ctx, fn)
	s.metrics.observeOp("update", err)
	return err
}

func (s *Store) update(ctx context.Context, fn func(doc *model.Document) error) error {
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		if errors.Is(err, SkipSave) {
			return nil
		}
		return err
	}
	return s.save(ctx, doc)
}

// View runs fn against the current document under the same lock as
// WithExclusiveAccess but never writes. Reads are serialized with writes,
// so fn can never observe a save in progress.
func (s *Store) View(ctx context.Context, fn func(doc *model.Document) error) error {
	release, err := s.acquire(ctx, "view")
	if err != nil {
		return err
	}
	defer release()

	doc, err := s.load(ctx)
	if err == nil {
		err = fn(doc)
	}
	s.metrics.observeOp("view", err)
	return err
}

// Location describes the backend, for logs and diagnostics.
func (s *Store) Location() string {
	return s.backend.Location()
}

func (s *Store) acquire(ctx context.Context, op string) (func(), error) {
	start := time.Now()

	var timeout <-chan time.Time
	if s.timeout > 0 {
		t := time.NewTimer(s.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.lock <- struct{}{}:
		s.metrics.observeWait(time.Since(start))
		return func() { <-s.lock }, nil
	case <-ctx.Done():
		s.metrics.observeOp(op, ctx.Err())
		return nil, fmt.Errorf("store: waiting for %s: %w", op, ctx.Err())
	case <-timeout:
		s.logger.Warn("library database busy",
			slog.String("op", op),
			slog.Duration("waited", time.Since(start)),
		)
		busy := apperror.StoreBusy()
		s.metrics.observeOp(op, busy)
		return nil, busy
	}
}

// load must be called with the lock held.
func (s *Store) load(ctx context.Context) (*model.Document, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		// Deleted underneath us: recreate, like a first start.
		s.logger.Warn("library database missing, recreating", slog.String("location", s.backend.Location()))
		seed, encErr := Encode(NewDocument())
		if encErr != nil {
			return nil, encErr
		}
		if _, err := s.backend.Init(ctx, seed); err != nil {
			return nil, apperror.IOFailure("Recreating library database", err)
		}
		data, err = s.backend.Read(ctx)
	}
	if err != nil {
		return nil, apperror.IOFailure("Reading library database", err)
	}

	doc, err := Decode(data)
	if err != nil {
		s.logger.Error("library database unreadable",
			slog.String("location", s.backend.Location()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return doc, nil
}

// save must be called with the lock held.
func (s *Store) save(ctx context.Context, doc *model.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return apperror.IOFailure("Writing library database", err)
	}
	s.metrics.setSize(len(data))
	return nil
}
