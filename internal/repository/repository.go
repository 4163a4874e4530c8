// Package repository defines the persistence contracts the services depend
// on. The only implementation today is repository/docstore, where every
// method is exactly one critical section of the document store.
package repository

import (
	"context"
	"time"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
)

// Authenticator checks a supplied secret against a stored user. It runs
// inside the login critical section and may rewrite user.PasswordHash
// (hash upgrade); the change is persisted with the session pointer.
type Authenticator func(user *model.User) error

type UserRepository interface {
	// EnsureAdmin creates the Admin account with passwordHash if missing,
	// or verifies an existing unverified one. It reports whether anything
	// changed.
	EnsureAdmin(ctx context.Context, uid, passwordHash string) (bool, error)
	Create(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, uid string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Rename(ctx context.Context, uid, username string) (*model.User, error)
	SetPassword(ctx context.Context, uid, passwordHash string) error
	SetTemporaryPassword(ctx context.Context, username, tempPass string, expires time.Time) (*model.User, error)
	SetVerified(ctx context.Context, uid string, verified bool) (*model.User, error)
	// Delete removes the user, the user's reading records, and the session
	// pointer if it referenced the user.
	Delete(ctx context.Context, uid string) (*model.User, error)
}

type SessionRepository interface {
	// Login looks up username, runs authenticate, and on success points
	// the session at the user. All of it happens in one critical section.
	Login(ctx context.Context, username string, authenticate Authenticator) (*model.User, error)
	Logout(ctx context.Context) error
	// Current returns nil, nil when nobody is logged in.
	Current(ctx context.Context) (*model.User, error)
}

type EbookRepository interface {
	// Create appends ebook, stamping UploadedBy from the session.
	Create(ctx context.Context, ebook *model.Ebook) error
	List(ctx context.Context) ([]model.Ebook, error)
	GetByID(ctx context.Context, id string) (*model.Ebook, error)
	// Update merges patch and, when file is non-nil, swaps the backing
	// file. It returns the updated record and the file name it replaced
	// ("" when the file did not change).
	Update(ctx context.Context, id string, patch model.EbookPatch, file *model.FileReplacement, now time.Time) (*model.Ebook, string, error)
	// Delete removes the record and its reading records and returns the
	// removed record so the caller can clean up the file.
	Delete(ctx context.Context, id string) (*model.Ebook, error)
}

type ReadingRepository interface {
	// Upsert records page as the last page userID reached in bookID.
	Upsert(ctx context.Context, userID, bookID string, page int, now time.Time) (*model.ReadingRecord, error)
	ListByUser(ctx context.Context, userID string) ([]model.ReadingRecord, error)
}
