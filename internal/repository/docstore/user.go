// Package docstore implements the repository interfaces on top of the
// library document store.
//
// ONE METHOD, ONE CRITICAL SECTION:
// Every exported method below makes exactly one call to
// store.WithExclusiveAccess (or store.View for reads). Validation, lookup
// and mutation all happen inside that callback, so a check like "username
// is free" can never be invalidated by another request between the check
// and the write.
//
// Records handed back to callers are copies; nothing outside the callback
// ever holds a pointer into the loaded document.
package docstore

import (
	"context"
	"time"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

// UserRepo stores users in the document's users collection.
type UserRepo struct {
	store *store.Store
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepo(s *store.Store) *UserRepo {
	return &UserRepo{store: s}
}

func (r *UserRepo) EnsureAdmin(ctx context.Context, uid, passwordHash string) (bool, error) {
	changed := false
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		if i := doc.FindUsername(model.AdminUsername); i >= 0 {
			if doc.Users[i].IsVerified {
				return store.SkipSave
			}
			doc.Users[i].IsVerified = true
			changed = true
			return nil
		}
		if doc.FindUser(uid) >= 0 {
			return apperror.Conflict("user", uid)
		}
		doc.Users = append(doc.Users, model.User{
			UID:           uid,
			Username:      model.AdminUsername,
			PasswordHash:  passwordHash,
			IsVerified:    true,
			TemporaryPass: model.StringPtr(""),
		})
		changed = true
		return nil
	})
	return changed, err
}

// Create appends user. Both uid and username must be unused.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	return r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		if doc.FindUser(user.UID) >= 0 {
			return apperror.Conflict("user", user.UID)
		}
		if doc.FindUsername(user.Username) >= 0 {
			return apperror.DuplicateUsername(user.Username)
		}
		doc.Users = append(doc.Users, *user)
		return nil
	})
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.store.View(ctx, func(doc *model.Document) error {
		users = append(make([]model.User, 0, len(doc.Users)), doc.Users...)
		return nil
	})
	return users, err
}

func (r *UserRepo) GetByID(ctx context.Context, uid string) (*model.User, error) {
	var user model.User
	err := r.store.View(ctx, func(doc *model.Document) error {
		i := doc.FindUser(uid)
		if i < 0 {
			return apperror.UserNotFound()
		}
		user = doc.Users[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.store.View(ctx, func(doc *model.Document) error {
		i := doc.FindUsername(username)
		if i < 0 {
			return apperror.UserNotFound()
		}
		user = doc.Users[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Rename changes the username of uid. The Admin account keeps its name.
func (r *UserRepo) Rename(ctx context.Context, uid, username string) (*model.User, error) {
	return r.mutate(ctx, uid, func(doc *model.Document, u *model.User) error {
		if u.Username == username {
			return store.SkipSave
		}
		if u.IsAdmin() {
			return apperror.Forbidden("The Admin account cannot be renamed")
		}
		if doc.FindUsername(username) >= 0 {
			return apperror.DuplicateUsername(username)
		}
		u.Username = username
		return nil
	})
}

// SetPassword replaces the encoded password and drops any temporary one.
func (r *UserRepo) SetPassword(ctx context.Context, uid, passwordHash string) error {
	_, err := r.mutate(ctx, uid, func(_ *model.Document, u *model.User) error {
		u.PasswordHash = passwordHash
		u.TemporaryPass = nil
		u.TemporaryPassExpirationDate = nil
		return nil
	})
	return err
}

func (r *UserRepo) SetTemporaryPassword(ctx context.Context, username, tempPass string, expires time.Time) (*model.User, error) {
	var user model.User
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		i := doc.FindUsername(username)
		if i < 0 {
			return apperror.UserNotFound()
		}
		exp := expires
		doc.Users[i].TemporaryPass = model.StringPtr(tempPass)
		doc.Users[i].TemporaryPassExpirationDate = &exp
		user = doc.Users[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) SetVerified(ctx context.Context, uid string, verified bool) (*model.User, error) {
	return r.mutate(ctx, uid, func(doc *model.Document, u *model.User) error {
		if u.IsAdmin() && !verified {
			return apperror.Forbidden("The Admin account cannot be unverified")
		}
		if u.IsVerified == verified {
			return store.SkipSave
		}
		u.IsVerified = verified
		if !verified && doc.CurrentUserID != nil && *doc.CurrentUserID == uid {
			doc.CurrentUserID = nil
		}
		return nil
	})
}

func (r *UserRepo) Delete(ctx context.Context, uid string) (*model.User, error) {
	var removed model.User
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		i := doc.FindUser(uid)
		if i >= 0 && doc.Users[i].IsAdmin() {
			return apperror.Forbidden("The Admin account cannot be deactivated")
		}
		if i < 0 {
			return apperror.UserNotFound()
		}
		removed = doc.Users[i]
		doc.Users = append(doc.Users[:i], doc.Users[i+1:]...)

		kept := doc.Collections[:0]
		for _, rec := range doc.Collections {
			if rec.UserID != uid {
				kept = append(kept, rec)
			}
		}
		doc.Collections = kept

		if doc.CurrentUserID != nil && *doc.CurrentUserID == uid {
			doc.CurrentUserID = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// mutate runs fn against user uid inside one critical section and returns
// the user as fn left it.
func (r *UserRepo) mutate(ctx context.Context, uid string, fn func(doc *model.Document, u *model.User) error) (*model.User, error) {
	var user model.User
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		i := doc.FindUser(uid)
		if i < 0 {
			return apperror.UserNotFound()
		}
		err := fn(doc, &doc.Users[i])
		user = doc.Users[i]
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
