package docstore

import (
	"context"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

// SessionRepo manages the document's single currentUserId pointer.
type SessionRepo struct {
	store *store.Store
}

var _ repository.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo(s *store.Store) *SessionRepo {
	return &SessionRepo{store: s}
}

func (r *SessionRepo) Login(ctx context.Context, username string, authenticate repository.Authenticator) (*model.User, error) {
	var user model.User
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		i := doc.FindUsername(username)
		if i < 0 {
			return apperror.UserNotFound()
		}
		if err := authenticate(&doc.Users[i]); err != nil {
			return err
		}
		uid := doc.Users[i].UID
		doc.CurrentUserID = &uid
		user = doc.Users[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *SessionRepo) Logout(ctx context.Context) error {
	return r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		if doc.CurrentUserID == nil {
			return store.SkipSave
		}
		doc.CurrentUserID = nil
		return nil
	})
}

func (r *SessionRepo) Current(ctx context.Context) (*model.User, error) {
	var user *model.User
	err := r.store.View(ctx, func(doc *model.Document) error {
		if u := doc.CurrentUser(); u != nil {
			cp := *u
			user = &cp
		}
		return nil
	})
	return user, err
}
