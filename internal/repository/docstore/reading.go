package docstore

import (
	"context"
	"sort"
	"time"

	"github.com/rs/xid"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

// ReadingRepo stores reading progress in the document's collections key.
type ReadingRepo struct {
	store *store.Store
}

var _ repository.ReadingRepository = (*ReadingRepo)(nil)

func NewReadingRepo(s *store.Store) *ReadingRepo {
	return &ReadingRepo{store: s}
}

// Upsert keeps at most one record per (userID, bookID). Both must exist.
func (r *ReadingRepo) Upsert(ctx context.Context, userID, bookID string, page int, now time.Time) (*model.ReadingRecord, error) {
	var rec model.ReadingRecord
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		if doc.FindUser(userID) < 0 {
			return apperror.UserNotFound()
		}
		if doc.FindEbook(bookID) < 0 {
			return apperror.NotFound("ebook", bookID)
		}

		if i := doc.FindReading(userID, bookID); i >= 0 {
			doc.Collections[i].LastPage = page
			doc.Collections[i].UpdatedAt = now
			rec = doc.Collections[i]
			return nil
		}

		rec = model.ReadingRecord{
			ID:        xid.New().String(),
			UserID:    userID,
			BookID:    bookID,
			LastPage:  page,
			CreatedAt: now,
			UpdatedAt: now,
		}
		doc.Collections = append(doc.Collections, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser returns userID's records, most recently updated first.
func (r *ReadingRepo) ListByUser(ctx context.Context, userID string) ([]model.ReadingRecord, error) {
	records := []model.ReadingRecord{}
	err := r.store.View(ctx, func(doc *model.Document) error {
		for _, rec := range doc.Collections {
			if rec.UserID == userID {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}
