package docstore

import (
	"context"
	"time"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/store"
)

// EbookRepo stores ebook records. It never touches the backing files; the
// service copies and deletes those outside the critical section.
type EbookRepo struct {
	store *store.Store
}

var _ repository.EbookRepository = (*EbookRepo)(nil)

func NewEbookRepo(s *store.Store) *EbookRepo {
	return &EbookRepo{store: s}
}

func (r *EbookRepo) Create(ctx context.Context, ebook *model.Ebook) error {
	return r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		if doc.FindEbook(ebook.ID) >= 0 {
			return apperror.Conflict("ebook", ebook.ID)
		}
		ebook.UploadedBy = doc.CurrentUserIDOr(model.UnknownUploader)
		doc.Ebooks = append(doc.Ebooks, *ebook)
		return nil
	})
}

func (r *EbookRepo) List(ctx context.Context) ([]model.Ebook, error) {
	var ebooks []model.Ebook
	err := r.store.View(ctx, func(doc *model.Document) error {
		ebooks = append(make([]model.Ebook, 0, len(doc.Ebooks)), doc.Ebooks...)
		return nil
	})
	return ebooks, err
}

func (r *EbookRepo) GetByID(ctx context.Context, id string) (*model.Ebook, error) {
	var ebook model.Ebook
	err := r.store.View(ctx, func(doc *model.Document) error {
		i := doc.FindEbook(id)
		if i < 0 {
			return apperror.NotFound("ebook", id)
		}
		ebook = doc.Ebooks[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ebook, nil
}

func (r *EbookRepo) Update(ctx context.Context, id string, patch model.EbookPatch, file *model.FileReplacement, now time.Time) (*model.Ebook, string, error) {
	var (
		ebook    model.Ebook
		replaced string
	)
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		i := doc.FindEbook(id)
		if i < 0 {
			return apperror.NotFound("ebook", id)
		}
		e := &doc.Ebooks[i]

		if patch.Title != nil {
			e.Title = *patch.Title
		}
		if patch.Author != nil {
			e.Author = *patch.Author
		}
		if patch.Publisher != nil {
			e.Publisher = *patch.Publisher
		}
		if patch.DOI != nil {
			e.DOI = model.StringPtr(*patch.DOI)
		}
		if file != nil {
			if old := e.StoredFileName(); old != file.FileName {
				replaced = old
			}
			e.FileName = file.FileName
			e.FilePath = model.EbookScheme + file.FileName
			e.FileSize = file.FileSize
			e.PageCount = file.PageCount
		}

		stamp := now
		e.UpdatedAt = &stamp
		e.UpdatedBy = doc.CurrentUserIDOr(model.UnknownUploader)
		ebook = *e
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &ebook, replaced, nil
}

func (r *EbookRepo) Delete(ctx context.Context, id string) (*model.Ebook, error) {
	var removed model.Ebook
	err := r.store.WithExclusiveAccess(ctx, func(doc *model.Document) error {
		i := doc.FindEbook(id)
		if i < 0 {
			return apperror.NotFound("ebook", id)
		}
		removed = doc.Ebooks[i]
		doc.Ebooks = append(doc.Ebooks[:i], doc.Ebooks[i+1:]...)

		kept := doc.Collections[:0]
		for _, rec := range doc.Collections {
			if rec.BookID != id {
				kept = append(kept, rec)
			}
		}
		doc.Collections = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}
