package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/storage"
)

// DefaultListConcurrency bounds parallel file reads while listing.
const DefaultListConcurrency = 4

// FileStore is the subset of *storage.FileStore the service uses.
type FileStore interface {
	Copy(src, name string) (int64, error)
	Remove(name string) error
	Read(name string) ([]byte, error)
	Path(name string) (string, error)
}

var _ FileStore = (*storage.FileStore)(nil)

// EbookService uploads, lists, edits and removes ebooks.
//
// ORDERING WITH THE DOCUMENT:
// A record must never reference a file that does not exist, so the file
// is always written first and the record committed second. When the
// commit fails the copied file is removed again. Deletions go the other
// way round: the record goes first, the file after, best-effort.
type EbookService struct {
	ebooks      repository.EbookRepository
	files       FileStore
	clock       Clock
	logger      *slog.Logger
	concurrency int
}

func NewEbookService(ebooks repository.EbookRepository, files FileStore, clock Clock, logger *slog.Logger, concurrency int) *EbookService {
	if clock == nil {
		clock = SystemClock
	}
	if concurrency <= 0 {
		concurrency = DefaultListConcurrency
	}
	return &EbookService{
		ebooks:      ebooks,
		files:       files,
		clock:       clock,
		logger:      logger,
		concurrency: concurrency,
	}
}

// UploadInput describes a file picked by the user plus its metadata.
type UploadInput struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Publisher  string `json:"publisher"`
	DOI        string `json:"doi"`
	SourcePath string `json:"filePath"`
	FileName   string `json:"fileName"`
}

// UpdateInput is a metadata patch plus an optional replacement file.
type UpdateInput struct {
	model.EbookPatch
	SourcePath string `json:"filePath,omitempty"`
	FileName   string `json:"fileName,omitempty"`
}

// EbookWithContent is a listed ebook. Content is nil when the backing
// file could not be read.
type EbookWithContent struct {
	model.Ebook
	Content *string `json:"content"`
}

// MarshalJSON appends content to the ebook's own encoding; the embedded
// Ebook's marshaller would otherwise be promoted and drop it.
func (e EbookWithContent) MarshalJSON() ([]byte, error) {
	book, err := json.Marshal(e.Ebook)
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(e.Content)
	if err != nil {
		return nil, err
	}
	out := append(book[:len(book)-1], `,"content":`...)
	out = append(out, content...)
	return append(out, '}'), nil
}

func (s *EbookService) Upload(ctx context.Context, in UploadInput) (*model.Ebook, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if in.SourcePath == "" {
		return nil, apperror.ValidationFailed("filePath", "a source file is required")
	}

	id := newID()
	dest := storage.DestinationName(title, id, originalNameOf(in.SourcePath, in.FileName))
	size, err := s.files.Copy(in.SourcePath, dest)
	if err != nil {
		return nil, apperror.IOFailure("Upload failed", err)
	}

	ebook := &model.Ebook{
		ID:         id,
		Title:      title,
		Author:     in.Author,
		Publisher:  in.Publisher,
		DOI:        model.OptionalString(in.DOI),
		FilePath:   storage.ProtocolURL(dest),
		FileName:   dest,
		FileSize:   size,
		PageCount:  s.pageCount(dest),
		UploadedAt: s.clock(),
	}
	if err := s.ebooks.Create(ctx, ebook); err != nil {
		s.discard(dest, err)
		return nil, fmt.Errorf("service/ebook: recording upload: %w", err)
	}

	s.logger.Info("ebook uploaded",
		slog.String("id", ebook.ID),
		slog.String("file", dest),
		slog.Int64("size", size),
	)
	return ebook, nil
}

// List returns every ebook with its file content base64-encoded. A file
// that cannot be read leaves Content nil; it never fails the listing.
func (s *EbookService) List(ctx context.Context) ([]EbookWithContent, error) {
	ebooks, err := s.ebooks.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]EbookWithContent, len(ebooks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range ebooks {
		i := i
		out[i].Ebook = ebooks[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := ebooks[i].StoredFileName()
			data, err := s.files.Read(name)
			if err != nil {
				s.logger.Warn("ebook file unreadable",
					slog.String("id", ebooks[i].ID),
					slog.String("file", name),
					slog.String("error", err.Error()),
				)
				return nil
			}
			content := base64.StdEncoding.EncodeToString(data)
			out[i].Content = &content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EbookService) Get(ctx context.Context, id string) (*model.Ebook, error) {
	return s.ebooks.GetByID(ctx, id)
}

// Update merges metadata and optionally replaces the backing file. The
// file a replacement supersedes is deleted once the record is committed.
func (s *EbookService) Update(ctx context.Context, id string, in UpdateInput) (*model.Ebook, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperror.ValidationFailed("title", "title must not be empty")
	}

	var (
		rep     *model.FileReplacement
		dest    string
		oldName string
	)
	if in.SourcePath != "" {
		current, err := s.ebooks.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		oldName = current.StoredFileName()
		title := current.Title
		if in.Title != nil {
			title = *in.Title
		}
		dest = storage.DestinationName(title, id, originalNameOf(in.SourcePath, in.FileName))
		size, err := s.files.Copy(in.SourcePath, dest)
		if err != nil {
			return nil, apperror.IOFailure("Update failed", err)
		}
		rep = &model.FileReplacement{FileName: dest, FileSize: size, PageCount: s.pageCount(dest)}
	}

	ebook, replaced, err := s.ebooks.Update(ctx, id, in.EbookPatch, rep, s.clock())
	if err != nil {
		// A same-named copy already overwrote the live file; keep it.
		if rep != nil && dest != oldName {
			s.discard(dest, err)
		}
		return nil, err
	}

	if replaced != "" {
		if err := s.files.Remove(replaced); err != nil {
			s.logger.Warn("replaced ebook file not removed",
				slog.String("id", id),
				slog.String("file", replaced),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("ebook updated", slog.String("id", id), slog.Bool("fileReplaced", rep != nil))
	return ebook, nil
}

// Remove deletes the record, then the file. A file that is already gone
// or cannot be deleted does not fail the removal.
func (s *EbookService) Remove(ctx context.Context, id string) error {
	removed, err := s.ebooks.Delete(ctx, id)
	if err != nil {
		return err
	}

	name := removed.StoredFileName()
	if err := s.files.Remove(name); err != nil {
		s.logger.Warn("ebook file not removed",
			slog.String("id", id),
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}
	s.logger.Info("ebook removed", slog.String("id", id))
	return nil
}

// FilePath resolves a stored file name (or ebooks:// reference) to its
// physical path.
func (s *EbookService) FilePath(fileName string) (string, error) {
	path, err := s.files.Path(fileName)
	if err != nil {
		return "", apperror.ValidationFailed("fileName", err.Error())
	}
	return path, nil
}

// FileExists reports whether path exists. It never fails.
func (s *EbookService) FileExists(path string) bool {
	return storage.Exists(path)
}

func (s *EbookService) pageCount(name string) int {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return 0
	}
	path, err := s.files.Path(name)
	if err != nil {
		return 0
	}
	n, err := storage.PageCount(path)
	if err != nil {
		s.logger.Debug("page count unavailable", slog.String("file", name), slog.String("error", err.Error()))
		return 0
	}
	return n
}

// discard removes a file copied for a record that was never committed.
func (s *EbookService) discard(name string, cause error) {
	if err := s.files.Remove(name); err != nil {
		s.logger.Warn("orphaned ebook file left behind",
			slog.String("file", name),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
	}
}

func originalNameOf(sourcePath, fileName string) string {
	if fileName != "" {
		return fileName
	}
	return filepath.Base(sourcePath)
}
