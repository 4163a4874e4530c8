package service

import (
	"context"
	"log/slog"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/repository"
)

// ReadingService tracks the last page each user reached in each book.
type ReadingService struct {
	readings repository.ReadingRepository
	clock    Clock
	logger   *slog.Logger
}

func NewReadingService(readings repository.ReadingRepository, clock Clock, logger *slog.Logger) *ReadingService {
	if clock == nil {
		clock = SystemClock
	}
	return &ReadingService{readings: readings, clock: clock, logger: logger}
}

func (s *ReadingService) UpdateReadingStatus(ctx context.Context, bookID, userID string, page int) (*model.ReadingRecord, error) {
	if page < 0 {
		return nil, apperror.ValidationFailed("pageNumber", "page number must not be negative")
	}
	rec, err := s.readings.Upsert(ctx, userID, bookID, page, s.clock())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("reading status updated",
		slog.String("userId", userID),
		slog.String("bookId", bookID),
		slog.Int("page", page),
	)
	return rec, nil
}

// History lists userID's reading records, most recent first.
func (s *ReadingService) History(ctx context.Context, userID string) ([]model.ReadingRecord, error) {
	return s.readings.ListByUser(ctx, userID)
}
