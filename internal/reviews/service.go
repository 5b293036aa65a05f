package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a dotted code naming the failed operation and reason.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "reviews.service.new"
	opCreate     = "reviews.create"
	opList       = "reviews.list"
	opGet        = "reviews.get"
	opUpdate     = "reviews.update"
	opDelete     = "reviews.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service maps review CRUD calls onto the reviews table.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// Create stores a new review stamped with the current time.
func (s *Service) Create(ctx context.Context, author, text string) (Review, error) {
	if s.db == nil {
		s.logError(opCreate, "missing_database", errMissingDatabase)
		return Review{}, newServiceError(opCreate, "missing_database", errMissingDatabase)
	}
	if utf8.RuneCountInString(author) > MaxAuthorLength {
		s.logError(opCreate, "author_too_long", ErrAuthorTooLong)
		return Review{}, newServiceError(opCreate, "author_too_long", ErrAuthorTooLong)
	}

	review := Review{
		Author:    author,
		Text:      text,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&review).Error; err != nil {
		s.logError(opCreate, "insert_failed", err)
		return Review{}, newServiceError(opCreate, "insert_failed", err)
	}

	return review, nil
}

// List returns every review, newest first.
func (s *Service) List(ctx context.Context) ([]Review, error) {
	if s.db == nil {
		s.logError(opList, "missing_database", errMissingDatabase)
		return nil, newServiceError(opList, "missing_database", errMissingDatabase)
	}

	var reviews []Review
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}

	return reviews, nil
}

// Get loads a single review or reports ErrReviewNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Review, error) {
	if s.db == nil {
		s.logError(opGet, "missing_database", errMissingDatabase)
		return Review{}, newServiceError(opGet, "missing_database", errMissingDatabase)
	}

	review, err := s.take(s.db.WithContext(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Review{}, newServiceError(opGet, "not_found", ErrReviewNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.Int64("review_id", id))
		return Review{}, newServiceError(opGet, "query_failed", err)
	}

	return review, nil
}

// Update overwrites author and text; id and created_at are left untouched.
func (s *Service) Update(ctx context.Context, id int64, author, text string) (Review, error) {
	if s.db == nil {
		s.logError(opUpdate, "missing_database", errMissingDatabase)
		return Review{}, newServiceError(opUpdate, "missing_database", errMissingDatabase)
	}

	var updated Review
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.take(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdate, "not_found", ErrReviewNotFound)
		}
		if err != nil {
			s.logError(opUpdate, "select_failed", err, zap.Int64("review_id", id))
			return newServiceError(opUpdate, "select_failed", err)
		}
		if utf8.RuneCountInString(author) > MaxAuthorLength {
			s.logError(opUpdate, "author_too_long", ErrAuthorTooLong, zap.Int64("review_id", id))
			return newServiceError(opUpdate, "author_too_long", ErrAuthorTooLong)
		}

		if err := tx.Model(&existing).Updates(map[string]any{
			"author": author,
			"text":   text,
		}).Error; err != nil {
			s.logError(opUpdate, "update_failed", err, zap.Int64("review_id", id))
			return newServiceError(opUpdate, "update_failed", err)
		}

		existing.Author = author
		existing.Text = text
		updated = existing
		return nil
	})

	if txErr != nil {
		return Review{}, txErr
	}

	return updated, nil
}

// Delete permanently removes a review.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if s.db == nil {
		s.logError(opDelete, "missing_database", errMissingDatabase)
		return newServiceError(opDelete, "missing_database", errMissingDatabase)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.take(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opDelete, "not_found", ErrReviewNotFound)
		}
		if err != nil {
			s.logError(opDelete, "select_failed", err, zap.Int64("review_id", id))
			return newServiceError(opDelete, "select_failed", err)
		}

		if err := tx.Delete(&existing).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.Int64("review_id", id))
			return newServiceError(opDelete, "delete_failed", err)
		}
		return nil
	})
}

func (s *Service) take(db *gorm.DB, id int64) (Review, error) {
	var review Review
	err := db.Where("id = ?", id).Take(&review).Error
	return review, err
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("reviews service error", attrs...)
}
