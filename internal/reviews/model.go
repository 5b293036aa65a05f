package reviews

import (
	"errors"
	"time"
)

// MaxAuthorLength is the storage cap on the author column, in characters.
const MaxAuthorLength = 100

var (
	// ErrReviewNotFound indicates that no review exists for the requested id.
	ErrReviewNotFound = errors.New("reviews: review not found")
	// ErrAuthorTooLong indicates that an author exceeds MaxAuthorLength characters.
	ErrAuthorTooLong = errors.New("reviews: author exceeds storage cap")
)

// Review is a persisted author/text pair.
type Review struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Author    string    `gorm:"column:author;size:100;not null"`
	Text      string    `gorm:"column:text;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_reviews_created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Review) TableName() string {
	return "reviews"
}
