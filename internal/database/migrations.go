package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/reviews/internal/reviews"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillReviewCreatedAt = "2026-10-19_backfill_review_created_at"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB, time.Time) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillReviewCreatedAt, apply: backfillReviewCreatedAt},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		appliedAt := time.Now().UTC()
		if err := migration.apply(db, appliedAt); err != nil {
			return err
		}
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt.Unix()}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written by tools that skipped the creation timestamp would otherwise
// sort unpredictably.
func backfillReviewCreatedAt(db *gorm.DB, appliedAt time.Time) error {
	return db.Model(&reviews.Review{}).
		Where("created_at IS NULL").
		Update("created_at", appliedAt).Error
}
