package reviews

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// steppingClock advances by one second on every call so creation order is observable.
type steppingClock struct {
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "reviews.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Review{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestService(t *testing.T, clock func() time.Time, logger *zap.Logger) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDatabase(t)
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func mustCreate(t *testing.T, service *Service, author, text string) Review {
	t.Helper()
	review, err := service.Create(context.Background(), author, text)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return review
}

func mustList(t *testing.T, service *Service) []Review {
	t.Helper()
	reviews, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	return reviews
}
