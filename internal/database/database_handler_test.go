package database

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	"ipsentry/internal/domain"
)

func TestSetupDBSeedsDefaultConfig(t *testing.T) {
	db := setupTestDB(t,
		WithLogger(logger.Default.LogMode(logger.Silent)),
		WithMigrations(defaultMigrations()...),
		WithSeedDefaults(true),
	)

	var count int64
	if err := db.Model(&domain.DetectionConfig{}).Where("enabled = ?", true).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d enabled configs after seeding, want 1", count)
	}

	// Seeding is idempotent: a second setup against the same database must
	// not create a second enabled row.
	if _, err := SetupDB(WithExistingDB(db), WithSeedDefaults(true)); err != nil {
		t.Fatalf("re-setup: %v", err)
	}
	if err := db.Model(&domain.DetectionConfig{}).Where("enabled = ?", true).Count(&count).Error; err != nil {
		t.Fatalf("re-count: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d enabled configs after re-seeding, want 1", count)
	}
}

func TestSetupDBWithoutMigrations(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := SetupDB(
		WithDialector(sqlite.Open(dsn)),
		WithAutoMigrate(false),
		WithSeedDefaults(false),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		DB = nil
	})

	if db.Migrator().HasTable(&domain.RequestEvent{}) {
		t.Error("tables must not exist when migration is disabled")
	}
}
