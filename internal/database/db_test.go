package database

import (
	"testing"

	"gorm.io/gorm"

	"github.com/charlesng35/filebridge/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected unknown driver to be rejected")
	}
}

func TestAutoMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	log := models.AuditLog{Action: "file.content", Session: "primary", Result: "success"}
	if err := db.Create(&log).Error; err != nil {
		t.Fatalf("insert audit log: %v", err)
	}
	if log.ID == "" {
		t.Fatal("expected generated audit log id")
	}

	entry := models.CacheEntry{Key: "ratelimit:token:10.0.0.1", Value: []byte("1")}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("insert cache entry: %v", err)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
