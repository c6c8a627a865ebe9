package analysis

import (
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ipsentry/internal/database"
)

func setupAnalysisDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if _, err := database.SetupDB(
		database.WithExistingDB(db),
		database.WithSeedDefaults(false),
	); err != nil {
		t.Fatalf("setup database: %v", err)
	}

	t.Cleanup(func() {
		database.DB = nil
	})

	return db
}

type captureSender struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (s *captureSender) Send(subject, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
}

func (s *captureSender) sent() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subjects...), append([]string(nil), s.bodies...)
}
