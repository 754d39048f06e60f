package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/skillcoin/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection serializes transactions the way row locks would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Purchase{},
		&models.Booking{},
		&models.Review{},
		&models.Follow{},
		&models.CoinTransfer{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type spyHooks struct {
	mu        sync.Mutex
	observed  map[string][]string
	conflicts map[string]int
	retries   map[string]int
}

func newSpyHooks() *spyHooks {
	return &spyHooks{
		observed:  map[string][]string{},
		conflicts: map[string]int{},
		retries:   map[string]int{},
	}
}

func (s *spyHooks) ObserveOperation(op, status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[op] = append(s.observed[op], status)
}

func (s *spyHooks) IncConflict(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[op]++
}

func (s *spyHooks) IncRetry(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[op]++
}

type spyNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func (s *spyNotifier) Notify(userID string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		s.events = map[string][]Event{}
	}
	s.events[userID] = append(s.events[userID], ev)
}

func (s *spyNotifier) types(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events[userID] {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	core     *Core
	hooks    *spyHooks
	notifier *spyNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       openTestDB(t),
		hooks:    newSpyHooks(),
		notifier: &spyNotifier{},
		now:      time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	f.core = New(f.db, nil, Options{
		RetryBackoff: time.Millisecond,
		Hooks:        f.hooks,
		Notifier:     f.notifier,
		Now:          func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) user(t *testing.T, id string, role models.Role, coins int64) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		DisplayName:  id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Coins:        coins,
	}
	if err := f.db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func (f *fixture) course(t *testing.T, id, teacherID string, price int64) *models.Course {
	t.Helper()
	c := &models.Course{ID: id, Title: "Course " + id, TeacherID: teacherID, Price: price}
	if err := f.db.Create(c).Error; err != nil {
		t.Fatalf("seed course %s: %v", id, err)
	}
	return c
}

func (f *fixture) reload(t *testing.T, id string) models.User {
	t.Helper()
	var u models.User
	if err := f.db.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("reload user %s: %v", id, err)
	}
	return u
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (f *fixture) totalCoins(t *testing.T) int64 {
	t.Helper()
	var sum int64
	if err := f.db.Model(&models.User{}).Select("COALESCE(SUM(coins), 0)").Scan(&sum).Error; err != nil {
		t.Fatalf("sum coins: %v", err)
	}
	return sum
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("kind: want=%s got=%s (%v)", kind, got, err)
	}
}

var bg = context.Background()
