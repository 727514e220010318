package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/stillalive/models"
	"github.com/cppla/stillalive/timewindow"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Set(t time.Time) { c.now = t }

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection to :memory: is a fresh database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Attendance{}, &models.Post{}))
	return db
}

func newCalculator(clock *testClock) *timewindow.Calculator {
	return timewindow.NewWithClock(timewindow.DefaultOffset, clock.Now)
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedPresentDays(t *testing.T, db *gorm.DB, userID uint, first timewindow.Date, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := models.Attendance{UserID: userID, Date: first.AddDays(i), Present: true, CreatedAt: time.Now().UTC()}
		require.NoError(t, db.Create(&rec).Error)
	}
}

func seedPost(t *testing.T, db *gorm.DB, userID uint, createdAt time.Time) {
	t.Helper()
	p := models.Post{UserID: userID, Content: "hello", CreatedAt: createdAt.UTC(), UpdatedAt: createdAt.UTC()}
	require.NoError(t, db.Create(&p).Error)
}
