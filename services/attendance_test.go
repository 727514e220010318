package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/stillalive/models"
	"github.com/cppla/stillalive/timewindow"
)

func countAttendance(t *testing.T, s *AttendanceService, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.Attendance{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestToggle_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")
	today := timewindow.MustParseDate("2024-03-02")

	status, err := svc.Toggle(ctx, u.ID, today)
	require.NoError(t, err)
	assert.Equal(t, StatusAlive, status)
	assert.EqualValues(t, 1, countAttendance(t, svc, u.ID))

	present, err := svc.IsPresent(ctx, u.ID, today)
	require.NoError(t, err)
	assert.True(t, present)

	status, err = svc.Toggle(ctx, u.ID, today)
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, status)
	assert.EqualValues(t, 0, countAttendance(t, svc, u.ID))

	present, err = svc.IsPresent(ctx, u.ID, today)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestToggle_RetoggleCreatesFreshRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T01:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")
	today := svc.Today()

	_, err := svc.Toggle(ctx, u.ID, today)
	require.NoError(t, err)
	var first models.Attendance
	require.NoError(t, db.Where("user_id = ?", u.ID).First(&first).Error)

	_, err = svc.Toggle(ctx, u.ID, today)
	require.NoError(t, err)

	clock.Set(at(t, "2024-03-02T05:00:00Z"))
	_, err = svc.Toggle(ctx, u.ID, today)
	require.NoError(t, err)
	var second models.Attendance
	require.NoError(t, db.Where("user_id = ?", u.ID).First(&second).Error)

	assert.True(t, second.CreatedAt.After(first.CreatedAt))
	assert.Equal(t, today, second.Date)
}

func TestToggle_OnlyToday(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")

	// an existing past record must not be removed by a rejected toggle
	seedPresentDays(t, db, u.ID, timewindow.MustParseDate("2020-01-01"), 1)

	for _, d := range []string{"2020-01-01", "2024-03-01", "2024-03-03"} {
		_, err := svc.Toggle(ctx, u.ID, timewindow.MustParseDate(d))
		assert.ErrorIs(t, err, ErrInvalidDate, d)
	}
	assert.EqualValues(t, 1, countAttendance(t, svc, u.ID))
}

func TestToggle_TodayFollowsFixedOffset(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T16:59:59Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")

	_, err := svc.Toggle(ctx, u.ID, timewindow.MustParseDate("2024-03-02"))
	assert.ErrorIs(t, err, ErrInvalidDate)

	clock.Set(at(t, "2024-03-01T17:00:00Z"))
	status, err := svc.Toggle(ctx, u.ID, timewindow.MustParseDate("2024-03-02"))
	require.NoError(t, err)
	assert.Equal(t, StatusAlive, status)
}

func TestToggle_Unauthenticated(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)

	_, err := svc.Toggle(context.Background(), 0, svc.Today())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 0, countAttendance(t, svc, 0))
}

func TestToggle_UniqueIndexHoldsOneRecordPerDay(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "alice")
	d := timewindow.MustParseDate("2024-03-02")

	require.NoError(t, db.Create(&models.Attendance{UserID: u.ID, Date: d, Present: true}).Error)
	err := db.Create(&models.Attendance{UserID: u.ID, Date: d, Present: true}).Error
	assert.Error(t, err)
}

func TestSurvivalDates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-10T03:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	seedPresentDays(t, db, alice.ID, timewindow.MustParseDate("2024-02-28"), 3) // 02-28, 02-29, 03-01
	seedPresentDays(t, db, alice.ID, timewindow.MustParseDate("2024-03-05"), 1)
	seedPresentDays(t, db, bob.ID, timewindow.MustParseDate("2024-03-05"), 2)

	all, err := svc.SurvivalDates(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []timewindow.Date{
		timewindow.MustParseDate("2024-02-28"),
		timewindow.MustParseDate("2024-02-29"),
		timewindow.MustParseDate("2024-03-01"),
		timewindow.MustParseDate("2024-03-05"),
	}, all)

	march, err := svc.SurvivalDates(ctx, alice.ID, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, []timewindow.Date{
		timewindow.MustParseDate("2024-03-01"),
		timewindow.MustParseDate("2024-03-05"),
	}, march)

	feb, err := svc.SurvivalDates(ctx, alice.ID, 2, 2024)
	require.NoError(t, err)
	assert.Len(t, feb, 2)

	empty, err := svc.SurvivalDates(ctx, alice.ID, 3, 2023)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestSurvivalDates_AnonymousGetsEmptyList(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-10T03:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)

	dates, err := svc.SurvivalDates(context.Background(), 0, 3, 2024)
	require.NoError(t, err)
	assert.NotNil(t, dates)
	assert.Empty(t, dates)
}

func TestSurvivalDates_BadMonth(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-10T03:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")

	_, err := svc.SurvivalDates(context.Background(), u.ID, 13, 2024)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestToggle_MissingUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")
	require.NoError(t, db.Delete(&u).Error)

	_, err := svc.Toggle(ctx, u.ID, svc.Today())
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)
	_, err = svc.Toggle(ctx, 999, svc.Today())
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)

	assert.EqualValues(t, 0, countAttendance(t, svc, u.ID))
	assert.EqualValues(t, 0, countAttendance(t, svc, 999))
}

func TestToggle_InvalidDateNamesDirection(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")

	_, err := svc.Toggle(context.Background(), u.ID, timewindow.MustParseDate("2024-03-01"))
	require.ErrorIs(t, err, ErrInvalidDate)
	assert.Contains(t, err.Error(), "past")

	_, err = svc.Toggle(context.Background(), u.ID, timewindow.MustParseDate("2024-03-03"))
	require.ErrorIs(t, err, ErrInvalidDate)
	assert.Contains(t, err.Error(), "future")
}

func TestToggle_ConflictAfterRepeatedLostInserts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	svc := NewAttendanceService(db, newCalculator(clock), nil)
	u := seedUser(t, db, "alice")

	// every insert now reports zero rows, as if a concurrent toggle got there first
	inserts := 0
	require.NoError(t, db.Callback().Create().Replace("gorm:create", func(tx *gorm.DB) {
		inserts++
	}))

	_, err := svc.Toggle(ctx, u.ID, svc.Today())
	assert.ErrorIs(t, err, ErrToggleConflict)
	assert.Equal(t, maxToggleRounds, inserts)
	assert.EqualValues(t, 0, countAttendance(t, svc, u.ID))
}
