// Package services holds the check-in, ranking and posting rules on top of gorm.
// Every call is a short round trip against the shared store; nothing is kept in memory.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/stillalive/models"
	"github.com/cppla/stillalive/timewindow"
)

// ToggleStatus is the state a day ends up in after a toggle.
type ToggleStatus string

const (
	StatusAlive   ToggleStatus = "alive"
	StatusMissing ToggleStatus = "missing"
)

const maxToggleRounds = 3

// AttendanceService toggles and reads present days.
type AttendanceService struct {
	db  *gorm.DB
	cal *timewindow.Calculator
	log *zap.Logger
}

// NewAttendanceService creates an AttendanceService. A nil logger disables logging.
func NewAttendanceService(db *gorm.DB, cal *timewindow.Calculator, log *zap.Logger) *AttendanceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttendanceService{db: db, cal: cal, log: log}
}

// Toggle flips today's state for the user: Absent -> Present inserts a row, Present -> Absent
// hard-deletes it. Any date other than today is rejected without touching the store.
//
// The delete runs first; if nothing was deleted the insert is conditional on the
// (user_id, date) unique index. An insert that hits the index lost a race against a
// concurrent toggle, so the round starts over from the delete.
func (s *AttendanceService) Toggle(ctx context.Context, userID uint, date timewindow.Date) (ToggleStatus, error) {
	if userID == 0 {
		return "", ErrUnauthenticated
	}
	if now := s.cal.Now(); !s.cal.Contains(date, now) {
		when := "future"
		if today := s.cal.CivilDateOf(now); date.Before(today) {
			when = "past"
		}
		return "", fmt.Errorf("%w: %s is in the %s", ErrInvalidDate, date, when)
	}
	// no foreign key backs attendance.user_id, so a token that outlived its account stops here
	if err := s.db.WithContext(ctx).Select("id").First(&models.User{}, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFoundOrForbidden
		}
		return "", storageErr("find user", err)
	}

	key := map[string]any{"user_id": userID, "date": date}
	for round := 0; round < maxToggleRounds; round++ {
		res := s.db.WithContext(ctx).Where(key).Delete(&models.Attendance{})
		if res.Error != nil {
			return "", storageErr("delete attendance", res.Error)
		}
		if res.RowsAffected > 0 {
			s.log.Info("attendance toggled", zap.Uint("user_id", userID), zap.Stringer("date", date), zap.String("status", string(StatusMissing)))
			return StatusMissing, nil
		}

		record := models.Attendance{
			UserID:    userID,
			Date:      date,
			Present:   true,
			CreatedAt: s.cal.Now().UTC(),
		}
		res = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&record)
		if res.Error != nil {
			return "", storageErr("insert attendance", res.Error)
		}
		if res.RowsAffected > 0 {
			s.log.Info("attendance toggled", zap.Uint("user_id", userID), zap.Stringer("date", date), zap.String("status", string(StatusAlive)))
			return StatusAlive, nil
		}
		s.log.Debug("attendance toggle raced, retrying", zap.Uint("user_id", userID), zap.Int("round", round))
	}
	return "", ErrToggleConflict
}

// SurvivalDates lists the user's present dates in ascending order.
// month in 1..12 with year > 0 restricts the list to that month; month or year 0 returns every date.
// A missing identity yields an empty list rather than an error.
func (s *AttendanceService) SurvivalDates(ctx context.Context, userID uint, month, year int) ([]timewindow.Date, error) {
	dates := []timewindow.Date{}
	if userID == 0 {
		return dates, nil
	}
	if month < 0 || month > 12 || year < 0 {
		return nil, fmt.Errorf("%w: month %d year %d", ErrInvalidDate, month, year)
	}

	dateCol := clause.Column{Name: "date"}
	q := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Where(map[string]any{"user_id": userID, "present": true})
	if month != 0 && year != 0 {
		first, next := timewindow.MonthRange(year, time.Month(month))
		q = q.Where(clause.Gte{Column: dateCol, Value: first}).
			Where(clause.Lt{Column: dateCol, Value: next})
	}
	var records []models.Attendance
	if err := q.Select("id", "date").Order(clause.OrderByColumn{Column: dateCol}).Find(&records).Error; err != nil {
		return nil, storageErr("list attendance", err)
	}
	for _, r := range records {
		dates = append(dates, r.Date)
	}
	return dates, nil
}

// IsPresent reports whether the user has a present record for date.
func (s *AttendanceService) IsPresent(ctx context.Context, userID uint, date timewindow.Date) (bool, error) {
	if userID == 0 {
		return false, ErrUnauthenticated
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Where(map[string]any{"user_id": userID, "date": date, "present": true}).
		Count(&n).Error
	if err != nil {
		return false, storageErr("check attendance", err)
	}
	return n > 0, nil
}

// Today exposes the service's notion of the current civil date.
func (s *AttendanceService) Today() timewindow.Date {
	return s.cal.Today()
}
