package services

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/stillalive/models"
)

// MaxLeaderboardSize caps TopN.
const MaxLeaderboardSize = 100

// LeaderboardEntry is one ranked user. Score is the number of present days.
type LeaderboardEntry struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// Standing is the rank page: the top list plus the viewer's own score, read from one snapshot.
type Standing struct {
	Top     []LeaderboardEntry `json:"items"`
	MyScore int64              `json:"my_score"`
}

// LeaderboardService aggregates attendance into a ranking.
type LeaderboardService struct {
	db          *gorm.DB
	defaultSize int
	log         *zap.Logger
}

// NewLeaderboardService creates a LeaderboardService; defaultSize applies when TopN gets n <= 0.
func NewLeaderboardService(db *gorm.DB, defaultSize int, log *zap.Logger) *LeaderboardService {
	if defaultSize <= 0 {
		defaultSize = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardService{db: db, defaultSize: defaultSize, log: log}
}

// TopN ranks users by present-day count, highest first, ties broken by ascending user id.
// Users with no present days are not listed.
func (s *LeaderboardService) TopN(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	return s.topN(s.db.WithContext(ctx), n)
}

// ScoreOf counts the user's present days; unknown users score 0.
func (s *LeaderboardService) ScoreOf(ctx context.Context, userID uint) (int64, error) {
	return s.scoreOf(s.db.WithContext(ctx), userID)
}

// Standing reads TopN and the viewer's score inside a single transaction.
// userID 0 (anonymous viewer) leaves MyScore at 0.
func (s *LeaderboardService) Standing(ctx context.Context, userID uint, n int) (*Standing, error) {
	var opts *sql.TxOptions
	// sqlite transactions are already serializable and reject explicit isolation levels
	if s.db.Dialector.Name() != "sqlite" {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	out := &Standing{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		top, err := s.topN(tx, n)
		if err != nil {
			return err
		}
		out.Top = top
		if userID != 0 {
			score, err := s.scoreOf(tx, userID)
			if err != nil {
				return err
			}
			out.MyScore = score
		}
		return nil
	}, opts)
	if err := txErr("read standing", err); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LeaderboardService) topN(tx *gorm.DB, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = s.defaultSize
	}
	if n > MaxLeaderboardSize {
		n = MaxLeaderboardSize
	}

	entries := []LeaderboardEntry{}
	err := tx.Model(&models.User{}).
		Select("users.id AS user_id, users.username AS username, COUNT(attendance.id) AS score").
		Joins("JOIN attendance ON attendance.user_id = users.id AND attendance.present = ?", true).
		Group("users.id, users.username").
		Order("COUNT(attendance.id) DESC, users.id ASC").
		Limit(n).
		Scan(&entries).Error
	if err != nil {
		return nil, storageErr("rank users", err)
	}
	return entries, nil
}

func (s *LeaderboardService) scoreOf(tx *gorm.DB, userID uint) (int64, error) {
	if userID == 0 {
		return 0, nil
	}
	var n int64
	err := tx.Model(&models.Attendance{}).
		Joins("JOIN users ON users.id = attendance.user_id AND users.deleted_at IS NULL").
		Where("attendance.user_id = ? AND attendance.present = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return 0, storageErr("score user", err)
	}
	return n, nil
}
