package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/stillalive/models"
	"github.com/cppla/stillalive/timewindow"
)

// DefaultDailyPostLimit is the number of posts allowed per user per civil day.
const DefaultDailyPostLimit = 5

// Quota is the caller's post allowance for the civil day containing an instant.
type Quota struct {
	Date      timewindow.Date `json:"date"`
	Used      int64           `json:"used"`
	Limit     int             `json:"limit"`
	Remaining int64           `json:"remaining"`
	ResetsAt  time.Time       `json:"resets_at"`
}

// PostService gates and performs post creation and deletion.
type PostService struct {
	db    *gorm.DB
	cal   *timewindow.Calculator
	limit int
	log   *zap.Logger
}

// NewPostService creates a PostService; limit <= 0 falls back to DefaultDailyPostLimit.
func NewPostService(db *gorm.DB, cal *timewindow.Calculator, limit int, log *zap.Logger) *PostService {
	if limit <= 0 {
		limit = DefaultDailyPostLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{db: db, cal: cal, limit: limit, log: log}
}

// CanPost decides whether userID may create another post on now's civil day.
// It only decides; Create is the atomic count-and-insert.
func (s *PostService) CanPost(ctx context.Context, userID uint, now time.Time) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	count, err := s.countOnDay(s.db.WithContext(ctx), userID, now)
	if err != nil {
		return err
	}
	return s.check(count)
}

// QuotaAt reports usage for now's civil day.
func (s *PostService) QuotaAt(ctx context.Context, userID uint, now time.Time) (*Quota, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	count, err := s.countOnDay(s.db.WithContext(ctx), userID, now)
	if err != nil {
		return nil, err
	}
	date := s.cal.CivilDateOf(now)
	_, end := s.cal.DayWindowOf(date)
	remaining := int64(s.limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return &Quota{Date: date, Used: count, Limit: s.limit, Remaining: remaining, ResetsAt: end}, nil
}

// CurrentQuota is QuotaAt for the service clock.
func (s *PostService) CurrentQuota(ctx context.Context, userID uint) (*Quota, error) {
	return s.QuotaAt(ctx, userID, s.cal.Now())
}

// Create inserts a post stamped with the service clock if today's quota allows it.
// The author's row is locked for the duration so concurrent creates are counted serially.
func (s *PostService) Create(ctx context.Context, userID uint, content, imageURL string) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	now := s.cal.Now().UTC()

	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&author, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFoundOrForbidden
			}
			return storageErr("lock author", err)
		}

		count, err := s.countOnDay(tx, userID, now)
		if err != nil {
			return err
		}
		if err := s.check(count); err != nil {
			return err
		}

		post = models.Post{
			UserID:    userID,
			Content:   content,
			ImageURL:  imageURL,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&post).Error; err != nil {
			return storageErr("insert post", err)
		}
		post.User = author
		return nil
	})
	if err := txErr("create post", err); err != nil {
		return nil, err
	}
	s.log.Info("post created", zap.Uint("user_id", userID), zap.Uint("post_id", post.ID))
	return &post, nil
}

// Delete removes the post only when it exists and belongs to userID.
func (s *PostService) Delete(ctx context.Context, userID, postID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", postID, userID).Delete(&models.Post{})
	if res.Error != nil {
		return storageErr("delete post", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFoundOrForbidden
	}
	s.log.Info("post deleted", zap.Uint("user_id", userID), zap.Uint("post_id", postID))
	return nil
}

func (s *PostService) check(count int64) error {
	if count >= int64(s.limit) {
		return &QuotaExceededError{Count: count, Limit: s.limit}
	}
	return nil
}

func (s *PostService) countOnDay(tx *gorm.DB, userID uint, now time.Time) (int64, error) {
	start, end := s.cal.DayWindowOf(s.cal.CivilDateOf(now))
	var n int64
	err := tx.Model(&models.Post{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start, end).
		Count(&n).Error
	if err != nil {
		return 0, storageErr("count posts", err)
	}
	return n, nil
}
