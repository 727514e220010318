package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/stillalive/models"
)

func TestCanPost_QuotaBoundary(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T16:59:59Z")}
	svc := NewPostService(db, newCalculator(clock), 5, nil)
	u := seedUser(t, db, "alice")

	// five posts inside [2024-03-01T17:00Z, 2024-03-02T17:00Z), the first on the opening instant
	seedPost(t, db, u.ID, at(t, "2024-03-01T17:00:00Z"))
	for i := 1; i < 5; i++ {
		seedPost(t, db, u.ID, at(t, "2024-03-02T10:00:00Z").Add(time.Duration(i)*time.Minute))
	}

	err := svc.CanPost(ctx, u.ID, at(t, "2024-03-02T16:59:59Z"))
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe), "want QuotaExceededError, got %v", err)
	assert.EqualValues(t, 5, qe.Count)
	assert.Equal(t, 5, qe.Limit)

	assert.NoError(t, svc.CanPost(ctx, u.ID, at(t, "2024-03-02T17:00:00Z")))
}

func TestCanPost_StartInstantBelongsToNewDay(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T12:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 1, nil)
	u := seedUser(t, db, "alice")

	seedPost(t, db, u.ID, at(t, "2024-03-01T17:00:00Z"))

	// previous civil day (2024-03-01 +07) ends one nanosecond earlier
	assert.NoError(t, svc.CanPost(ctx, u.ID, at(t, "2024-03-01T16:59:59Z")))
	var qe *QuotaExceededError
	assert.ErrorAs(t, svc.CanPost(ctx, u.ID, at(t, "2024-03-01T17:00:00Z")), &qe)
}

func TestCanPost_OtherUsersDoNotCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 2, nil)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	seedPost(t, db, bob.ID, at(t, "2024-03-02T01:00:00Z"))
	seedPost(t, db, bob.ID, at(t, "2024-03-02T02:00:00Z"))

	assert.NoError(t, svc.CanPost(ctx, alice.ID, clock.Now()))
	var qe *QuotaExceededError
	assert.ErrorAs(t, svc.CanPost(ctx, bob.ID, clock.Now()), &qe)
}

func TestCanPost_Unauthenticated(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 5, nil)

	assert.ErrorIs(t, svc.CanPost(context.Background(), 0, clock.Now()), ErrUnauthenticated)
}

func TestCreate_EnforcesQuota(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 3, nil)
	u := seedUser(t, db, "alice")

	for i := 0; i < 3; i++ {
		p, err := svc.Create(ctx, u.ID, "still here", "")
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.True(t, clock.Now().Equal(p.CreatedAt))
		assert.Equal(t, "alice", p.User.Username)
	}

	_, err := svc.Create(ctx, u.ID, "one too many", "")
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.EqualValues(t, 3, qe.Count)

	var n int64
	require.NoError(t, db.Model(&models.Post{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.EqualValues(t, 3, n)

	// next civil day starts at 17:00Z
	clock.Set(at(t, "2024-03-02T17:00:00Z"))
	_, err = svc.Create(ctx, u.ID, "new day", "")
	assert.NoError(t, err)
}

func TestCreate_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 3, nil)

	_, err := svc.Create(context.Background(), 42, "ghost", "")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)
}

func TestQuotaAt(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 5, nil)
	u := seedUser(t, db, "alice")
	seedPost(t, db, u.ID, at(t, "2024-03-02T01:00:00Z"))
	seedPost(t, db, u.ID, at(t, "2024-03-01T16:00:00Z")) // previous civil day

	q, err := svc.QuotaAt(ctx, u.ID, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", q.Date.String())
	assert.EqualValues(t, 1, q.Used)
	assert.EqualValues(t, 4, q.Remaining)
	assert.True(t, q.ResetsAt.Equal(at(t, "2024-03-02T17:00:00Z")), q.ResetsAt.String())
}

func TestDelete_Ownership(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 5, nil)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	p, err := svc.Create(ctx, alice.ID, "mine", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, p.ID), ErrNotFoundOrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, p.ID+100), ErrNotFoundOrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, 0, p.ID), ErrUnauthenticated)

	require.NoError(t, svc.Delete(ctx, alice.ID, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, p.ID), ErrNotFoundOrForbidden)
}

func TestStorageErrorWraps(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-02T05:00:00Z")}
	svc := NewPostService(db, newCalculator(clock), 5, nil)
	u := seedUser(t, db, "alice")
	require.NoError(t, db.Migrator().DropTable(&models.Post{}))

	err := svc.CanPost(context.Background(), u.ID, clock.Now())
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "count posts", se.Op)
}
