package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/stillalive/timewindow"
)

func seedRanking(t *testing.T, db *gorm.DB) (a, b, c uint) {
	t.Helper()
	start := timewindow.MustParseDate("2024-03-01")
	ua := seedUser(t, db, "A")
	ub := seedUser(t, db, "B")
	uc := seedUser(t, db, "C")
	seedPresentDays(t, db, ua.ID, start, 3)
	seedPresentDays(t, db, ub.ID, start, 5)
	return ua.ID, ub.ID, uc.ID
}

func TestTopN_RanksByScore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLeaderboardService(db, 10, nil)
	a, b, c := seedRanking(t, db)

	top, err := svc.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, LeaderboardEntry{UserID: b, Username: "B", Score: 5}, top[0])
	assert.Equal(t, LeaderboardEntry{UserID: a, Username: "A", Score: 3}, top[1])
	for _, e := range top {
		assert.NotEqual(t, c, e.UserID)
	}

	score, err := svc.ScoreOf(ctx, c)
	require.NoError(t, err)
	assert.EqualValues(t, 0, score)

	score, err = svc.ScoreOf(ctx, b)
	require.NoError(t, err)
	assert.EqualValues(t, 5, score)
}

func TestTopN_TieBreakByUserID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLeaderboardService(db, 10, nil)
	start := timewindow.MustParseDate("2024-03-01")

	first := seedUser(t, db, "zed")
	second := seedUser(t, db, "amy")
	seedPresentDays(t, db, second.ID, start, 2)
	seedPresentDays(t, db, first.ID, start, 2)

	top, err := svc.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, first.ID, top[0].UserID)
	assert.Equal(t, second.ID, top[1].UserID)
}

func TestTopN_Limit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLeaderboardService(db, 2, nil)
	_, b, _ := seedRanking(t, db)

	top, err := svc.TopN(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, b, top[0].UserID)

	// n <= 0 uses the configured default
	top, err = svc.TopN(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestTopN_ZeroState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLeaderboardService(db, 10, nil)
	fresh := seedUser(t, db, "fresh")

	top, err := svc.TopN(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	score, err := svc.ScoreOf(ctx, fresh.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, score)

	score, err = svc.ScoreOf(ctx, 9999)
	require.NoError(t, err)
	assert.EqualValues(t, 0, score)
}

func TestTopN_ExcludesDeletedUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLeaderboardService(db, 10, nil)
	a, b, _ := seedRanking(t, db)

	require.NoError(t, db.Exec("UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?", b).Error)

	top, err := svc.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, a, top[0].UserID)

	// the ranking and the single-user score agree about deleted accounts
	score, err := svc.ScoreOf(ctx, b)
	require.NoError(t, err)
	assert.EqualValues(t, 0, score)
	score, err = svc.ScoreOf(ctx, a)
	require.NoError(t, err)
	assert.EqualValues(t, 3, score)
}

func TestStanding(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLeaderboardService(db, 10, nil)
	a, b, c := seedRanking(t, db)

	st, err := svc.Standing(ctx, a, 10)
	require.NoError(t, err)
	require.Len(t, st.Top, 2)
	assert.Equal(t, b, st.Top[0].UserID)
	assert.EqualValues(t, 3, st.MyScore)

	st, err = svc.Standing(ctx, c, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.MyScore)

	st, err = svc.Standing(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, st.Top, 1)
	assert.EqualValues(t, 0, st.MyScore)
}

func TestScoreFollowsToggle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := &testClock{now: at(t, "2024-03-01T18:00:00Z")}
	att := NewAttendanceService(db, newCalculator(clock), nil)
	lb := NewLeaderboardService(db, 10, nil)
	u := seedUser(t, db, "alice")

	_, err := att.Toggle(ctx, u.ID, att.Today())
	require.NoError(t, err)
	score, err := lb.ScoreOf(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, score)

	_, err = att.Toggle(ctx, u.ID, att.Today())
	require.NoError(t, err)
	score, err = lb.ScoreOf(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, score)
}
