package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stillalive/services"
	"github.com/cppla/stillalive/utils"
)

// every toggle clears keys under this prefix
const leaderboardCachePrefix = "cache:leaderboard:"

// RankController serves the survival leaderboard.
type RankController struct {
	svc      *services.LeaderboardService
	cacheTTL time.Duration
}

// NewRankController creates a RankController; cacheTTL <= 0 disables response caching.
func NewRankController(svc *services.LeaderboardService, cacheTTL time.Duration) *RankController {
	return &RankController{svc: svc, cacheTTL: cacheTTL}
}

// Standing returns the top list plus the caller's own score (0 when anonymous).
func (r *RankController) Standing(ctx *gin.Context) {
	limit := 0
	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			utils.Error(ctx, http.StatusBadRequest, 40033, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	userID, _ := getUserID(ctx)

	cacheKey := fmt.Sprintf("%slimit=%d:user=%d", leaderboardCachePrefix, limit, userID)
	if r.cacheTTL > 0 {
		if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	standing, err := r.svc.Standing(ctx.Request.Context(), userID, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if r.cacheTTL > 0 {
		utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.SuccessEnvelope(standing), r.cacheTTL)
	}
	utils.Success(ctx, standing)
}

// UserScore returns one user's present-day count.
func (r *RankController) UserScore(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid user id")
		return
	}
	score, err := r.svc.ScoreOf(ctx.Request.Context(), userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user_id": userID, "score": score})
}
