package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/stillalive/config"
	"github.com/cppla/stillalive/middleware"
	"github.com/cppla/stillalive/services"
	"github.com/cppla/stillalive/utils"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func paginationPayload(items interface{}, page, pageSize int, total int64) gin.H {
	return gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
}

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// getUserID returns the authenticated user id, or 0 for anonymous requests.
func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// writeServiceError maps service errors onto HTTP status plus business code.
func writeServiceError(ctx *gin.Context, err error) {
	var quota *services.QuotaExceededError
	var storage *services.StorageError
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	case errors.Is(err, services.ErrInvalidDate):
		utils.Error(ctx, http.StatusBadRequest, 40030, err.Error())
	case errors.As(err, &quota):
		utils.ErrorWithData(ctx, http.StatusTooManyRequests, 42930, "daily post limit reached", gin.H{
			"count": quota.Count,
			"limit": quota.Limit,
		})
	case errors.Is(err, services.ErrNotFoundOrForbidden):
		utils.Error(ctx, http.StatusNotFound, 40420, "not found or no permission")
	case errors.Is(err, services.ErrToggleConflict):
		utils.Error(ctx, http.StatusConflict, 40930, "concurrent update, please retry")
	case errors.As(err, &storage):
		utils.Logger.Error("storage failure",
			zap.String("op", storage.Op),
			zap.String("request_id", ctx.GetString(utils.ContextRequestIDKey)),
			zap.Error(storage.Err))
		utils.Error(ctx, http.StatusInternalServerError, 50030, "storage unavailable")
	default:
		utils.Logger.Error("unhandled error", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

// isAdminUsername checks whether given username is configured as an admin (case-insensitive)
func isAdminUsername(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
