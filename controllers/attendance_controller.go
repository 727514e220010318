package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stillalive/services"
	"github.com/cppla/stillalive/timewindow"
	"github.com/cppla/stillalive/utils"
)

// AttendanceController exposes the daily "still alive" toggle and the survival calendar.
type AttendanceController struct {
	svc *services.AttendanceService
}

// NewAttendanceController creates an AttendanceController.
func NewAttendanceController(svc *services.AttendanceService) *AttendanceController {
	return &AttendanceController{svc: svc}
}

// Toggle flips today's state for the caller. The body may omit date to mean today.
func (a *AttendanceController) Toggle(ctx *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	date := a.svc.Today()
	if s := strings.TrimSpace(req.Date); s != "" {
		d, err := timewindow.ParseDate(s)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40030, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	status, err := a.svc.Toggle(ctx.Request.Context(), userID, date)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), leaderboardCachePrefix)
	utils.Success(ctx, gin.H{"status": status, "date": date})
}

// Today reports whether the caller is marked alive today.
func (a *AttendanceController) Today(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	today := a.svc.Today()
	present, err := a.svc.IsPresent(ctx.Request.Context(), userID, today)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := services.StatusMissing
	if present {
		status = services.StatusAlive
	}
	utils.Success(ctx, gin.H{"date": today, "status": status})
}

// Survival lists the caller's present dates, optionally for ?month=&year=.
// Anonymous callers get an empty list.
func (a *AttendanceController) Survival(ctx *gin.Context) {
	month, okMonth := queryInt(ctx, "month")
	year, okYear := queryInt(ctx, "year")
	if !okMonth || !okYear {
		utils.Error(ctx, http.StatusBadRequest, 40032, "month and year must be integers")
		return
	}

	userID, _ := getUserID(ctx)
	dates, err := a.svc.SurvivalDates(ctx.Request.Context(), userID, month, year)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"dates": dates})
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(ctx *gin.Context, key string) (int, bool) {
	v := strings.TrimSpace(ctx.Query(key))
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
