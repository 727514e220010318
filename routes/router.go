package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/stillalive/config"
	"github.com/cppla/stillalive/controllers"
	"github.com/cppla/stillalive/middleware"
	"github.com/cppla/stillalive/services"
	"github.com/cppla/stillalive/timewindow"
	"github.com/cppla/stillalive/utils"
)

// SetupRouter wires routes, middlewares, services and controllers.
func SetupRouter(db *gorm.DB, cal *timewindow.Calculator) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// access log goes to its own rolling file; in test mode it shares the app logger
	accessLog := utils.Logger
	if gin.Mode() != gin.TestMode {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
		} else {
			accessLog = gl
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// wildcard origins cannot carry credentials
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx.Request.Context())
		}
		if err != nil {
			utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
			return
		}
		utils.Success(ctx, gin.H{"status": "ok", "today": cal.Today()})
	})

	attendanceSvc := services.NewAttendanceService(db, cal, utils.Logger.Named("attendance"))
	leaderboardSvc := services.NewLeaderboardService(db, cfg.LeaderboardSize, utils.Logger.Named("leaderboard"))
	postSvc := services.NewPostService(db, cal, cfg.DailyPostLimit, utils.Logger.Named("posts"))

	authController := controllers.NewAuthController(db)
	attendanceController := controllers.NewAttendanceController(attendanceSvc)
	rankController := controllers.NewRankController(leaderboardSvc, time.Duration(cfg.LeaderboardCacheSeconds)*time.Second)
	postController := controllers.NewPostController(db, postSvc)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// public reads; a valid token personalises the answer
	public := api.Group("")
	public.Use(middleware.OptionalAuth(), middleware.RateLimitMiddleware())
	public.GET("/attendance", attendanceController.Survival)
	public.GET("/rank", rankController.Standing)
	public.GET("/users/:id/score", rankController.UserScore)
	public.GET("/users/:id/posts", postController.ListUserPosts)
	public.GET("/posts", postController.ListPosts)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/attendance/toggle", attendanceController.Toggle)
	protected.GET("/attendance/today", attendanceController.Today)
	protected.POST("/posts", postController.CreatePost)
	protected.GET("/posts/quota", postController.Quota)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.GET("/users/me/posts", postController.ListMyPosts)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
