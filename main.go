package main

import (
	"time"

	"github.com/cppla/stillalive/config"
	"github.com/cppla/stillalive/models"
	"github.com/cppla/stillalive/routes"
	"github.com/cppla/stillalive/timewindow"
	"github.com/cppla/stillalive/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.User{}, &models.Attendance{}, &models.Post{})

	cal := timewindow.New(time.Duration(cfg.OffsetHours()) * time.Hour)
	utils.Sugar.Infof("civil day zone %s, today is %s", cal.Location(), cal.Today())

	r := routes.SetupRouter(db, cal)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
