package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/lms-backend/internal/db"
	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/middleware"
	"github.com/opencampus/lms-backend/internal/server"
)

type App struct {
	Config Config
	Log    *logger.Logger
	Router *gin.Engine
}

func New(log *logger.Logger) (*App, error) {
	cfg := LoadConfig(log)

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("postgres auto migration failed: %w", err)
	}
	gormDB := postgresService.DB()

	r := BuildRepos(gormDB, log)
	s := BuildServices(gormDB, log, cfg, r)
	h := BuildHandlers(s)

	authMiddleware := middleware.NewAuthMiddleware(log, s.Auth)
	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins:     cfg.AllowedOrigins,
		AuthHandler:        h.Auth,
		AuthMiddleware:     authMiddleware,
		ArrangementHandler: h.Arrangement,
		CourseHandler:      h.Course,
		ProgressionHandler: h.Progression,
	})

	return &App{Config: cfg, Log: log, Router: router}, nil
}

func (a *App) Run() error {
	a.Log.Info("Server listening", "port", a.Config.Port)
	return a.Router.Run(":" + a.Config.Port)
}
