package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/opencampus/lms-backend/internal/handlers"
	"github.com/opencampus/lms-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins     []string
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	ArrangementHandler *handlers.ArrangementHandler
	CourseHandler      *handlers.CourseHandler
	ProgressionHandler *handlers.ProgressionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Arrangement workflow
	protected.GET("/courses/:id/arrangement", cfg.ArrangementHandler.GetForCourse)
	protected.GET("/courses/:id/arrangements", cfg.ArrangementHandler.History)
	protected.PUT("/arrangements/:id", cfg.ArrangementHandler.Update)
	protected.POST("/arrangements/:id/submit", cfg.ArrangementHandler.Submit)
	protected.POST("/arrangements/:id/review", cfg.ArrangementHandler.Review)
	protected.GET("/arrangements/pending", cfg.ArrangementHandler.Pending)

	// Course lifecycle
	protected.POST("/courses/:id/launch", cfg.CourseHandler.Launch)
	protected.POST("/courses/:id/content-updated", cfg.CourseHandler.ContentUpdated)

	// Progression
	protected.POST("/courses/:id/enroll", cfg.ProgressionHandler.Enroll)
	protected.GET("/courses/:id/units/:unitId/access", cfg.ProgressionHandler.UnitAccess)
	protected.POST("/courses/:id/units/:unitId/revalidate", cfg.ProgressionHandler.Revalidate)

	return router
}
