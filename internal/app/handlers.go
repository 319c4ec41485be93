package app

import (
	"github.com/opencampus/lms-backend/internal/handlers"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	Arrangement *handlers.ArrangementHandler
	Course      *handlers.CourseHandler
	Progression *handlers.ProgressionHandler
}

func BuildHandlers(s Services) Handlers {
	return Handlers{
		Auth:        handlers.NewAuthHandler(s.Auth),
		Arrangement: handlers.NewArrangementHandler(s.Arrangement),
		Course:      handlers.NewCourseHandler(s.Apply, s.Arrangement),
		Progression: handlers.NewProgressionHandler(s.Progression, s.Integrity),
	}
}
