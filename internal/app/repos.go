package app

import (
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
)

type Repos struct {
	User            repos.UserRepo
	Course          repos.CourseRepo
	CourseUnit      repos.CourseUnitRepo
	Video           repos.VideoRepo
	Document        repos.DocumentRepo
	QuizQuestion    repos.QuizQuestionRepo
	Enrollment      repos.EnrollmentRepo
	Arrangement     repos.ArrangementRepo
	StudentProgress repos.StudentProgressRepo
	Audit           repos.AuditRepo
}

func BuildRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		User:            repos.NewUserRepo(db, log),
		Course:          repos.NewCourseRepo(db, log),
		CourseUnit:      repos.NewCourseUnitRepo(db, log),
		Video:           repos.NewVideoRepo(db, log),
		Document:        repos.NewDocumentRepo(db, log),
		QuizQuestion:    repos.NewQuizQuestionRepo(db, log),
		Enrollment:      repos.NewEnrollmentRepo(db, log),
		Arrangement:     repos.NewArrangementRepo(db, log),
		StudentProgress: repos.NewStudentProgressRepo(db, log),
		Audit:           repos.NewAuditRepo(db, log),
	}
}
