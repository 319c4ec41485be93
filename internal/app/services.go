package app

import (
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Catalog     services.CatalogService
	Quiz        services.QuizService
	Media       services.MediaService
	Audit       services.AuditService
	Authority   services.AuthorityResolver
	Integrity   services.IntegrityService
	Progression services.ProgressionService
	Apply       services.ApplyService
	Arrangement services.ArrangementService
}

func BuildServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) Services {
	catalog := services.NewCatalogService(log, r.CourseUnit, r.Video, r.Document)
	quiz := services.NewQuizService(log, r.QuizQuestion)
	media := services.NewMediaService(log, cfg.MediaServiceURL, cfg.MediaTimeout)
	audit := services.NewAuditService(log, r.Audit)
	authority := services.NewAuthorityResolver(log, r.User)
	integrity := services.NewIntegrityService(log, catalog, r.StudentProgress)
	progression := services.NewProgressionService(db, log, catalog, quiz, integrity, r.StudentProgress, r.Course, r.Enrollment)
	apply := services.NewApplyService(db, log, catalog, r.Video, r.Document, r.Arrangement, r.Course, r.StudentProgress, r.Enrollment, media, audit, authority)
	arrangement := services.NewArrangementService(db, log, r.Arrangement, r.Course, r.User, catalog, authority, audit, apply, integrity)
	auth := services.NewAuthService(log, r.User, cfg.JWTSecretKey, cfg.AccessTokenTTL)
	return Services{
		Auth:        auth,
		Catalog:     catalog,
		Quiz:        quiz,
		Media:       media,
		Audit:       audit,
		Authority:   authority,
		Integrity:   integrity,
		Progression: progression,
		Apply:       apply,
		Arrangement: arrangement,
	}
}
