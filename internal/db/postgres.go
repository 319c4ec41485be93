package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/types"
	"github.com/opencampus/lms-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "lms", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	handle, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := handle.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: handle, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Department{},
		&types.User{},
		&types.Course{},
		&types.CourseUnit{},
		&types.Video{},
		&types.Document{},
		&types.QuizQuestion{},
		&types.Enrollment{},
		&types.Arrangement{},
		&types.StudentProgress{},
		&types.CourseLaunch{},
		&types.AuditRecord{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// At most one open arrangement per (course, coordinator). Creation races
	// hit this index, not application-level checks.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_arrangement_one_open
		ON "arrangement" ("course_id", "coordinator_id")
		WHERE "status" = 'open' AND "deleted_at" IS NULL
	`).Error; err != nil {
		s.log.Error("Failed to create open-arrangement partial index", "error", err)
		return err
	}

	return nil
}
