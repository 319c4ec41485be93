package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/types"
)

type StudentProgressRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.StudentProgress) error
	GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.StudentProgress, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.StudentProgress) error
	// ForEachByCourseID streams progress rows for a course in batches so
	// bulk operations never load a whole cohort into memory. The callback's
	// error stops iteration.
	ForEachByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, batchSize int, fn func(row *types.StudentProgress) error) error
	SetArrangementVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int) error
}

type studentProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentProgressRepo(db *gorm.DB, baseLog *logger.Logger) StudentProgressRepo {
	return &studentProgressRepo{db: db, log: baseLog.With("repo", "StudentProgressRepo")}
}

func (r *studentProgressRepo) Create(ctx context.Context, tx *gorm.DB, row *types.StudentProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *studentProgressRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.StudentProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.StudentProgress
	err := transaction.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *studentProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.StudentProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row.UpdatedAt = time.Now()
	return transaction.WithContext(ctx).Save(row).Error
}

func (r *studentProgressRepo) ForEachByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, batchSize int, fn func(row *types.StudentProgress) error) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil || fn == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	var batch []*types.StudentProgress
	return transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for _, row := range batch {
				if err := fn(row); err != nil {
					return err
				}
			}
			return nil
		}).Error
}

func (r *studentProgressRepo) SetArrangementVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.StudentProgress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"arrangement_version": version,
			"updated_at":          time.Now(),
		}).Error
}
