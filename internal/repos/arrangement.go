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

type ArrangementRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Arrangement) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Arrangement, error)
	GetCurrentByCourseAndCoordinator(ctx context.Context, tx *gorm.DB, courseID, coordinatorID uuid.UUID) (*types.Arrangement, error)
	GetLatestApprovedByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Arrangement, error)
	MaxVersionByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Arrangement, error)
	ListByStatusForCourses(ctx context.Context, tx *gorm.DB, status string, courseIDs []uuid.UUID) ([]*types.Arrangement, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Arrangement, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	// TransitionStatus updates only when the row still holds fromStatus.
	// Returns the number of rows affected; zero means the caller lost a
	// concurrent transition race.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus string, updates map[string]interface{}) (int64, error)
}

type arrangementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArrangementRepo(db *gorm.DB, baseLog *logger.Logger) ArrangementRepo {
	return &arrangementRepo{db: db, log: baseLog.With("repo", "ArrangementRepo")}
}

func (r *arrangementRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Arrangement) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *arrangementRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Arrangement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Arrangement
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetCurrentByCourseAndCoordinator returns the coordinator's live
// arrangement for the course: the highest-version row that is still open or
// submitted, or nil when none exists.
func (r *arrangementRepo) GetCurrentByCourseAndCoordinator(ctx context.Context, tx *gorm.DB, courseID, coordinatorID uuid.UUID) (*types.Arrangement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Arrangement
	err := transaction.WithContext(ctx).
		Where("course_id = ? AND coordinator_id = ? AND status IN ?",
			courseID, coordinatorID,
			[]string{types.ArrangementOpen, types.ArrangementSubmitted}).
		Order("version DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *arrangementRepo) GetLatestApprovedByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Arrangement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Arrangement
	err := transaction.WithContext(ctx).
		Where("course_id = ? AND status = ?", courseID, types.ArrangementApproved).
		Order("version DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *arrangementRepo) MaxVersionByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var maxVersion int
	if err := transaction.WithContext(ctx).
		Model(&types.Arrangement{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error; err != nil {
		return 0, err
	}
	return maxVersion, nil
}

func (r *arrangementRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Arrangement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Arrangement
	if courseID == uuid.Nil {
		return rows, nil
	}
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("version DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *arrangementRepo) ListByStatusForCourses(ctx context.Context, tx *gorm.DB, status string, courseIDs []uuid.UUID) ([]*types.Arrangement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Arrangement
	if len(courseIDs) == 0 {
		return rows, nil
	}
	if err := transaction.WithContext(ctx).
		Where("status = ? AND course_id IN ?", status, courseIDs).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *arrangementRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Arrangement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Arrangement
	if err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *arrangementRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Arrangement{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *arrangementRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus string, updates map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return 0, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	result := transaction.WithContext(ctx).
		Model(&types.Arrangement{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
