package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/types"
)

type CourseUnitRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.CourseUnit) ([]*types.CourseUnit, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CourseUnit, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseUnit, error)
	SetMembership(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, videoIDs, documentIDs []uuid.UUID) error
}

type courseUnitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseUnitRepo(db *gorm.DB, baseLog *logger.Logger) CourseUnitRepo {
	return &courseUnitRepo{db: db, log: baseLog.With("repo", "CourseUnitRepo")}
}

func (r *courseUnitRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.CourseUnit) ([]*types.CourseUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.CourseUnit{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseUnitRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CourseUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.CourseUnit
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *courseUnitRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.CourseUnit
	if courseID == uuid.Nil {
		return rows, nil
	}
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("unit_order ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseUnitRepo) SetMembership(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, videoIDs, documentIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if unitID == uuid.Nil {
		return nil
	}
	videosJSON, err := json.Marshal(idStrings(videoIDs))
	if err != nil {
		return err
	}
	documentsJSON, err := json.Marshal(idStrings(documentIDs))
	if err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Model(&types.CourseUnit{}).
		Where("id = ?", unitID).
		Updates(map[string]interface{}{
			"video_ids":    datatypes.JSON(videosJSON),
			"document_ids": datatypes.JSON(documentsJSON),
			"updated_at":   time.Now(),
		}).Error
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
