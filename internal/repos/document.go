package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Document) ([]*types.Document, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Document, error)
	ListByUnitID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) ([]*types.Document, error)
	SetUnitAndSequence(ctx context.Context, tx *gorm.DB, id, unitID uuid.UUID, sequence int) error
	MarkPublicByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Document) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Document{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Document
	if len(ids) == 0 {
		return rows, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentRepo) ListByUnitID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Document
	if unitID == uuid.Nil {
		return rows, nil
	}
	if err := transaction.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentRepo) SetUnitAndSequence(ctx context.Context, tx *gorm.DB, id, unitID uuid.UUID, sequence int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"unit_id":    unitID,
			"sequence":   sequence,
			"updated_at": time.Now(),
		}).Error
}

func (r *documentRepo) MarkPublicByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"is_public":  true,
			"updated_at": time.Now(),
		}).Error
}
