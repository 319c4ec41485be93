package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/types"
)

type AuditRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.AuditRecord) error
	ListByTarget(ctx context.Context, tx *gorm.DB, targetType string, targetID uuid.UUID) ([]*types.AuditRecord, error)
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return &auditRepo{db: db, log: baseLog.With("repo", "AuditRepo")}
}

func (r *auditRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AuditRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *auditRepo) ListByTarget(ctx context.Context, tx *gorm.DB, targetType string, targetID uuid.UUID) ([]*types.AuditRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.AuditRecord
	if targetID == uuid.Nil {
		return rows, nil
	}
	if err := transaction.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
