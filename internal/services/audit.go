package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
	"github.com/opencampus/lms-backend/internal/types"
)

// AuditService records workflow transitions. Recording is fire-and-forget:
// failures are logged and swallowed so an audit outage never blocks the
// operation being audited.
type AuditService interface {
	Record(ctx context.Context, action string, actorID uuid.UUID, targetType string, targetID uuid.UUID, details map[string]interface{})
}

type auditService struct {
	log       *logger.Logger
	auditRepo repos.AuditRepo
}

func NewAuditService(log *logger.Logger, auditRepo repos.AuditRepo) AuditService {
	return &auditService{log: log.With("service", "AuditService"), auditRepo: auditRepo}
}

func (s *auditService) Record(ctx context.Context, action string, actorID uuid.UUID, targetType string, targetID uuid.UUID, details map[string]interface{}) {
	row := &types.AuditRecord{
		Action:     action,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			s.log.Warn("Failed to serialize audit details", "action", action, "error", err)
		} else {
			row.Details = datatypes.JSON(raw)
		}
	}
	if err := s.auditRepo.Create(ctx, nil, row); err != nil {
		s.log.Warn("Failed to write audit record", "action", action, "target_id", targetID, "error", err)
	}
}
