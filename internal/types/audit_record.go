package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditRecord persistence is fire-and-forget: writers log failures locally
// and never propagate them to the caller.
type AuditRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Action     string         `gorm:"column:action;not null;index" json:"action"`
	ActorID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"actor_id"`
	TargetType string         `gorm:"column:target_type;not null" json:"target_type"`
	TargetID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"target_id"`
	Details    datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (AuditRecord) TableName() string { return "audit_record" }
