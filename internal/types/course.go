package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course arrangement statuses mirrored onto the course row. These fields
// change only as effects of named engine operations (GetOrCreate, Review,
// Launch, InvalidateUnit), never directly from handlers.
const (
	CourseArrangementDraft           = "draft"
	CourseArrangementPendingRelaunch = "pending_relaunch"
	CourseArrangementApproved        = "approved"
	CourseArrangementRejected        = "rejected"
)

type Course struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title                    string         `gorm:"column:title;not null" json:"title"`
	Description              string         `gorm:"column:description" json:"description"`
	DepartmentID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"department_id"`
	Department               *Department    `gorm:"constraint:OnDelete:CASCADE;foreignKey:DepartmentID;references:ID" json:"department,omitempty"`
	CoordinatorID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"coordinator_id"`
	Coordinator              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:CoordinatorID;references:ID" json:"coordinator,omitempty"`
	HasNewContent            bool           `gorm:"column:has_new_content;not null;default:false" json:"has_new_content"`
	CurrentArrangementStatus string         `gorm:"column:current_arrangement_status;not null;default:'draft'" json:"current_arrangement_status"`
	IsLaunched               bool           `gorm:"column:is_launched;not null;default:false" json:"is_launched"`
	ActiveArrangementVersion int            `gorm:"column:active_arrangement_version;not null;default:0" json:"active_arrangement_version"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
