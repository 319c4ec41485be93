package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Video struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UnitID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"unit_id"`
	Unit            *CourseUnit    `gorm:"constraint:OnDelete:CASCADE;foreignKey:UnitID;references:ID" json:"unit,omitempty"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	Sequence        int            `gorm:"column:sequence;not null;default:0" json:"sequence"`
	DurationSeconds int            `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	ExternalID      string         `gorm:"column:external_id" json:"external_id"`
	IsDeprecated    bool           `gorm:"column:is_deprecated;not null;default:false" json:"is_deprecated"`
	IsPublic        bool           `gorm:"column:is_public;not null;default:false" json:"is_public"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Video) TableName() string { return "video" }
