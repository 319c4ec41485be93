package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseUnit holds the ordered membership arrays the catalog contract
// exposes. VideoIDs/DocumentIDs are JSON arrays of uuid strings in display
// order; the Content Application Engine is the only writer.
type CourseUnit struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Course      *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Order       int            `gorm:"column:unit_order;not null;default:0" json:"order"`
	VideoIDs    datatypes.JSON `gorm:"column:video_ids;type:jsonb" json:"video_ids"`
	DocumentIDs datatypes.JSON `gorm:"column:document_ids;type:jsonb" json:"document_ids"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseUnit) TableName() string { return "course_unit" }
