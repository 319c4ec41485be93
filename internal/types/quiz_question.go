package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// A unit has a quiz pool when at least one QuizQuestion row exists for it.
// Quiz content is revision-tolerant: it is excluded from unit fingerprints
// and edits to it never invalidate completion.
type QuizQuestion struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	UnitID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"unit_id"`
	Unit      *CourseUnit    `gorm:"constraint:OnDelete:CASCADE;foreignKey:UnitID;references:ID" json:"unit,omitempty"`
	Prompt    string         `gorm:"column:prompt;not null" json:"prompt"`
	Choices   datatypes.JSON `gorm:"column:choices;type:jsonb" json:"choices"`
	Answer    string         `gorm:"column:answer" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuizQuestion) TableName() string { return "quiz_question" }
