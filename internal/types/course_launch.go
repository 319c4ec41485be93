package types

import (
	"time"

	"github.com/google/uuid"
)

// CourseLaunch rows are append-only; together they form the launch history
// of a course.
type CourseLaunch struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID   uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course     *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Version    int       `gorm:"column:version;not null" json:"version"`
	LaunchedAt time.Time `gorm:"column:launched_at;not null;default:now()" json:"launched_at"`
	LaunchedBy uuid.UUID `gorm:"type:uuid;not null" json:"launched_by"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CourseLaunch) TableName() string { return "course_launch" }
