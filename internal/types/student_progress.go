package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	UnitLocked      = "locked"
	UnitInProgress  = "in_progress"
	UnitCompleted   = "completed"
	UnitNeedsReview = "needs_review"
)

type WatchRecord struct {
	VideoID   uuid.UUID  `json:"video_id"`
	Completed bool       `json:"completed"`
	WatchedAt *time.Time `json:"watched_at,omitempty"`
}

// UnitProgress carries everything a student has done inside one unit. A
// unit is "completed" iff all requirements known at completion time were
// satisfied; needs_review is a distinct recoverable state and must never be
// collapsed into locked by consumers.
type UnitProgress struct {
	UnitID                    uuid.UUID     `json:"unit_id"`
	Status                    string        `json:"status"`
	VideosWatched             []WatchRecord `json:"videos_watched"`
	ReadingMaterialsCompleted []uuid.UUID   `json:"reading_materials_completed"`
	QuizAttempts              int           `json:"quiz_attempts"`
	UnitQuizPassed            bool          `json:"unit_quiz_passed"`
}

type NewContentRef struct {
	ContentID   uuid.UUID `json:"content_id"`
	ContentType string    `json:"content_type"`
	AddedAt     time.Time `json:"added_at"`
}

// UnitValidation records the content identity a unit had when the student
// completed it. NewContentAdded is append-only across repeated
// invalidations.
type UnitValidation struct {
	UnitID                        uuid.UUID       `json:"unit_id"`
	CompletedAtArrangementVersion int             `json:"completed_at_arrangement_version"`
	ContentHash                   string          `json:"content_hash"`
	Signature                     string          `json:"signature"`
	IsValidForCurrentArrangement  bool            `json:"is_valid_for_current_arrangement"`
	NewContentAdded               []NewContentRef `json:"new_content_added"`
	RequiresRevalidation          bool            `json:"requires_revalidation"`
}

type StudentProgress struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_progress_student_course,unique" json:"student_id"`
	Student            *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	CourseID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_progress_student_course,unique" json:"course_id"`
	Course             *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	ArrangementVersion int            `gorm:"column:arrangement_version;not null;default:1" json:"arrangement_version"`
	Units              datatypes.JSON `gorm:"column:units;type:jsonb" json:"units"`
	Validations        datatypes.JSON `gorm:"column:validations;type:jsonb" json:"validations"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StudentProgress) TableName() string { return "student_progress" }

func (p *StudentProgress) UnitList() ([]UnitProgress, error) {
	if len(p.Units) == 0 {
		return []UnitProgress{}, nil
	}
	var units []UnitProgress
	if err := json.Unmarshal(p.Units, &units); err != nil {
		return nil, err
	}
	return units, nil
}

func (p *StudentProgress) SetUnitList(units []UnitProgress) error {
	if units == nil {
		units = []UnitProgress{}
	}
	raw, err := json.Marshal(units)
	if err != nil {
		return err
	}
	p.Units = datatypes.JSON(raw)
	return nil
}

func (p *StudentProgress) ValidationList() ([]UnitValidation, error) {
	if len(p.Validations) == 0 {
		return []UnitValidation{}, nil
	}
	var validations []UnitValidation
	if err := json.Unmarshal(p.Validations, &validations); err != nil {
		return nil, err
	}
	return validations, nil
}

func (p *StudentProgress) SetValidationList(validations []UnitValidation) error {
	if validations == nil {
		validations = []UnitValidation{}
	}
	raw, err := json.Marshal(validations)
	if err != nil {
		return err
	}
	p.Validations = datatypes.JSON(raw)
	return nil
}

// UnitProgressFor returns the unit record and whether it exists.
func (p *StudentProgress) UnitProgressFor(unitID uuid.UUID) (*UnitProgress, []UnitProgress, error) {
	units, err := p.UnitList()
	if err != nil {
		return nil, nil, err
	}
	for i := range units {
		if units[i].UnitID == unitID {
			return &units[i], units, nil
		}
	}
	return nil, units, nil
}

// ValidationFor returns the validation record and whether it exists.
func (p *StudentProgress) ValidationFor(unitID uuid.UUID) (*UnitValidation, []UnitValidation, error) {
	validations, err := p.ValidationList()
	if err != nil {
		return nil, nil, err
	}
	for i := range validations {
		if validations[i].UnitID == unitID {
			return &validations[i], validations, nil
		}
	}
	return nil, validations, nil
}
