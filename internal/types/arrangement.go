package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ArrangementOpen      = "open"
	ArrangementSubmitted = "submitted"
	ArrangementApproved  = "approved"
	ArrangementRejected  = "rejected"
)

const (
	ContentTypeVideo    = "video"
	ContentTypeDocument = "document"
)

// ArrangementItem is one entry of the proposed ordering. OriginalUnitID and
// OriginalOrder preserve where the content lived when the arrangement was
// opened, for audit and rollback.
type ArrangementItem struct {
	ContentType    string    `json:"content_type"`
	ContentID      uuid.UUID `json:"content_id"`
	Title          string    `json:"title"`
	UnitID         uuid.UUID `json:"unit_id"`
	Order          int       `json:"order"`
	OriginalUnitID uuid.UUID `json:"original_unit_id"`
	OriginalOrder  int       `json:"original_order"`
}

// Arrangement is a versioned proposal for how a course's videos and
// documents are grouped into units. Version is monotonic per course,
// enforced by a unique index on (course_id, version).
type Arrangement struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID        uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_course_version" json:"course_id"`
	Course          *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	CoordinatorID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"coordinator_id"`
	Coordinator     *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:CoordinatorID;references:ID" json:"coordinator,omitempty"`
	Version         int            `gorm:"column:version;not null;uniqueIndex:idx_course_version" json:"version"`
	Status          string         `gorm:"column:status;not null;default:'open'" json:"status"`
	Items           datatypes.JSON `gorm:"column:items;type:jsonb" json:"items"`
	SubmittedAt     *time.Time     `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time     `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID     `gorm:"type:uuid" json:"approved_by,omitempty"`
	RejectedAt      *time.Time     `gorm:"column:rejected_at" json:"rejected_at,omitempty"`
	RejectedBy      *uuid.UUID     `gorm:"type:uuid" json:"rejected_by,omitempty"`
	RejectionReason string         `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Arrangement) TableName() string { return "arrangement" }

func (a *Arrangement) ItemList() ([]ArrangementItem, error) {
	if len(a.Items) == 0 {
		return []ArrangementItem{}, nil
	}
	var items []ArrangementItem
	if err := json.Unmarshal(a.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (a *Arrangement) SetItemList(items []ArrangementItem) error {
	if items == nil {
		items = []ArrangementItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	a.Items = datatypes.JSON(raw)
	return nil
}

// ArrangementState is the call-site view of the workflow state machine.
// Storage holds the flat status column; this variant form exists so state
// handling switches are exhaustive.
type ArrangementState int

const (
	StateNoneYet ArrangementState = iota
	StateOpen
	StateSubmitted
	StateApproved
	StateRejected
)

func StateOf(a *Arrangement) ArrangementState {
	if a == nil {
		return StateNoneYet
	}
	switch a.Status {
	case ArrangementOpen:
		return StateOpen
	case ArrangementSubmitted:
		return StateSubmitted
	case ArrangementApproved:
		return StateApproved
	case ArrangementRejected:
		return StateRejected
	default:
		return StateNoneYet
	}
}
