package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/apierr"
	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
	"github.com/opencampus/lms-backend/internal/types"
)

const (
	ReasonFirstUnit               = "first_unit"
	ReasonAllPrerequisitesMet     = "all_prerequisites_met"
	ReasonPreviousUnitIncomplete  = "previous_unit_incomplete"
	ReasonPreviousUnitNeedsReview = "previous_unit_needs_review"
)

// AccessDecision is never a bare yes/no: denials carry the blocking unit
// and the exact missing requirements so the caller can render actionable
// feedback.
type AccessDecision struct {
	Allowed            bool                  `json:"allowed"`
	Reason             string                `json:"reason"`
	BlockingUnitID     *uuid.UUID            `json:"blocking_unit_id,omitempty"`
	BlockingUnitTitle  string                `json:"blocking_unit_title,omitempty"`
	VideosRemaining    int                   `json:"videos_remaining,omitempty"`
	DocumentsRemaining int                   `json:"documents_remaining,omitempty"`
	QuizPending        bool                  `json:"quiz_pending,omitempty"`
	NewContent         []types.NewContentRef `json:"new_content,omitempty"`
}

type ProgressionService interface {
	// Enroll registers a student in a course and seeds their progress row
	// at the course's active arrangement version.
	Enroll(ctx context.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error)
	CanAccess(ctx context.Context, studentID, courseID, targetUnitID uuid.UUID) (AccessDecision, error)
}

type progressionService struct {
	log          *logger.Logger
	db           *gorm.DB
	catalog      CatalogService
	quiz         QuizService
	integrity    IntegrityService
	progressRepo repos.StudentProgressRepo
	courseRepo   repos.CourseRepo
	enrollRepo   repos.EnrollmentRepo
}

func NewProgressionService(db *gorm.DB, log *logger.Logger, catalog CatalogService, quiz QuizService, integrity IntegrityService, progressRepo repos.StudentProgressRepo, courseRepo repos.CourseRepo, enrollRepo repos.EnrollmentRepo) ProgressionService {
	return &progressionService{
		log:          log.With("service", "ProgressionService"),
		db:           db,
		catalog:      catalog,
		quiz:         quiz,
		integrity:    integrity,
		progressRepo: progressRepo,
		courseRepo:   courseRepo,
		enrollRepo:   enrollRepo,
	}
}

func (s *progressionService) Enroll(ctx context.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course %s: %w", courseID, apierr.ErrNotFound)
		}
		return nil, err
	}

	existing, err := s.enrollRepo.GetByStudentAndCourse(ctx, nil, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("student %s in course %s: %w", studentID, courseID, apierr.ErrConflict)
	}

	version := course.ActiveArrangementVersion
	if version == 0 {
		version = 1
	}
	enrollment := &types.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    types.EnrollmentActive,
	}
	progress := &types.StudentProgress{
		StudentID:          studentID,
		CourseID:           courseID,
		ArrangementVersion: version,
	}
	if err := progress.SetUnitList(nil); err != nil {
		return nil, err
	}
	if err := progress.SetValidationList(nil); err != nil {
		return nil, err
	}

	commit := func(tx *gorm.DB) error {
		if err := s.enrollRepo.Create(ctx, tx, enrollment); err != nil {
			return err
		}
		row, err := s.progressRepo.GetByStudentAndCourse(ctx, tx, studentID, courseID)
		if err != nil {
			return err
		}
		if row != nil {
			return nil
		}
		return s.progressRepo.Create(ctx, tx, progress)
	}
	if s.db != nil {
		err = s.db.Transaction(commit)
	} else {
		err = commit(nil)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Student enrolled", "student_id", studentID, "course_id", courseID, "arrangement_version", version)
	return enrollment, nil
}

// CanAccess walks every unit ordered strictly below the target, ascending.
// Each must pass the three completion checks (videos, documents, quiz);
// completeness is evaluated before revalidation state so a student who
// never finished a unit gets the plain "finish this" denial rather than a
// new-content one.
func (s *progressionService) CanAccess(ctx context.Context, studentID, courseID, targetUnitID uuid.UUID) (AccessDecision, error) {
	units, err := s.catalog.ListUnits(ctx, courseID)
	if err != nil {
		return AccessDecision{}, err
	}

	var target *types.CourseUnit
	for _, unit := range units {
		if unit.ID == targetUnitID {
			target = unit
			break
		}
	}
	if target == nil {
		return AccessDecision{}, fmt.Errorf("unit %s in course %s: %w", targetUnitID, courseID, apierr.ErrNotFound)
	}

	var previous []*types.CourseUnit
	for _, unit := range units {
		if unit.Order < target.Order {
			previous = append(previous, unit)
		}
	}
	if len(previous) == 0 {
		return AccessDecision{Allowed: true, Reason: ReasonFirstUnit}, nil
	}

	progress, err := s.progressRepo.GetByStudentAndCourse(ctx, nil, studentID, courseID)
	if err != nil {
		return AccessDecision{}, err
	}

	for _, unit := range previous {
		videos, err := s.catalog.ListVideosInUnit(ctx, unit.ID)
		if err != nil {
			return AccessDecision{}, err
		}
		documents, err := s.catalog.ListDocumentsInUnit(ctx, unit.ID)
		if err != nil {
			return AccessDecision{}, err
		}
		hasQuiz, err := s.quiz.HasQuizPool(ctx, unit.ID)
		if err != nil {
			return AccessDecision{}, err
		}

		var unitProgress *types.UnitProgress
		var validation *types.UnitValidation
		if progress != nil {
			unitProgress, _, err = progress.UnitProgressFor(unit.ID)
			if err != nil {
				return AccessDecision{}, err
			}
			validation, _, err = progress.ValidationFor(unit.ID)
			if err != nil {
				return AccessDecision{}, err
			}
		}

		// Completeness is judged against the content the unit had when the
		// student completed it: ids appended after completion gate through
		// the revalidation path below, not the incomplete one.
		pendingNew := map[uuid.UUID]struct{}{}
		if validation != nil {
			for _, ref := range validation.NewContentAdded {
				pendingNew[ref.ContentID] = struct{}{}
			}
		}

		missing := evaluatePrerequisite(videos, documents, hasQuiz, unitProgress, pendingNew)
		if !missing.satisfied() {
			unitID := unit.ID
			return AccessDecision{
				Allowed:            false,
				Reason:             ReasonPreviousUnitIncomplete,
				BlockingUnitID:     &unitID,
				BlockingUnitTitle:  unit.Title,
				VideosRemaining:    missing.videosRemaining,
				DocumentsRemaining: missing.documentsRemaining,
				QuizPending:        missing.quizPending,
			}, nil
		}

		// Completion at original content is necessary but not sufficient: a
		// unit can be complete and still pending revalidation.
		if unitProgress != nil && unitProgress.Status == types.UnitNeedsReview {
			report, err := s.integrity.Diff(ctx, progress, unit.ID)
			if err != nil {
				return AccessDecision{}, err
			}
			if report.RequiresRevalidation {
				var pending []types.NewContentRef
				if validation != nil {
					pending = validation.NewContentAdded
				}
				unitID := unit.ID
				return AccessDecision{
					Allowed:           false,
					Reason:            ReasonPreviousUnitNeedsReview,
					BlockingUnitID:    &unitID,
					BlockingUnitTitle: unit.Title,
					NewContent:        pending,
				}, nil
			}
		}
	}

	return AccessDecision{Allowed: true, Reason: ReasonAllPrerequisitesMet}, nil
}

type prerequisiteGap struct {
	videosRemaining    int
	documentsRemaining int
	quizPending        bool
}

func (g prerequisiteGap) satisfied() bool {
	return g.videosRemaining == 0 && g.documentsRemaining == 0 && !g.quizPending
}

// evaluatePrerequisite applies the three completion checks for one unit.
// Deprecated content and ids no longer in the catalog never block: removed
// content cannot retroactively gate a student. Ids in pendingNew were added
// after the student completed the unit and are excluded here; they gate via
// the revalidation state instead.
func evaluatePrerequisite(videos []*types.Video, documents []*types.Document, hasQuiz bool, unitProgress *types.UnitProgress, pendingNew map[uuid.UUID]struct{}) prerequisiteGap {
	watched := map[uuid.UUID]struct{}{}
	read := map[uuid.UUID]struct{}{}
	quizPassed := false
	if unitProgress != nil {
		for _, record := range unitProgress.VideosWatched {
			if record.Completed {
				watched[record.VideoID] = struct{}{}
			}
		}
		for _, id := range unitProgress.ReadingMaterialsCompleted {
			read[id] = struct{}{}
		}
		quizPassed = unitProgress.UnitQuizPassed
	}

	gap := prerequisiteGap{}
	for _, v := range videos {
		if v.IsDeprecated {
			continue
		}
		if _, pending := pendingNew[v.ID]; pending {
			continue
		}
		if _, ok := watched[v.ID]; !ok {
			gap.videosRemaining++
		}
	}
	for _, d := range documents {
		if d.IsDeprecated {
			continue
		}
		if _, pending := pendingNew[d.ID]; pending {
			continue
		}
		if _, ok := read[d.ID]; !ok {
			gap.documentsRemaining++
		}
	}
	if hasQuiz && !quizPassed {
		gap.quizPending = true
	}
	return gap
}
