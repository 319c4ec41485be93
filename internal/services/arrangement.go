package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/apierr"
	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
	"github.com/opencampus/lms-backend/internal/types"
)

const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)

// ArrangementService owns the arrangement state machine:
//
//	(none) --create--> open --submit--> submitted --approve--> approved
//	                                        |
//	                                        +--reject--> rejected
//
// approved and rejected are terminal; retrying after rejection mints a new
// version through GetOrCreate, never a reopen.
type ArrangementService interface {
	GetOrCreate(ctx context.Context, courseID, actorID uuid.UUID) (*types.Arrangement, error)
	SyncNewContent(ctx context.Context, arrangement *types.Arrangement) (*types.Arrangement, error)
	Update(ctx context.Context, arrangementID uuid.UUID, items []types.ArrangementItem, actorID uuid.UUID) (*types.Arrangement, error)
	Submit(ctx context.Context, arrangementID, actorID uuid.UUID) (*types.Arrangement, error)
	Review(ctx context.Context, arrangementID uuid.UUID, action, reason string, actorID uuid.UUID) (*types.Arrangement, error)
	History(ctx context.Context, courseID, actorID uuid.UUID) ([]*types.Arrangement, error)
	PendingForReviewer(ctx context.Context, actorID uuid.UUID) ([]*types.Arrangement, error)
	FlagNewContent(ctx context.Context, courseID, unitID, actorID uuid.UUID) (InvalidationResult, error)
}

type arrangementService struct {
	log        *logger.Logger
	db         *gorm.DB
	arrRepo    repos.ArrangementRepo
	courseRepo repos.CourseRepo
	userRepo   repos.UserRepo
	catalog    CatalogService
	authority  AuthorityResolver
	audit      AuditService
	apply      ApplyService
	integrity  IntegrityService
}

func NewArrangementService(
	db *gorm.DB,
	log *logger.Logger,
	arrRepo repos.ArrangementRepo,
	courseRepo repos.CourseRepo,
	userRepo repos.UserRepo,
	catalog CatalogService,
	authority AuthorityResolver,
	audit AuditService,
	apply ApplyService,
	integrity IntegrityService,
) ArrangementService {
	return &arrangementService{
		log:        log.With("service", "ArrangementService"),
		db:         db,
		arrRepo:    arrRepo,
		courseRepo: courseRepo,
		userRepo:   userRepo,
		catalog:    catalog,
		authority:  authority,
		audit:      audit,
		apply:      apply,
		integrity:  integrity,
	}
}

func (s *arrangementService) runInTx(fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.Transaction(fn)
}

func (s *arrangementService) getCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course %s: %w", courseID, apierr.ErrNotFound)
		}
		return nil, err
	}
	return course, nil
}

func (s *arrangementService) getArrangement(ctx context.Context, arrangementID uuid.UUID) (*types.Arrangement, error) {
	arrangement, err := s.arrRepo.GetByID(ctx, nil, arrangementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("arrangement %s: %w", arrangementID, apierr.ErrNotFound)
		}
		return nil, err
	}
	return arrangement, nil
}

// GetOrCreate returns the coordinator's live arrangement, creating a fresh
// version only when none exists, the course has new content, or a relaunch
// is pending. An approved arrangement with neither flag set locks the
// course against new proposals.
func (s *arrangementService) GetOrCreate(ctx context.Context, courseID, actorID uuid.UUID) (*types.Arrangement, error) {
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.authority.CanEditArrangement(ctx, actorID, course)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("arrangement for course %s: %w", courseID, apierr.ErrForbidden)
	}

	existing, err := s.arrRepo.GetCurrentByCourseAndCoordinator(ctx, nil, courseID, course.CoordinatorID)
	if err != nil {
		return nil, err
	}
	switch types.StateOf(existing) {
	case types.StateOpen:
		// Uploads can land at any time; sync before every read.
		return s.SyncNewContent(ctx, existing)
	case types.StateSubmitted:
		return existing, nil
	}

	approved, err := s.arrRepo.GetLatestApprovedByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if approved != nil && !course.HasNewContent && course.CurrentArrangementStatus != types.CourseArrangementPendingRelaunch {
		return nil, fmt.Errorf("course %s has an approved arrangement and no new content: %w", courseID, apierr.ErrArrangementLocked)
	}

	items, err := s.buildInitialItems(ctx, courseID)
	if err != nil {
		return nil, err
	}

	arrangement := &types.Arrangement{
		ID:            uuid.New(),
		CourseID:      courseID,
		CoordinatorID: course.CoordinatorID,
		Status:        types.ArrangementOpen,
	}
	if err := arrangement.SetItemList(items); err != nil {
		return nil, err
	}

	// Version assignment and the course flag reset commit together; the
	// unique index on (course_id, version) turns creation races into a
	// storage error instead of a duplicate version.
	err = s.runInTx(func(tx *gorm.DB) error {
		maxVersion, err := s.arrRepo.MaxVersionByCourseID(ctx, tx, courseID)
		if err != nil {
			return err
		}
		arrangement.Version = maxVersion + 1
		if err := s.arrRepo.Create(ctx, tx, arrangement); err != nil {
			return err
		}
		return s.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
			"has_new_content":            false,
			"current_arrangement_status": types.CourseArrangementDraft,
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "arrangement.create", actorID, "arrangement", arrangement.ID, map[string]interface{}{
		"course_id": courseID,
		"version":   arrangement.Version,
	})
	return arrangement, nil
}

// buildInitialItems walks units in catalog order, appending one item per
// video then per document, with order as a running per-unit counter.
func (s *arrangementService) buildInitialItems(ctx context.Context, courseID uuid.UUID) ([]types.ArrangementItem, error) {
	units, err := s.catalog.ListUnits(ctx, courseID)
	if err != nil {
		return nil, err
	}
	items := []types.ArrangementItem{}
	for _, unit := range units {
		videos, err := s.catalog.ListVideosInUnit(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		documents, err := s.catalog.ListDocumentsInUnit(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		counter := 0
		for _, v := range videos {
			counter++
			items = append(items, types.ArrangementItem{
				ContentType:    types.ContentTypeVideo,
				ContentID:      v.ID,
				Title:          v.Title,
				UnitID:         unit.ID,
				Order:          counter,
				OriginalUnitID: unit.ID,
				OriginalOrder:  counter,
			})
		}
		for _, d := range documents {
			counter++
			items = append(items, types.ArrangementItem{
				ContentType:    types.ContentTypeDocument,
				ContentID:      d.ID,
				Title:          d.Title,
				UnitID:         unit.ID,
				Order:          counter,
				OriginalUnitID: unit.ID,
				OriginalOrder:  counter,
			})
		}
	}
	return items, nil
}

// SyncNewContent appends catalog items the arrangement does not know about
// yet, each at the end of its unit. Idempotent: with no catalog change the
// item list is untouched.
func (s *arrangementService) SyncNewContent(ctx context.Context, arrangement *types.Arrangement) (*types.Arrangement, error) {
	if types.StateOf(arrangement) != types.StateOpen {
		return arrangement, nil
	}
	items, err := arrangement.ItemList()
	if err != nil {
		return nil, err
	}

	units, err := s.catalog.ListUnits(ctx, arrangement.CourseID)
	if err != nil {
		return nil, err
	}
	added := 0
	for _, unit := range units {
		videos, err := s.catalog.ListVideosInUnit(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		documents, err := s.catalog.ListDocumentsInUnit(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		items, added = mergeNewContent(items, unit.ID, videos, documents, added)
	}
	if added == 0 {
		return arrangement, nil
	}

	if err := arrangement.SetItemList(items); err != nil {
		return nil, err
	}
	if err := s.arrRepo.UpdateFields(ctx, nil, arrangement.ID, map[string]interface{}{
		"items": arrangement.Items,
	}); err != nil {
		return nil, err
	}
	s.log.Info("Synced new content into open arrangement",
		"arrangement_id", arrangement.ID, "items_added", added)
	return arrangement, nil
}

func mergeNewContent(items []types.ArrangementItem, unitID uuid.UUID, videos []*types.Video, documents []*types.Document, added int) ([]types.ArrangementItem, int) {
	known := map[uuid.UUID]struct{}{}
	maxOrder := 0
	for _, item := range items {
		known[item.ContentID] = struct{}{}
		if item.UnitID == unitID && item.Order > maxOrder {
			maxOrder = item.Order
		}
	}
	for _, v := range videos {
		if _, ok := known[v.ID]; ok {
			continue
		}
		maxOrder++
		added++
		items = append(items, types.ArrangementItem{
			ContentType:    types.ContentTypeVideo,
			ContentID:      v.ID,
			Title:          v.Title,
			UnitID:         unitID,
			Order:          maxOrder,
			OriginalUnitID: unitID,
			OriginalOrder:  maxOrder,
		})
	}
	for _, d := range documents {
		if _, ok := known[d.ID]; ok {
			continue
		}
		maxOrder++
		added++
		items = append(items, types.ArrangementItem{
			ContentType:    types.ContentTypeDocument,
			ContentID:      d.ID,
			Title:          d.Title,
			UnitID:         unitID,
			Order:          maxOrder,
			OriginalUnitID: unitID,
			OriginalOrder:  maxOrder,
		})
	}
	return items, added
}

func (s *arrangementService) Update(ctx context.Context, arrangementID uuid.UUID, items []types.ArrangementItem, actorID uuid.UUID) (*types.Arrangement, error) {
	arrangement, err := s.getArrangement(ctx, arrangementID)
	if err != nil {
		return nil, err
	}
	course, err := s.getCourse(ctx, arrangement.CourseID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.authority.CanEditArrangement(ctx, actorID, course)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("update arrangement %s: %w", arrangementID, apierr.ErrForbidden)
	}
	if types.StateOf(arrangement) != types.StateOpen {
		return nil, fmt.Errorf("arrangement %s is %s: %w", arrangementID, arrangement.Status, apierr.ErrNotEditable)
	}

	if err := arrangement.SetItemList(items); err != nil {
		return nil, err
	}
	if err := s.arrRepo.UpdateFields(ctx, nil, arrangementID, map[string]interface{}{
		"items": arrangement.Items,
	}); err != nil {
		return nil, err
	}
	return arrangement, nil
}

func (s *arrangementService) Submit(ctx context.Context, arrangementID, actorID uuid.UUID) (*types.Arrangement, error) {
	arrangement, err := s.getArrangement(ctx, arrangementID)
	if err != nil {
		return nil, err
	}
	course, err := s.getCourse(ctx, arrangement.CourseID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.authority.CanEditArrangement(ctx, actorID, course)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("submit arrangement %s: %w", arrangementID, apierr.ErrForbidden)
	}
	if types.StateOf(arrangement) != types.StateOpen {
		return nil, fmt.Errorf("arrangement %s is %s: %w", arrangementID, arrangement.Status, apierr.ErrNotEditable)
	}

	now := time.Now().UTC()
	rows, err := s.arrRepo.TransitionStatus(ctx, nil, arrangementID, types.ArrangementOpen, map[string]interface{}{
		"status":       types.ArrangementSubmitted,
		"submitted_at": now,
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("arrangement %s left open state concurrently: %w", arrangementID, apierr.ErrNotEditable)
	}
	arrangement.Status = types.ArrangementSubmitted
	arrangement.SubmittedAt = &now

	s.audit.Record(ctx, "arrangement.submit", actorID, "arrangement", arrangementID, map[string]interface{}{
		"course_id": arrangement.CourseID,
		"version":   arrangement.Version,
	})
	return arrangement, nil
}

// Review resolves a submitted arrangement. Approval claims the row with a
// status-guarded update and applies the content rewrite inside the same
// transaction: a lost race surfaces AlreadyReviewed before any catalog
// write, and an application failure rolls everything back leaving the
// arrangement submitted.
func (s *arrangementService) Review(ctx context.Context, arrangementID uuid.UUID, action, reason string, actorID uuid.UUID) (*types.Arrangement, error) {
	arrangement, err := s.getArrangement(ctx, arrangementID)
	if err != nil {
		return nil, err
	}
	course, err := s.getCourse(ctx, arrangement.CourseID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.authority.CanReviewCourse(ctx, actorID, course)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("review arrangement %s: %w", arrangementID, apierr.ErrForbidden)
	}

	switch types.StateOf(arrangement) {
	case types.StateSubmitted:
	case types.StateApproved, types.StateRejected:
		return nil, fmt.Errorf("arrangement %s already %s: %w", arrangementID, arrangement.Status, apierr.ErrAlreadyReviewed)
	default:
		return nil, fmt.Errorf("arrangement %s is %s: %w", arrangementID, arrangement.Status, apierr.ErrNotEditable)
	}

	now := time.Now().UTC()
	switch action {
	case ReviewActionApprove:
		err = s.runInTx(func(tx *gorm.DB) error {
			rows, err := s.arrRepo.TransitionStatus(ctx, tx, arrangementID, types.ArrangementSubmitted, map[string]interface{}{
				"status":      types.ArrangementApproved,
				"approved_at": now,
				"approved_by": actorID,
			})
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("arrangement %s: %w", arrangementID, apierr.ErrAlreadyReviewed)
			}
			if err := s.apply.Apply(ctx, tx, arrangement); err != nil {
				return err
			}
			return s.courseRepo.UpdateFields(ctx, tx, arrangement.CourseID, map[string]interface{}{
				"current_arrangement_status": types.CourseArrangementApproved,
			})
		})
		if err != nil {
			return nil, err
		}
		arrangement.Status = types.ArrangementApproved
		arrangement.ApprovedAt = &now
		arrangement.ApprovedBy = &actorID

		// Slow media calls must never hold the transaction open.
		s.apply.BackfillDurations(ctx, arrangement)

		s.audit.Record(ctx, "arrangement.approve", actorID, "arrangement", arrangementID, map[string]interface{}{
			"course_id": arrangement.CourseID,
			"version":   arrangement.Version,
		})
		return arrangement, nil

	case ReviewActionReject:
		err = s.runInTx(func(tx *gorm.DB) error {
			rows, err := s.arrRepo.TransitionStatus(ctx, tx, arrangementID, types.ArrangementSubmitted, map[string]interface{}{
				"status":           types.ArrangementRejected,
				"rejected_at":      now,
				"rejected_by":      actorID,
				"rejection_reason": reason,
			})
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("arrangement %s: %w", arrangementID, apierr.ErrAlreadyReviewed)
			}
			return s.courseRepo.UpdateFields(ctx, tx, arrangement.CourseID, map[string]interface{}{
				"current_arrangement_status": types.CourseArrangementRejected,
			})
		})
		if err != nil {
			return nil, err
		}
		arrangement.Status = types.ArrangementRejected
		arrangement.RejectedAt = &now
		arrangement.RejectedBy = &actorID
		arrangement.RejectionReason = reason

		s.audit.Record(ctx, "arrangement.reject", actorID, "arrangement", arrangementID, map[string]interface{}{
			"course_id": arrangement.CourseID,
			"version":   arrangement.Version,
			"reason":    reason,
		})
		return arrangement, nil

	default:
		return nil, fmt.Errorf("unknown review action %q: %w", action, apierr.ErrNotEditable)
	}
}

func (s *arrangementService) History(ctx context.Context, courseID, actorID uuid.UUID) ([]*types.Arrangement, error) {
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	canEdit, err := s.authority.CanEditArrangement(ctx, actorID, course)
	if err != nil {
		return nil, err
	}
	canReview, err := s.authority.CanReviewCourse(ctx, actorID, course)
	if err != nil {
		return nil, err
	}
	if !canEdit && !canReview {
		return nil, fmt.Errorf("history for course %s: %w", courseID, apierr.ErrForbidden)
	}
	return s.arrRepo.ListByCourseID(ctx, nil, courseID)
}

func (s *arrangementService) PendingForReviewer(ctx context.Context, actorID uuid.UUID) ([]*types.Arrangement, error) {
	actor, err := s.userRepo.GetByID(ctx, nil, actorID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case types.RoleAdmin:
		return s.arrRepo.ListByStatus(ctx, nil, types.ArrangementSubmitted)
	case types.RoleDepartmentHead:
		if actor.DepartmentID == nil {
			return []*types.Arrangement{}, nil
		}
		courseIDs, err := s.courseRepo.ListIDsByDepartmentID(ctx, nil, *actor.DepartmentID)
		if err != nil {
			return nil, err
		}
		return s.arrRepo.ListByStatusForCourses(ctx, nil, types.ArrangementSubmitted, courseIDs)
	default:
		return nil, fmt.Errorf("pending arrangements: %w", apierr.ErrForbidden)
	}
}

// FlagNewContent marks a course as changed after an upload and kicks off
// integrity invalidation for the affected unit. A launched course also
// moves to pending_relaunch so the coordinator can mint a new version.
func (s *arrangementService) FlagNewContent(ctx context.Context, courseID, unitID, actorID uuid.UUID) (InvalidationResult, error) {
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return InvalidationResult{}, err
	}
	allowed, err := s.authority.CanEditArrangement(ctx, actorID, course)
	if err != nil {
		return InvalidationResult{}, err
	}
	if !allowed {
		return InvalidationResult{}, fmt.Errorf("flag content for course %s: %w", courseID, apierr.ErrForbidden)
	}

	updates := map[string]interface{}{"has_new_content": true}
	if course.IsLaunched {
		updates["current_arrangement_status"] = types.CourseArrangementPendingRelaunch
	}
	if err := s.courseRepo.UpdateFields(ctx, nil, courseID, updates); err != nil {
		return InvalidationResult{}, err
	}

	result, err := s.integrity.InvalidateUnit(ctx, courseID, unitID)
	if err != nil {
		return result, err
	}

	s.audit.Record(ctx, "course.content_updated", actorID, "course", courseID, map[string]interface{}{
		"unit_id":              unitID,
		"students_affected":    result.StudentsAffected,
		"progressions_blocked": result.ProgressionsBlocked,
	})
	return result, nil
}
