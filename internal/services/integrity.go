package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opencampus/lms-backend/internal/apierr"
	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
	"github.com/opencampus/lms-backend/internal/types"
)

// ChangeReport describes how a unit's live content compares to what a
// student completed.
type ChangeReport struct {
	UnitID               uuid.UUID       `json:"unit_id"`
	Changed              bool            `json:"changed"`
	RequiresRevalidation bool            `json:"requires_revalidation"`
	NewVideoIDs          []uuid.UUID     `json:"new_video_ids"`
	NewDocumentIDs       []uuid.UUID     `json:"new_document_ids"`
	CurrentFingerprint   UnitFingerprint `json:"-"`
}

type InvalidationFailure struct {
	StudentID uuid.UUID `json:"student_id"`
	Error     string    `json:"error"`
}

type InvalidationResult struct {
	StudentsAffected    int                   `json:"students_affected"`
	ProgressionsBlocked int                   `json:"progressions_blocked"`
	Failures            []InvalidationFailure `json:"failures,omitempty"`
}

type NewContentCompletion struct {
	IsComplete      bool                  `json:"is_complete"`
	IncompleteItems []types.NewContentRef `json:"incomplete_items"`
}

type IntegrityService interface {
	Fingerprint(ctx context.Context, unitID uuid.UUID) (UnitFingerprint, error)
	Diff(ctx context.Context, progress *types.StudentProgress, unitID uuid.UUID) (ChangeReport, error)
	InvalidateUnit(ctx context.Context, courseID, unitID uuid.UUID) (InvalidationResult, error)
	CheckNewContentCompletion(progress *types.StudentProgress, unitID uuid.UUID) (NewContentCompletion, error)
	MarkRevalidationComplete(ctx context.Context, studentID, courseID, unitID uuid.UUID) (NewContentCompletion, error)
}

type integrityService struct {
	log          *logger.Logger
	catalog      CatalogService
	progressRepo repos.StudentProgressRepo
	batchSize    int
	workers      int
}

func NewIntegrityService(log *logger.Logger, catalog CatalogService, progressRepo repos.StudentProgressRepo) IntegrityService {
	return &integrityService{
		log:          log.With("service", "IntegrityService"),
		catalog:      catalog,
		progressRepo: progressRepo,
		batchSize:    200,
		workers:      8,
	}
}

func (s *integrityService) Fingerprint(ctx context.Context, unitID uuid.UUID) (UnitFingerprint, error) {
	videos, err := s.catalog.ListVideosInUnit(ctx, unitID)
	if err != nil {
		return UnitFingerprint{}, fmt.Errorf("list videos for unit %s: %w", unitID, err)
	}
	documents, err := s.catalog.ListDocumentsInUnit(ctx, unitID)
	if err != nil {
		return UnitFingerprint{}, fmt.Errorf("list documents for unit %s: %w", unitID, err)
	}
	return BuildFingerprint(videos, documents)
}

func (s *integrityService) Diff(ctx context.Context, progress *types.StudentProgress, unitID uuid.UUID) (ChangeReport, error) {
	fp, err := s.Fingerprint(ctx, unitID)
	if err != nil {
		return ChangeReport{}, err
	}
	return diffProgress(progress, unitID, fp)
}

// diffProgress compares a student's validation record for the unit against
// the live fingerprint. Non-completed units report no action; the current
// fingerprint is still returned for later use. Removed or reordered content
// changes the hash but only additions require revalidation: removal cannot
// retroactively uncomplete a unit.
func diffProgress(progress *types.StudentProgress, unitID uuid.UUID, fp UnitFingerprint) (ChangeReport, error) {
	report := ChangeReport{UnitID: unitID, CurrentFingerprint: fp}
	if progress == nil {
		return report, nil
	}

	unit, _, err := progress.UnitProgressFor(unitID)
	if err != nil {
		return report, err
	}
	if unit == nil || (unit.Status != types.UnitCompleted && unit.Status != types.UnitNeedsReview) {
		return report, nil
	}

	validation, _, err := progress.ValidationFor(unitID)
	if err != nil {
		return report, err
	}
	if validation == nil || validation.ContentHash == "" {
		return report, nil
	}
	if validation.ContentHash == fp.Hash {
		return report, nil
	}

	report.Changed = true
	knownVideos, knownDocuments, err := ParseSignatureIDs(validation.Signature)
	if err != nil {
		return report, err
	}
	for _, id := range fp.VideoIDs {
		if _, ok := knownVideos[id]; !ok {
			report.NewVideoIDs = append(report.NewVideoIDs, id)
		}
	}
	for _, id := range fp.DocumentIDs {
		if _, ok := knownDocuments[id]; !ok {
			report.NewDocumentIDs = append(report.NewDocumentIDs, id)
		}
	}
	report.RequiresRevalidation = len(report.NewVideoIDs) > 0 || len(report.NewDocumentIDs) > 0
	return report, nil
}

// InvalidateUnit re-checks every enrolled student's completion of the unit
// after a content change. Best-effort bulk operation: a failure on one
// student's record is collected and the rest keep processing.
//
// ProgressionsBlocked counts students with any active unit, without
// checking it sits downstream of the changed one. The count feeds
// reporting only; the gatekeeper itself is order-aware.
func (s *integrityService) InvalidateUnit(ctx context.Context, courseID, unitID uuid.UUID) (InvalidationResult, error) {
	fp, err := s.Fingerprint(ctx, unitID)
	if err != nil {
		return InvalidationResult{}, err
	}

	var (
		mu     sync.Mutex
		result InvalidationResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	iterErr := s.progressRepo.ForEachByCourseID(ctx, nil, courseID, s.batchSize, func(row *types.StudentProgress) error {
		g.Go(func() error {
			affected, blocked, err := s.invalidateOne(gctx, row, unitID, fp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, InvalidationFailure{
					StudentID: row.StudentID,
					Error:     err.Error(),
				})
				return nil
			}
			if affected {
				result.StudentsAffected++
			}
			if blocked {
				result.ProgressionsBlocked++
			}
			return nil
		})
		return nil
	})
	if waitErr := g.Wait(); waitErr != nil && iterErr == nil {
		iterErr = waitErr
	}
	if iterErr != nil {
		return result, iterErr
	}

	s.log.Info("Unit invalidation finished",
		"course_id", courseID,
		"unit_id", unitID,
		"students_affected", result.StudentsAffected,
		"progressions_blocked", result.ProgressionsBlocked,
		"failures", len(result.Failures))
	return result, nil
}

func (s *integrityService) invalidateOne(ctx context.Context, row *types.StudentProgress, unitID uuid.UUID, fp UnitFingerprint) (affected, blocked bool, err error) {
	report, err := diffProgress(row, unitID, fp)
	if err != nil {
		return false, false, err
	}
	if !report.RequiresRevalidation {
		return false, false, nil
	}

	units, err := row.UnitList()
	if err != nil {
		return false, false, err
	}
	anyActive := false
	for i := range units {
		if units[i].UnitID == unitID && units[i].Status == types.UnitCompleted {
			units[i].Status = types.UnitNeedsReview
		}
		if units[i].Status == types.UnitInProgress || units[i].Status == types.UnitCompleted {
			anyActive = true
		}
	}
	if err := row.SetUnitList(units); err != nil {
		return false, false, err
	}

	validation, validations, err := row.ValidationFor(unitID)
	if err != nil {
		return false, false, err
	}
	if validation == nil {
		return false, false, nil
	}
	now := time.Now().UTC()
	pending := appendNewContent(validation.NewContentAdded, report, now)
	validation.IsValidForCurrentArrangement = false
	validation.RequiresRevalidation = true
	validation.NewContentAdded = pending
	if err := row.SetValidationList(validations); err != nil {
		return false, false, err
	}

	if err := s.progressRepo.Save(ctx, nil, row); err != nil {
		return false, false, err
	}
	return true, anyActive, nil
}

// appendNewContent unions freshly-detected additions into the pending list.
// Existing entries are never dropped, so repeated invalidations against the
// same upload stay idempotent.
func appendNewContent(existing []types.NewContentRef, report ChangeReport, addedAt time.Time) []types.NewContentRef {
	seen := map[uuid.UUID]struct{}{}
	for _, ref := range existing {
		seen[ref.ContentID] = struct{}{}
	}
	out := existing
	for _, id := range report.NewVideoIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, types.NewContentRef{ContentID: id, ContentType: types.ContentTypeVideo, AddedAt: addedAt})
	}
	for _, id := range report.NewDocumentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, types.NewContentRef{ContentID: id, ContentType: types.ContentTypeDocument, AddedAt: addedAt})
	}
	return out
}

func (s *integrityService) CheckNewContentCompletion(progress *types.StudentProgress, unitID uuid.UUID) (NewContentCompletion, error) {
	return checkNewContent(progress, unitID)
}

func checkNewContent(progress *types.StudentProgress, unitID uuid.UUID) (NewContentCompletion, error) {
	out := NewContentCompletion{IsComplete: true, IncompleteItems: []types.NewContentRef{}}
	if progress == nil {
		return out, nil
	}
	validation, _, err := progress.ValidationFor(unitID)
	if err != nil {
		return out, err
	}
	if validation == nil || len(validation.NewContentAdded) == 0 {
		return out, nil
	}
	unit, _, err := progress.UnitProgressFor(unitID)
	if err != nil {
		return out, err
	}

	watched := map[uuid.UUID]struct{}{}
	read := map[uuid.UUID]struct{}{}
	if unit != nil {
		for _, record := range unit.VideosWatched {
			if record.Completed {
				watched[record.VideoID] = struct{}{}
			}
		}
		for _, id := range unit.ReadingMaterialsCompleted {
			read[id] = struct{}{}
		}
	}

	for _, ref := range validation.NewContentAdded {
		done := false
		switch ref.ContentType {
		case types.ContentTypeVideo:
			_, done = watched[ref.ContentID]
		case types.ContentTypeDocument:
			_, done = read[ref.ContentID]
		}
		if !done {
			out.IncompleteItems = append(out.IncompleteItems, ref)
		}
	}
	out.IsComplete = len(out.IncompleteItems) == 0
	return out, nil
}

// MarkRevalidationComplete flips a needs_review unit back to completed once
// every pending item has been consumed, refreshing the stored fingerprint
// to the current catalog state.
func (s *integrityService) MarkRevalidationComplete(ctx context.Context, studentID, courseID, unitID uuid.UUID) (NewContentCompletion, error) {
	progress, err := s.progressRepo.GetByStudentAndCourse(ctx, nil, studentID, courseID)
	if err != nil {
		return NewContentCompletion{}, err
	}
	if progress == nil {
		return NewContentCompletion{}, fmt.Errorf("progress for student %s in course %s: %w", studentID, courseID, apierr.ErrNotFound)
	}

	completion, err := checkNewContent(progress, unitID)
	if err != nil {
		return completion, err
	}
	if !completion.IsComplete {
		return completion, fmt.Errorf("unit %s still has %d pending items: %w",
			unitID, len(completion.IncompleteItems), apierr.ErrRequirementsNotMet)
	}

	fp, err := s.Fingerprint(ctx, unitID)
	if err != nil {
		return completion, err
	}

	unit, units, err := progress.UnitProgressFor(unitID)
	if err != nil {
		return completion, err
	}
	if unit == nil {
		return completion, fmt.Errorf("unit %s has no progress record: %w", unitID, apierr.ErrNotFound)
	}
	if unit.Status == types.UnitNeedsReview {
		unit.Status = types.UnitCompleted
	}
	if err := progress.SetUnitList(units); err != nil {
		return completion, err
	}

	validation, validations, err := progress.ValidationFor(unitID)
	if err != nil {
		return completion, err
	}
	if validation == nil {
		validations = append(validations, types.UnitValidation{UnitID: unitID})
		validation = &validations[len(validations)-1]
	}
	validation.ContentHash = fp.Hash
	validation.Signature = fp.Signature
	validation.IsValidForCurrentArrangement = true
	validation.RequiresRevalidation = false
	validation.NewContentAdded = []types.NewContentRef{}
	validation.CompletedAtArrangementVersion = progress.ArrangementVersion
	if err := progress.SetValidationList(validations); err != nil {
		return completion, err
	}

	if err := s.progressRepo.Save(ctx, nil, progress); err != nil {
		return completion, err
	}
	return completion, nil
}
