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

type ProgressMigrationFailure struct {
	StudentID uuid.UUID `json:"student_id"`
	Error     string    `json:"error"`
}

type LaunchResult struct {
	Version          int                        `json:"version"`
	StudentsMigrated int                        `json:"students_migrated"`
	Failures         []ProgressMigrationFailure `json:"failures,omitempty"`
}

// ApplyService commits an approved arrangement to the catalog and activates
// versions for students.
type ApplyService interface {
	// Apply rewrites catalog ordering to match the arrangement. When tx is
	// non-nil all writes join the caller's transaction (the review flow);
	// otherwise each unit's rewrite runs in its own transaction so one
	// unit's failure never leaves another half-applied.
	Apply(ctx context.Context, tx *gorm.DB, arrangement *types.Arrangement) error
	// BackfillDurations fills missing video durations from the media
	// service. Best-effort, runs outside any transaction, never fails the
	// caller.
	BackfillDurations(ctx context.Context, arrangement *types.Arrangement)
	Launch(ctx context.Context, courseID, actorID uuid.UUID) (*types.Course, LaunchResult, error)
}

type applyService struct {
	log          *logger.Logger
	db           *gorm.DB
	catalog      CatalogService
	videoRepo    repos.VideoRepo
	documentRepo repos.DocumentRepo
	arrRepo      repos.ArrangementRepo
	courseRepo   repos.CourseRepo
	progressRepo repos.StudentProgressRepo
	enrollRepo   repos.EnrollmentRepo
	media        MediaService
	audit        AuditService
	authority    AuthorityResolver
	batchSize    int
}

func NewApplyService(
	db *gorm.DB,
	log *logger.Logger,
	catalog CatalogService,
	videoRepo repos.VideoRepo,
	documentRepo repos.DocumentRepo,
	arrRepo repos.ArrangementRepo,
	courseRepo repos.CourseRepo,
	progressRepo repos.StudentProgressRepo,
	enrollRepo repos.EnrollmentRepo,
	media MediaService,
	audit AuditService,
	authority AuthorityResolver,
) ApplyService {
	return &applyService{
		log:          log.With("service", "ApplyService"),
		db:           db,
		catalog:      catalog,
		videoRepo:    videoRepo,
		documentRepo: documentRepo,
		arrRepo:      arrRepo,
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		enrollRepo:   enrollRepo,
		media:        media,
		audit:        audit,
		authority:    authority,
		batchSize:    200,
	}
}

// unitPlan is one unit's target ordering, already sorted and partitioned.
type unitPlan struct {
	UnitID      uuid.UUID
	VideoIDs    []uuid.UUID
	DocumentIDs []uuid.UUID
}

// buildUnitPlans groups arrangement items by unit, sorts each group by the
// coordinator's order, and partitions into videos and documents. Items are
// assumed pre-sorted within the arrangement; a stable re-sort keeps the
// result deterministic either way.
func buildUnitPlans(items []types.ArrangementItem) []unitPlan {
	byUnit := map[uuid.UUID][]types.ArrangementItem{}
	var unitOrder []uuid.UUID
	for _, item := range items {
		if _, seen := byUnit[item.UnitID]; !seen {
			unitOrder = append(unitOrder, item.UnitID)
		}
		byUnit[item.UnitID] = append(byUnit[item.UnitID], item)
	}

	plans := make([]unitPlan, 0, len(unitOrder))
	for _, unitID := range unitOrder {
		group := byUnit[unitID]
		for i := 1; i < len(group); i++ {
			for j := i; j > 0 && group[j-1].Order > group[j].Order; j-- {
				group[j-1], group[j] = group[j], group[j-1]
			}
		}
		plan := unitPlan{UnitID: unitID}
		for _, item := range group {
			switch item.ContentType {
			case types.ContentTypeVideo:
				plan.VideoIDs = append(plan.VideoIDs, item.ContentID)
			case types.ContentTypeDocument:
				plan.DocumentIDs = append(plan.DocumentIDs, item.ContentID)
			}
		}
		plans = append(plans, plan)
	}
	return plans
}

func (s *applyService) Apply(ctx context.Context, tx *gorm.DB, arrangement *types.Arrangement) error {
	items, err := arrangement.ItemList()
	if err != nil {
		return fmt.Errorf("read arrangement items: %w", err)
	}
	plans := buildUnitPlans(items)

	existingVideos, existingDocuments, err := s.existingContent(ctx, items)
	if err != nil {
		return err
	}

	for _, plan := range plans {
		plan := s.pruneDangling(plan, existingVideos, existingDocuments)
		if tx != nil {
			if err := s.applyUnit(ctx, tx, plan); err != nil {
				return err
			}
			continue
		}
		if s.db != nil {
			err = s.db.Transaction(func(unitTx *gorm.DB) error {
				return s.applyUnit(ctx, unitTx, plan)
			})
		} else {
			err = s.applyUnit(ctx, nil, plan)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *applyService) existingContent(ctx context.Context, items []types.ArrangementItem) (map[uuid.UUID]*types.Video, map[uuid.UUID]*types.Document, error) {
	var videoIDs, documentIDs []uuid.UUID
	for _, item := range items {
		switch item.ContentType {
		case types.ContentTypeVideo:
			videoIDs = append(videoIDs, item.ContentID)
		case types.ContentTypeDocument:
			documentIDs = append(documentIDs, item.ContentID)
		}
	}
	videos, err := s.catalog.GetVideosByIDs(ctx, videoIDs)
	if err != nil {
		return nil, nil, err
	}
	documents, err := s.catalog.GetDocumentsByIDs(ctx, documentIDs)
	if err != nil {
		return nil, nil, err
	}
	videoMap := make(map[uuid.UUID]*types.Video, len(videos))
	for _, v := range videos {
		videoMap[v.ID] = v
	}
	documentMap := make(map[uuid.UUID]*types.Document, len(documents))
	for _, d := range documents {
		documentMap[d.ID] = d
	}
	return videoMap, documentMap, nil
}

// pruneDangling drops ids that left the catalog after the arrangement
// referenced them. No foreign keys guard this boundary.
func (s *applyService) pruneDangling(plan unitPlan, videos map[uuid.UUID]*types.Video, documents map[uuid.UUID]*types.Document) unitPlan {
	out := unitPlan{UnitID: plan.UnitID}
	for _, id := range plan.VideoIDs {
		if _, ok := videos[id]; ok {
			out.VideoIDs = append(out.VideoIDs, id)
		} else {
			s.log.Warn("Skipping dangling video reference", "unit_id", plan.UnitID, "video_id", id)
		}
	}
	for _, id := range plan.DocumentIDs {
		if _, ok := documents[id]; ok {
			out.DocumentIDs = append(out.DocumentIDs, id)
		} else {
			s.log.Warn("Skipping dangling document reference", "unit_id", plan.UnitID, "document_id", id)
		}
	}
	return out
}

func (s *applyService) applyUnit(ctx context.Context, tx *gorm.DB, plan unitPlan) error {
	if err := s.catalog.SetUnitMembership(ctx, tx, plan.UnitID, plan.VideoIDs, plan.DocumentIDs); err != nil {
		return fmt.Errorf("set membership for unit %s: %w", plan.UnitID, err)
	}
	for i, videoID := range plan.VideoIDs {
		if err := s.catalog.SetContentSequence(ctx, tx, types.ContentTypeVideo, videoID, plan.UnitID, i+1); err != nil {
			return fmt.Errorf("set sequence for video %s: %w", videoID, err)
		}
	}
	for i, documentID := range plan.DocumentIDs {
		if err := s.catalog.SetContentSequence(ctx, tx, types.ContentTypeDocument, documentID, plan.UnitID, i+1); err != nil {
			return fmt.Errorf("set sequence for document %s: %w", documentID, err)
		}
	}
	return nil
}

func (s *applyService) BackfillDurations(ctx context.Context, arrangement *types.Arrangement) {
	items, err := arrangement.ItemList()
	if err != nil {
		s.log.Warn("Duration backfill skipped, unreadable items", "arrangement_id", arrangement.ID, "error", err)
		return
	}
	var videoIDs []uuid.UUID
	for _, item := range items {
		if item.ContentType == types.ContentTypeVideo {
			videoIDs = append(videoIDs, item.ContentID)
		}
	}
	videos, err := s.catalog.GetVideosByIDs(ctx, videoIDs)
	if err != nil {
		s.log.Warn("Duration backfill skipped, catalog read failed", "arrangement_id", arrangement.ID, "error", err)
		return
	}
	for _, video := range videos {
		if video.DurationSeconds > 0 || video.ExternalID == "" {
			continue
		}
		seconds, err := s.media.GetDuration(ctx, video.ExternalID)
		if err != nil {
			s.log.Warn("Duration backfill failed for video", "video_id", video.ID, "error", err)
			continue
		}
		if err := s.videoRepo.UpdateFields(ctx, nil, video.ID, map[string]interface{}{
			"duration_seconds": seconds,
		}); err != nil {
			s.log.Warn("Duration backfill write failed", "video_id", video.ID, "error", err)
		}
	}
}

func (s *applyService) Launch(ctx context.Context, courseID, actorID uuid.UUID) (*types.Course, LaunchResult, error) {
	var result LaunchResult

	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, result, fmt.Errorf("course %s: %w", courseID, apierr.ErrNotFound)
		}
		return nil, result, err
	}

	allowed, err := s.authority.CanLaunchCourse(ctx, actorID, course)
	if err != nil {
		return nil, result, err
	}
	if !allowed {
		return nil, result, fmt.Errorf("launch course %s: %w", courseID, apierr.ErrForbidden)
	}

	arrangement, err := s.arrRepo.GetLatestApprovedByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, result, err
	}
	if arrangement == nil {
		return nil, result, fmt.Errorf("no approved arrangement for course %s: %w", courseID, apierr.ErrNotFound)
	}
	result.Version = arrangement.Version

	items, err := arrangement.ItemList()
	if err != nil {
		return nil, result, err
	}
	var videoIDs, documentIDs []uuid.UUID
	for _, item := range items {
		switch item.ContentType {
		case types.ContentTypeVideo:
			videoIDs = append(videoIDs, item.ContentID)
		case types.ContentTypeDocument:
			documentIDs = append(documentIDs, item.ContentID)
		}
	}

	now := time.Now().UTC()
	commit := func(tx *gorm.DB) error {
		if err := s.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{
			"is_launched":                true,
			"active_arrangement_version": arrangement.Version,
			"has_new_content":            false,
		}); err != nil {
			return err
		}
		if err := s.courseRepo.AppendLaunch(ctx, tx, &types.CourseLaunch{
			CourseID:   courseID,
			Version:    arrangement.Version,
			LaunchedAt: now,
			LaunchedBy: actorID,
		}); err != nil {
			return err
		}
		if err := s.videoRepo.MarkPublicByIDs(ctx, tx, videoIDs); err != nil {
			return err
		}
		return s.documentRepo.MarkPublicByIDs(ctx, tx, documentIDs)
	}
	if s.db != nil {
		err = s.db.Transaction(commit)
	} else {
		err = commit(nil)
	}
	if err != nil {
		return nil, result, err
	}

	course.IsLaunched = true
	course.ActiveArrangementVersion = arrangement.Version
	course.HasNewContent = false

	// Migration is a version-pointer bump, never a rewrite of per-unit
	// completion state. Chunked; one bad row is reported, not fatal.
	migrated := map[uuid.UUID]struct{}{}
	migErr := s.progressRepo.ForEachByCourseID(ctx, nil, courseID, s.batchSize, func(row *types.StudentProgress) error {
		migrated[row.StudentID] = struct{}{}
		if err := s.progressRepo.SetArrangementVersion(ctx, nil, row.ID, arrangement.Version); err != nil {
			result.Failures = append(result.Failures, ProgressMigrationFailure{
				StudentID: row.StudentID,
				Error:     err.Error(),
			})
			return nil
		}
		result.StudentsMigrated++
		return nil
	})
	if migErr != nil {
		s.log.Error("Progress migration aborted", "course_id", courseID, "error", migErr)
		return course, result, migErr
	}

	// Enrolled students who have no progress row yet (enrolled before the
	// first launch, or rows lost to the failure path above) are seeded
	// directly at the launched version.
	enrollments, enrollErr := s.enrollRepo.ListByCourseID(ctx, nil, courseID)
	if enrollErr != nil {
		s.log.Error("Enrollment sweep aborted", "course_id", courseID, "error", enrollErr)
		return course, result, enrollErr
	}
	for _, enrollment := range enrollments {
		if enrollment.Status != types.EnrollmentActive {
			continue
		}
		if _, ok := migrated[enrollment.StudentID]; ok {
			continue
		}
		row := &types.StudentProgress{
			StudentID:          enrollment.StudentID,
			CourseID:           courseID,
			ArrangementVersion: arrangement.Version,
		}
		if err := row.SetUnitList(nil); err != nil {
			return course, result, err
		}
		if err := row.SetValidationList(nil); err != nil {
			return course, result, err
		}
		if err := s.progressRepo.Create(ctx, nil, row); err != nil {
			result.Failures = append(result.Failures, ProgressMigrationFailure{
				StudentID: enrollment.StudentID,
				Error:     err.Error(),
			})
			continue
		}
		result.StudentsMigrated++
	}

	s.audit.Record(ctx, "course.launch", actorID, "course", courseID, map[string]interface{}{
		"version":           arrangement.Version,
		"students_migrated": result.StudentsMigrated,
		"failures":          len(result.Failures),
	})
	s.log.Info("Course launched",
		"course_id", courseID,
		"version", arrangement.Version,
		"students_migrated", result.StudentsMigrated,
		"failures", len(result.Failures))
	return course, result, nil
}
