package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/apierr"
	"github.com/opencampus/lms-backend/internal/types"
)

func TestMergeNewContentAppendsAtEnd(t *testing.T) {
	unitID := uuid.New()
	v1 := testVideo(uuid.New(), "intro", 1)
	v2 := testVideo(uuid.New(), "uploaded later", 2)
	d1 := testDocument(uuid.New(), "notes", 1)

	items := []types.ArrangementItem{
		{ContentType: types.ContentTypeVideo, ContentID: v1.ID, UnitID: unitID, Order: 1},
		{ContentType: types.ContentTypeDocument, ContentID: d1.ID, UnitID: unitID, Order: 5},
	}

	merged, added := mergeNewContent(items, unitID, []*types.Video{v1, v2}, []*types.Document{d1}, 0)
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	last := merged[len(merged)-1]
	if last.ContentID != v2.ID {
		t.Fatalf("new video not appended: %+v", last)
	}
	if last.Order != 6 {
		t.Fatalf("new item order = %d, want max+1 = 6", last.Order)
	}

	// Re-running against the same catalog is a no-op.
	again, added := mergeNewContent(merged, unitID, []*types.Video{v1, v2}, []*types.Document{d1}, 0)
	if added != 0 || len(again) != len(merged) {
		t.Fatalf("merge not idempotent: added=%d len=%d", added, len(again))
	}
}

type arrangementFixture struct {
	svc          ArrangementService
	arrRepo      *stubArrangementRepo
	courseRepo   *stubCourseRepo
	userRepo     *stubUserRepo
	catalog      *stubCatalog
	progressRepo *stubProgressRepo
	audit        *stubAudit
	course       *types.Course
	coordinator  *types.User
	reviewer     *types.User
	unit1        *types.CourseUnit
	video1       *types.Video
	document1    *types.Document
}

func newArrangementFixture(t *testing.T) *arrangementFixture {
	t.Helper()
	departmentID := uuid.New()
	coordinator := &types.User{ID: uuid.New(), Role: types.RoleCoordinator, DepartmentID: &departmentID}
	reviewer := &types.User{ID: uuid.New(), Role: types.RoleDepartmentHead, DepartmentID: &departmentID}
	course := &types.Course{
		ID:            uuid.New(),
		DepartmentID:  departmentID,
		CoordinatorID: coordinator.ID,
	}

	unit1 := &types.CourseUnit{ID: uuid.New(), CourseID: course.ID, Title: "Basics", Order: 1}
	video1 := testVideo(uuid.New(), "intro", 1)
	document1 := testDocument(uuid.New(), "notes", 1)

	catalog := newStubCatalog()
	catalog.units = []*types.CourseUnit{unit1}
	catalog.videos[unit1.ID] = []*types.Video{video1}
	catalog.documents[unit1.ID] = []*types.Document{document1}

	arrRepo := newStubArrangementRepo()
	courseRepo := newStubCourseRepo(course)
	userRepo := newStubUserRepo(coordinator, reviewer)
	progressRepo := &stubProgressRepo{}
	audit := &stubAudit{}

	log := newTestLogger(t)
	authority := NewAuthorityResolver(log, userRepo)
	media := &stubMedia{durations: map[string]int{}}
	integrity := NewIntegrityService(log, catalog, progressRepo)
	apply := NewApplyService(nil, log, catalog, newStubVideoRepo(), &stubDocumentRepo{}, arrRepo, courseRepo, progressRepo, newStubEnrollmentRepo(), media, audit, authority)
	svc := NewArrangementService(nil, log, arrRepo, courseRepo, userRepo, catalog, authority, audit, apply, integrity)

	return &arrangementFixture{
		svc:          svc,
		arrRepo:      arrRepo,
		courseRepo:   courseRepo,
		userRepo:     userRepo,
		catalog:      catalog,
		progressRepo: progressRepo,
		audit:        audit,
		course:       course,
		coordinator:  coordinator,
		reviewer:     reviewer,
		unit1:        unit1,
		video1:       video1,
		document1:    document1,
	}
}

func TestGetOrCreateBuildsInitialItems(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if arrangement.Version != 1 {
		t.Fatalf("version = %d, want 1", arrangement.Version)
	}
	if arrangement.Status != types.ArrangementOpen {
		t.Fatalf("status = %s, want open", arrangement.Status)
	}

	items, err := arrangement.ItemList()
	if err != nil {
		t.Fatalf("ItemList: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ContentID != f.video1.ID || items[0].Order != 1 {
		t.Fatalf("first item = %+v, want video at order 1", items[0])
	}
	if items[1].ContentID != f.document1.ID || items[1].Order != 2 {
		t.Fatalf("second item = %+v, want document at order 2", items[1])
	}
	if items[0].OriginalUnitID != f.unit1.ID || items[0].OriginalOrder != 1 {
		t.Fatalf("original fields not pinned at creation: %+v", items[0])
	}
	if !f.audit.has("arrangement.create") {
		t.Fatalf("creation not audited")
	}
}

func TestGetOrCreateForbiddenForOtherUsers(t *testing.T) {
	f := newArrangementFixture(t)
	other := &types.User{ID: uuid.New(), Role: types.RoleCoordinator}
	f.userRepo.users[other.ID] = other

	_, err := f.svc.GetOrCreate(context.Background(), f.course.ID, other.ID)
	if !errors.Is(err, apierr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestGetOrCreateReturnsOpenAndSyncsNewContent(t *testing.T) {
	f := newArrangementFixture(t)

	first, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	// A new upload lands while the arrangement is open.
	uploaded := testVideo(uuid.New(), "late upload", 2)
	f.catalog.videos[f.unit1.ID] = append(f.catalog.videos[f.unit1.ID], uploaded)

	second, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("a second open arrangement was created")
	}
	items, err := second.ItemList()
	if err != nil {
		t.Fatalf("ItemList: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3 after sync", len(items))
	}
	if items[2].ContentID != uploaded.ID {
		t.Fatalf("uploaded video not appended: %+v", items[2])
	}
}

func TestGetOrCreateLockedAfterApproval(t *testing.T) {
	f := newArrangementFixture(t)

	approved := arrangementWithItems(t, f.course.ID, f.coordinator.ID, types.ArrangementApproved, 1, nil)
	if err := f.arrRepo.Create(context.Background(), nil, approved); err != nil {
		t.Fatalf("seed approved: %v", err)
	}
	f.course.HasNewContent = false
	f.course.CurrentArrangementStatus = types.CourseArrangementApproved

	_, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if !errors.Is(err, apierr.ErrArrangementLocked) {
		t.Fatalf("expected arrangement_locked, got %v", err)
	}
}

func TestGetOrCreateMintsNewVersionOnNewContent(t *testing.T) {
	f := newArrangementFixture(t)

	approved := arrangementWithItems(t, f.course.ID, f.coordinator.ID, types.ArrangementApproved, 2, nil)
	if err := f.arrRepo.Create(context.Background(), nil, approved); err != nil {
		t.Fatalf("seed approved: %v", err)
	}
	f.course.HasNewContent = true

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if arrangement.Version != 3 {
		t.Fatalf("version = %d, want 3", arrangement.Version)
	}
	if f.course.HasNewContent {
		t.Fatalf("has_new_content not reset after minting")
	}
}

func TestSubmitLifecycle(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	submitted, err := f.svc.Submit(context.Background(), arrangement.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.Status != types.ArrangementSubmitted {
		t.Fatalf("status = %s, want submitted", submitted.Status)
	}

	if _, err := f.svc.Submit(context.Background(), arrangement.ID, f.coordinator.ID); !errors.Is(err, apierr.ErrNotEditable) {
		t.Fatalf("second submit: expected not_editable, got %v", err)
	}
	if _, err := f.svc.Update(context.Background(), arrangement.ID, nil, f.coordinator.ID); !errors.Is(err, apierr.ErrNotEditable) {
		t.Fatalf("update after submit: expected not_editable, got %v", err)
	}
}

func TestReviewApproveAppliesArrangement(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), arrangement.ID, f.coordinator.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	approved, err := f.svc.Review(context.Background(), arrangement.ID, ReviewActionApprove, "", f.reviewer.ID)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if approved.Status != types.ArrangementApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}
	if _, ok := f.catalog.memberships[f.unit1.ID]; !ok {
		t.Fatalf("approval did not rewrite catalog membership")
	}
	if f.course.CurrentArrangementStatus != types.CourseArrangementApproved {
		t.Fatalf("course status = %s, want approved", f.course.CurrentArrangementStatus)
	}
	if !f.audit.has("arrangement.approve") {
		t.Fatalf("approval not audited")
	}

	if _, err := f.svc.Review(context.Background(), arrangement.ID, ReviewActionApprove, "", f.reviewer.ID); !errors.Is(err, apierr.ErrAlreadyReviewed) {
		t.Fatalf("second review: expected already_reviewed, got %v", err)
	}
}

func TestReviewReject(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), arrangement.ID, f.coordinator.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rejected, err := f.svc.Review(context.Background(), arrangement.ID, ReviewActionReject, "units out of order", f.reviewer.ID)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if rejected.Status != types.ArrangementRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if rejected.RejectionReason != "units out of order" {
		t.Fatalf("reason = %q", rejected.RejectionReason)
	}
	if len(f.catalog.memberships) != 0 {
		t.Fatalf("rejection must never touch the catalog")
	}
	if f.course.CurrentArrangementStatus != types.CourseArrangementRejected {
		t.Fatalf("course status = %s, want rejected", f.course.CurrentArrangementStatus)
	}
}

func TestReviewForbiddenForCoordinator(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), arrangement.ID, f.coordinator.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := f.svc.Review(context.Background(), arrangement.ID, ReviewActionApprove, "", f.coordinator.ID); !errors.Is(err, apierr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestReviewRequiresSubmittedState(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, err := f.svc.Review(context.Background(), arrangement.ID, ReviewActionApprove, "", f.reviewer.ID); !errors.Is(err, apierr.ErrNotEditable) {
		t.Fatalf("reviewing an open arrangement: expected not_editable, got %v", err)
	}
}

func TestPendingForReviewer(t *testing.T) {
	f := newArrangementFixture(t)

	arrangement, err := f.svc.GetOrCreate(context.Background(), f.course.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), arrangement.ID, f.coordinator.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pending, err := f.svc.PendingForReviewer(context.Background(), f.reviewer.ID)
	if err != nil {
		t.Fatalf("PendingForReviewer: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != arrangement.ID {
		t.Fatalf("pending = %v, want the submitted arrangement", pending)
	}

	if _, err := f.svc.PendingForReviewer(context.Background(), f.coordinator.ID); !errors.Is(err, apierr.ErrForbidden) {
		t.Fatalf("coordinator queue: expected forbidden, got %v", err)
	}
}

func TestFlagNewContentMarksPendingRelaunch(t *testing.T) {
	f := newArrangementFixture(t)
	f.course.IsLaunched = true

	result, err := f.svc.FlagNewContent(context.Background(), f.course.ID, f.unit1.ID, f.coordinator.ID)
	if err != nil {
		t.Fatalf("FlagNewContent: %v", err)
	}
	if !f.course.HasNewContent {
		t.Fatalf("has_new_content not set")
	}
	if f.course.CurrentArrangementStatus != types.CourseArrangementPendingRelaunch {
		t.Fatalf("course status = %s, want pending_relaunch", f.course.CurrentArrangementStatus)
	}
	if result.StudentsAffected != 0 {
		t.Fatalf("no enrolled students, yet %d affected", result.StudentsAffected)
	}
	if !f.audit.has("course.content_updated") {
		t.Fatalf("content update not audited")
	}
}
