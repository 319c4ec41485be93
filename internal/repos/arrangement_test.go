package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/repos/testutil"
	"github.com/opencampus/lms-backend/internal/types"
)

func seedArrangement(t *testing.T, repo ArrangementRepo, courseID, coordinatorID uuid.UUID, version int, status string) *types.Arrangement {
	t.Helper()
	a := &types.Arrangement{
		ID:            uuid.New(),
		CourseID:      courseID,
		CoordinatorID: coordinatorID,
		Version:       version,
		Status:        status,
	}
	if err := a.SetItemList(nil); err != nil {
		t.Fatalf("SetItemList: %v", err)
	}
	if err := repo.Create(context.Background(), nil, a); err != nil {
		t.Fatalf("create arrangement: %v", err)
	}
	return a
}

func TestArrangementVersioning(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	dept := testutil.SeedDepartment(t, ctx, db, "versioning")
	coordinator := testutil.SeedUser(t, ctx, db, types.RoleCoordinator, &dept.ID)
	course := testutil.SeedCourse(t, ctx, db, dept.ID, coordinator.ID)

	repo := NewArrangementRepo(db, log)

	max, err := repo.MaxVersionByCourseID(ctx, nil, course.ID)
	if err != nil {
		t.Fatalf("MaxVersionByCourseID: %v", err)
	}
	if max != 0 {
		t.Fatalf("max version = %d on empty course, want 0", max)
	}

	seedArrangement(t, repo, course.ID, coordinator.ID, 1, types.ArrangementRejected)
	seedArrangement(t, repo, course.ID, coordinator.ID, 2, types.ArrangementApproved)
	seedArrangement(t, repo, course.ID, coordinator.ID, 3, types.ArrangementOpen)

	max, err = repo.MaxVersionByCourseID(ctx, nil, course.ID)
	if err != nil {
		t.Fatalf("MaxVersionByCourseID: %v", err)
	}
	if max != 3 {
		t.Fatalf("max version = %d, want 3", max)
	}

	current, err := repo.GetCurrentByCourseAndCoordinator(ctx, nil, course.ID, coordinator.ID)
	if err != nil {
		t.Fatalf("GetCurrentByCourseAndCoordinator: %v", err)
	}
	if current == nil || current.Version != 3 {
		t.Fatalf("current = %+v, want version 3", current)
	}

	latest, err := repo.GetLatestApprovedByCourseID(ctx, nil, course.ID)
	if err != nil {
		t.Fatalf("GetLatestApprovedByCourseID: %v", err)
	}
	if latest == nil || latest.Version != 2 {
		t.Fatalf("latest approved = %+v, want version 2", latest)
	}
}

func TestArrangementDuplicateVersionRejected(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	dept := testutil.SeedDepartment(t, ctx, db, "dup-version")
	coordinator := testutil.SeedUser(t, ctx, db, types.RoleCoordinator, &dept.ID)
	course := testutil.SeedCourse(t, ctx, db, dept.ID, coordinator.ID)

	repo := NewArrangementRepo(db, log)
	seedArrangement(t, repo, course.ID, coordinator.ID, 1, types.ArrangementApproved)

	dup := &types.Arrangement{
		ID:            uuid.New(),
		CourseID:      course.ID,
		CoordinatorID: coordinator.ID,
		Version:       1,
		Status:        types.ArrangementOpen,
	}
	if err := repo.Create(ctx, nil, dup); err == nil {
		t.Fatalf("duplicate (course, version) accepted")
	}
}

// The status-guarded transition claims the row exactly once, so concurrent
// reviewers cannot both win.
func TestTransitionStatusClaimsOnce(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	dept := testutil.SeedDepartment(t, ctx, db, "claims-once")
	coordinator := testutil.SeedUser(t, ctx, db, types.RoleCoordinator, &dept.ID)
	course := testutil.SeedCourse(t, ctx, db, dept.ID, coordinator.ID)

	repo := NewArrangementRepo(db, log)
	arrangement := seedArrangement(t, repo, course.ID, coordinator.ID, 1, types.ArrangementSubmitted)

	now := time.Now().UTC()
	first, err := repo.TransitionStatus(ctx, nil, arrangement.ID, types.ArrangementSubmitted, map[string]interface{}{
		"status":      types.ArrangementApproved,
		"approved_at": now,
	})
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if first != 1 {
		t.Fatalf("first transition affected %d rows, want 1", first)
	}

	second, err := repo.TransitionStatus(ctx, nil, arrangement.ID, types.ArrangementSubmitted, map[string]interface{}{
		"status":      types.ArrangementRejected,
		"rejected_at": now,
	})
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if second != 0 {
		t.Fatalf("second transition affected %d rows, want 0", second)
	}

	got, err := repo.GetByID(ctx, nil, arrangement.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.ArrangementApproved {
		t.Fatalf("status = %s, want approved", got.Status)
	}
}

func TestListByStatusForCourses(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	dept := testutil.SeedDepartment(t, ctx, db, "reviewer-queue")
	coordinator := testutil.SeedUser(t, ctx, db, types.RoleCoordinator, &dept.ID)
	inScope := testutil.SeedCourse(t, ctx, db, dept.ID, coordinator.ID)
	outOfScope := testutil.SeedCourse(t, ctx, db, dept.ID, coordinator.ID)

	repo := NewArrangementRepo(db, log)
	wanted := seedArrangement(t, repo, inScope.ID, coordinator.ID, 1, types.ArrangementSubmitted)
	seedArrangement(t, repo, outOfScope.ID, coordinator.ID, 1, types.ArrangementSubmitted)
	seedArrangement(t, repo, inScope.ID, coordinator.ID, 2, types.ArrangementOpen)

	rows, err := repo.ListByStatusForCourses(ctx, nil, types.ArrangementSubmitted, []uuid.UUID{inScope.ID})
	if err != nil {
		t.Fatalf("ListByStatusForCourses: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != wanted.ID {
		t.Fatalf("rows = %v, want only the in-scope submitted arrangement", rows)
	}
}
