package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// stubCatalog serves units and content from memory and records every
// membership/sequence write.
type stubCatalog struct {
	units       []*types.CourseUnit
	videos      map[uuid.UUID][]*types.Video
	documents   map[uuid.UUID][]*types.Document
	memberships map[uuid.UUID][2][]uuid.UUID
	sequences   map[uuid.UUID]int
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		videos:      map[uuid.UUID][]*types.Video{},
		documents:   map[uuid.UUID][]*types.Document{},
		memberships: map[uuid.UUID][2][]uuid.UUID{},
		sequences:   map[uuid.UUID]int{},
	}
}

func (c *stubCatalog) ListUnits(ctx context.Context, courseID uuid.UUID) ([]*types.CourseUnit, error) {
	return c.units, nil
}

func (c *stubCatalog) GetUnit(ctx context.Context, unitID uuid.UUID) (*types.CourseUnit, error) {
	for _, unit := range c.units {
		if unit.ID == unitID {
			return unit, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *stubCatalog) ListVideosInUnit(ctx context.Context, unitID uuid.UUID) ([]*types.Video, error) {
	return c.videos[unitID], nil
}

func (c *stubCatalog) ListDocumentsInUnit(ctx context.Context, unitID uuid.UUID) ([]*types.Document, error) {
	return c.documents[unitID], nil
}

func (c *stubCatalog) GetVideosByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Video, error) {
	want := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*types.Video
	for _, vs := range c.videos {
		for _, v := range vs {
			if _, ok := want[v.ID]; ok {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (c *stubCatalog) GetDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Document, error) {
	want := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*types.Document
	for _, ds := range c.documents {
		for _, d := range ds {
			if _, ok := want[d.ID]; ok {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (c *stubCatalog) SetUnitMembership(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, videoIDs, documentIDs []uuid.UUID) error {
	c.memberships[unitID] = [2][]uuid.UUID{videoIDs, documentIDs}
	return nil
}

func (c *stubCatalog) SetContentSequence(ctx context.Context, tx *gorm.DB, contentType string, contentID, unitID uuid.UUID, sequence int) error {
	c.sequences[contentID] = sequence
	return nil
}

type stubQuiz struct {
	pools map[uuid.UUID]bool
}

func (q *stubQuiz) HasQuizPool(ctx context.Context, unitID uuid.UUID) (bool, error) {
	return q.pools[unitID], nil
}

type stubMedia struct {
	durations map[string]int
}

func (m *stubMedia) GetDuration(ctx context.Context, externalVideoID string) (int, error) {
	if d, ok := m.durations[externalVideoID]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown video %s", externalVideoID)
}

type auditEntry struct {
	Action   string
	TargetID uuid.UUID
}

type stubAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *stubAudit) Record(ctx context.Context, action string, actorID uuid.UUID, targetType string, targetID uuid.UUID, details map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{Action: action, TargetID: targetID})
}

func (a *stubAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.Action == action {
			return true
		}
	}
	return false
}

type stubUserRepo struct {
	users map[uuid.UUID]*types.User
}

func newStubUserRepo(users ...*types.User) *stubUserRepo {
	r := &stubUserRepo{users: map[uuid.UUID]*types.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *stubUserRepo) Create(ctx context.Context, tx *gorm.DB, row *types.User) error {
	r.users[row.ID] = row
	return nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubCourseRepo struct {
	courses  map[uuid.UUID]*types.Course
	launches []*types.CourseLaunch
}

func newStubCourseRepo(courses ...*types.Course) *stubCourseRepo {
	r := &stubCourseRepo{courses: map[uuid.UUID]*types.Course{}}
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return r
}

func (r *stubCourseRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Course) error {
	r.courses[row.ID] = row
	return nil
}

func (r *stubCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Course, error) {
	if c, ok := r.courses[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCourseRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	course, ok := r.courses[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "has_new_content":
			course.HasNewContent = value.(bool)
		case "current_arrangement_status":
			course.CurrentArrangementStatus = value.(string)
		case "is_launched":
			course.IsLaunched = value.(bool)
		case "active_arrangement_version":
			course.ActiveArrangementVersion = value.(int)
		}
	}
	return nil
}

func (r *stubCourseRepo) ListIDsByDepartmentID(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, c := range r.courses {
		if c.DepartmentID == departmentID {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func (r *stubCourseRepo) AppendLaunch(ctx context.Context, tx *gorm.DB, row *types.CourseLaunch) error {
	r.launches = append(r.launches, row)
	return nil
}

func (r *stubCourseRepo) ListLaunches(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseLaunch, error) {
	var out []*types.CourseLaunch
	for _, l := range r.launches {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	return out, nil
}

type stubArrangementRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Arrangement
}

func newStubArrangementRepo(rows ...*types.Arrangement) *stubArrangementRepo {
	r := &stubArrangementRepo{rows: map[uuid.UUID]*types.Arrangement{}}
	for _, a := range rows {
		r.rows[a.ID] = a
	}
	return r
}

func (r *stubArrangementRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Arrangement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.CourseID == row.CourseID && existing.Version == row.Version {
			return fmt.Errorf("duplicate version %d for course %s", row.Version, row.CourseID)
		}
	}
	r.rows[row.ID] = row
	return nil
}

func (r *stubArrangementRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Arrangement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.rows[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubArrangementRepo) GetCurrentByCourseAndCoordinator(ctx context.Context, tx *gorm.DB, courseID, coordinatorID uuid.UUID) (*types.Arrangement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *types.Arrangement
	for _, a := range r.rows {
		if a.CourseID != courseID || a.CoordinatorID != coordinatorID {
			continue
		}
		if a.Status != types.ArrangementOpen && a.Status != types.ArrangementSubmitted {
			continue
		}
		if current == nil || a.Version > current.Version {
			current = a
		}
	}
	return current, nil
}

func (r *stubArrangementRepo) GetLatestApprovedByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Arrangement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *types.Arrangement
	for _, a := range r.rows {
		if a.CourseID == courseID && a.Status == types.ArrangementApproved {
			if latest == nil || a.Version > latest.Version {
				latest = a
			}
		}
	}
	return latest, nil
}

func (r *stubArrangementRepo) MaxVersionByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, a := range r.rows {
		if a.CourseID == courseID && a.Version > max {
			max = a.Version
		}
	}
	return max, nil
}

func (r *stubArrangementRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Arrangement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Arrangement
	for _, a := range r.rows {
		if a.CourseID == courseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubArrangementRepo) ListByStatusForCourses(ctx context.Context, tx *gorm.DB, status string, courseIDs []uuid.UUID) ([]*types.Arrangement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uuid.UUID]struct{}{}
	for _, id := range courseIDs {
		want[id] = struct{}{}
	}
	var out []*types.Arrangement
	for _, a := range r.rows {
		if _, ok := want[a.CourseID]; ok && a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubArrangementRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Arrangement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Arrangement
	for _, a := range r.rows {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubArrangementRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stubArrangementRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatus string, updates map[string]interface{}) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != fromStatus {
		return 0, nil
	}
	if status, ok := updates["status"].(string); ok {
		row.Status = status
	}
	return 1, nil
}

type stubProgressRepo struct {
	mu        sync.Mutex
	rows      []*types.StudentProgress
	saveCount int
}

func (r *stubProgressRepo) Create(ctx context.Context, tx *gorm.DB, row *types.StudentProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func (r *stubProgressRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.StudentProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.StudentID == studentID && row.CourseID == courseID {
			return row, nil
		}
	}
	return nil, nil
}

func (r *stubProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.StudentProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCount++
	return nil
}

func (r *stubProgressRepo) ForEachByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, batchSize int, fn func(row *types.StudentProgress) error) error {
	r.mu.Lock()
	rows := make([]*types.StudentProgress, len(r.rows))
	copy(rows, r.rows)
	r.mu.Unlock()
	for _, row := range rows {
		if row.CourseID != courseID {
			continue
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *stubProgressRepo) SetArrangementVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.ArrangementVersion = version
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubVideoRepo struct {
	updated map[uuid.UUID]map[string]interface{}
	public  []uuid.UUID
}

func newStubVideoRepo() *stubVideoRepo {
	return &stubVideoRepo{updated: map[uuid.UUID]map[string]interface{}{}}
}

func (r *stubVideoRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Video) ([]*types.Video, error) {
	return rows, nil
}

func (r *stubVideoRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Video, error) {
	return nil, nil
}

func (r *stubVideoRepo) ListByUnitID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) ([]*types.Video, error) {
	return nil, nil
}

func (r *stubVideoRepo) SetUnitAndSequence(ctx context.Context, tx *gorm.DB, id, unitID uuid.UUID, sequence int) error {
	return nil
}

func (r *stubVideoRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.updated[id] = updates
	return nil
}

func (r *stubVideoRepo) MarkPublicByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	r.public = append(r.public, ids...)
	return nil
}

type stubDocumentRepo struct {
	public []uuid.UUID
}

func (r *stubDocumentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Document) ([]*types.Document, error) {
	return rows, nil
}

func (r *stubDocumentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Document, error) {
	return nil, nil
}

func (r *stubDocumentRepo) ListByUnitID(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) ([]*types.Document, error) {
	return nil, nil
}

func (r *stubDocumentRepo) SetUnitAndSequence(ctx context.Context, tx *gorm.DB, id, unitID uuid.UUID, sequence int) error {
	return nil
}

func (r *stubDocumentRepo) MarkPublicByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	r.public = append(r.public, ids...)
	return nil
}

type stubEnrollmentRepo struct {
	mu   sync.Mutex
	rows []*types.Enrollment
}

func newStubEnrollmentRepo(rows ...*types.Enrollment) *stubEnrollmentRepo {
	return &stubEnrollmentRepo{rows: rows}
}

func (r *stubEnrollmentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.StudentID == row.StudentID && existing.CourseID == row.CourseID {
			return gorm.ErrDuplicatedKey
		}
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.rows = append(r.rows, row)
	return nil
}

func (r *stubEnrollmentRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.StudentID == studentID && row.CourseID == courseID {
			return row, nil
		}
	}
	return nil, nil
}

func (r *stubEnrollmentRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Enrollment
	for _, row := range r.rows {
		if row.CourseID == courseID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *stubEnrollmentRepo) CountByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error) {
	rows, _ := r.ListByCourseID(ctx, tx, courseID)
	return int64(len(rows)), nil
}
