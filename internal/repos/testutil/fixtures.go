package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/types"
)

func SeedDepartment(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Department {
	tb.Helper()
	d := &types.Department{ID: uuid.New(), Name: name}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed department: %v", err)
	}
	return d
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, role string, departmentID *uuid.UUID) *types.User {
	tb.Helper()
	u := &types.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s-%s@example.test", role, uuid.NewString()[:8]),
		Password:     "pw",
		FirstName:    "Test",
		LastName:     role,
		Role:         role,
		DepartmentID: departmentID,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, departmentID, coordinatorID uuid.UUID) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:                       uuid.New(),
		Title:                    "course",
		DepartmentID:             departmentID,
		CoordinatorID:            coordinatorID,
		CurrentArrangementStatus: types.CourseArrangementDraft,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, order int) *types.CourseUnit {
	tb.Helper()
	u := &types.CourseUnit{
		ID:       uuid.New(),
		CourseID: courseID,
		Title:    fmt.Sprintf("unit %d", order),
		Order:    order,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit: %v", err)
	}
	return u
}

func SeedVideo(tb testing.TB, ctx context.Context, tx *gorm.DB, unitID uuid.UUID, sequence int) *types.Video {
	tb.Helper()
	v := &types.Video{
		ID:       uuid.New(),
		UnitID:   unitID,
		Title:    fmt.Sprintf("video %d", sequence),
		Sequence: sequence,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed video: %v", err)
	}
	return v
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, unitID uuid.UUID, sequence int) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:       uuid.New(),
		UnitID:   unitID,
		Title:    fmt.Sprintf("document %d", sequence),
		Sequence: sequence,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID, version int) *types.StudentProgress {
	tb.Helper()
	p := &types.StudentProgress{
		ID:                 uuid.New(),
		StudentID:          studentID,
		CourseID:           courseID,
		ArrangementVersion: version,
	}
	if err := p.SetUnitList(nil); err != nil {
		tb.Fatalf("seed progress units: %v", err)
	}
	if err := p.SetValidationList(nil); err != nil {
		tb.Fatalf("seed progress validations: %v", err)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}
