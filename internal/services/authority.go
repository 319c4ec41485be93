package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
	"github.com/opencampus/lms-backend/internal/types"
)

// AuthorityResolver answers the authorization questions the workflow asks,
// once per operation. Role and department come from the user row; no other
// code path inspects roles directly.
type AuthorityResolver interface {
	CanEditArrangement(ctx context.Context, actorID uuid.UUID, course *types.Course) (bool, error)
	CanReviewCourse(ctx context.Context, actorID uuid.UUID, course *types.Course) (bool, error)
	CanLaunchCourse(ctx context.Context, actorID uuid.UUID, course *types.Course) (bool, error)
}

type authorityResolver struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewAuthorityResolver(log *logger.Logger, userRepo repos.UserRepo) AuthorityResolver {
	return &authorityResolver{log: log.With("service", "AuthorityResolver"), userRepo: userRepo}
}

func (r *authorityResolver) CanEditArrangement(ctx context.Context, actorID uuid.UUID, course *types.Course) (bool, error) {
	actor, err := r.userRepo.GetByID(ctx, nil, actorID)
	if err != nil {
		return false, err
	}
	if actor.Role == types.RoleAdmin {
		return true, nil
	}
	return course != nil && course.CoordinatorID == actorID, nil
}

func (r *authorityResolver) CanReviewCourse(ctx context.Context, actorID uuid.UUID, course *types.Course) (bool, error) {
	actor, err := r.userRepo.GetByID(ctx, nil, actorID)
	if err != nil {
		return false, err
	}
	if actor.Role == types.RoleAdmin {
		return true, nil
	}
	if actor.Role != types.RoleDepartmentHead {
		return false, nil
	}
	return course != nil && actor.DepartmentID != nil && *actor.DepartmentID == course.DepartmentID, nil
}

func (r *authorityResolver) CanLaunchCourse(ctx context.Context, actorID uuid.UUID, course *types.Course) (bool, error) {
	return r.CanEditArrangement(ctx, actorID, course)
}
