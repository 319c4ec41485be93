package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
)

// QuizService resolves quiz-pool existence for the gatekeeper. A unit with
// zero questions has no quiz requirement.
type QuizService interface {
	HasQuizPool(ctx context.Context, unitID uuid.UUID) (bool, error)
}

type quizService struct {
	log      *logger.Logger
	quizRepo repos.QuizQuestionRepo
}

func NewQuizService(log *logger.Logger, quizRepo repos.QuizQuestionRepo) QuizService {
	return &quizService{log: log.With("service", "QuizService"), quizRepo: quizRepo}
}

func (s *quizService) HasQuizPool(ctx context.Context, unitID uuid.UUID) (bool, error) {
	count, err := s.quizRepo.CountByUnitID(ctx, nil, unitID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
