package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opencampus/lms-backend/internal/apierr"
	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/repos"
	"github.com/opencampus/lms-backend/internal/types"
)

// CatalogService is the content catalog contract: ordered unit listings,
// ordered per-unit content listings, and the two write paths the Content
// Application Engine uses. Nothing else mutates catalog ordering.
type CatalogService interface {
	ListUnits(ctx context.Context, courseID uuid.UUID) ([]*types.CourseUnit, error)
	GetUnit(ctx context.Context, unitID uuid.UUID) (*types.CourseUnit, error)
	ListVideosInUnit(ctx context.Context, unitID uuid.UUID) ([]*types.Video, error)
	ListDocumentsInUnit(ctx context.Context, unitID uuid.UUID) ([]*types.Document, error)
	GetVideosByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Video, error)
	GetDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Document, error)
	SetUnitMembership(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, videoIDs, documentIDs []uuid.UUID) error
	SetContentSequence(ctx context.Context, tx *gorm.DB, contentType string, contentID, unitID uuid.UUID, sequence int) error
}

type catalogService struct {
	log          *logger.Logger
	unitRepo     repos.CourseUnitRepo
	videoRepo    repos.VideoRepo
	documentRepo repos.DocumentRepo
}

func NewCatalogService(log *logger.Logger, unitRepo repos.CourseUnitRepo, videoRepo repos.VideoRepo, documentRepo repos.DocumentRepo) CatalogService {
	return &catalogService{
		log:          log.With("service", "CatalogService"),
		unitRepo:     unitRepo,
		videoRepo:    videoRepo,
		documentRepo: documentRepo,
	}
}

func (s *catalogService) ListUnits(ctx context.Context, courseID uuid.UUID) ([]*types.CourseUnit, error) {
	return s.unitRepo.ListByCourseID(ctx, nil, courseID)
}

func (s *catalogService) GetUnit(ctx context.Context, unitID uuid.UUID) (*types.CourseUnit, error) {
	unit, err := s.unitRepo.GetByID(ctx, nil, unitID)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", unitID, apierr.ErrNotFound)
	}
	return unit, nil
}

func (s *catalogService) ListVideosInUnit(ctx context.Context, unitID uuid.UUID) ([]*types.Video, error) {
	return s.videoRepo.ListByUnitID(ctx, nil, unitID)
}

func (s *catalogService) ListDocumentsInUnit(ctx context.Context, unitID uuid.UUID) ([]*types.Document, error) {
	return s.documentRepo.ListByUnitID(ctx, nil, unitID)
}

func (s *catalogService) GetVideosByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Video, error) {
	return s.videoRepo.GetByIDs(ctx, nil, ids)
}

func (s *catalogService) GetDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Document, error) {
	return s.documentRepo.GetByIDs(ctx, nil, ids)
}

func (s *catalogService) SetUnitMembership(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, videoIDs, documentIDs []uuid.UUID) error {
	return s.unitRepo.SetMembership(ctx, tx, unitID, videoIDs, documentIDs)
}

func (s *catalogService) SetContentSequence(ctx context.Context, tx *gorm.DB, contentType string, contentID, unitID uuid.UUID, sequence int) error {
	switch contentType {
	case types.ContentTypeVideo:
		return s.videoRepo.SetUnitAndSequence(ctx, tx, contentID, unitID, sequence)
	case types.ContentTypeDocument:
		return s.documentRepo.SetUnitAndSequence(ctx, tx, contentID, unitID, sequence)
	default:
		return fmt.Errorf("unknown content type %q", contentType)
	}
}
