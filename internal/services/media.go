package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/opencampus/lms-backend/internal/apierr"
	"github.com/opencampus/lms-backend/internal/logger"
)

// MediaService asks the external media platform for video metadata. Every
// call is time-bounded and best-effort; callers must treat failures as
// non-fatal.
type MediaService interface {
	GetDuration(ctx context.Context, externalVideoID string) (int, error)
}

type mediaService struct {
	log    *logger.Logger
	client *resty.Client
}

func NewMediaService(log *logger.Logger, baseURL string, timeout time.Duration) MediaService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)
	return &mediaService{log: log.With("service", "MediaService"), client: client}
}

type durationResponse struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (s *mediaService) GetDuration(ctx context.Context, externalVideoID string) (int, error) {
	if externalVideoID == "" {
		return 0, fmt.Errorf("empty external video id: %w", apierr.ErrExternalServiceDegraded)
	}
	var out durationResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("id", externalVideoID).
		Get("/videos/{id}/duration")
	if err != nil {
		return 0, fmt.Errorf("media service call: %v: %w", err, apierr.ErrExternalServiceDegraded)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("media service status %d: %w", resp.StatusCode(), apierr.ErrExternalServiceDegraded)
	}
	if out.DurationSeconds <= 0 {
		return 0, fmt.Errorf("media service returned no duration: %w", apierr.ErrExternalServiceDegraded)
	}
	return out.DurationSeconds, nil
}
