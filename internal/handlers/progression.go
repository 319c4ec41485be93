package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/opencampus/lms-backend/internal/services"
)

type ProgressionHandler struct {
	progressionService services.ProgressionService
	integrityService   services.IntegrityService
}

func NewProgressionHandler(progressionService services.ProgressionService, integrityService services.IntegrityService) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: progressionService,
		integrityService:   integrityService,
	}
}

// Enroll signs the caller up for a course and seeds their progress row at
// the course's active arrangement version.
func (ph *ProgressionHandler) Enroll(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	enrollment, err := ph.progressionService.Enroll(c.Request.Context(), actor, courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, enrollment)
}

// UnitAccess reports whether the caller may enter a unit, and when not,
// what is still missing in the blocking unit.
func (ph *ProgressionHandler) UnitAccess(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	unitID, ok := pathUUID(c, "unitId")
	if !ok {
		return
	}
	decision, err := ph.progressionService.CanAccess(c.Request.Context(), actor, courseID, unitID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, decision)
}

// Revalidate closes out a needs_review unit once the caller has consumed
// every piece of flagged new content.
func (ph *ProgressionHandler) Revalidate(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	unitID, ok := pathUUID(c, "unitId")
	if !ok {
		return
	}
	completion, err := ph.integrityService.MarkRevalidationComplete(c.Request.Context(), actor, courseID, unitID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, completion)
}
