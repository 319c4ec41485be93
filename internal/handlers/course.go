package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/services"
)

type CourseHandler struct {
	applyService       services.ApplyService
	arrangementService services.ArrangementService
}

func NewCourseHandler(applyService services.ApplyService, arrangementService services.ArrangementService) *CourseHandler {
	return &CourseHandler{
		applyService:       applyService,
		arrangementService: arrangementService,
	}
}

// Launch publishes the latest approved arrangement and migrates enrolled
// students to its version.
func (ch *CourseHandler) Launch(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	course, result, err := ch.applyService.Launch(c.Request.Context(), courseID, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"course":            course,
		"version":           result.Version,
		"students_migrated": result.StudentsMigrated,
		"failures":          result.Failures,
	})
}

// ContentUpdated flags a course after an upload and invalidates student
// progress in the touched unit.
func (ch *CourseHandler) ContentUpdated(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UnitID string `json:"unit_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_unit_id", err)
		return
	}
	result, err := ch.arrangementService.FlagNewContent(c.Request.Context(), courseID, unitID, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"students_affected":    result.StudentsAffected,
		"progressions_blocked": result.ProgressionsBlocked,
		"failures":             result.Failures,
	})
}
