package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/requestdata"
	"github.com/opencampus/lms-backend/internal/services"
	"github.com/opencampus/lms-backend/internal/types"
)

type ArrangementHandler struct {
	arrangementService services.ArrangementService
}

func NewArrangementHandler(arrangementService services.ArrangementService) *ArrangementHandler {
	return &ArrangementHandler{arrangementService: arrangementService}
}

func actorID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// GetForCourse returns the caller's live arrangement for a course,
// creating one when the course is open for proposals.
func (ah *ArrangementHandler) GetForCourse(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	arrangement, err := ah.arrangementService.GetOrCreate(c.Request.Context(), courseID, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, arrangement)
}

func (ah *ArrangementHandler) Update(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	arrangementID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Items []types.ArrangementItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	arrangement, err := ah.arrangementService.Update(c.Request.Context(), arrangementID, req.Items, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, arrangement)
}

func (ah *ArrangementHandler) Submit(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	arrangementID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	arrangement, err := ah.arrangementService.Submit(c.Request.Context(), arrangementID, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, arrangement)
}

func (ah *ArrangementHandler) Review(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	arrangementID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Action != services.ReviewActionApprove && req.Action != services.ReviewActionReject {
		RespondError(c, http.StatusBadRequest, "invalid_action", nil)
		return
	}
	arrangement, err := ah.arrangementService.Review(c.Request.Context(), arrangementID, req.Action, req.Reason, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, arrangement)
}

func (ah *ArrangementHandler) History(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	arrangements, err := ah.arrangementService.History(c.Request.Context(), courseID, actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"arrangements": arrangements})
}

func (ah *ArrangementHandler) Pending(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	arrangements, err := ah.arrangementService.PendingForReviewer(c.Request.Context(), actor)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"arrangements": arrangements})
}
