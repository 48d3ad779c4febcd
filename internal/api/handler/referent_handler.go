package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// ReferentHandler 场次负责教师 HTTP 处理器
type ReferentHandler struct {
	referentSvc service.ReferentService
}

// NewReferentHandler 创建 ReferentHandler
func NewReferentHandler(referentSvc service.ReferentService) *ReferentHandler {
	return &ReferentHandler{referentSvc: referentSvc}
}

// Candidates 候选教师
// GET /api/v1/referents/candidates/:edition_id
func (h *ReferentHandler) Candidates(c *gin.Context) {
	editionID := c.Param("edition_id")
	if editionID == "" {
		response.BadRequest(c, 30001, "场次ID不能为空")
		return
	}

	candidates, err := h.referentSvc.Candidates(c.Request.Context(), editionID)
	if err != nil {
		h.handleReferentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": candidates})
}

// ListAssigned 场次当前负责教师
// GET /api/v1/referents/:edition_id
func (h *ReferentHandler) ListAssigned(c *gin.Context) {
	editionID := c.Param("edition_id")
	if editionID == "" {
		response.BadRequest(c, 30001, "场次ID不能为空")
		return
	}

	result, err := h.referentSvc.ListAssigned(c.Request.Context(), editionID)
	if err != nil {
		h.handleReferentError(c, err)
		return
	}

	response.OK(c, result)
}

// Assign 指派负责教师
// POST /api/v1/referents
func (h *ReferentHandler) Assign(c *gin.Context) {
	var req dto.AssignReferentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 30001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.referentSvc.Assign(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleReferentError(c, err)
		return
	}

	response.Created(c, result)
}

// Unassign 撤销指派
// DELETE /api/v1/referents/:id
func (h *ReferentHandler) Unassign(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 30001, "指派ID不能为空")
		return
	}

	if err := h.referentSvc.Unassign(c.Request.Context(), id); err != nil {
		h.handleReferentError(c, err)
		return
	}

	response.NoContent(c)
}

func (h *ReferentHandler) handleReferentError(c *gin.Context, err error) {
	if writeEngineError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrEditionNotFound):
		response.NotFound(c, 30101, "工作坊场次不存在")
	case errors.Is(err, service.ErrTeacherNotFound):
		response.NotFound(c, 30102, "教师不存在")
	case errors.Is(err, service.ErrReferentNotFound):
		response.NotFound(c, 30103, "负责教师指派记录不存在")
	default:
		response.InternalError(c)
	}
}
