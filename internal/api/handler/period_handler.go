package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// PeriodHandler 报名周期 HTTP 处理器
type PeriodHandler struct {
	releaseSvc service.ReleaseService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(releaseSvc service.ReleaseService) *PeriodHandler {
	return &PeriodHandler{releaseSvc: releaseSvc}
}

// Create 创建报名周期
// POST /api/v1/periods
func (h *PeriodHandler) Create(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 40001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.releaseSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.Created(c, period)
}

// Get 获取报名周期
// GET /api/v1/periods/:id
func (h *PeriodHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 40001, "周期ID不能为空")
		return
	}

	period, err := h.releaseSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// Advance 推进阶段
// POST /api/v1/periods/:id/advance
func (h *PeriodHandler) Advance(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 40001, "周期ID不能为空")
		return
	}

	var req dto.AdvancePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 40001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.releaseSvc.Advance(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

func (h *PeriodHandler) handlePeriodError(c *gin.Context, err error) {
	if writeEngineError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 40101, "报名周期不存在")
	default:
		response.InternalError(c)
	}
}
