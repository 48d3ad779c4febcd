package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/jwt"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// RequestHandler 学校申请 HTTP 处理器
type RequestHandler struct {
	requestSvc service.RequestService
}

// NewRequestHandler 创建 RequestHandler
func NewRequestHandler(requestSvc service.RequestService) *RequestHandler {
	return &RequestHandler{requestSvc: requestSvc}
}

// Submit 提交申请
// POST /api/v1/requests
func (h *RequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 60001, err)
		return
	}
	tagPeriod(c, req.PeriodID)

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if !h.ownsSchool(c, req.SchoolID) {
		return
	}

	result, err := h.requestSvc.Submit(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleRequestError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 申请详情
// GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 60001, "申请ID不能为空")
		return
	}

	result, err := h.requestSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleRequestError(c, err)
		return
	}
	if !h.ownsSchool(c, result.SchoolID) {
		return
	}

	response.OK(c, result)
}

// Cancel 撤回申请
// POST /api/v1/requests/:id/cancel
func (h *RequestHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 60001, "申请ID不能为空")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	current, err := h.requestSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleRequestError(c, err)
		return
	}
	if !h.ownsSchool(c, current.SchoolID) {
		return
	}

	result, err := h.requestSvc.Cancel(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleRequestError(c, err)
		return
	}

	response.OK(c, result)
}

// ownsSchool 学校协调员只能操作本校申请
func (h *RequestHandler) ownsSchool(c *gin.Context, schoolID string) bool {
	role, ok := MustGetRole(c)
	if !ok {
		return false
	}
	if role == jwt.RoleAdmin {
		return true
	}
	if GetSchoolID(c) != schoolID {
		response.Forbidden(c, 10003, "只能操作本校的申请")
		return false
	}
	return true
}

func (h *RequestHandler) handleRequestError(c *gin.Context, err error) {
	if writeEngineError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 60101, "报名周期不存在")
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, 60102, "申请不存在")
	case errors.Is(err, service.ErrSchoolNotFound):
		response.NotFound(c, 60103, "学校不存在")
	case errors.Is(err, service.ErrTeacherNotFound):
		response.NotFound(c, 60104, "教师不存在")
	case errors.Is(err, service.ErrEditionNotFound):
		response.NotFound(c, 60105, "工作坊场次不存在")
	default:
		response.InternalError(c)
	}
}
