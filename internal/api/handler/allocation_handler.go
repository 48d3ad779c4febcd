package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// AllocationHandler 名额分配 HTTP 处理器
type AllocationHandler struct {
	allocationSvc service.AllocationService
	releaseSvc    service.ReleaseService
}

// NewAllocationHandler 创建 AllocationHandler
func NewAllocationHandler(allocationSvc service.AllocationService, releaseSvc service.ReleaseService) *AllocationHandler {
	return &AllocationHandler{allocationSvc: allocationSvc, releaseSvc: releaseSvc}
}

// Run 执行自动分配
// POST /api/v1/allocations/run
func (h *AllocationHandler) Run(c *gin.Context) {
	var req dto.RunAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 20001, err)
		return
	}
	tagPeriod(c, req.PeriodID)

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.allocationSvc.Run(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.OK(c, result)
}

// DemandSummary 按场次汇总需求
// GET /api/v1/allocations/demand-summary?period_id=xxx
func (h *AllocationHandler) DemandSummary(c *gin.Context) {
	var req dto.DemandSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 20001, err)
		return
	}

	summary, err := h.allocationSvc.DemandSummary(c.Request.Context(), &req)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.OK(c, summary)
}

// List 分配列表
// GET /api/v1/allocations?period_id=&edition_id=&school_id=&status=
func (h *AllocationHandler) List(c *gin.Context) {
	var req dto.AllocationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 20001, err)
		return
	}

	list, err := h.allocationSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// UpdateSeats 人工调整名额
// PUT /api/v1/allocations/:id
func (h *AllocationHandler) UpdateSeats(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 20001, "分配ID不能为空")
		return
	}

	var req dto.UpdateSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 20001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	allocation, err := h.allocationSvc.UpdateSeats(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.OK(c, allocation)
}

// Create 人工新增分配
// POST /api/v1/allocations
func (h *AllocationHandler) Create(c *gin.Context) {
	var req dto.CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 20001, err)
		return
	}
	tagPeriod(c, req.PeriodID)

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	allocation, err := h.allocationSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.Created(c, allocation)
}

// Publish 发布全部暂定分配
// POST /api/v1/allocations/publish
func (h *AllocationHandler) Publish(c *gin.Context) {
	var req dto.PublishAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 20001, err)
		return
	}
	tagPeriod(c, req.PeriodID)

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.releaseSvc.PublishAll(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.OK(c, result)
}

// ListChangeLogs 人工调整记录
// GET /api/v1/allocations/change-logs?period_id=xxx&page=1&page_size=20
func (h *AllocationHandler) ListChangeLogs(c *gin.Context) {
	var req dto.ChangeLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 20001, err)
		return
	}

	logs, total, err := h.allocationSvc.ListChangeLogs(c.Request.Context(), &req)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}

	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}

func (h *AllocationHandler) handleAllocationError(c *gin.Context, err error) {
	if writeEngineError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 20101, "报名周期不存在")
	case errors.Is(err, service.ErrAllocationNotFound):
		response.NotFound(c, 20102, "分配记录不存在")
	case errors.Is(err, service.ErrEditionNotFound):
		response.NotFound(c, 20103, "工作坊场次不存在")
	case errors.Is(err, service.ErrSchoolNotFound):
		response.NotFound(c, 20104, "学校不存在")
	default:
		response.InternalError(c)
	}
}
