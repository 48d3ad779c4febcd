package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/jwt"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, calendarSvc service.CalendarService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, calendarSvc: calendarSvc}
}

// ExportAllocations 导出分配结果
// GET /api/v1/export/allocations?period_id=xxx
func (h *ExportHandler) ExportAllocations(c *gin.Context) {
	periodID := c.Query("period_id")
	if periodID == "" {
		response.BadRequest(c, 70001, "period_id 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportAllocations(c.Request.Context(), periodID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportCalendar 导出已发布分配的 iCalendar 日程
// GET /api/v1/export/calendar?period_id=xxx&school_id=xxx
// 非管理员只能导出令牌绑定学校的日程
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	periodID := c.Query("period_id")
	if periodID == "" {
		response.BadRequest(c, 70001, "period_id 不能为空")
		return
	}

	role, ok := MustGetRole(c)
	if !ok {
		return
	}
	schoolID := c.Query("school_id")
	if role != jwt.RoleAdmin {
		own := GetSchoolID(c)
		if own == "" || (schoolID != "" && schoolID != own) {
			response.Forbidden(c, 10003, "只能导出本校的日程")
			return
		}
		schoolID = own
	}

	data, filename, err := h.calendarSvc.ExportCalendar(c.Request.Context(), periodID, schoolID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if writeEngineError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 70101, "报名周期不存在")
	case errors.Is(err, service.ErrExportNoAllocations):
		response.NotFound(c, 70102, "该周期暂无分配记录")
	default:
		response.InternalError(c)
	}
}
