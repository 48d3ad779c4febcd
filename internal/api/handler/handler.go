package handler

import "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Period     *PeriodHandler
	Allocation *AllocationHandler
	Referent   *ReferentHandler
	Request    *RequestHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Period:     NewPeriodHandler(svc.Release),
		Allocation: NewAllocationHandler(svc.Allocation, svc.Release),
		Referent:   NewReferentHandler(svc.Referent),
		Request:    NewRequestHandler(svc.Request),
		Export:     NewExportHandler(svc.Export, svc.Calendar),
	}
}
