package dto

// ── 报名周期 DTO ──

// CreatePeriodRequest 创建报名周期
type CreatePeriodRequest struct {
	Name      string `json:"name"       binding:"required,max=100"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   binding:"required,datetime=2006-01-02"`
}

// AdvancePhaseRequest 推进阶段
// ALLOCATION → PUBLICATION 只能通过发布接口完成
type AdvancePhaseRequest struct {
	TargetPhase string `json:"target_phase" binding:"required,oneof=ALLOCATION CLOSED"`
}

// PeriodResponse 报名周期响应
type PeriodResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Phase       string  `json:"phase"`
	PublishedAt *string `json:"published_at,omitempty"`
	Version     int     `json:"version"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}
