package dto

// ── 名额分配 DTO ──

// RunAllocationRequest 执行分配
type RunAllocationRequest struct {
	PeriodID   string `json:"period_id"   binding:"required,uuid"`
	ForceRerun bool   `json:"force_rerun"`
}

// RunAllocationResponse 分配结果
type RunAllocationResponse struct {
	PeriodID               string               `json:"period_id"`
	AllocationsCreated     int                  `json:"allocations_created"`
	TotalStudentsAllocated int                  `json:"total_students_allocated"`
	SchoolsTouched         int                  `json:"schools_touched"`
	ReplacedProvisional    int                  `json:"replaced_provisional"`
	TieBreak               string               `json:"tie_break"`
	Allocations            []AllocationResponse `json:"allocations"`
	Shortfalls             []ShortfallResponse  `json:"shortfalls"`
	Warnings               []string             `json:"warnings"`
}

// ShortfallResponse 未满足或部分满足的需求
type ShortfallResponse struct {
	EditionID string `json:"edition_id"`
	SchoolID  string `json:"school_id"`
	Priority  int    `json:"priority"`
	Requested int    `json:"requested"`
	Granted   int    `json:"granted"`
	Reason    string `json:"reason"`
}

// DemandSummaryRequest 需求汇总查询参数
type DemandSummaryRequest struct {
	PeriodID string `form:"period_id" binding:"required,uuid"`
}

// DemandSummaryResponse 需求汇总
type DemandSummaryResponse struct {
	PeriodID string             `json:"period_id"`
	Rows     []EditionDemandRow `json:"rows"`
	Warnings []string           `json:"warnings"`
}

// EditionDemandRow 单个场次的需求汇总行
type EditionDemandRow struct {
	Edition        EditionBrief       `json:"edition"`
	CapacityTotal  int                `json:"capacity_total"`
	MaxPerSchool   int                `json:"max_per_school"`
	TotalRequested int                `json:"total_requested"`
	SchoolCount    int                `json:"school_count"`
	TopPriority    int                `json:"top_priority"`
	Oversubscribed bool               `json:"oversubscribed"`
	Schools        []SchoolDemandLine `json:"schools"`
}

// SchoolDemandLine 学校对场次的需求
type SchoolDemandLine struct {
	School               SchoolBrief `json:"school"`
	Requested            int         `json:"requested"`
	Priority             int         `json:"priority"`
	IsFirstTime          bool        `json:"is_first_time_participation"`
	AvailableForTuesdays bool        `json:"available_for_tuesdays"`
}

// AllocationListRequest 分配列表查询参数
type AllocationListRequest struct {
	PeriodID  string `form:"period_id"  binding:"required,uuid"`
	EditionID string `form:"edition_id" binding:"omitempty,uuid"`
	SchoolID  string `form:"school_id"  binding:"omitempty,uuid"`
	Status    string `form:"status"     binding:"omitempty,oneof=PROVISIONAL PUBLISHED ACCEPTED"`
}

// AllocationResponse 分配记录响应
type AllocationResponse struct {
	ID            string        `json:"id"`
	PeriodID      string        `json:"period_id"`
	Edition       *EditionBrief `json:"edition,omitempty"`
	School        *SchoolBrief  `json:"school,omitempty"`
	AssignedSeats int           `json:"assigned_seats"`
	Status        string        `json:"status"`
	PublishedAt   *string       `json:"published_at,omitempty"`
	Version       int           `json:"version"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

// UpdateSeatsRequest 人工调整名额
type UpdateSeatsRequest struct {
	AssignedSeats int    `json:"assigned_seats" binding:"required,min=1"`
	Reason        string `json:"reason"         binding:"omitempty,max=500"`
}

// CreateAllocationRequest 人工新增分配
type CreateAllocationRequest struct {
	PeriodID      string `json:"period_id"      binding:"required,uuid"`
	EditionID     string `json:"edition_id"     binding:"required,uuid"`
	SchoolID      string `json:"school_id"      binding:"required,uuid"`
	AssignedSeats int    `json:"assigned_seats" binding:"required,min=1"`
	Reason        string `json:"reason"         binding:"omitempty,max=500"`
}

// PublishAllocationsRequest 发布全部分配
type PublishAllocationsRequest struct {
	PeriodID string `json:"period_id" binding:"required,uuid"`
}

// PublishAllocationsResponse 发布结果
type PublishAllocationsResponse struct {
	Period         PeriodResponse       `json:"period"`
	PublishedCount int                  `json:"published_count"`
	Allocations    []AllocationResponse `json:"allocations"`
}

// ChangeLogListRequest 变更日志查询参数
type ChangeLogListRequest struct {
	PeriodID string `form:"period_id" binding:"required,uuid"`
	PaginationRequest
}

// ChangeLogResponse 变更日志响应
type ChangeLogResponse struct {
	ID            string `json:"id"`
	AllocationID  string `json:"allocation_id"`
	OriginalSeats int    `json:"original_seats"`
	NewSeats      int    `json:"new_seats"`
	ChangeType    string `json:"change_type"`
	Reason        string `json:"reason,omitempty"`
	OperatorID    string `json:"operator_id"`
	CreatedAt     string `json:"created_at"`
}
