package dto

// ── 学校申请 DTO ──

// SubmitRequestRequest 提交申请
// 名额与学生人数一致、总名额上限、教师不重复由结构级校验器检查
type SubmitRequestRequest struct {
	PeriodID                 string                `json:"period_id"                   binding:"required,uuid"`
	SchoolID                 string                `json:"school_id"                   binding:"required,uuid"`
	IsFirstTimeParticipation bool                  `json:"is_first_time_participation"`
	AvailableForTuesdays     *bool                 `json:"available_for_tuesdays"`
	Items                    []RequestItemInput    `json:"items"                       binding:"required,min=1,dive"`
	Teachers                 []RequestTeacherInput `json:"teachers"                    binding:"required,len=2,dive"`
}

// RequestItemInput 申请明细
type RequestItemInput struct {
	EditionID      string   `json:"edition_id"      binding:"required,uuid"`
	RequestedSeats int      `json:"requested_seats" binding:"required,min=1,max=4"`
	Priority       int      `json:"priority"        binding:"required,min=1"`
	StudentIDs     []string `json:"student_ids"     binding:"required,dive,required,max=50"`
}

// RequestTeacherInput 随行教师及其场次志愿（按顺序）
type RequestTeacherInput struct {
	TeacherID   string   `json:"teacher_id"  binding:"required,uuid"`
	Preferences []string `json:"preferences" binding:"omitempty,max=3,dive,uuid"`
}

// RequestResponse 申请响应
type RequestResponse struct {
	ID                   string                   `json:"id"`
	PeriodID             string                   `json:"period_id"`
	SchoolID             string                   `json:"school_id"`
	Status               string                   `json:"status"`
	IsFirstTime          bool                     `json:"is_first_time_participation"`
	AvailableForTuesdays bool                     `json:"available_for_tuesdays"`
	SubmittedAt          *string                  `json:"submitted_at,omitempty"`
	Items                []RequestItemResponse    `json:"items"`
	Teachers             []RequestTeacherResponse `json:"teachers"`
}

// RequestItemResponse 申请明细响应
type RequestItemResponse struct {
	EditionID      string   `json:"edition_id"`
	RequestedSeats int      `json:"requested_seats"`
	Priority       int      `json:"priority"`
	StudentIDs     []string `json:"student_ids"`
}

// RequestTeacherResponse 随行教师响应
type RequestTeacherResponse struct {
	TeacherID   string   `json:"teacher_id"`
	Position    int      `json:"position"`
	Preferences []string `json:"preferences"`
}
