package dto

// ── 场次负责教师 DTO ──

// AssignReferentRequest 指派负责教师
type AssignReferentRequest struct {
	EditionID      string `json:"edition_id"       binding:"required,uuid"`
	TeacherID      string `json:"teacher_id"       binding:"required,uuid"`
	IsMainReferent bool   `json:"is_main_referent"`
}

// CandidateResponse 候选教师
type CandidateResponse struct {
	Teacher         TeacherBrief `json:"teacher"`
	School          SchoolBrief  `json:"school"`
	RequestID       string       `json:"request_id"`
	PreferenceOrder int          `json:"preference_order"`
	SubmittedAt     string       `json:"submitted_at"`
	AlreadyAssigned bool         `json:"already_assigned"`
}

// ReferentResponse 负责教师指派记录
type ReferentResponse struct {
	ID             string        `json:"id"`
	EditionID      string        `json:"edition_id"`
	Teacher        *TeacherBrief `json:"teacher,omitempty"`
	IsMainReferent bool          `json:"is_main_referent"`
	AssignedAt     string        `json:"assigned_at"`
}

// EditionReferentsResponse 场次当前的负责教师
type EditionReferentsResponse struct {
	EditionID string             `json:"edition_id"`
	Referents []ReferentResponse `json:"referents"`
}
