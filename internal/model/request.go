package model

import "time"

// 申请状态
const (
	RequestStatusDraft     = "DRAFT"
	RequestStatusSubmitted = "SUBMITTED"
	RequestStatusCancelled = "CANCELLED"
)

// Request 学校报名申请 — 对应 requests
// 同一学校在同一周期内最多一份 SUBMITTED 申请
type Request struct {
	RequestID            string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	PeriodID             string     `gorm:"type:uuid;not null"                             json:"period_id"`
	SchoolID             string     `gorm:"type:uuid;not null"                             json:"school_id"`
	Status               string     `gorm:"type:varchar(20);not null;default:'DRAFT'"      json:"status"`
	IsFirstTime          bool       `gorm:"column:is_first_time_participation;not null"    json:"is_first_time_participation"`
	AvailableForTuesdays bool       `gorm:"not null;default:true"                          json:"available_for_tuesdays"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`
	VersionedModel

	// 关联
	School      *School             `gorm:"foreignKey:SchoolID;references:SchoolID" json:"school,omitempty"`
	Items       []RequestItem       `gorm:"foreignKey:RequestID"                    json:"items,omitempty"`
	Teachers    []RequestTeacher    `gorm:"foreignKey:RequestID"                    json:"teachers,omitempty"`
	Preferences []TeacherPreference `gorm:"foreignKey:RequestID"                    json:"preferences,omitempty"`
}

func (Request) TableName() string { return "requests" }

// RequestItem 申请明细 — 对应 request_items
type RequestItem struct {
	ItemID         string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"item_id"`
	RequestID      string      `gorm:"type:uuid;not null"                             json:"request_id"`
	EditionID      string      `gorm:"type:uuid;not null"                             json:"edition_id"`
	RequestedSeats int         `gorm:"type:smallint;not null"                         json:"requested_seats"` // 1-4
	Priority       int         `gorm:"type:smallint;not null"                         json:"priority"`        // 1 最高
	StudentIDs     StringArray `gorm:"type:text[];not null"                           json:"student_ids"`
}

func (RequestItem) TableName() string { return "request_items" }

// RequestTeacher 随行教师 — 对应 request_teachers
type RequestTeacher struct {
	RequestTeacherID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_teacher_id"`
	RequestID        string `gorm:"type:uuid;not null"                             json:"request_id"`
	TeacherID        string `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Position         int    `gorm:"type:smallint;not null"                         json:"position"` // 1 | 2

	Teacher *Teacher `gorm:"foreignKey:TeacherID;references:TeacherID" json:"teacher,omitempty"`
}

func (RequestTeacher) TableName() string { return "request_teachers" }

// TeacherPreference 教师对场次的志愿排序 — 对应 teacher_preferences
type TeacherPreference struct {
	PreferenceID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"preference_id"`
	RequestID       string `gorm:"type:uuid;not null"                             json:"request_id"`
	TeacherID       string `gorm:"type:uuid;not null"                             json:"teacher_id"`
	EditionID       string `gorm:"type:uuid;not null"                             json:"edition_id"`
	PreferenceOrder int    `gorm:"type:smallint;not null"                         json:"preference_order"` // 1-3
}

func (TeacherPreference) TableName() string { return "teacher_preferences" }
