package model

import "time"

// 场次所在星期
const (
	DayMonday    = "MONDAY"
	DayTuesday   = "TUESDAY"
	DayWednesday = "WEDNESDAY"
	DayThursday  = "THURSDAY"
	DayFriday    = "FRIDAY"
)

// Weekday 转换为 time.Weekday，非法取值返回 false
func Weekday(day string) (time.Weekday, bool) {
	switch day {
	case DayMonday:
		return time.Monday, true
	case DayTuesday:
		return time.Tuesday, true
	case DayWednesday:
		return time.Wednesday, true
	case DayThursday:
		return time.Thursday, true
	case DayFriday:
		return time.Friday, true
	}
	return 0, false
}

// School 学校 — 对应 schools
type School struct {
	SchoolID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"school_id"`
	Name      string    `gorm:"type:varchar(200);not null"                     json:"name"`
	Code      string    `gorm:"type:varchar(30);not null;uniqueIndex"          json:"code"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (School) TableName() string { return "schools" }

// Teacher 教师 — 对应 teachers
type Teacher struct {
	TeacherID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"teacher_id"`
	SchoolID  string    `gorm:"type:uuid;not null"                             json:"school_id"`
	FullName  string    `gorm:"type:varchar(200);not null"                     json:"full_name"`
	Email     string    `gorm:"type:varchar(200)"                              json:"email,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	School *School `gorm:"foreignKey:SchoolID;references:SchoolID" json:"school,omitempty"`
}

func (Teacher) TableName() string { return "teachers" }

// Workshop 工作坊 — 对应 workshops
type Workshop struct {
	WorkshopID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"workshop_id"`
	Title      string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Provider   string    `gorm:"type:varchar(200)"                              json:"provider,omitempty"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (Workshop) TableName() string { return "workshops" }

// WorkshopEdition 工作坊场次 — 对应 workshop_editions
// 容量在分配期间只读
type WorkshopEdition struct {
	EditionID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"edition_id"`
	PeriodID      string    `gorm:"type:uuid;not null"                             json:"period_id"`
	WorkshopID    string    `gorm:"type:uuid;not null"                             json:"workshop_id"`
	DayOfWeek     string    `gorm:"type:varchar(10);not null"                      json:"day_of_week"`
	StartTime     string    `gorm:"type:varchar(5);not null"                       json:"start_time"` // HH:MM
	EndTime       string    `gorm:"type:varchar(5);not null"                       json:"end_time"`
	CapacityTotal int       `gorm:"not null"                                       json:"capacity_total"`
	MaxPerSchool  int       `gorm:"not null"                                       json:"max_per_school"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`

	Workshop *Workshop `gorm:"foreignKey:WorkshopID;references:WorkshopID" json:"workshop,omitempty"`
}

func (WorkshopEdition) TableName() string { return "workshop_editions" }
