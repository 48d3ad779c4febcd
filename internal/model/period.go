package model

import "time"

// 报名周期阶段，只能前进
const (
	PhaseRequest     = "REQUEST"
	PhaseAllocation  = "ALLOCATION"
	PhasePublication = "PUBLICATION"
	PhaseClosed      = "CLOSED"
)

var phaseOrder = map[string]int{
	PhaseRequest:     0,
	PhaseAllocation:  1,
	PhasePublication: 2,
	PhaseClosed:      3,
}

// IsValidPhase 判断阶段取值是否合法
func IsValidPhase(phase string) bool {
	_, ok := phaseOrder[phase]
	return ok
}

// NextPhase 返回紧随其后的阶段；CLOSED 之后没有阶段
func NextPhase(phase string) (string, bool) {
	switch phase {
	case PhaseRequest:
		return PhaseAllocation, true
	case PhaseAllocation:
		return PhasePublication, true
	case PhasePublication:
		return PhaseClosed, true
	}
	return "", false
}

// EnrollmentPeriod 报名周期 — 对应 enrollment_periods
type EnrollmentPeriod struct {
	PeriodID    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_id"`
	Name        string     `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate   time.Time  `gorm:"type:date;not null"                             json:"start_date"`
	EndDate     time.Time  `gorm:"type:date;not null"                             json:"end_date"`
	Phase       string     `gorm:"type:varchar(20);not null;default:'REQUEST'"    json:"phase"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SoftDeleteVersionedModel
}

func (EnrollmentPeriod) TableName() string { return "enrollment_periods" }
