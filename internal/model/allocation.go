package model

import "time"

// 分配状态
const (
	AllocationStatusProvisional = "PROVISIONAL"
	AllocationStatusPublished   = "PUBLISHED"
	AllocationStatusAccepted    = "ACCEPTED"
)

// Allocation 名额分配 — 对应 allocations
// (edition_id, school_id) 唯一；ACCEPTED 后不可变
type Allocation struct {
	AllocationID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"  json:"allocation_id"`
	PeriodID      string     `gorm:"type:uuid;not null"                              json:"period_id"`
	EditionID     string     `gorm:"type:uuid;not null"                              json:"edition_id"`
	SchoolID      string     `gorm:"type:uuid;not null"                              json:"school_id"`
	AssignedSeats int        `gorm:"not null"                                        json:"assigned_seats"`
	Status        string     `gorm:"type:varchar(20);not null;default:'PROVISIONAL'" json:"status"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	VersionedModel

	// 关联
	School  *School          `gorm:"foreignKey:SchoolID;references:SchoolID"   json:"school,omitempty"`
	Edition *WorkshopEdition `gorm:"foreignKey:EditionID;references:EditionID" json:"edition,omitempty"`
}

func (Allocation) TableName() string { return "allocations" }

// 变更类型
const (
	ChangeTypeManualAdjust = "manual_adjust"
	ChangeTypeManualCreate = "manual_create"
)

// AllocationChangeLog 分配人工调整记录 — 对应 allocation_change_logs（纯审计日志）
type AllocationChangeLog struct {
	ChangeLogID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	AllocationID  string    `gorm:"type:uuid;not null"                             json:"allocation_id"`
	PeriodID      string    `gorm:"type:uuid;not null"                             json:"period_id"`
	OriginalSeats int       `gorm:"not null"                                       json:"original_seats"`
	NewSeats      int       `gorm:"not null"                                       json:"new_seats"`
	ChangeType    string    `gorm:"type:varchar(20);not null"                      json:"change_type"`
	Reason        string    `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	OperatorID    string    `gorm:"type:uuid;not null"                             json:"operator_id"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (AllocationChangeLog) TableName() string { return "allocation_change_logs" }
