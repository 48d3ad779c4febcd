package model

import "time"

// 每个场次的负责教师上限
const MaxReferentsPerEdition = 2

// ReferentAssignment 场次负责教师 — 对应 referent_assignments
// 每个场次最多 2 位，其中最多 1 位为主负责人
type ReferentAssignment struct {
	AssignmentID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	EditionID      string    `gorm:"type:uuid;not null"                             json:"edition_id"`
	TeacherID      string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	IsMainReferent bool      `gorm:"not null;default:false"                         json:"is_main_referent"`
	AssignedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"assigned_at"`
	AssignedBy     *string   `gorm:"type:uuid"                                      json:"assigned_by,omitempty"`

	Teacher *Teacher `gorm:"foreignKey:TeacherID;references:TeacherID" json:"teacher,omitempty"`
}

func (ReferentAssignment) TableName() string { return "referent_assignments" }
