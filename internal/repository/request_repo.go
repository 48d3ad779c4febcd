package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// CandidateRow 教师志愿联表结果
type CandidateRow struct {
	TeacherID       string
	FullName        string
	Email           string
	SchoolID        string
	SchoolName      string
	SchoolCode      string
	RequestID       string
	PreferenceOrder int
	SubmittedAt     time.Time
}

// RequestRepository 学校申请数据访问接口
type RequestRepository interface {
	// Create 连同明细、随行教师、志愿一并写入
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, id string) (*model.Request, error)
	GetSubmittedBySchool(ctx context.Context, periodID, schoolID string) (*model.Request, error)
	ListSubmittedByPeriod(ctx context.Context, periodID string) ([]model.Request, error)
	Update(ctx context.Context, req *model.Request) error
	// ListCandidatesByEdition 已提交申请中把该场次列为志愿的教师
	ListCandidatesByEdition(ctx context.Context, editionID string) ([]CandidateRow, error)
}

type requestRepo struct {
	db *gorm.DB
}

func NewRequestRepo(db *gorm.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) Create(ctx context.Context, req *model.Request) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	err := r.db.WithContext(ctx).
		Preload("School").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("priority ASC") }).
		Preload("Teachers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Preferences", func(db *gorm.DB) *gorm.DB { return db.Order("teacher_id, preference_order") }).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepo) GetSubmittedBySchool(ctx context.Context, periodID, schoolID string) (*model.Request, error) {
	var req model.Request
	err := r.db.WithContext(ctx).
		Where("period_id = ? AND school_id = ? AND status = ?", periodID, schoolID, model.RequestStatusSubmitted).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepo) ListSubmittedByPeriod(ctx context.Context, periodID string) ([]model.Request, error) {
	var reqs []model.Request
	err := r.db.WithContext(ctx).
		Preload("School").
		Preload("Items").
		Where("period_id = ? AND status = ?", periodID, model.RequestStatusSubmitted).
		Order("submitted_at ASC, request_id ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *requestRepo) Update(ctx context.Context, req *model.Request) error {
	oldVersion := req.Version
	result := r.db.WithContext(ctx).
		Model(req).
		Where("request_id = ? AND version = ?", req.RequestID, oldVersion).
		Updates(map[string]interface{}{
			"status":       req.Status,
			"submitted_at": req.SubmittedAt,
			"updated_by":   req.UpdatedBy,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version = oldVersion + 1
	return nil
}

func (r *requestRepo) ListCandidatesByEdition(ctx context.Context, editionID string) ([]CandidateRow, error) {
	var rows []CandidateRow
	err := r.db.WithContext(ctx).
		Table("teacher_preferences tp").
		Select(`tp.teacher_id, t.full_name, t.email, s.school_id, s.name AS school_name, s.code AS school_code,
			rq.request_id, tp.preference_order, rq.submitted_at`).
		Joins("JOIN requests rq ON rq.request_id = tp.request_id").
		Joins("JOIN teachers t ON t.teacher_id = tp.teacher_id").
		Joins("JOIN schools s ON s.school_id = rq.school_id").
		Where("tp.edition_id = ? AND rq.status = ?", editionID, model.RequestStatusSubmitted).
		Order("tp.preference_order ASC, rq.submitted_at DESC, tp.teacher_id ASC").
		Scan(&rows).Error
	return rows, err
}
