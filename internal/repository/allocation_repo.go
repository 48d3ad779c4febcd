package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// AllocationFilter 分配列表过滤条件
type AllocationFilter struct {
	PeriodID  string
	EditionID string
	SchoolID  string
	Status    string
}

// AllocationRepository 名额分配数据访问接口
type AllocationRepository interface {
	BatchCreate(ctx context.Context, allocations []model.Allocation) error
	Create(ctx context.Context, allocation *model.Allocation) error
	GetByID(ctx context.Context, id string) (*model.Allocation, error)
	GetForUpdate(ctx context.Context, id string) (*model.Allocation, error)
	GetByEditionSchool(ctx context.Context, editionID, schoolID string) (*model.Allocation, error)
	List(ctx context.Context, filter AllocationFilter) ([]model.Allocation, error)
	CountByPeriodStatus(ctx context.Context, periodID, status string) (int64, error)
	// SumSeatsByEdition 场次已分配名额之和，excludeID 非空时排除该条记录
	SumSeatsByEdition(ctx context.Context, editionID, excludeID string) (int, error)
	Update(ctx context.Context, allocation *model.Allocation) error
	DeleteProvisionalByPeriod(ctx context.Context, periodID string) (int64, error)
	PublishByPeriod(ctx context.Context, periodID string, publishedAt time.Time, operatorID string) (int64, error)
}

// AllocationChangeLogRepository 分配变更日志数据访问接口
type AllocationChangeLogRepository interface {
	Create(ctx context.Context, log *model.AllocationChangeLog) error
	ListByPeriod(ctx context.Context, periodID string, offset, limit int) ([]model.AllocationChangeLog, int64, error)
}

// ── Allocation Repository 实现 ──

type allocationRepo struct {
	db *gorm.DB
}

func NewAllocationRepo(db *gorm.DB) AllocationRepository {
	return &allocationRepo{db: db}
}

func (r *allocationRepo) BatchCreate(ctx context.Context, allocations []model.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&allocations).Error
}

func (r *allocationRepo) Create(ctx context.Context, allocation *model.Allocation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(allocation).Error
}

func (r *allocationRepo) GetByID(ctx context.Context, id string) (*model.Allocation, error) {
	var allocation model.Allocation
	err := r.db.WithContext(ctx).
		Preload("School").
		Preload("Edition").Preload("Edition.Workshop").
		Where("allocation_id = ?", id).
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *allocationRepo) GetForUpdate(ctx context.Context, id string) (*model.Allocation, error) {
	var allocation model.Allocation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("allocation_id = ?", id).
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *allocationRepo) GetByEditionSchool(ctx context.Context, editionID, schoolID string) (*model.Allocation, error) {
	var allocation model.Allocation
	err := r.db.WithContext(ctx).
		Where("edition_id = ? AND school_id = ?", editionID, schoolID).
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *allocationRepo) List(ctx context.Context, filter AllocationFilter) ([]model.Allocation, error) {
	var allocations []model.Allocation
	db := r.db.WithContext(ctx).
		Preload("School").
		Preload("Edition").Preload("Edition.Workshop").
		Where("period_id = ?", filter.PeriodID)
	if filter.EditionID != "" {
		db = db.Where("edition_id = ?", filter.EditionID)
	}
	if filter.SchoolID != "" {
		db = db.Where("school_id = ?", filter.SchoolID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("edition_id ASC, school_id ASC").Find(&allocations).Error
	return allocations, err
}

func (r *allocationRepo) CountByPeriodStatus(ctx context.Context, periodID, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Allocation{}).
		Where("period_id = ? AND status = ?", periodID, status).
		Count(&count).Error
	return count, err
}

func (r *allocationRepo) SumSeatsByEdition(ctx context.Context, editionID, excludeID string) (int, error) {
	var sum int
	db := r.db.WithContext(ctx).
		Model(&model.Allocation{}).
		Select("COALESCE(SUM(assigned_seats), 0)").
		Where("edition_id = ?", editionID)
	if excludeID != "" {
		db = db.Where("allocation_id <> ?", excludeID)
	}
	err := db.Scan(&sum).Error
	return sum, err
}

func (r *allocationRepo) Update(ctx context.Context, allocation *model.Allocation) error {
	oldVersion := allocation.Version
	result := r.db.WithContext(ctx).
		Model(allocation).
		Where("allocation_id = ? AND version = ?", allocation.AllocationID, oldVersion).
		Updates(map[string]interface{}{
			"assigned_seats": allocation.AssignedSeats,
			"status":         allocation.Status,
			"published_at":   allocation.PublishedAt,
			"updated_by":     allocation.UpdatedBy,
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	allocation.Version = oldVersion + 1
	return nil
}

func (r *allocationRepo) DeleteProvisionalByPeriod(ctx context.Context, periodID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("period_id = ? AND status = ?", periodID, model.AllocationStatusProvisional).
		Delete(&model.Allocation{})
	return result.RowsAffected, result.Error
}

func (r *allocationRepo) PublishByPeriod(ctx context.Context, periodID string, publishedAt time.Time, operatorID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Allocation{}).
		Where("period_id = ? AND status = ?", periodID, model.AllocationStatusProvisional).
		Updates(map[string]interface{}{
			"status":       model.AllocationStatusPublished,
			"published_at": publishedAt,
			"updated_by":   operatorID,
			"updated_at":   publishedAt,
			"version":      gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

// ── AllocationChangeLog Repository 实现 ──

type allocationChangeLogRepo struct {
	db *gorm.DB
}

func NewAllocationChangeLogRepo(db *gorm.DB) AllocationChangeLogRepository {
	return &allocationChangeLogRepo{db: db}
}

func (r *allocationChangeLogRepo) Create(ctx context.Context, log *model.AllocationChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *allocationChangeLogRepo) ListByPeriod(ctx context.Context, periodID string, offset, limit int) ([]model.AllocationChangeLog, int64, error) {
	var logs []model.AllocationChangeLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AllocationChangeLog{}).
		Where("period_id = ?", periodID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, total, err
}
