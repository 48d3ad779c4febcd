package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// PeriodRepository 报名周期数据访问接口
type PeriodRepository interface {
	Create(ctx context.Context, period *model.EnrollmentPeriod) error
	GetByID(ctx context.Context, id string) (*model.EnrollmentPeriod, error)
	// GetForUpdate 在当前事务中对周期行加 FOR UPDATE 锁
	GetForUpdate(ctx context.Context, id string) (*model.EnrollmentPeriod, error)
	Update(ctx context.Context, period *model.EnrollmentPeriod) error
}

type periodRepo struct {
	db *gorm.DB
}

func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) Create(ctx context.Context, period *model.EnrollmentPeriod) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *periodRepo) GetByID(ctx context.Context, id string) (*model.EnrollmentPeriod, error) {
	var period model.EnrollmentPeriod
	err := r.db.WithContext(ctx).Where("period_id = ?", id).First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) GetForUpdate(ctx context.Context, id string) (*model.EnrollmentPeriod, error) {
	var period model.EnrollmentPeriod
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("period_id = ?", id).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) Update(ctx context.Context, period *model.EnrollmentPeriod) error {
	oldVersion := period.Version
	result := r.db.WithContext(ctx).
		Model(period).
		Where("period_id = ? AND version = ?", period.PeriodID, oldVersion).
		Updates(map[string]interface{}{
			"name":         period.Name,
			"phase":        period.Phase,
			"published_at": period.PublishedAt,
			"updated_by":   period.UpdatedBy,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version = oldVersion + 1
	return nil
}
