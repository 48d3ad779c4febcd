package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
)

// ReferentRepository 场次负责教师数据访问接口
type ReferentRepository interface {
	Create(ctx context.Context, assignment *model.ReferentAssignment) error
	GetByID(ctx context.Context, id string) (*model.ReferentAssignment, error)
	// ListByEdition 主负责人在前，其余按指派时间
	ListByEdition(ctx context.Context, editionID string) ([]model.ReferentAssignment, error)
	Delete(ctx context.Context, id string) error
}

type referentRepo struct {
	db *gorm.DB
}

func NewReferentRepo(db *gorm.DB) ReferentRepository {
	return &referentRepo{db: db}
}

func (r *referentRepo) Create(ctx context.Context, assignment *model.ReferentAssignment) error {
	return r.db.WithContext(ctx).Omit("Teacher").Create(assignment).Error
}

func (r *referentRepo) GetByID(ctx context.Context, id string) (*model.ReferentAssignment, error) {
	var assignment model.ReferentAssignment
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("assignment_id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *referentRepo) ListByEdition(ctx context.Context, editionID string) ([]model.ReferentAssignment, error) {
	var assignments []model.ReferentAssignment
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("edition_id = ?", editionID).
		Order("is_main_referent DESC, assigned_at ASC, assignment_id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *referentRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		Delete(&model.ReferentAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
