package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
)

// SchoolRepository 学校只读访问接口
type SchoolRepository interface {
	GetByID(ctx context.Context, id string) (*model.School, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.School, error)
}

// TeacherRepository 教师只读访问接口
type TeacherRepository interface {
	GetByID(ctx context.Context, id string) (*model.Teacher, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Teacher, error)
}

// EditionRepository 工作坊场次访问接口（分配期间容量只读）
type EditionRepository interface {
	GetByID(ctx context.Context, id string) (*model.WorkshopEdition, error)
	// GetForUpdate 对场次行加锁，用于串行化负责教师指派
	GetForUpdate(ctx context.Context, id string) (*model.WorkshopEdition, error)
	ListByPeriod(ctx context.Context, periodID string) ([]model.WorkshopEdition, error)
}

// ── School Repository 实现 ──

type schoolRepo struct {
	db *gorm.DB
}

func NewSchoolRepo(db *gorm.DB) SchoolRepository {
	return &schoolRepo{db: db}
}

func (r *schoolRepo) GetByID(ctx context.Context, id string) (*model.School, error) {
	var school model.School
	if err := r.db.WithContext(ctx).Where("school_id = ?", id).First(&school).Error; err != nil {
		return nil, err
	}
	return &school, nil
}

func (r *schoolRepo) ListByIDs(ctx context.Context, ids []string) ([]model.School, error) {
	var schools []model.School
	if len(ids) == 0 {
		return schools, nil
	}
	err := r.db.WithContext(ctx).Where("school_id IN ?", ids).Order("school_id").Find(&schools).Error
	return schools, err
}

// ── Teacher Repository 实现 ──

type teacherRepo struct {
	db *gorm.DB
}

func NewTeacherRepo(db *gorm.DB) TeacherRepository {
	return &teacherRepo{db: db}
}

func (r *teacherRepo) GetByID(ctx context.Context, id string) (*model.Teacher, error) {
	var teacher model.Teacher
	err := r.db.WithContext(ctx).Preload("School").Where("teacher_id = ?", id).First(&teacher).Error
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (r *teacherRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Teacher, error) {
	var teachers []model.Teacher
	if len(ids) == 0 {
		return teachers, nil
	}
	err := r.db.WithContext(ctx).Where("teacher_id IN ?", ids).Order("teacher_id").Find(&teachers).Error
	return teachers, err
}

// ── Edition Repository 实现 ──

type editionRepo struct {
	db *gorm.DB
}

func NewEditionRepo(db *gorm.DB) EditionRepository {
	return &editionRepo{db: db}
}

func (r *editionRepo) GetByID(ctx context.Context, id string) (*model.WorkshopEdition, error) {
	var edition model.WorkshopEdition
	err := r.db.WithContext(ctx).Preload("Workshop").Where("edition_id = ?", id).First(&edition).Error
	if err != nil {
		return nil, err
	}
	return &edition, nil
}

func (r *editionRepo) GetForUpdate(ctx context.Context, id string) (*model.WorkshopEdition, error) {
	var edition model.WorkshopEdition
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("edition_id = ?", id).
		First(&edition).Error
	if err != nil {
		return nil, err
	}
	return &edition, nil
}

func (r *editionRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.WorkshopEdition, error) {
	var editions []model.WorkshopEdition
	err := r.db.WithContext(ctx).
		Preload("Workshop").
		Where("period_id = ?", periodID).
		Order("edition_id ASC").
		Find(&editions).Error
	return editions, err
}
