package repository

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
)

// ErrNoDatabase Repository 未绑定数据库连接
var ErrNoDatabase = errors.New("repository 未绑定数据库连接")

// Transactor 事务边界与连接检查
// 生产环境由 gorm 实现；单元测试由内存 mock 实现
type Transactor interface {
	// Transaction 在事务中执行 fn，fn 内必须使用 tx 聚合访问数据
	Transaction(ctx context.Context, fn func(tx *Repository) error) error
	Ping(ctx context.Context) error
}

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Tx Transactor

	Period     PeriodRepository
	School     SchoolRepository
	Teacher    TeacherRepository
	Edition    EditionRepository
	Request    RequestRepository
	Allocation AllocationRepository
	ChangeLog  AllocationChangeLogRepository
	Referent   ReferentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Tx:         &gormTransactor{db: db},
		Period:     NewPeriodRepo(db),
		School:     NewSchoolRepo(db),
		Teacher:    NewTeacherRepo(db),
		Edition:    NewEditionRepo(db),
		Request:    NewRequestRepo(db),
		Allocation: NewAllocationRepo(db),
		ChangeLog:  NewAllocationChangeLogRepo(db),
		Referent:   NewReferentRepo(db),
	}
}

// Transaction 委托给 Tx 执行事务
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Tx == nil {
		return ErrNoDatabase
	}
	return r.Tx.Transaction(ctx, fn)
}

// Ping 数据库健康检查
func (r *Repository) Ping(ctx context.Context) error {
	if r.Tx == nil {
		return ErrNoDatabase
	}
	return r.Tx.Ping(ctx)
}

// gormTransactor SERIALIZABLE 隔离级别的 gorm 事务
type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if t.db == nil {
		return ErrNoDatabase
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (t *gormTransactor) Ping(ctx context.Context) error {
	if t.db == nil {
		return ErrNoDatabase
	}
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
