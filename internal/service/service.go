package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/config"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/redis"
)

// ── 通用业务错误 ──

var (
	ErrPeriodNotFound     = errors.New("报名周期不存在")
	ErrAllocationNotFound = errors.New("分配记录不存在")
	ErrEditionNotFound    = errors.New("工作坊场次不存在")
	ErrSchoolNotFound     = errors.New("学校不存在")
	ErrTeacherNotFound    = errors.New("教师不存在")
	ErrRequestNotFound    = errors.New("申请不存在")
	ErrReferentNotFound   = errors.New("负责教师指派记录不存在")
)

// Service 所有 Service 的聚合入口
type Service struct {
	Release    ReleaseService
	Allocation AllocationService
	Referent   ReferentService
	Request    RequestService
	Export     ExportService
	Calendar   CalendarService
}

// NewService 创建 Service 聚合
// rdb 可以为 nil：周期锁降级为进程内锁，事件通知关闭
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	rec metrics.Recorder,
	logger *zap.Logger,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	locker := NewPeriodLocker(rdb, cfg.Allocation.LockTTL, cfg.Allocation.LockWait, rec, logger)
	notifier := NewNotifier(rdb, cfg.Redis.NotifyChannel, logger)

	return &Service{
		Release:    NewReleaseService(repo, locker, notifier, rec, logger),
		Allocation: NewAllocationService(&cfg.Allocation, repo, locker, notifier, rec, logger),
		Referent:   NewReferentService(repo, rec, logger),
		Request:    NewRequestService(repo, logger),
		Export:     NewExportService(repo, logger),
		Calendar:   NewCalendarService(&cfg.Allocation, repo, logger),
	}
}

// getPeriod 查询周期，记录不存在映射为 ErrPeriodNotFound
func getPeriod(ctx context.Context, repo *repository.Repository, periodID string, forUpdate bool) (*model.EnrollmentPeriod, error) {
	var (
		period *model.EnrollmentPeriod
		err    error
	)
	if forUpdate {
		period, err = repo.Period.GetForUpdate(ctx, periodID)
	} else {
		period, err = repo.Period.GetByID(ctx, periodID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	return period, nil
}
