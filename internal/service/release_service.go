package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// ReleaseService 报名周期阶段控制接口
type ReleaseService interface {
	// 创建报名周期（初始阶段 REQUEST）
	Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error)
	// 获取报名周期
	Get(ctx context.Context, periodID string) (*dto.PeriodResponse, error)
	// 推进阶段：REQUEST → ALLOCATION、PUBLICATION → CLOSED
	Advance(ctx context.Context, periodID string, req *dto.AdvancePhaseRequest, callerID string) (*dto.PeriodResponse, error)
	// 发布全部暂定分配并进入 PUBLICATION，全部成功或全部不生效
	PublishAll(ctx context.Context, req *dto.PublishAllocationsRequest, callerID string) (*dto.PublishAllocationsResponse, error)
}

type releaseService struct {
	repo     *repository.Repository
	locker   PeriodLocker
	notifier Notifier
	metrics  metrics.Recorder
	logger   *zap.Logger
}

// NewReleaseService 创建 ReleaseService 实例
func NewReleaseService(
	repo *repository.Repository,
	locker PeriodLocker,
	notifier Notifier,
	rec metrics.Recorder,
	logger *zap.Logger,
) ReleaseService {
	return &releaseService{repo: repo, locker: locker, notifier: notifier, metrics: rec, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Create / Get
// ════════════════════════════════════════════════════════════

func (s *releaseService) Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error) {
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, pkgerrors.NewValidationError("start_date", "日期格式应为 YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, pkgerrors.NewValidationError("end_date", "日期格式应为 YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, pkgerrors.NewValidationError("end_date", "结束日期不能早于开始日期")
	}

	period := &model.EnrollmentPeriod{
		Name:      strings.TrimSpace(req.Name),
		StartDate: start,
		EndDate:   end,
		Phase:     model.PhaseRequest,
	}
	period.CreatedBy = &callerID
	period.UpdatedBy = &callerID

	if err := s.repo.Period.Create(ctx, period); err != nil {
		s.logger.Error("创建报名周期失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("报名周期已创建", zap.String("period_id", period.PeriodID), zap.String("name", period.Name))
	resp := toPeriodResponse(period)
	return &resp, nil
}

func (s *releaseService) Get(ctx context.Context, periodID string) (*dto.PeriodResponse, error) {
	period, err := getPeriod(ctx, s.repo, periodID, false)
	if err != nil {
		if !errors.Is(err, ErrPeriodNotFound) {
			s.logger.Error("查询报名周期失败", zap.Error(err))
		}
		return nil, err
	}
	resp := toPeriodResponse(period)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// Advance — 阶段只能逐级前进
// ════════════════════════════════════════════════════════════

func (s *releaseService) Advance(ctx context.Context, periodID string, req *dto.AdvancePhaseRequest, callerID string) (*dto.PeriodResponse, error) {
	if !model.IsValidPhase(req.TargetPhase) {
		return nil, pkgerrors.NewValidationError("target_phase", "未知阶段 "+req.TargetPhase)
	}

	unlock, err := s.locker.Lock(ctx, periodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result *model.EnrollmentPeriod
		from   string
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		period, err := getPeriod(ctx, tx, periodID, true)
		if err != nil {
			return err
		}
		from = period.Phase

		next, ok := model.NextPhase(period.Phase)
		if !ok || next != req.TargetPhase {
			return pkgerrors.NewPhaseError("AdvancePhase("+req.TargetPhase+")", period.Phase, requiredFor(req.TargetPhase)...)
		}
		// 进入 PUBLICATION 必须经过发布校验
		if req.TargetPhase == model.PhasePublication {
			return pkgerrors.NewPhaseError("AdvancePhase(PUBLICATION)", period.Phase, "PublishAll")
		}

		period.Phase = req.TargetPhase
		period.UpdatedBy = &callerID
		if err := tx.Period.Update(ctx, period); err != nil {
			return err
		}
		result = period
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("推进报名周期阶段失败", zap.String("period_id", periodID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("报名周期阶段已推进",
		zap.String("period_id", periodID),
		zap.String("from", from),
		zap.String("to", result.Phase),
	)
	s.notifier.Notify(ctx, Event{
		Type:     EventPhaseAdvanced,
		PeriodID: periodID,
		At:       time.Now().UTC(),
		Payload:  map[string]string{"from": from, "to": result.Phase},
	})

	resp := toPeriodResponse(result)
	return &resp, nil
}

// requiredFor 进入目标阶段前所需的阶段
func requiredFor(target string) []string {
	switch target {
	case model.PhaseAllocation:
		return []string{model.PhaseRequest}
	case model.PhasePublication:
		return []string{model.PhaseAllocation}
	case model.PhaseClosed:
		return []string{model.PhasePublication}
	}
	return []string{"-"}
}

// ════════════════════════════════════════════════════════════
// PublishAll — 全量校验后一次性发布
// ════════════════════════════════════════════════════════════

func (s *releaseService) PublishAll(ctx context.Context, req *dto.PublishAllocationsRequest, callerID string) (*dto.PublishAllocationsResponse, error) {
	periodID := req.PeriodID

	unlock, err := s.locker.Lock(ctx, periodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		period    *model.EnrollmentPeriod
		published int64
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		p, err := getPeriod(ctx, tx, periodID, true)
		if err != nil {
			return err
		}
		if p.Phase != model.PhaseAllocation {
			return pkgerrors.NewPhaseError("PublishAll", p.Phase, model.PhaseAllocation)
		}

		provisional, err := tx.Allocation.List(ctx, repository.AllocationFilter{
			PeriodID: periodID,
			Status:   model.AllocationStatusProvisional,
		})
		if err != nil {
			return err
		}
		if len(provisional) == 0 {
			return pkgerrors.NewValidationError("period_id", "没有待发布的暂定分配")
		}

		if err := s.verifyCeilings(ctx, tx, periodID); err != nil {
			return err
		}

		now := time.Now().UTC()
		n, err := tx.Allocation.PublishByPeriod(ctx, periodID, now, callerID)
		if err != nil {
			return err
		}
		if n != int64(len(provisional)) {
			return pkgerrors.ErrOptimisticLock
		}

		p.Phase = model.PhasePublication
		p.PublishedAt = &now
		p.UpdatedBy = &callerID
		if err := tx.Period.Update(ctx, p); err != nil {
			return err
		}
		period = p
		published = n
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			s.metrics.Publish(metrics.ResultRejected, 0)
		} else {
			s.metrics.Publish(metrics.ResultError, 0)
			s.logger.Error("发布分配失败", zap.String("period_id", periodID), zap.Error(err))
		}
		return nil, err
	}

	allocations, err := s.repo.Allocation.List(ctx, repository.AllocationFilter{PeriodID: periodID})
	if err != nil {
		s.logger.Error("查询已发布分配失败", zap.Error(err))
		return nil, err
	}

	s.metrics.Publish(metrics.ResultSuccess, int(published))
	s.logger.Info("分配已发布",
		zap.String("period_id", periodID),
		zap.Int64("published", published),
		zap.String("operator", callerID),
	)
	s.notifier.Notify(ctx, Event{
		Type:     EventAllocationPublished,
		PeriodID: periodID,
		At:       time.Now().UTC(),
		Payload:  map[string]int64{"published_count": published},
	})

	return &dto.PublishAllocationsResponse{
		Period:         toPeriodResponse(period),
		PublishedCount: int(published),
		Allocations:    toAllocationResponses(allocations),
	}, nil
}

// verifyCeilings 发布前重新核对全部场次的容量与单校上限
func (s *releaseService) verifyCeilings(ctx context.Context, tx *repository.Repository, periodID string) error {
	editions, err := tx.Edition.ListByPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	all, err := tx.Allocation.List(ctx, repository.AllocationFilter{PeriodID: periodID})
	if err != nil {
		return err
	}

	used := make(map[string]int, len(editions))
	for _, a := range all {
		used[a.EditionID] += a.AssignedSeats
	}
	byID := make(map[string]model.WorkshopEdition, len(editions))
	for _, e := range editions {
		byID[e.EditionID] = e
	}

	for _, a := range all {
		e, ok := byID[a.EditionID]
		if !ok {
			return pkgerrors.NewValidationError("edition_id", "分配 "+a.AllocationID+" 引用了不属于该周期的场次")
		}
		if a.AssignedSeats > e.MaxPerSchool {
			return &pkgerrors.CapacityExceededError{
				Scope:     pkgerrors.ScopeMaxPerSchool,
				Used:      0,
				Requested: a.AssignedSeats,
				Limit:     e.MaxPerSchool,
			}
		}
	}
	for _, e := range editions {
		if used[e.EditionID] > e.CapacityTotal {
			return &pkgerrors.CapacityExceededError{
				Scope:     pkgerrors.ScopeCapacityTotal,
				Used:      used[e.EditionID],
				Requested: 0,
				Limit:     e.CapacityTotal,
			}
		}
	}
	return nil
}

// isBusinessError 业务规则拒绝，无需按系统错误记录
func isBusinessError(err error) bool {
	return errors.Is(err, pkgerrors.ErrValidation) ||
		errors.Is(err, pkgerrors.ErrPhase) ||
		errors.Is(err, pkgerrors.ErrCapacityExceeded) ||
		errors.Is(err, pkgerrors.ErrConflict) ||
		errors.Is(err, pkgerrors.ErrOptimisticLock) ||
		errors.Is(err, ErrPeriodBusy) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrEditionNotFound) ||
		errors.Is(err, ErrSchoolNotFound) ||
		errors.Is(err, ErrTeacherNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrReferentNotFound)
}
