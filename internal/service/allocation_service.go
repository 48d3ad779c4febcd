package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/config"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/allocation"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// AllocationService 名额分配业务接口
type AllocationService interface {
	// 执行分配，替换当前周期全部暂定分配
	Run(ctx context.Context, req *dto.RunAllocationRequest, callerID string) (*dto.RunAllocationResponse, error)
	// 按场次汇总需求
	DemandSummary(ctx context.Context, req *dto.DemandSummaryRequest) (*dto.DemandSummaryResponse, error)
	// 分配列表
	List(ctx context.Context, req *dto.AllocationListRequest) ([]dto.AllocationResponse, error)
	// 人工调整单条暂定分配的名额
	UpdateSeats(ctx context.Context, allocationID string, req *dto.UpdateSeatsRequest, callerID string) (*dto.AllocationResponse, error)
	// 人工新增暂定分配
	Create(ctx context.Context, req *dto.CreateAllocationRequest, callerID string) (*dto.AllocationResponse, error)
	// 人工调整记录
	ListChangeLogs(ctx context.Context, req *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error)
}

type allocationService struct {
	cfg      *config.AllocationConfig
	repo     *repository.Repository
	locker   PeriodLocker
	notifier Notifier
	metrics  metrics.Recorder
	logger   *zap.Logger
}

// NewAllocationService 创建 AllocationService 实例
func NewAllocationService(
	cfg *config.AllocationConfig,
	repo *repository.Repository,
	locker PeriodLocker,
	notifier Notifier,
	rec metrics.Recorder,
	logger *zap.Logger,
) AllocationService {
	return &allocationService{cfg: cfg, repo: repo, locker: locker, notifier: notifier, metrics: rec, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Run — 优先级轮次贪心分配
// ════════════════════════════════════════════════════════════

func (s *allocationService) Run(ctx context.Context, req *dto.RunAllocationRequest, callerID string) (*dto.RunAllocationResponse, error) {
	started := time.Now()
	periodID := req.PeriodID

	tieBreak, err := allocation.TieBreakFor(s.cfg.TieBreak)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, periodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result   *allocation.Result
		demand   *allocation.Demand
		replaced int64
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		period, err := getPeriod(ctx, tx, periodID, true)
		if err != nil {
			return err
		}
		if period.Phase != model.PhaseAllocation {
			return pkgerrors.NewPhaseError("RunAllocation", period.Phase, model.PhaseAllocation)
		}

		existing, err := tx.Allocation.CountByPeriodStatus(ctx, periodID, model.AllocationStatusProvisional)
		if err != nil {
			return err
		}
		if existing > 0 && !req.ForceRerun {
			return pkgerrors.NewConflictError("该周期已有 %d 条暂定分配，重新分配需指定 force_rerun", existing)
		}

		// 1. 容量表：非暂定分配视为已占用
		editions, err := tx.Edition.ListByPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		current, err := tx.Allocation.List(ctx, repository.AllocationFilter{PeriodID: periodID})
		if err != nil {
			return err
		}
		table, err := allocation.NewCapacityTable(engineEditions(editions), reservations(current))
		if err != nil {
			return err
		}

		// 2. 需求表
		requests, err := tx.Request.ListSubmittedByPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		demand = allocation.BuildDemand(toEngineRequests(requests))

		// 3. 求解并替换暂定分配
		result = allocation.Solve(demand, table, allocation.Options{TieBreak: tieBreak})

		replaced, err = tx.Allocation.DeleteProvisionalByPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		rows := make([]model.Allocation, 0, len(result.Grants))
		for _, g := range result.Grants {
			a := model.Allocation{
				PeriodID:      periodID,
				EditionID:     g.EditionID,
				SchoolID:      g.SchoolID,
				AssignedSeats: g.Seats,
				Status:        model.AllocationStatusProvisional,
			}
			a.CreatedBy = &callerID
			a.UpdatedBy = &callerID
			rows = append(rows, a)
		}
		return tx.Allocation.BatchCreate(ctx, rows)
	})
	if err != nil {
		if isBusinessError(err) {
			s.metrics.AllocationRun(metrics.ResultRejected, time.Since(started), 0)
		} else {
			s.metrics.AllocationRun(metrics.ResultError, time.Since(started), 0)
			s.logger.Error("执行分配失败", zap.String("period_id", periodID), zap.Error(err))
		}
		return nil, err
	}

	for _, w := range demand.Warnings {
		s.logger.Warn("申请未参与分配",
			zap.String("period_id", periodID),
			zap.String("request_id", w.RequestID),
			zap.String("school_id", w.SchoolID),
			zap.Error(w.Err),
		)
	}

	created, err := s.repo.Allocation.List(ctx, repository.AllocationFilter{
		PeriodID: periodID,
		Status:   model.AllocationStatusProvisional,
	})
	if err != nil {
		s.logger.Error("查询分配结果失败", zap.Error(err))
		return nil, err
	}

	elapsed := time.Since(started)
	s.metrics.AllocationRun(metrics.ResultSuccess, elapsed, result.Summary.SeatsAllocated)
	s.logger.Info("分配完成",
		zap.String("period_id", periodID),
		zap.Int("allocations", result.Summary.AllocationsCreated),
		zap.Int("seats", result.Summary.SeatsAllocated),
		zap.Int("schools", result.Summary.SchoolsTouched),
		zap.Int("shortfalls", len(result.Shortfalls)),
		zap.Int64("replaced", replaced),
		zap.Duration("elapsed", elapsed),
	)
	s.notifier.Notify(ctx, Event{
		Type:     EventAllocationRun,
		PeriodID: periodID,
		At:       time.Now().UTC(),
		Payload:  result.Summary,
	})

	shortfalls := make([]dto.ShortfallResponse, 0, len(result.Shortfalls))
	for _, sf := range result.Shortfalls {
		shortfalls = append(shortfalls, dto.ShortfallResponse{
			EditionID: sf.EditionID,
			SchoolID:  sf.SchoolID,
			Priority:  sf.Priority,
			Requested: sf.Requested,
			Granted:   sf.Granted,
			Reason:    sf.Reason,
		})
	}

	tieName := s.cfg.TieBreak
	if tieName == "" {
		tieName = config.TieBreakSchoolID
	}
	return &dto.RunAllocationResponse{
		PeriodID:               periodID,
		AllocationsCreated:     result.Summary.AllocationsCreated,
		TotalStudentsAllocated: result.Summary.SeatsAllocated,
		SchoolsTouched:         result.Summary.SchoolsTouched,
		ReplacedProvisional:    int(replaced),
		TieBreak:               tieName,
		Allocations:            toAllocationResponses(created),
		Shortfalls:             shortfalls,
		Warnings:               warningStrings(demand.Warnings),
	}, nil
}

func engineEditions(editions []model.WorkshopEdition) []allocation.Edition {
	out := make([]allocation.Edition, 0, len(editions))
	for i := range editions {
		out = append(out, toEngineEdition(&editions[i]))
	}
	return out
}

// reservations 已发布或已接受的分配
func reservations(list []model.Allocation) []allocation.Reservation {
	out := make([]allocation.Reservation, 0)
	for _, a := range list {
		if a.Status == model.AllocationStatusProvisional {
			continue
		}
		out = append(out, allocation.Reservation{EditionID: a.EditionID, SchoolID: a.SchoolID, Seats: a.AssignedSeats})
	}
	return out
}

// ════════════════════════════════════════════════════════════
// DemandSummary — 按场次汇总
// ════════════════════════════════════════════════════════════

func (s *allocationService) DemandSummary(ctx context.Context, req *dto.DemandSummaryRequest) (*dto.DemandSummaryResponse, error) {
	if _, err := getPeriod(ctx, s.repo, req.PeriodID, false); err != nil {
		if !errors.Is(err, ErrPeriodNotFound) {
			s.logger.Error("查询报名周期失败", zap.Error(err))
		}
		return nil, err
	}

	editions, err := s.repo.Edition.ListByPeriod(ctx, req.PeriodID)
	if err != nil {
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}
	requests, err := s.repo.Request.ListSubmittedByPeriod(ctx, req.PeriodID)
	if err != nil {
		s.logger.Error("查询申请失败", zap.Error(err))
		return nil, err
	}

	schools := make(map[string]dto.SchoolBrief, len(requests))
	for _, r := range requests {
		if b := toSchoolBrief(r.School); b != nil {
			schools[r.SchoolID] = *b
		} else {
			schools[r.SchoolID] = dto.SchoolBrief{ID: r.SchoolID}
		}
	}

	demand := allocation.BuildDemand(toEngineRequests(requests))
	byEdition := make(map[string]allocation.EditionDemand)
	for _, ed := range demand.Summarize() {
		byEdition[ed.EditionID] = ed
	}

	rows := make([]dto.EditionDemandRow, 0, len(editions))
	for i := range editions {
		e := &editions[i]
		ed := byEdition[e.EditionID]
		row := dto.EditionDemandRow{
			Edition:        *toEditionBrief(e),
			CapacityTotal:  e.CapacityTotal,
			MaxPerSchool:   e.MaxPerSchool,
			TotalRequested: ed.TotalRequested,
			SchoolCount:    ed.SchoolCount,
			TopPriority:    ed.TopPriority,
			Oversubscribed: ed.TotalRequested > e.CapacityTotal,
			Schools:        make([]dto.SchoolDemandLine, 0, len(ed.Entries)),
		}
		for _, entry := range ed.Entries {
			row.Schools = append(row.Schools, dto.SchoolDemandLine{
				School:               schools[entry.SchoolID],
				Requested:            entry.Requested,
				Priority:             entry.Priority,
				IsFirstTime:          entry.IsFirstTime,
				AvailableForTuesdays: entry.AvailableForTuesdays,
			})
		}
		rows = append(rows, row)
	}

	return &dto.DemandSummaryResponse{
		PeriodID: req.PeriodID,
		Rows:     rows,
		Warnings: warningStrings(demand.Warnings),
	}, nil
}

// ════════════════════════════════════════════════════════════
// List
// ════════════════════════════════════════════════════════════

func (s *allocationService) List(ctx context.Context, req *dto.AllocationListRequest) ([]dto.AllocationResponse, error) {
	if _, err := getPeriod(ctx, s.repo, req.PeriodID, false); err != nil {
		if !errors.Is(err, ErrPeriodNotFound) {
			s.logger.Error("查询报名周期失败", zap.Error(err))
		}
		return nil, err
	}

	list, err := s.repo.Allocation.List(ctx, repository.AllocationFilter{
		PeriodID:  req.PeriodID,
		EditionID: req.EditionID,
		SchoolID:  req.SchoolID,
		Status:    req.Status,
	})
	if err != nil {
		s.logger.Error("查询分配列表失败", zap.Error(err))
		return nil, err
	}
	return toAllocationResponses(list), nil
}

// ════════════════════════════════════════════════════════════
// UpdateSeats — 人工调整（仅 ALLOCATION 阶段的暂定分配）
// ════════════════════════════════════════════════════════════

func (s *allocationService) UpdateSeats(ctx context.Context, allocationID string, req *dto.UpdateSeatsRequest, callerID string) (*dto.AllocationResponse, error) {
	current, err := s.repo.Allocation.GetByID(ctx, allocationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAllocationNotFound
		}
		s.logger.Error("查询分配记录失败", zap.Error(err))
		return nil, err
	}
	periodID := current.PeriodID

	unlock, err := s.locker.Lock(ctx, periodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var original int
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		period, err := getPeriod(ctx, tx, periodID, true)
		if err != nil {
			return err
		}
		if period.Phase != model.PhaseAllocation {
			return pkgerrors.NewPhaseError("UpdateSeats", period.Phase, model.PhaseAllocation)
		}

		a, err := tx.Allocation.GetForUpdate(ctx, allocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAllocationNotFound
			}
			return err
		}
		if a.Status != model.AllocationStatusProvisional {
			return pkgerrors.NewPhaseError("UpdateSeats", a.Status, model.AllocationStatusProvisional)
		}

		edition, err := tx.Edition.GetByID(ctx, a.EditionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEditionNotFound
			}
			return err
		}
		others, err := tx.Allocation.SumSeatsByEdition(ctx, a.EditionID, a.AllocationID)
		if err != nil {
			return err
		}
		if err := allocation.CheckSeats(toEngineEdition(edition), others, req.AssignedSeats); err != nil {
			return err
		}

		original = a.AssignedSeats
		a.AssignedSeats = req.AssignedSeats
		a.UpdatedBy = &callerID
		if err := tx.Allocation.Update(ctx, a); err != nil {
			return err
		}

		return tx.ChangeLog.Create(ctx, &model.AllocationChangeLog{
			AllocationID:  a.AllocationID,
			PeriodID:      periodID,
			OriginalSeats: original,
			NewSeats:      a.AssignedSeats,
			ChangeType:    model.ChangeTypeManualAdjust,
			Reason:        req.Reason,
			OperatorID:    callerID,
		})
	})
	if err != nil {
		s.recordSeatEdit("update", err)
		if !isBusinessError(err) {
			s.logger.Error("调整分配名额失败", zap.String("allocation_id", allocationID), zap.Error(err))
		}
		return nil, err
	}
	s.recordSeatEdit("update", nil)

	s.logger.Info("分配名额已调整",
		zap.String("allocation_id", allocationID),
		zap.Int("from", original),
		zap.Int("to", req.AssignedSeats),
		zap.String("operator", callerID),
	)

	updated, err := s.repo.Allocation.GetByID(ctx, allocationID)
	if err != nil {
		s.logger.Error("查询分配记录失败", zap.Error(err))
		return nil, err
	}
	resp := toAllocationResponse(updated)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// Create — 人工新增
// ════════════════════════════════════════════════════════════

func (s *allocationService) Create(ctx context.Context, req *dto.CreateAllocationRequest, callerID string) (*dto.AllocationResponse, error) {
	unlock, err := s.locker.Lock(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var created *model.Allocation
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		period, err := getPeriod(ctx, tx, req.PeriodID, true)
		if err != nil {
			return err
		}
		if period.Phase != model.PhaseAllocation {
			return pkgerrors.NewPhaseError("CreateAllocation", period.Phase, model.PhaseAllocation)
		}

		edition, err := tx.Edition.GetByID(ctx, req.EditionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEditionNotFound
			}
			return err
		}
		if edition.PeriodID != req.PeriodID {
			return pkgerrors.NewValidationError("edition_id", "场次不属于该报名周期")
		}
		if _, err := tx.School.GetByID(ctx, req.SchoolID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSchoolNotFound
			}
			return err
		}

		_, err = tx.Allocation.GetByEditionSchool(ctx, req.EditionID, req.SchoolID)
		switch {
		case err == nil:
			return pkgerrors.NewConflictError("学校 %s 在场次 %s 已有分配", req.SchoolID, req.EditionID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		others, err := tx.Allocation.SumSeatsByEdition(ctx, req.EditionID, "")
		if err != nil {
			return err
		}
		if err := allocation.CheckSeats(toEngineEdition(edition), others, req.AssignedSeats); err != nil {
			return err
		}

		a := &model.Allocation{
			PeriodID:      req.PeriodID,
			EditionID:     req.EditionID,
			SchoolID:      req.SchoolID,
			AssignedSeats: req.AssignedSeats,
			Status:        model.AllocationStatusProvisional,
		}
		a.CreatedBy = &callerID
		a.UpdatedBy = &callerID
		if err := tx.Allocation.Create(ctx, a); err != nil {
			return err
		}
		created = a

		return tx.ChangeLog.Create(ctx, &model.AllocationChangeLog{
			AllocationID:  a.AllocationID,
			PeriodID:      req.PeriodID,
			OriginalSeats: 0,
			NewSeats:      a.AssignedSeats,
			ChangeType:    model.ChangeTypeManualCreate,
			Reason:        req.Reason,
			OperatorID:    callerID,
		})
	})
	if err != nil {
		s.recordSeatEdit("create", err)
		if !isBusinessError(err) {
			s.logger.Error("新增分配失败", zap.String("period_id", req.PeriodID), zap.Error(err))
		}
		return nil, err
	}
	s.recordSeatEdit("create", nil)

	s.logger.Info("已人工新增分配",
		zap.String("allocation_id", created.AllocationID),
		zap.String("edition_id", created.EditionID),
		zap.String("school_id", created.SchoolID),
		zap.Int("seats", created.AssignedSeats),
	)

	full, err := s.repo.Allocation.GetByID(ctx, created.AllocationID)
	if err != nil {
		s.logger.Error("查询分配记录失败", zap.Error(err))
		return nil, err
	}
	resp := toAllocationResponse(full)
	return &resp, nil
}

func (s *allocationService) recordSeatEdit(op string, err error) {
	switch {
	case err == nil:
		s.metrics.SeatEdit(op, metrics.ResultSuccess)
	case isBusinessError(err):
		s.metrics.SeatEdit(op, metrics.ResultRejected)
	default:
		s.metrics.SeatEdit(op, metrics.ResultError)
	}
}

// ════════════════════════════════════════════════════════════
// ListChangeLogs
// ════════════════════════════════════════════════════════════

func (s *allocationService) ListChangeLogs(ctx context.Context, req *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error) {
	logs, total, err := s.repo.ChangeLog.ListByPeriod(ctx, req.PeriodID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更日志失败", zap.Error(err))
		return nil, 0, err
	}

	out := make([]dto.ChangeLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, dto.ChangeLogResponse{
			ID:            l.ChangeLogID,
			AllocationID:  l.AllocationID,
			OriginalSeats: l.OriginalSeats,
			NewSeats:      l.NewSeats,
			ChangeType:    l.ChangeType,
			Reason:        l.Reason,
			OperatorID:    l.OperatorID,
			CreatedAt:     formatTime(l.CreatedAt),
		})
	}
	return out, total, nil
}
