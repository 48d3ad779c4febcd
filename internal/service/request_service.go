package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/allocation"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// 单份申请的限制
const (
	MaxSeatsPerRequest       = 12
	TeachersPerRequest       = 2
	MaxPreferencesPerTeacher = 3
)

// RequestService 学校申请业务接口
type RequestService interface {
	// 提交申请（仅 REQUEST 阶段）
	Submit(ctx context.Context, req *dto.SubmitRequestRequest, callerID string) (*dto.RequestResponse, error)
	// 撤回已提交的申请（仅 REQUEST 阶段）
	Cancel(ctx context.Context, requestID, callerID string) (*dto.RequestResponse, error)
	// 获取申请详情
	Get(ctx context.Context, requestID string) (*dto.RequestResponse, error)
}

type requestService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRequestService 创建 RequestService 实例
func NewRequestService(repo *repository.Repository, logger *zap.Logger) RequestService {
	return &requestService{repo: repo, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Submit
// ════════════════════════════════════════════════════════════

func (s *requestService) Submit(ctx context.Context, req *dto.SubmitRequestRequest, callerID string) (*dto.RequestResponse, error) {
	items := make([]allocation.Item, 0, len(req.Items))
	total := 0
	for _, it := range req.Items {
		items = append(items, allocation.Item{
			EditionID:      it.EditionID,
			RequestedSeats: it.RequestedSeats,
			Priority:       it.Priority,
			StudentIDs:     it.StudentIDs,
		})
		total += it.RequestedSeats
	}
	if len(items) == 0 {
		return nil, pkgerrors.NewValidationError("items", "至少需要一条申请明细")
	}
	if verr := allocation.ValidateItems(items); verr != nil {
		return nil, verr
	}
	if total > MaxSeatsPerRequest {
		return nil, pkgerrors.NewValidationError("items",
			fmt.Sprintf("申请总名额 %d 超过上限 %d", total, MaxSeatsPerRequest))
	}
	if err := validateTeachers(req.Teachers); err != nil {
		return nil, err
	}

	var created *model.Request
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		period, err := getPeriod(ctx, tx, req.PeriodID, true)
		if err != nil {
			return err
		}
		if period.Phase != model.PhaseRequest {
			return pkgerrors.NewPhaseError("SubmitRequest", period.Phase, model.PhaseRequest)
		}

		if _, err := tx.School.GetByID(ctx, req.SchoolID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSchoolNotFound
			}
			return err
		}
		if err := s.checkTeachers(ctx, tx, req); err != nil {
			return err
		}
		if err := s.checkEditions(ctx, tx, req); err != nil {
			return err
		}

		_, err = tx.Request.GetSubmittedBySchool(ctx, req.PeriodID, req.SchoolID)
		switch {
		case err == nil:
			return pkgerrors.NewConflictError("学校 %s 在该周期已有提交的申请", req.SchoolID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		r := buildRequest(req, callerID)
		if err := tx.Request.Create(ctx, r); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pkgerrors.NewConflictError("学校 %s 在该周期已有提交的申请", req.SchoolID)
			}
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("提交申请失败", zap.String("school_id", req.SchoolID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("申请已提交",
		zap.String("request_id", created.RequestID),
		zap.String("period_id", created.PeriodID),
		zap.String("school_id", created.SchoolID),
		zap.Int("seats", total),
	)
	resp := toRequestResponse(created)
	return &resp, nil
}

// validateTeachers 随行教师恰好两位且不重复，志愿不超过三个且不重复
func validateTeachers(teachers []dto.RequestTeacherInput) error {
	if len(teachers) != TeachersPerRequest {
		return pkgerrors.NewValidationError("teachers", fmt.Sprintf("随行教师必须为 %d 位", TeachersPerRequest))
	}
	if teachers[0].TeacherID == teachers[1].TeacherID {
		return pkgerrors.NewValidationError("teachers", "随行教师不能重复")
	}
	for i, t := range teachers {
		if len(t.Preferences) > MaxPreferencesPerTeacher {
			return pkgerrors.NewValidationError(fmt.Sprintf("teachers[%d].preferences", i),
				fmt.Sprintf("志愿不能超过 %d 个", MaxPreferencesPerTeacher))
		}
		seen := make(map[string]bool, len(t.Preferences))
		for _, e := range t.Preferences {
			if seen[e] {
				return pkgerrors.NewValidationError(fmt.Sprintf("teachers[%d].preferences", i), "志愿场次重复")
			}
			seen[e] = true
		}
	}
	return nil
}

func (s *requestService) checkTeachers(ctx context.Context, tx *repository.Repository, req *dto.SubmitRequestRequest) error {
	ids := make([]string, 0, len(req.Teachers))
	for _, t := range req.Teachers {
		ids = append(ids, t.TeacherID)
	}
	teachers, err := tx.Teacher.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(teachers) != len(ids) {
		return ErrTeacherNotFound
	}
	for _, t := range teachers {
		if t.SchoolID != req.SchoolID {
			return pkgerrors.NewValidationError("teachers", "教师 "+t.TeacherID+" 不属于该学校")
		}
	}
	return nil
}

// checkEditions 明细与志愿中的场次都必须属于该周期
func (s *requestService) checkEditions(ctx context.Context, tx *repository.Repository, req *dto.SubmitRequestRequest) error {
	editions, err := tx.Edition.ListByPeriod(ctx, req.PeriodID)
	if err != nil {
		return err
	}
	inPeriod := make(map[string]bool, len(editions))
	for _, e := range editions {
		inPeriod[e.EditionID] = true
	}
	for i, it := range req.Items {
		if !inPeriod[it.EditionID] {
			return pkgerrors.NewValidationError(fmt.Sprintf("items[%d].edition_id", i), "场次不属于该报名周期")
		}
	}
	for i, t := range req.Teachers {
		for _, e := range t.Preferences {
			if !inPeriod[e] {
				return pkgerrors.NewValidationError(fmt.Sprintf("teachers[%d].preferences", i), "场次不属于该报名周期")
			}
		}
	}
	return nil
}

func buildRequest(req *dto.SubmitRequestRequest, callerID string) *model.Request {
	now := time.Now().UTC()
	tuesdays := true
	if req.AvailableForTuesdays != nil {
		tuesdays = *req.AvailableForTuesdays
	}

	r := &model.Request{
		PeriodID:             req.PeriodID,
		SchoolID:             req.SchoolID,
		Status:               model.RequestStatusSubmitted,
		IsFirstTime:          req.IsFirstTimeParticipation,
		AvailableForTuesdays: tuesdays,
		SubmittedAt:          &now,
	}
	r.CreatedBy = &callerID
	r.UpdatedBy = &callerID

	for _, it := range req.Items {
		r.Items = append(r.Items, model.RequestItem{
			EditionID:      it.EditionID,
			RequestedSeats: it.RequestedSeats,
			Priority:       it.Priority,
			StudentIDs:     model.StringArray(it.StudentIDs),
		})
	}
	for i, t := range req.Teachers {
		r.Teachers = append(r.Teachers, model.RequestTeacher{TeacherID: t.TeacherID, Position: i + 1})
		for j, e := range t.Preferences {
			r.Preferences = append(r.Preferences, model.TeacherPreference{
				TeacherID:       t.TeacherID,
				EditionID:       e,
				PreferenceOrder: j + 1,
			})
		}
	}
	return r
}

// ════════════════════════════════════════════════════════════
// Cancel / Get
// ════════════════════════════════════════════════════════════

func (s *requestService) Cancel(ctx context.Context, requestID, callerID string) (*dto.RequestResponse, error) {
	current, err := s.repo.Request.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("查询申请失败", zap.Error(err))
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		period, err := getPeriod(ctx, tx, current.PeriodID, true)
		if err != nil {
			return err
		}
		if period.Phase != model.PhaseRequest {
			return pkgerrors.NewPhaseError("CancelRequest", period.Phase, model.PhaseRequest)
		}
		if current.Status != model.RequestStatusSubmitted {
			return pkgerrors.NewConflictError("申请状态为 %s，不能撤回", current.Status)
		}
		current.Status = model.RequestStatusCancelled
		current.UpdatedBy = &callerID
		return tx.Request.Update(ctx, current)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("撤回申请失败", zap.String("request_id", requestID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("申请已撤回", zap.String("request_id", requestID))
	resp := toRequestResponse(current)
	return &resp, nil
}

func (s *requestService) Get(ctx context.Context, requestID string) (*dto.RequestResponse, error) {
	r, err := s.repo.Request.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("查询申请失败", zap.Error(err))
		return nil, err
	}
	resp := toRequestResponse(r)
	return &resp, nil
}

func toRequestResponse(r *model.Request) dto.RequestResponse {
	resp := dto.RequestResponse{
		ID:                   r.RequestID,
		PeriodID:             r.PeriodID,
		SchoolID:             r.SchoolID,
		Status:               r.Status,
		IsFirstTime:          r.IsFirstTime,
		AvailableForTuesdays: r.AvailableForTuesdays,
		SubmittedAt:          formatTimePtr(r.SubmittedAt),
		Items:                make([]dto.RequestItemResponse, 0, len(r.Items)),
		Teachers:             make([]dto.RequestTeacherResponse, 0, len(r.Teachers)),
	}
	for _, it := range r.Items {
		resp.Items = append(resp.Items, dto.RequestItemResponse{
			EditionID:      it.EditionID,
			RequestedSeats: it.RequestedSeats,
			Priority:       it.Priority,
			StudentIDs:     []string(it.StudentIDs),
		})
	}
	for _, t := range r.Teachers {
		prefs := make([]string, 0, MaxPreferencesPerTeacher)
		for order := 1; order <= MaxPreferencesPerTeacher; order++ {
			for _, p := range r.Preferences {
				if p.TeacherID == t.TeacherID && p.PreferenceOrder == order {
					prefs = append(prefs, p.EditionID)
				}
			}
		}
		resp.Teachers = append(resp.Teachers, dto.RequestTeacherResponse{
			TeacherID:   t.TeacherID,
			Position:    t.Position,
			Preferences: prefs,
		})
	}
	return resp
}
