package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// ReferentService 场次负责教师业务接口
type ReferentService interface {
	// 候选教师：志愿顺序优先，同一顺序按申请提交时间倒序
	Candidates(ctx context.Context, editionID string) ([]dto.CandidateResponse, error)
	// 指派负责教师
	Assign(ctx context.Context, req *dto.AssignReferentRequest, callerID string) (*dto.EditionReferentsResponse, error)
	// 撤销指派
	Unassign(ctx context.Context, assignmentID string) error
	// 场次当前负责教师，主负责人在前
	ListAssigned(ctx context.Context, editionID string) (*dto.EditionReferentsResponse, error)
}

type referentService struct {
	repo    *repository.Repository
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewReferentService 创建 ReferentService 实例
func NewReferentService(repo *repository.Repository, rec metrics.Recorder, logger *zap.Logger) ReferentService {
	return &referentService{repo: repo, metrics: rec, logger: logger}
}

func (s *referentService) getEdition(ctx context.Context, repo *repository.Repository, editionID string, forUpdate bool) (*model.WorkshopEdition, error) {
	var (
		edition *model.WorkshopEdition
		err     error
	)
	if forUpdate {
		edition, err = repo.Edition.GetForUpdate(ctx, editionID)
	} else {
		edition, err = repo.Edition.GetByID(ctx, editionID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEditionNotFound
		}
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, err
	}
	return edition, nil
}

// ════════════════════════════════════════════════════════════
// Candidates
// ════════════════════════════════════════════════════════════

func (s *referentService) Candidates(ctx context.Context, editionID string) ([]dto.CandidateResponse, error) {
	if _, err := s.getEdition(ctx, s.repo, editionID, false); err != nil {
		return nil, err
	}

	rows, err := s.repo.Request.ListCandidatesByEdition(ctx, editionID)
	if err != nil {
		s.logger.Error("查询候选教师失败", zap.Error(err))
		return nil, err
	}
	assigned, err := s.repo.Referent.ListByEdition(ctx, editionID)
	if err != nil {
		s.logger.Error("查询负责教师失败", zap.Error(err))
		return nil, err
	}
	assignedSet := make(map[string]bool, len(assigned))
	for _, a := range assigned {
		assignedSet[a.TeacherID] = true
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.PreferenceOrder != b.PreferenceOrder {
			return a.PreferenceOrder < b.PreferenceOrder
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		return a.TeacherID < b.TeacherID
	})

	seen := make(map[string]bool, len(rows))
	out := make([]dto.CandidateResponse, 0, len(rows))
	for _, r := range rows {
		if seen[r.TeacherID] {
			continue
		}
		seen[r.TeacherID] = true
		out = append(out, dto.CandidateResponse{
			Teacher:         dto.TeacherBrief{ID: r.TeacherID, FullName: r.FullName, Email: r.Email},
			School:          dto.SchoolBrief{ID: r.SchoolID, Name: r.SchoolName, Code: r.SchoolCode},
			RequestID:       r.RequestID,
			PreferenceOrder: r.PreferenceOrder,
			SubmittedAt:     formatTime(r.SubmittedAt),
			AlreadyAssigned: assignedSet[r.TeacherID],
		})
	}
	return out, nil
}

// ════════════════════════════════════════════════════════════
// Assign — 每场次最多 2 位，主负责人最多 1 位
// ════════════════════════════════════════════════════════════

func (s *referentService) Assign(ctx context.Context, req *dto.AssignReferentRequest, callerID string) (*dto.EditionReferentsResponse, error) {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 场次行锁串行化同一场次的并发指派
		if _, err := s.getEdition(ctx, tx, req.EditionID, true); err != nil {
			return err
		}
		if _, err := tx.Teacher.GetByID(ctx, req.TeacherID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTeacherNotFound
			}
			return err
		}

		existing, err := tx.Referent.ListByEdition(ctx, req.EditionID)
		if err != nil {
			return err
		}
		// 名额已满时一律报容量错误，先于重复与主负责人检查
		if len(existing) >= model.MaxReferentsPerEdition {
			return &pkgerrors.CapacityExceededError{
				Scope:     pkgerrors.ScopeReferents,
				Used:      len(existing),
				Requested: 1,
				Limit:     model.MaxReferentsPerEdition,
			}
		}
		for _, a := range existing {
			if a.TeacherID == req.TeacherID {
				return pkgerrors.NewConflictError("教师 %s 已是该场次的负责教师", req.TeacherID)
			}
		}
		if req.IsMainReferent {
			for _, a := range existing {
				if a.IsMainReferent {
					return pkgerrors.NewConflictError("场次 %s 已有主负责人", req.EditionID)
				}
			}
		}

		return tx.Referent.Create(ctx, &model.ReferentAssignment{
			EditionID:      req.EditionID,
			TeacherID:      req.TeacherID,
			IsMainReferent: req.IsMainReferent,
			AssignedAt:     time.Now().UTC(),
			AssignedBy:     &callerID,
		})
	})
	if err != nil {
		s.recordChange("assign", err)
		if !isBusinessError(err) {
			s.logger.Error("指派负责教师失败", zap.String("edition_id", req.EditionID), zap.Error(err))
		}
		return nil, err
	}
	s.recordChange("assign", nil)

	s.logger.Info("负责教师已指派",
		zap.String("edition_id", req.EditionID),
		zap.String("teacher_id", req.TeacherID),
		zap.Bool("main", req.IsMainReferent),
	)
	return s.ListAssigned(ctx, req.EditionID)
}

// ════════════════════════════════════════════════════════════
// Unassign / ListAssigned
// ════════════════════════════════════════════════════════════

func (s *referentService) Unassign(ctx context.Context, assignmentID string) error {
	if err := s.repo.Referent.Delete(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordChange("unassign", ErrReferentNotFound)
			return ErrReferentNotFound
		}
		s.recordChange("unassign", err)
		s.logger.Error("撤销负责教师失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		return err
	}
	s.recordChange("unassign", nil)
	s.logger.Info("负责教师已撤销", zap.String("assignment_id", assignmentID))
	return nil
}

func (s *referentService) ListAssigned(ctx context.Context, editionID string) (*dto.EditionReferentsResponse, error) {
	if _, err := s.getEdition(ctx, s.repo, editionID, false); err != nil {
		return nil, err
	}
	list, err := s.repo.Referent.ListByEdition(ctx, editionID)
	if err != nil {
		s.logger.Error("查询负责教师失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.EditionReferentsResponse{
		EditionID: editionID,
		Referents: make([]dto.ReferentResponse, 0, len(list)),
	}
	for i := range list {
		resp.Referents = append(resp.Referents, toReferentResponse(&list[i]))
	}
	return resp, nil
}

func (s *referentService) recordChange(op string, err error) {
	switch {
	case err == nil:
		s.metrics.ReferentChange(op, metrics.ResultSuccess)
	case isBusinessError(err):
		s.metrics.ReferentChange(op, metrics.ResultRejected)
	default:
		s.metrics.ReferentChange(op, metrics.ResultError)
	}
}
