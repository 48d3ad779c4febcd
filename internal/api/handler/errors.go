package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// 分配引擎通用错误码
const (
	CodeValidation     = 10010
	CodePhase          = 10011
	CodeCapacity       = 10012
	CodeConflict       = 10013
	CodePeriodBusy     = 10014
	CodeOptimisticLock = 10015
)

// writeEngineError 写入分配引擎的类型化错误，未识别时返回 false 交由模块处理
// 校验错误 400，阶段、容量、冲突类错误 409，details 为被违反的约束
func writeEngineError(c *gin.Context, err error) bool {
	var (
		validationErr *pkgerrors.ValidationError
		phaseErr      *pkgerrors.PhaseError
		capacityErr   *pkgerrors.CapacityExceededError
		conflictErr   *pkgerrors.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		response.Invalid(c, CodeValidation, pkgerrors.ErrValidation.Error(), validationErr.Error())
	case errors.As(err, &phaseErr):
		response.Conflict(c, CodePhase, pkgerrors.ErrPhase.Error(), phaseErr.Error())
	case errors.As(err, &capacityErr):
		response.Conflict(c, CodeCapacity, pkgerrors.ErrCapacityExceeded.Error(), capacityDetails(capacityErr))
	case errors.As(err, &conflictErr):
		response.Conflict(c, CodeConflict, pkgerrors.ErrConflict.Error(), conflictErr.Error())
	case errors.Is(err, service.ErrPeriodBusy):
		response.Conflict(c, CodePeriodBusy, service.ErrPeriodBusy.Error(), "")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, CodeOptimisticLock, pkgerrors.ErrOptimisticLock.Error(), "")
	default:
		return false
	}
	return true
}

func capacityDetails(e *pkgerrors.CapacityExceededError) string {
	var label string
	switch e.Scope {
	case pkgerrors.ScopeCapacityTotal:
		label = "场次容量不足"
	case pkgerrors.ScopeMaxPerSchool:
		label = "超出单校上限"
	case pkgerrors.ScopeReferents:
		label = "负责教师人数已满"
	default:
		return e.Error()
	}
	return fmt.Sprintf("%s: %d/%d，申请 %d", label, e.Used, e.Limit, e.Requested)
}
