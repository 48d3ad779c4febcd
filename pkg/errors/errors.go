package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// 分配引擎错误分类，调用方通过 errors.Is 判断类别，errors.As 取详情
var (
	ErrValidation       = errors.New("参数校验失败")
	ErrPhase            = errors.New("当前阶段不允许该操作")
	ErrCapacityExceeded = errors.New("超出容量上限")
	ErrConflict         = errors.New("操作冲突")
)

// 容量约束名称
const (
	ScopeCapacityTotal = "capacity_total"
	ScopeMaxPerSchool  = "max_per_school"
	ScopeReferents     = "referents_per_edition"
)

// ValidationError 输入或状态不满足结构约束
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PhaseError 周期阶段与操作不匹配
type PhaseError struct {
	Operation string
	Current   string
	Required  []string
}

func NewPhaseError(op, current string, required ...string) *PhaseError {
	return &PhaseError{Operation: op, Current: current, Required: required}
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s 需要阶段 %s，当前阶段为 %s", e.Operation, strings.Join(e.Required, "|"), e.Current)
}

func (e *PhaseError) Unwrap() error { return ErrPhase }

// CapacityExceededError 超出场次容量、单校上限或负责教师人数上限
type CapacityExceededError struct {
	Scope     string
	Used      int
	Requested int
	Limit     int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s 超限: 已占用 %d/%d，申请 %d", e.Scope, e.Used, e.Limit, e.Requested)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// ConflictError 与现有数据冲突（重复提交、重复主负责人等）
type ConflictError struct {
	Reason string
}

func NewConflictError(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }
