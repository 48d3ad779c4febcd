package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/config"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// ── 测试辅助 ──

const (
	testPeriod   = "period-1"
	testOperator = "admin-1"
)

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

type testServices struct {
	release    ReleaseService
	allocation AllocationService
	referent   ReferentService
	request    RequestService
	export     ExportService
	calendar   CalendarService
}

func testAllocationConfig() *config.AllocationConfig {
	return &config.AllocationConfig{
		TieBreak:     config.TieBreakSchoolID,
		LockTTL:      time.Second,
		LockWait:     time.Second,
		SessionCount: 10,
		Timezone:     "Europe/Madrid",
	}
}

func setupTestServices() (*testServices, *testRepos) {
	repos := newTestRepos()
	repo := repos.toRepository()
	logger := zap.NewNop()
	rec := metrics.Nop{}
	cfg := testAllocationConfig()
	locker := NewPeriodLocker(nil, cfg.LockTTL, cfg.LockWait, rec, logger)
	notifier := NewNotifier(nil, "", logger)

	return &testServices{
		release:    NewReleaseService(repo, locker, notifier, rec, logger),
		allocation: NewAllocationService(cfg, repo, locker, notifier, rec, logger),
		referent:   NewReferentService(repo, rec, logger),
		request:    NewRequestService(repo, logger),
		export:     NewExportService(repo, logger),
		calendar:   NewCalendarService(cfg, repo, logger),
	}, repos
}

func expectPhaseError(t *testing.T, err error) *pkgerrors.PhaseError {
	t.Helper()
	var pe *pkgerrors.PhaseError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 PhaseError，实际 %v", err)
	}
	return pe
}

func expectCapacityError(t *testing.T, err error, scope string) *pkgerrors.CapacityExceededError {
	t.Helper()
	var ce *pkgerrors.CapacityExceededError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 CapacityExceededError，实际 %v", err)
	}
	if ce.Scope != scope {
		t.Fatalf("期望约束 %s，实际 %s", scope, ce.Scope)
	}
	return ce
}

func expectConflictError(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("期望 ConflictError，实际 %v", err)
	}
}

func expectValidationError(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Fatalf("期望 ValidationError，实际 %v", err)
	}
}
