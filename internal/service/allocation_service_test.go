package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
)

// seedThreeSchools 场次 E1 容量 16、单校上限 4：S1、S2 优先级 1，S3 优先级 2
func seedThreeSchools(repos *testRepos) {
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedEdition("E2", testPeriod, model.DayWednesday, 8, 4)
	for _, s := range []string{"S1", "S2", "S3"} {
		repos.seedSchool(s)
	}
	repos.seedSubmitted("R1", testPeriod, "S1", t0, reqItem("E1", 4, 1))
	repos.seedSubmitted("R2", testPeriod, "S2", t0.Add(time.Minute), reqItem("E1", 4, 1))
	repos.seedSubmitted("R3", testPeriod, "S3", t0.Add(2*time.Minute), reqItem("E2", 2, 1), reqItem("E1", 4, 2))
}

func seatsOf(list []dto.AllocationResponse, edition string) map[string]int {
	out := make(map[string]int)
	for _, a := range list {
		if a.Edition != nil && a.Edition.ID == edition {
			out[a.School.ID] = a.AssignedSeats
		}
	}
	return out
}

// ════════════════════════════════════════════════════════════
// Run
// ════════════════════════════════════════════════════════════

func TestRun_ThreeSchoolsScenario(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)

	resp, err := svcs.allocation.Run(context.Background(), &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}

	got := seatsOf(resp.Allocations, "E1")
	if got["S1"] != 4 || got["S2"] != 4 || got["S3"] != 4 {
		t.Fatalf("E1 分配应为 S1=4 S2=4 S3=4，实际 %v", got)
	}
	total := 0
	for _, v := range got {
		total += v
	}
	if total != 12 {
		t.Fatalf("E1 应占用 12/16，实际 %d", total)
	}
	if resp.AllocationsCreated != 4 || resp.TotalStudentsAllocated != 14 || resp.SchoolsTouched != 3 {
		t.Fatalf("统计不符: %+v", resp)
	}
	for _, a := range resp.Allocations {
		if a.Status != model.AllocationStatusProvisional {
			t.Fatalf("新分配应为 PROVISIONAL，实际 %s", a.Status)
		}
	}
}

func TestRun_MalformedRequestSkipped(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedSchool("S4")
	// 6 个名额超出明细上限，绕过提交校验直接写入
	repos.seedSubmitted("R4", testPeriod, "S4", t0, reqItem("E1", 4, 1))
	repos.request.requests["R4"].Items[0].RequestedSeats = 6

	resp, err := svcs.allocation.Run(context.Background(), &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	// 明细不合法，整份申请被跳过并给出告警
	if len(resp.Allocations) != 0 || len(resp.Warnings) != 1 {
		t.Fatalf("不合法申请应被跳过: allocations=%d warnings=%v", len(resp.Allocations), resp.Warnings)
	}
}

func TestRun_CappedShortfallReported(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 3)
	repos.seedSchool("S4")
	repos.seedSubmitted("R4", testPeriod, "S4", t0, reqItem("E1", 4, 1))

	resp, err := svcs.allocation.Run(context.Background(), &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if got := seatsOf(resp.Allocations, "E1")["S4"]; got != 3 {
		t.Fatalf("S4 应被截断为 3，实际 %d", got)
	}
	if len(resp.Shortfalls) != 1 || resp.Shortfalls[0].Reason != "max_per_school" || resp.Shortfalls[0].Granted != 3 {
		t.Fatalf("应记录单校上限截断: %+v", resp.Shortfalls)
	}
}

func TestRun_WrongPhase(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)
	repos.period.periods[testPeriod].Phase = model.PhaseRequest

	_, err := svcs.allocation.Run(context.Background(), &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	pe := expectPhaseError(t, err)
	if pe.Current != model.PhaseRequest {
		t.Fatalf("当前阶段应为 REQUEST，实际 %s", pe.Current)
	}
	if len(repos.allocation.allocations) != 0 {
		t.Fatal("阶段错误时不应写入分配")
	}
}

func TestRun_PeriodNotFound(t *testing.T) {
	svcs, _ := setupTestServices()
	_, err := svcs.allocation.Run(context.Background(), &dto.RunAllocationRequest{PeriodID: "nope"}, testOperator)
	if !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("期望 ErrPeriodNotFound，实际 %v", err)
	}
}

func TestRun_RerunRequiresForce(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)
	ctx := context.Background()

	if _, err := svcs.allocation.Run(ctx, &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator); err != nil {
		t.Fatalf("首次 Run 应成功: %v", err)
	}
	_, err := svcs.allocation.Run(ctx, &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	expectConflictError(t, err)
}

func TestRun_ForceRerunIsIdempotent(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)
	ctx := context.Background()

	first, err := svcs.allocation.Run(ctx, &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	if err != nil {
		t.Fatalf("首次 Run 应成功: %v", err)
	}
	second, err := svcs.allocation.Run(ctx, &dto.RunAllocationRequest{PeriodID: testPeriod, ForceRerun: true}, testOperator)
	if err != nil {
		t.Fatalf("强制重跑应成功: %v", err)
	}

	if second.ReplacedProvisional != len(first.Allocations) {
		t.Fatalf("应替换 %d 条暂定分配，实际 %d", len(first.Allocations), second.ReplacedProvisional)
	}
	if len(first.Allocations) != len(second.Allocations) {
		t.Fatalf("两次结果条数不同: %d vs %d", len(first.Allocations), len(second.Allocations))
	}
	for i := range first.Allocations {
		a, b := first.Allocations[i], second.Allocations[i]
		if a.Edition.ID != b.Edition.ID || a.School.ID != b.School.ID || a.AssignedSeats != b.AssignedSeats {
			t.Fatalf("第 %d 条结果不同: %+v vs %+v", i, a, b)
		}
	}
}

func TestRun_PublishedAllocationsAreReserved(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)
	// 已发布的 S9 在 E1 占用 4 个名额
	repos.seedSchool("S9")
	repos.seedAllocation("fixed", testPeriod, "E1", "S9", 4, model.AllocationStatusPublished)
	repos.edition.editions["E1"].CapacityTotal = 12

	resp, err := svcs.allocation.Run(context.Background(), &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	got := seatsOf(resp.Allocations, "E1")
	if got["S1"] != 4 || got["S2"] != 4 || got["S3"] != 0 {
		t.Fatalf("剩余 8 个名额应给到优先级 1 的学校，实际 %v", got)
	}
	if a := repos.allocation.allocations["fixed"]; a.AssignedSeats != 4 || a.Status != model.AllocationStatusPublished {
		t.Fatalf("已发布分配不应被改动: %+v", a)
	}
}

// ════════════════════════════════════════════════════════════
// UpdateSeats
// ════════════════════════════════════════════════════════════

func TestUpdateSeats_Success(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedSchool("S1")
	repos.seedAllocation("a1", testPeriod, "E1", "S1", 2, model.AllocationStatusProvisional)

	resp, err := svcs.allocation.UpdateSeats(context.Background(), "a1",
		&dto.UpdateSeatsRequest{AssignedSeats: 3, Reason: "学校补报"}, testOperator)
	if err != nil {
		t.Fatalf("UpdateSeats 应成功: %v", err)
	}
	if resp.AssignedSeats != 3 || resp.Version != 2 {
		t.Fatalf("期望名额 3 版本 2，实际 %d / %d", resp.AssignedSeats, resp.Version)
	}
	if len(repos.changeLog.logs) != 1 {
		t.Fatalf("应写入 1 条变更日志，实际 %d", len(repos.changeLog.logs))
	}
	l := repos.changeLog.logs[0]
	if l.OriginalSeats != 2 || l.NewSeats != 3 || l.ChangeType != model.ChangeTypeManualAdjust || l.OperatorID != testOperator {
		t.Fatalf("变更日志不符: %+v", l)
	}
}

func TestUpdateSeats_ExceedsMaxPerSchool(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedSchool("S1")
	repos.seedAllocation("a1", testPeriod, "E1", "S1", 2, model.AllocationStatusProvisional)

	_, err := svcs.allocation.UpdateSeats(context.Background(), "a1", &dto.UpdateSeatsRequest{AssignedSeats: 5}, testOperator)
	expectCapacityError(t, err, "max_per_school")
	if got := repos.allocation.allocations["a1"].AssignedSeats; got != 2 {
		t.Fatalf("失败时名额不应改变，实际 %d", got)
	}
	if len(repos.changeLog.logs) != 0 {
		t.Fatal("失败时不应写入变更日志")
	}
}

func TestUpdateSeats_ExceedsCapacityReportsUsage(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	for i, s := range []string{"S1", "S2", "S3", "S4"} {
		repos.seedSchool(s)
		seats := 4
		if i == 3 {
			seats = 3
		}
		repos.seedAllocation("a"+s, testPeriod, "E1", s, seats, model.AllocationStatusProvisional)
	}
	// 15/16，S4 从 3 调到 4 正好占满
	if _, err := svcs.allocation.UpdateSeats(context.Background(), "aS4", &dto.UpdateSeatsRequest{AssignedSeats: 4}, testOperator); err != nil {
		t.Fatalf("调整到 16/16 应成功: %v", err)
	}

	repos.seedSchool("S5")
	repos.seedAllocation("aS5", testPeriod, "E1", "S5", 1, model.AllocationStatusProvisional)
	_, err := svcs.allocation.UpdateSeats(context.Background(), "aS5", &dto.UpdateSeatsRequest{AssignedSeats: 2}, testOperator)
	ce := expectCapacityError(t, err, "capacity_total")
	if ce.Used != 16 || ce.Limit != 16 {
		t.Fatalf("应报告 16/16，实际 %d/%d", ce.Used, ce.Limit)
	}
	if !strings.Contains(err.Error(), "16/16") {
		t.Fatalf("错误信息应包含 16/16: %s", err.Error())
	}
}

func TestUpdateSeats_AfterPublishAll(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)
	ctx := context.Background()

	run, err := svcs.allocation.Run(ctx, &dto.RunAllocationRequest{PeriodID: testPeriod}, testOperator)
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if _, err := svcs.release.PublishAll(ctx, &dto.PublishAllocationsRequest{PeriodID: testPeriod}, testOperator); err != nil {
		t.Fatalf("PublishAll 应成功: %v", err)
	}

	_, err = svcs.allocation.UpdateSeats(ctx, run.Allocations[0].ID, &dto.UpdateSeatsRequest{AssignedSeats: 1}, testOperator)
	pe := expectPhaseError(t, err)
	if pe.Current != model.PhasePublication {
		t.Fatalf("当前阶段应为 PUBLICATION，实际 %s", pe.Current)
	}
}

func TestUpdateSeats_NotFound(t *testing.T) {
	svcs, _ := setupTestServices()
	_, err := svcs.allocation.UpdateSeats(context.Background(), "nope", &dto.UpdateSeatsRequest{AssignedSeats: 1}, testOperator)
	if !errors.Is(err, ErrAllocationNotFound) {
		t.Fatalf("期望 ErrAllocationNotFound，实际 %v", err)
	}
}

func TestUpdateSeats_ZeroRejected(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedSchool("S1")
	repos.seedAllocation("a1", testPeriod, "E1", "S1", 2, model.AllocationStatusProvisional)

	_, err := svcs.allocation.UpdateSeats(context.Background(), "a1", &dto.UpdateSeatsRequest{AssignedSeats: 0}, testOperator)
	expectValidationError(t, err)
}

// ════════════════════════════════════════════════════════════
// Create / DemandSummary / ListChangeLogs
// ════════════════════════════════════════════════════════════

func TestCreate_ManualAllocation(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedSchool("S1")
	ctx := context.Background()

	req := &dto.CreateAllocationRequest{PeriodID: testPeriod, EditionID: "E1", SchoolID: "S1", AssignedSeats: 2, Reason: "补录"}
	resp, err := svcs.allocation.Create(ctx, req, testOperator)
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Status != model.AllocationStatusProvisional || resp.AssignedSeats != 2 {
		t.Fatalf("新增分配不符: %+v", resp)
	}
	if len(repos.changeLog.logs) != 1 || repos.changeLog.logs[0].ChangeType != model.ChangeTypeManualCreate {
		t.Fatalf("应写入 manual_create 日志: %+v", repos.changeLog.logs)
	}

	_, err = svcs.allocation.Create(ctx, req, testOperator)
	expectConflictError(t, err)
}

func TestCreate_EditionOfAnotherPeriod(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E9", "period-9", model.DayMonday, 16, 4)
	repos.seedSchool("S1")

	_, err := svcs.allocation.Create(context.Background(),
		&dto.CreateAllocationRequest{PeriodID: testPeriod, EditionID: "E9", SchoolID: "S1", AssignedSeats: 1}, testOperator)
	expectValidationError(t, err)
}

func TestDemandSummary(t *testing.T) {
	svcs, repos := setupTestServices()
	seedThreeSchools(repos)
	repos.edition.editions["E1"].CapacityTotal = 10
	repos.seedEdition("E3", testPeriod, model.DayFriday, 8, 4)

	resp, err := svcs.allocation.DemandSummary(context.Background(), &dto.DemandSummaryRequest{PeriodID: testPeriod})
	if err != nil {
		t.Fatalf("DemandSummary 应成功: %v", err)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("应包含周期内全部 3 个场次，实际 %d", len(resp.Rows))
	}
	e1 := resp.Rows[0]
	if e1.Edition.ID != "E1" || e1.TotalRequested != 12 || e1.SchoolCount != 3 || !e1.Oversubscribed {
		t.Fatalf("E1 汇总不符: %+v", e1)
	}
	if e1.Schools[0].Priority != 1 || e1.Schools[2].School.ID != "S3" {
		t.Fatalf("学校需求应按优先级排序: %+v", e1.Schools)
	}
	if e3 := resp.Rows[2]; e3.TotalRequested != 0 || e3.Oversubscribed {
		t.Fatalf("无需求场次应为 0: %+v", e3)
	}
}

func TestListChangeLogs_Paginates(t *testing.T) {
	svcs, repos := setupTestServices()
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedSchool("S1")
	repos.seedAllocation("a1", testPeriod, "E1", "S1", 1, model.AllocationStatusProvisional)
	ctx := context.Background()

	for _, n := range []int{2, 3, 4} {
		if _, err := svcs.allocation.UpdateSeats(ctx, "a1", &dto.UpdateSeatsRequest{AssignedSeats: n}, testOperator); err != nil {
			t.Fatalf("UpdateSeats(%d) 应成功: %v", n, err)
		}
	}

	req := &dto.ChangeLogListRequest{PeriodID: testPeriod}
	req.Page, req.PageSize = 2, 2
	logs, total, err := svcs.allocation.ListChangeLogs(ctx, req)
	if err != nil {
		t.Fatalf("ListChangeLogs 应成功: %v", err)
	}
	if total != 3 || len(logs) != 1 {
		t.Fatalf("期望总数 3、本页 1 条，实际 %d / %d", total, len(logs))
	}
}
