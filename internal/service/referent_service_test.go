package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
)

func seedReferentData(repos *testRepos) {
	repos.seedPeriod(testPeriod, model.PhaseAllocation)
	repos.seedEdition("E1", testPeriod, model.DayMonday, 16, 4)
	repos.seedEdition("E2", testPeriod, model.DayTuesday, 16, 4)
	for _, s := range []string{"S1", "S2"} {
		repos.seedSchool(s)
	}
	for _, tc := range []struct{ id, school string }{{"T1", "S1"}, {"T2", "S1"}, {"T3", "S2"}, {"T4", "S2"}} {
		repos.seedTeacher(tc.id, tc.school)
	}
}

func assign(svcs *testServices, edition, teacher string, main bool) (*dto.EditionReferentsResponse, error) {
	return svcs.referent.Assign(context.Background(), &dto.AssignReferentRequest{
		EditionID: edition, TeacherID: teacher, IsMainReferent: main,
	}, testOperator)
}

func TestAssign_ThirdReferentRejected(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	if _, err := assign(svcs, "E1", "T1", true); err != nil {
		t.Fatalf("第一位应成功: %v", err)
	}
	resp, err := assign(svcs, "E1", "T3", false)
	if err != nil {
		t.Fatalf("第二位应成功: %v", err)
	}
	if len(resp.Referents) != 2 || !resp.Referents[0].IsMainReferent {
		t.Fatalf("应返回 2 位且主负责人在前: %+v", resp.Referents)
	}

	_, err = assign(svcs, "E1", "T4", false)
	ce := expectCapacityError(t, err, "referents_per_edition")
	if ce.Used != 2 || ce.Limit != 2 {
		t.Fatalf("应报告 2/2，实际 %d/%d", ce.Used, ce.Limit)
	}

	list, err := svcs.referent.ListAssigned(context.Background(), "E1")
	if err != nil {
		t.Fatalf("ListAssigned 应成功: %v", err)
	}
	if len(list.Referents) != 2 {
		t.Fatalf("场次应保持 2 位负责教师，实际 %d", len(list.Referents))
	}
}

func TestAssign_FullEditionReportsCapacityBeforeDuplicate(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	if _, err := assign(svcs, "E1", "T1", true); err != nil {
		t.Fatalf("第一位应成功: %v", err)
	}
	if _, err := assign(svcs, "E1", "T3", false); err != nil {
		t.Fatalf("第二位应成功: %v", err)
	}

	// 已满场次重复指派已有教师，仍报容量错误
	_, err := assign(svcs, "E1", "T1", false)
	ce := expectCapacityError(t, err, "referents_per_edition")
	if ce.Used != 2 || ce.Limit != 2 {
		t.Fatalf("应报告 2/2，实际 %d/%d", ce.Used, ce.Limit)
	}

	_, err = assign(svcs, "E1", "T2", true)
	expectCapacityError(t, err, "referents_per_edition")

	if repos.tx.commits != 2 || repos.tx.rollbacks != 2 {
		t.Fatalf("期望 2 次提交 2 次回滚，实际 %d/%d", repos.tx.commits, repos.tx.rollbacks)
	}
}

func TestAssign_SecondMainConflict(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	if _, err := assign(svcs, "E1", "T1", true); err != nil {
		t.Fatalf("主负责人应成功: %v", err)
	}
	_, err := assign(svcs, "E1", "T2", true)
	expectConflictError(t, err)
}

func TestAssign_DuplicateTeacherConflict(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	if _, err := assign(svcs, "E1", "T1", false); err != nil {
		t.Fatalf("首次指派应成功: %v", err)
	}
	_, err := assign(svcs, "E1", "T1", false)
	expectConflictError(t, err)
}

func TestAssign_SameTeacherAcrossEditions(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	if _, err := assign(svcs, "E1", "T1", true); err != nil {
		t.Fatalf("E1 指派应成功: %v", err)
	}
	if _, err := assign(svcs, "E2", "T1", true); err != nil {
		t.Fatalf("同一教师可担任多个场次: %v", err)
	}
}

func TestAssign_NotFound(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	if _, err := assign(svcs, "nope", "T1", false); !errors.Is(err, ErrEditionNotFound) {
		t.Fatalf("期望 ErrEditionNotFound，实际 %v", err)
	}
	if _, err := assign(svcs, "E1", "nope", false); !errors.Is(err, ErrTeacherNotFound) {
		t.Fatalf("期望 ErrTeacherNotFound，实际 %v", err)
	}
}

func TestUnassign(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)
	ctx := context.Background()

	resp, err := assign(svcs, "E1", "T1", true)
	if err != nil {
		t.Fatalf("指派应成功: %v", err)
	}
	if err := svcs.referent.Unassign(ctx, resp.Referents[0].ID); err != nil {
		t.Fatalf("Unassign 应成功: %v", err)
	}
	if err := svcs.referent.Unassign(ctx, resp.Referents[0].ID); !errors.Is(err, ErrReferentNotFound) {
		t.Fatalf("重复撤销期望 ErrReferentNotFound，实际 %v", err)
	}
	// 撤销后可以重新指派主负责人
	if _, err := assign(svcs, "E1", "T2", true); err != nil {
		t.Fatalf("撤销后重新指派应成功: %v", err)
	}
}

func TestCandidates_Ordering(t *testing.T) {
	svcs, repos := setupTestServices()
	seedReferentData(repos)

	older := repos.seedSubmitted("R1", testPeriod, "S1", t0, reqItem("E1", 1, 1))
	older.Preferences = []model.TeacherPreference{
		{TeacherID: "T1", EditionID: "E1", PreferenceOrder: 1},
		{TeacherID: "T2", EditionID: "E2", PreferenceOrder: 1},
		{TeacherID: "T2", EditionID: "E1", PreferenceOrder: 2},
	}
	newer := repos.seedSubmitted("R2", testPeriod, "S2", t0.Add(time.Hour), reqItem("E1", 1, 1))
	newer.Preferences = []model.TeacherPreference{
		{TeacherID: "T3", EditionID: "E1", PreferenceOrder: 1},
	}
	cancelled := repos.seedSubmitted("R3", testPeriod, "S2", t0.Add(2*time.Hour), reqItem("E1", 1, 1))
	cancelled.Status = model.RequestStatusCancelled
	cancelled.Preferences = []model.TeacherPreference{{TeacherID: "T4", EditionID: "E1", PreferenceOrder: 1}}

	if _, err := assign(svcs, "E1", "T3", false); err != nil {
		t.Fatalf("指派应成功: %v", err)
	}

	got, err := svcs.referent.Candidates(context.Background(), "E1")
	if err != nil {
		t.Fatalf("Candidates 应成功: %v", err)
	}
	// 志愿 1 中较新的申请在前，随后是志愿 2；撤回申请中的教师不出现
	want := []string{"T3", "T1", "T2"}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 位候选人，实际 %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Teacher.ID != id {
			t.Fatalf("第 %d 位期望 %s，实际 %s", i, id, got[i].Teacher.ID)
		}
	}
	if !got[0].AlreadyAssigned || got[1].AlreadyAssigned {
		t.Fatal("already_assigned 标记不符")
	}
	if got[2].PreferenceOrder != 2 || got[2].School.Name != "学校 S1" {
		t.Fatalf("候选人信息不符: %+v", got[2])
	}
}
