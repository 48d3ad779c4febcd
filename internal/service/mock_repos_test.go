package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// ── Mock PeriodRepository ──

type mockPeriodRepo struct {
	periods map[string]*model.EnrollmentPeriod
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{periods: make(map[string]*model.EnrollmentPeriod)}
}

func (m *mockPeriodRepo) Create(_ context.Context, period *model.EnrollmentPeriod) error {
	if period.PeriodID == "" {
		period.PeriodID = fmt.Sprintf("period-%d", len(m.periods)+1)
	}
	period.Version = 1
	period.CreatedAt = time.Now()
	period.UpdatedAt = period.CreatedAt
	cp := *period
	m.periods[period.PeriodID] = &cp
	return nil
}

func (m *mockPeriodRepo) GetByID(_ context.Context, id string) (*model.EnrollmentPeriod, error) {
	if p, ok := m.periods[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) GetForUpdate(ctx context.Context, id string) (*model.EnrollmentPeriod, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPeriodRepo) Update(_ context.Context, period *model.EnrollmentPeriod) error {
	stored, ok := m.periods[period.PeriodID]
	if !ok || stored.Version != period.Version {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version++
	cp := *period
	m.periods[period.PeriodID] = &cp
	return nil
}

// ── Mock SchoolRepository / TeacherRepository ──

type mockSchoolRepo struct {
	schools map[string]*model.School
}

func newMockSchoolRepo() *mockSchoolRepo {
	return &mockSchoolRepo{schools: make(map[string]*model.School)}
}

func (m *mockSchoolRepo) GetByID(_ context.Context, id string) (*model.School, error) {
	if s, ok := m.schools[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSchoolRepo) ListByIDs(_ context.Context, ids []string) ([]model.School, error) {
	var result []model.School
	for _, id := range ids {
		if s, ok := m.schools[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

type mockTeacherRepo struct {
	teachers map[string]*model.Teacher
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{teachers: make(map[string]*model.Teacher)}
}

func (m *mockTeacherRepo) GetByID(_ context.Context, id string) (*model.Teacher, error) {
	if t, ok := m.teachers[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeacherRepo) ListByIDs(_ context.Context, ids []string) ([]model.Teacher, error) {
	var result []model.Teacher
	for _, id := range ids {
		if t, ok := m.teachers[id]; ok {
			result = append(result, *t)
		}
	}
	return result, nil
}

// ── Mock EditionRepository ──

type mockEditionRepo struct {
	editions map[string]*model.WorkshopEdition
}

func newMockEditionRepo() *mockEditionRepo {
	return &mockEditionRepo{editions: make(map[string]*model.WorkshopEdition)}
}

func (m *mockEditionRepo) GetByID(_ context.Context, id string) (*model.WorkshopEdition, error) {
	if e, ok := m.editions[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEditionRepo) GetForUpdate(ctx context.Context, id string) (*model.WorkshopEdition, error) {
	return m.GetByID(ctx, id)
}

func (m *mockEditionRepo) ListByPeriod(_ context.Context, periodID string) ([]model.WorkshopEdition, error) {
	var result []model.WorkshopEdition
	for _, e := range m.editions {
		if e.PeriodID == periodID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EditionID < result[j].EditionID })
	return result, nil
}

// ── Mock RequestRepository ──

type mockRequestRepo struct {
	requests map[string]*model.Request
	teachers *mockTeacherRepo
	schools  *mockSchoolRepo
	seq      int
}

func newMockRequestRepo(teachers *mockTeacherRepo, schools *mockSchoolRepo) *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*model.Request), teachers: teachers, schools: schools}
}

func (m *mockRequestRepo) Create(_ context.Context, req *model.Request) error {
	if req.RequestID == "" {
		m.seq++
		req.RequestID = fmt.Sprintf("req-%d", m.seq)
	}
	for i := range req.Items {
		req.Items[i].RequestID = req.RequestID
	}
	for i := range req.Teachers {
		req.Teachers[i].RequestID = req.RequestID
	}
	for i := range req.Preferences {
		req.Preferences[i].RequestID = req.RequestID
	}
	req.Version = 1
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id string) (*model.Request, error) {
	if r, ok := m.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) GetSubmittedBySchool(_ context.Context, periodID, schoolID string) (*model.Request, error) {
	for _, r := range m.requests {
		if r.PeriodID == periodID && r.SchoolID == schoolID && r.Status == model.RequestStatusSubmitted {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) ListSubmittedByPeriod(_ context.Context, periodID string) ([]model.Request, error) {
	var result []model.Request
	for _, r := range m.requests {
		if r.PeriodID == periodID && r.Status == model.RequestStatusSubmitted {
			cp := *r
			cp.School = m.schools.schools[r.SchoolID]
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestID < result[j].RequestID })
	return result, nil
}

func (m *mockRequestRepo) Update(_ context.Context, req *model.Request) error {
	stored, ok := m.requests[req.RequestID]
	if !ok || stored.Version != req.Version {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version++
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *mockRequestRepo) ListCandidatesByEdition(_ context.Context, editionID string) ([]repository.CandidateRow, error) {
	var rows []repository.CandidateRow
	for _, r := range m.requests {
		if r.Status != model.RequestStatusSubmitted {
			continue
		}
		for _, p := range r.Preferences {
			if p.EditionID != editionID {
				continue
			}
			row := repository.CandidateRow{
				TeacherID:       p.TeacherID,
				SchoolID:        r.SchoolID,
				RequestID:       r.RequestID,
				PreferenceOrder: p.PreferenceOrder,
			}
			if r.SubmittedAt != nil {
				row.SubmittedAt = *r.SubmittedAt
			}
			if t, ok := m.teachers.teachers[p.TeacherID]; ok {
				row.FullName, row.Email = t.FullName, t.Email
			}
			if s, ok := m.schools.schools[r.SchoolID]; ok {
				row.SchoolName, row.SchoolCode = s.Name, s.Code
			}
			rows = append(rows, row)
		}
	}
	// 刻意打乱为请求 ID 倒序，由 Service 负责排序
	sort.Slice(rows, func(i, j int) bool { return rows[i].RequestID > rows[j].RequestID })
	return rows, nil
}

// ── Mock AllocationRepository ──

type mockAllocationRepo struct {
	allocations map[string]*model.Allocation
	editions    *mockEditionRepo
	schools     *mockSchoolRepo
	seq         int
}

func newMockAllocationRepo(editions *mockEditionRepo, schools *mockSchoolRepo) *mockAllocationRepo {
	return &mockAllocationRepo{allocations: make(map[string]*model.Allocation), editions: editions, schools: schools}
}

func (m *mockAllocationRepo) withRelations(a *model.Allocation) *model.Allocation {
	cp := *a
	cp.Edition = m.editions.editions[a.EditionID]
	cp.School = m.schools.schools[a.SchoolID]
	return &cp
}

func (m *mockAllocationRepo) BatchCreate(ctx context.Context, allocations []model.Allocation) error {
	for i := range allocations {
		if err := m.Create(ctx, &allocations[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAllocationRepo) Create(_ context.Context, allocation *model.Allocation) error {
	for _, a := range m.allocations {
		if a.EditionID == allocation.EditionID && a.SchoolID == allocation.SchoolID {
			return gorm.ErrDuplicatedKey
		}
	}
	if allocation.AllocationID == "" {
		m.seq++
		allocation.AllocationID = fmt.Sprintf("alloc-%d", m.seq)
	}
	allocation.Version = 1
	cp := *allocation
	m.allocations[allocation.AllocationID] = &cp
	return nil
}

func (m *mockAllocationRepo) GetByID(_ context.Context, id string) (*model.Allocation, error) {
	if a, ok := m.allocations[id]; ok {
		return m.withRelations(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAllocationRepo) GetForUpdate(_ context.Context, id string) (*model.Allocation, error) {
	if a, ok := m.allocations[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAllocationRepo) GetByEditionSchool(_ context.Context, editionID, schoolID string) (*model.Allocation, error) {
	for _, a := range m.allocations {
		if a.EditionID == editionID && a.SchoolID == schoolID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAllocationRepo) List(_ context.Context, filter repository.AllocationFilter) ([]model.Allocation, error) {
	var result []model.Allocation
	for _, a := range m.allocations {
		if a.PeriodID != filter.PeriodID ||
			(filter.EditionID != "" && a.EditionID != filter.EditionID) ||
			(filter.SchoolID != "" && a.SchoolID != filter.SchoolID) ||
			(filter.Status != "" && a.Status != filter.Status) {
			continue
		}
		result = append(result, *m.withRelations(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EditionID != result[j].EditionID {
			return result[i].EditionID < result[j].EditionID
		}
		return result[i].SchoolID < result[j].SchoolID
	})
	return result, nil
}

func (m *mockAllocationRepo) CountByPeriodStatus(_ context.Context, periodID, status string) (int64, error) {
	var n int64
	for _, a := range m.allocations {
		if a.PeriodID == periodID && a.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockAllocationRepo) SumSeatsByEdition(_ context.Context, editionID, excludeID string) (int, error) {
	sum := 0
	for _, a := range m.allocations {
		if a.EditionID == editionID && a.AllocationID != excludeID {
			sum += a.AssignedSeats
		}
	}
	return sum, nil
}

func (m *mockAllocationRepo) Update(_ context.Context, allocation *model.Allocation) error {
	stored, ok := m.allocations[allocation.AllocationID]
	if !ok || stored.Version != allocation.Version {
		return pkgerrors.ErrOptimisticLock
	}
	allocation.Version++
	cp := *allocation
	cp.Edition, cp.School = nil, nil
	m.allocations[allocation.AllocationID] = &cp
	return nil
}

func (m *mockAllocationRepo) DeleteProvisionalByPeriod(_ context.Context, periodID string) (int64, error) {
	var n int64
	for id, a := range m.allocations {
		if a.PeriodID == periodID && a.Status == model.AllocationStatusProvisional {
			delete(m.allocations, id)
			n++
		}
	}
	return n, nil
}

func (m *mockAllocationRepo) PublishByPeriod(_ context.Context, periodID string, publishedAt time.Time, operatorID string) (int64, error) {
	var n int64
	for _, a := range m.allocations {
		if a.PeriodID == periodID && a.Status == model.AllocationStatusProvisional {
			at := publishedAt
			a.Status = model.AllocationStatusPublished
			a.PublishedAt = &at
			a.UpdatedBy = &operatorID
			a.Version++
			n++
		}
	}
	return n, nil
}

// ── Mock AllocationChangeLogRepository ──

type mockChangeLogRepo struct {
	logs []model.AllocationChangeLog
}

func newMockChangeLogRepo() *mockChangeLogRepo {
	return &mockChangeLogRepo{}
}

func (m *mockChangeLogRepo) Create(_ context.Context, log *model.AllocationChangeLog) error {
	log.ChangeLogID = fmt.Sprintf("log-%d", len(m.logs)+1)
	log.CreatedAt = time.Now()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockChangeLogRepo) ListByPeriod(_ context.Context, periodID string, offset, limit int) ([]model.AllocationChangeLog, int64, error) {
	var filtered []model.AllocationChangeLog
	for _, l := range m.logs {
		if l.PeriodID == periodID {
			filtered = append(filtered, l)
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

// ── Mock ReferentRepository ──

type mockReferentRepo struct {
	assignments map[string]*model.ReferentAssignment
	teachers    *mockTeacherRepo
	seq         int
}

func newMockReferentRepo(teachers *mockTeacherRepo) *mockReferentRepo {
	return &mockReferentRepo{assignments: make(map[string]*model.ReferentAssignment), teachers: teachers}
}

func (m *mockReferentRepo) Create(_ context.Context, assignment *model.ReferentAssignment) error {
	m.seq++
	assignment.AssignmentID = fmt.Sprintf("ref-%d", m.seq)
	// 保证同一测试内指派时间严格递增
	assignment.AssignedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	cp := *assignment
	m.assignments[assignment.AssignmentID] = &cp
	return nil
}

func (m *mockReferentRepo) GetByID(_ context.Context, id string) (*model.ReferentAssignment, error) {
	if a, ok := m.assignments[id]; ok {
		cp := *a
		cp.Teacher = m.teachers.teachers[a.TeacherID]
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReferentRepo) ListByEdition(_ context.Context, editionID string) ([]model.ReferentAssignment, error) {
	var result []model.ReferentAssignment
	for _, a := range m.assignments {
		if a.EditionID == editionID {
			cp := *a
			cp.Teacher = m.teachers.teachers[a.TeacherID]
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsMainReferent != result[j].IsMainReferent {
			return result[i].IsMainReferent
		}
		return result[i].AssignedAt.Before(result[j].AssignedAt)
	})
	return result, nil
}

func (m *mockReferentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.assignments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.assignments, id)
	return nil
}

// ── Mock Transactor ──

// mockTransactor 以同一内存聚合执行 fn，并记录事务提交与回滚次数
type mockTransactor struct {
	repo       *repository.Repository
	commits    int
	rollbacks  int
	inProgress bool
}

func (m *mockTransactor) Transaction(_ context.Context, fn func(tx *repository.Repository) error) error {
	if m.inProgress {
		return fmt.Errorf("mock: 不支持嵌套事务")
	}
	m.inProgress = true
	defer func() { m.inProgress = false }()

	if err := fn(m.repo); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func (m *mockTransactor) Ping(context.Context) error { return nil }

// ── 测试 Repository 聚合 ──

type testRepos struct {
	period     *mockPeriodRepo
	school     *mockSchoolRepo
	teacher    *mockTeacherRepo
	edition    *mockEditionRepo
	request    *mockRequestRepo
	allocation *mockAllocationRepo
	changeLog  *mockChangeLogRepo
	referent   *mockReferentRepo
	tx         *mockTransactor
}

func newTestRepos() *testRepos {
	schools := newMockSchoolRepo()
	teachers := newMockTeacherRepo()
	editions := newMockEditionRepo()
	return &testRepos{
		period:     newMockPeriodRepo(),
		school:     schools,
		teacher:    teachers,
		edition:    editions,
		request:    newMockRequestRepo(teachers, schools),
		allocation: newMockAllocationRepo(editions, schools),
		changeLog:  newMockChangeLogRepo(),
		referent:   newMockReferentRepo(teachers),
		tx:         &mockTransactor{},
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	repo := &repository.Repository{
		Tx:         r.tx,
		Period:     r.period,
		School:     r.school,
		Teacher:    r.teacher,
		Edition:    r.edition,
		Request:    r.request,
		Allocation: r.allocation,
		ChangeLog:  r.changeLog,
		Referent:   r.referent,
	}
	r.tx.repo = repo
	return repo
}

// ── 种子数据辅助 ──

func (r *testRepos) seedPeriod(id, phase string) {
	r.period.periods[id] = &model.EnrollmentPeriod{
		PeriodID:  id,
		Name:      "2026-T1",
		StartDate: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), // 周一
		EndDate:   time.Date(2026, 3, 27, 0, 0, 0, 0, time.UTC),
		Phase:     phase,
		SoftDeleteVersionedModel: model.SoftDeleteVersionedModel{
			VersionedModel: model.VersionedModel{Version: 1},
		},
	}
}

func (r *testRepos) seedEdition(id, periodID, day string, capacity, maxPerSchool int) {
	r.edition.editions[id] = &model.WorkshopEdition{
		EditionID:     id,
		PeriodID:      periodID,
		WorkshopID:    "ws-" + id,
		DayOfWeek:     day,
		StartTime:     "09:00",
		EndTime:       "11:00",
		CapacityTotal: capacity,
		MaxPerSchool:  maxPerSchool,
		Workshop:      &model.Workshop{WorkshopID: "ws-" + id, Title: "工作坊 " + id},
	}
}

func (r *testRepos) seedSchool(id string) {
	r.school.schools[id] = &model.School{SchoolID: id, Name: "学校 " + id, Code: "C-" + id}
}

func (r *testRepos) seedTeacher(id, schoolID string) {
	r.teacher.teachers[id] = &model.Teacher{TeacherID: id, SchoolID: schoolID, FullName: "教师 " + id}
}

func (r *testRepos) seedAllocation(id, periodID, editionID, schoolID string, seats int, status string) {
	r.allocation.allocations[id] = &model.Allocation{
		AllocationID:   id,
		PeriodID:       periodID,
		EditionID:      editionID,
		SchoolID:       schoolID,
		AssignedSeats:  seats,
		Status:         status,
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

// seedSubmitted 写入一份已提交申请，未指定学生时按名额生成学生编号
func (r *testRepos) seedSubmitted(id, periodID, schoolID string, at time.Time, items ...model.RequestItem) *model.Request {
	for i := range items {
		items[i].RequestID = id
		if items[i].StudentIDs == nil {
			for k := 0; k < items[i].RequestedSeats; k++ {
				items[i].StudentIDs = append(items[i].StudentIDs, fmt.Sprintf("%s-%s-%d", schoolID, items[i].EditionID, k))
			}
		}
	}
	submitted := at
	req := &model.Request{
		RequestID:            id,
		PeriodID:             periodID,
		SchoolID:             schoolID,
		Status:               model.RequestStatusSubmitted,
		AvailableForTuesdays: true,
		SubmittedAt:          &submitted,
		Items:                items,
		VersionedModel:       model.VersionedModel{Version: 1},
	}
	r.request.requests[id] = req
	return req
}

func reqItem(editionID string, seats, priority int) model.RequestItem {
	return model.RequestItem{EditionID: editionID, RequestedSeats: seats, Priority: priority}
}
