package allocation

import (
	"fmt"
	"sort"
	"time"

	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

// 单个申请明细允许的名额范围
const (
	MinSeatsPerItem = 1
	MaxSeatsPerItem = 4
)

const statusSubmitted = "SUBMITTED"

// Request 参与求解的学校申请快照
type Request struct {
	RequestID            string
	SchoolID             string
	Status               string
	IsFirstTime          bool
	AvailableForTuesdays bool
	SubmittedAt          time.Time
	Items                []Item
}

// Item 申请明细
type Item struct {
	EditionID      string
	RequestedSeats int
	Priority       int
	StudentIDs     []string
}

// DemandEntry 某学校对某场次的一条需求
type DemandEntry struct {
	RequestID            string
	SchoolID             string
	EditionID            string
	Requested            int
	Priority             int
	IsFirstTime          bool
	AvailableForTuesdays bool
	SubmittedAt          time.Time
}

// Warning 构建需求时被跳过的申请
type Warning struct {
	RequestID string                     `json:"request_id"`
	SchoolID  string                     `json:"school_id"`
	Err       *pkgerrors.ValidationError `json:"-"`
}

func (w Warning) String() string {
	return fmt.Sprintf("申请 %s（学校 %s）已跳过: %v", w.RequestID, w.SchoolID, w.Err)
}

// Demand 需求表
type Demand struct {
	Entries  []DemandEntry
	Warnings []Warning
}

// BuildDemand 由申请快照构建需求表
// 只读取 SUBMITTED 申请；不合法的申请整份跳过并记录告警。
// 同一学校存在多份 SUBMITTED 申请时保留最早提交的一份。
func BuildDemand(requests []Request) *Demand {
	submitted := make([]Request, 0, len(requests))
	for _, r := range requests {
		if r.Status == statusSubmitted {
			submitted = append(submitted, r)
		}
	}
	sort.SliceStable(submitted, func(i, j int) bool {
		if !submitted[i].SubmittedAt.Equal(submitted[j].SubmittedAt) {
			return submitted[i].SubmittedAt.Before(submitted[j].SubmittedAt)
		}
		return submitted[i].RequestID < submitted[j].RequestID
	})

	d := &Demand{}
	seenSchool := make(map[string]string)
	for _, r := range submitted {
		if first, dup := seenSchool[r.SchoolID]; dup {
			d.Warnings = append(d.Warnings, Warning{
				RequestID: r.RequestID,
				SchoolID:  r.SchoolID,
				Err:       pkgerrors.NewValidationError("school_id", "同一周期已存在提交的申请 "+first),
			})
			continue
		}
		if verr := ValidateItems(r.Items); verr != nil {
			d.Warnings = append(d.Warnings, Warning{RequestID: r.RequestID, SchoolID: r.SchoolID, Err: verr})
			continue
		}
		seenSchool[r.SchoolID] = r.RequestID

		for _, it := range r.Items {
			d.Entries = append(d.Entries, DemandEntry{
				RequestID:            r.RequestID,
				SchoolID:             r.SchoolID,
				EditionID:            it.EditionID,
				Requested:            it.RequestedSeats,
				Priority:             it.Priority,
				IsFirstTime:          r.IsFirstTime,
				AvailableForTuesdays: r.AvailableForTuesdays,
				SubmittedAt:          r.SubmittedAt,
			})
		}
	}
	return d
}

// ValidateItems 校验一份申请的明细
//   - 名额 1-4 且与学生人数一致
//   - 同一场次不得重复出现
//   - 优先级为 1..N 的连续排列
func ValidateItems(items []Item) *pkgerrors.ValidationError {
	editions := make(map[string]bool, len(items))
	priorities := make([]int, 0, len(items))

	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if it.EditionID == "" {
			return pkgerrors.NewValidationError(field+".edition_id", "不能为空")
		}
		if editions[it.EditionID] {
			return pkgerrors.NewValidationError(field+".edition_id", "场次 "+it.EditionID+" 重复出现")
		}
		editions[it.EditionID] = true

		if it.RequestedSeats < MinSeatsPerItem || it.RequestedSeats > MaxSeatsPerItem {
			return pkgerrors.NewValidationError(field+".requested_seats",
				fmt.Sprintf("名额必须在 %d-%d 之间，实际 %d", MinSeatsPerItem, MaxSeatsPerItem, it.RequestedSeats))
		}
		if len(it.StudentIDs) != it.RequestedSeats {
			return pkgerrors.NewValidationError(field+".student_ids",
				fmt.Sprintf("学生人数 %d 与申请名额 %d 不一致", len(it.StudentIDs), it.RequestedSeats))
		}
		students := make(map[string]bool, len(it.StudentIDs))
		for _, sid := range it.StudentIDs {
			if sid == "" || students[sid] {
				return pkgerrors.NewValidationError(field+".student_ids", "学生编号为空或重复")
			}
			students[sid] = true
		}
		priorities = append(priorities, it.Priority)
	}

	sort.Ints(priorities)
	for i, p := range priorities {
		if p != i+1 {
			return pkgerrors.NewValidationError("items.priority",
				fmt.Sprintf("优先级必须为 1..%d 的连续排列", len(priorities)))
		}
	}
	return nil
}

// MaxPriority 需求表中最大的优先级编号（即轮次数）
func (d *Demand) MaxPriority() int {
	max := 0
	for _, e := range d.Entries {
		if e.Priority > max {
			max = e.Priority
		}
	}
	return max
}

// EditionDemand 单个场次的需求汇总
type EditionDemand struct {
	EditionID      string
	TotalRequested int
	SchoolCount    int
	TopPriority    int // 出现过的最高优先级（数值最小）
	Entries        []DemandEntry
}

// Summarize 按场次汇总需求，按场次 ID 升序
func (d *Demand) Summarize() []EditionDemand {
	byEdition := make(map[string]*EditionDemand)
	for _, e := range d.Entries {
		ed, ok := byEdition[e.EditionID]
		if !ok {
			ed = &EditionDemand{EditionID: e.EditionID, TopPriority: e.Priority}
			byEdition[e.EditionID] = ed
		}
		ed.TotalRequested += e.Requested
		ed.SchoolCount++
		if e.Priority < ed.TopPriority {
			ed.TopPriority = e.Priority
		}
		ed.Entries = append(ed.Entries, e)
	}

	out := make([]EditionDemand, 0, len(byEdition))
	for _, ed := range byEdition {
		sort.Slice(ed.Entries, func(i, j int) bool {
			if ed.Entries[i].Priority != ed.Entries[j].Priority {
				return ed.Entries[i].Priority < ed.Entries[j].Priority
			}
			return ed.Entries[i].SchoolID < ed.Entries[j].SchoolID
		})
		out = append(out, *ed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EditionID < out[j].EditionID })
	return out
}
