package allocation

import "sort"

// 未满足原因
const (
	ReasonCapacityTotal    = "capacity_total"
	ReasonMaxPerSchool     = "max_per_school"
	ReasonDayUnavailable   = "day_unavailable"
	ReasonUnknownEdition   = "unknown_edition"
	ReasonAlreadyAllocated = "already_allocated"
)

// Grant 求解得到的一条分配
type Grant struct {
	EditionID string `json:"edition_id"`
	SchoolID  string `json:"school_id"`
	RequestID string `json:"request_id"`
	Priority  int    `json:"priority"`
	Seats     int    `json:"seats"`
}

// Shortfall 未满足或部分满足的需求
type Shortfall struct {
	EditionID string `json:"edition_id"`
	SchoolID  string `json:"school_id"`
	Priority  int    `json:"priority"`
	Requested int    `json:"requested"`
	Granted   int    `json:"granted"`
	Reason    string `json:"reason"`
}

// Summary 求解统计
type Summary struct {
	AllocationsCreated int `json:"allocations_created"`
	SeatsAllocated     int `json:"total_students_allocated"`
	SchoolsTouched     int `json:"schools_touched"`
}

// Result 求解结果，Grants 按 (场次, 学校) 排序
type Result struct {
	Grants     []Grant
	Shortfalls []Shortfall
	Summary    Summary
}

// Options 求解参数
type Options struct {
	TieBreak TieBreak
}

// Solve 按优先级轮次贪心分配
//
// 第 r 轮只处理优先级为 r 的需求；同一场次内按 TieBreak 顺序依次授予
// min(申请名额, 单校剩余, 场次剩余)。不足 1 个名额时不生成分配。
// 被单校上限截断的余量不会转给其他学校。传入的容量表不会被修改。
func Solve(d *Demand, capacities *CapacityTable, opts Options) *Result {
	table := capacities.clone()
	res := &Result{}

	rounds := make(map[int]map[string][]DemandEntry)
	for _, e := range d.Entries {
		if rounds[e.Priority] == nil {
			rounds[e.Priority] = make(map[string][]DemandEntry)
		}
		rounds[e.Priority][e.EditionID] = append(rounds[e.Priority][e.EditionID], e)
	}

	for r := 1; r <= d.MaxPriority(); r++ {
		byEdition := rounds[r]
		editionIDs := make([]string, 0, len(byEdition))
		for id := range byEdition {
			editionIDs = append(editionIDs, id)
		}
		sort.Strings(editionIDs)

		for _, editionID := range editionIDs {
			entries := byEdition[editionID]
			sort.SliceStable(entries, func(i, j int) bool {
				return opts.TieBreak.less(entries[i], entries[j])
			})
			for _, e := range entries {
				res.apply(table, e)
			}
		}
	}

	sort.Slice(res.Grants, func(i, j int) bool {
		if res.Grants[i].EditionID != res.Grants[j].EditionID {
			return res.Grants[i].EditionID < res.Grants[j].EditionID
		}
		return res.Grants[i].SchoolID < res.Grants[j].SchoolID
	})
	sort.SliceStable(res.Shortfalls, func(i, j int) bool {
		if res.Shortfalls[i].EditionID != res.Shortfalls[j].EditionID {
			return res.Shortfalls[i].EditionID < res.Shortfalls[j].EditionID
		}
		return res.Shortfalls[i].SchoolID < res.Shortfalls[j].SchoolID
	})

	schools := make(map[string]bool)
	for _, g := range res.Grants {
		res.Summary.AllocationsCreated++
		res.Summary.SeatsAllocated += g.Seats
		schools[g.SchoolID] = true
	}
	res.Summary.SchoolsTouched = len(schools)
	return res
}

func (res *Result) apply(table *CapacityTable, e DemandEntry) {
	short := func(granted int, reason string) {
		res.Shortfalls = append(res.Shortfalls, Shortfall{
			EditionID: e.EditionID,
			SchoolID:  e.SchoolID,
			Priority:  e.Priority,
			Requested: e.Requested,
			Granted:   granted,
			Reason:    reason,
		})
	}

	ed, ok := table.Edition(e.EditionID)
	switch {
	case !ok:
		short(0, ReasonUnknownEdition)
		return
	case table.isLocked(e.EditionID, e.SchoolID):
		short(0, ReasonAlreadyAllocated)
		return
	case ed.DayOfWeek == dayTuesday && !e.AvailableForTuesdays:
		short(0, ReasonDayUnavailable)
		return
	}

	schoolLeft := table.SchoolRemaining(e.EditionID, e.SchoolID)
	editionLeft := table.Remaining(e.EditionID)
	grant := min(e.Requested, schoolLeft, editionLeft)

	if grant > 0 {
		table.take(e.EditionID, e.SchoolID, grant)
		res.Grants = append(res.Grants, Grant{
			EditionID: e.EditionID,
			SchoolID:  e.SchoolID,
			RequestID: e.RequestID,
			Priority:  e.Priority,
			Seats:     grant,
		})
	} else {
		grant = 0
	}

	if grant < e.Requested {
		reason := ReasonCapacityTotal
		if schoolLeft < editionLeft {
			reason = ReasonMaxPerSchool
		}
		short(grant, reason)
	}
}
