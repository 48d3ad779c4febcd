package allocation

import (
	"fmt"
	"sort"

	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

const dayTuesday = "TUESDAY"

// Edition 场次容量参数
type Edition struct {
	EditionID     string
	DayOfWeek     string
	CapacityTotal int
	MaxPerSchool  int
}

// Reservation 已发布或已接受的分配，求解时视为占用且不可改动
type Reservation struct {
	EditionID string
	SchoolID  string
	Seats     int
}

type editionState struct {
	Edition
	allocated int
	perSchool map[string]int
	locked    map[string]bool // 存在非 PROVISIONAL 分配的学校
}

// CapacityTable 场次容量表
type CapacityTable struct {
	editions map[string]*editionState
}

// NewCapacityTable 构建容量表并扣除已占用名额
func NewCapacityTable(editions []Edition, reserved []Reservation) (*CapacityTable, error) {
	t := &CapacityTable{editions: make(map[string]*editionState, len(editions))}
	for _, e := range editions {
		if err := validateEdition(e); err != nil {
			return nil, err
		}
		t.editions[e.EditionID] = &editionState{
			Edition:   e,
			perSchool: make(map[string]int),
			locked:    make(map[string]bool),
		}
	}
	for _, r := range reserved {
		st, ok := t.editions[r.EditionID]
		if !ok {
			return nil, pkgerrors.NewValidationError("reservation.edition_id", "场次 "+r.EditionID+" 不存在")
		}
		st.allocated += r.Seats
		st.perSchool[r.SchoolID] += r.Seats
		st.locked[r.SchoolID] = true
	}
	return t, nil
}

func validateEdition(e Edition) error {
	switch {
	case e.EditionID == "":
		return pkgerrors.NewValidationError("edition_id", "不能为空")
	case e.CapacityTotal <= 0:
		return pkgerrors.NewValidationError("capacity_total", fmt.Sprintf("场次 %s 总容量必须大于 0", e.EditionID))
	case e.MaxPerSchool <= 0:
		return pkgerrors.NewValidationError("max_per_school", fmt.Sprintf("场次 %s 单校上限必须大于 0", e.EditionID))
	}
	return nil
}

// Has 场次是否在容量表中
func (t *CapacityTable) Has(editionID string) bool {
	_, ok := t.editions[editionID]
	return ok
}

// Edition 返回场次参数
func (t *CapacityTable) Edition(editionID string) (Edition, bool) {
	st, ok := t.editions[editionID]
	if !ok {
		return Edition{}, false
	}
	return st.Edition, true
}

// Remaining 场次剩余名额
func (t *CapacityTable) Remaining(editionID string) int {
	st, ok := t.editions[editionID]
	if !ok {
		return 0
	}
	return st.CapacityTotal - st.allocated
}

// Allocated 场次已占用名额
func (t *CapacityTable) Allocated(editionID string) int {
	if st, ok := t.editions[editionID]; ok {
		return st.allocated
	}
	return 0
}

// SchoolRemaining 学校在场次中还可获得的名额
func (t *CapacityTable) SchoolRemaining(editionID, schoolID string) int {
	st, ok := t.editions[editionID]
	if !ok {
		return 0
	}
	return st.MaxPerSchool - st.perSchool[schoolID]
}

// EditionIDs 按 ID 升序返回全部场次
func (t *CapacityTable) EditionIDs() []string {
	ids := make([]string, 0, len(t.editions))
	for id := range t.editions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *CapacityTable) isLocked(editionID, schoolID string) bool {
	st, ok := t.editions[editionID]
	return ok && st.locked[schoolID]
}

func (t *CapacityTable) take(editionID, schoolID string, seats int) {
	st := t.editions[editionID]
	st.allocated += seats
	st.perSchool[schoolID] += seats
}

func (t *CapacityTable) clone() *CapacityTable {
	c := &CapacityTable{editions: make(map[string]*editionState, len(t.editions))}
	for id, st := range t.editions {
		cp := &editionState{
			Edition:   st.Edition,
			allocated: st.allocated,
			perSchool: make(map[string]int, len(st.perSchool)),
			locked:    make(map[string]bool, len(st.locked)),
		}
		for k, v := range st.perSchool {
			cp.perSchool[k] = v
		}
		for k, v := range st.locked {
			cp.locked[k] = v
		}
		c.editions[id] = cp
	}
	return c
}

// CheckSeats 校验单条分配在替换后的名额是否满足两个上限
// othersTotal 为同场次其他分配（不含本条）的名额之和
func CheckSeats(e Edition, othersTotal, seats int) error {
	if seats < MinSeatsPerItem {
		return pkgerrors.NewValidationError("assigned_seats", fmt.Sprintf("名额必须不小于 %d", MinSeatsPerItem))
	}
	if seats > e.MaxPerSchool {
		return &pkgerrors.CapacityExceededError{
			Scope:     pkgerrors.ScopeMaxPerSchool,
			Used:      0,
			Requested: seats,
			Limit:     e.MaxPerSchool,
		}
	}
	if othersTotal+seats > e.CapacityTotal {
		return &pkgerrors.CapacityExceededError{
			Scope:     pkgerrors.ScopeCapacityTotal,
			Used:      othersTotal,
			Requested: seats,
			Limit:     e.CapacityTotal,
		}
	}
	return nil
}
