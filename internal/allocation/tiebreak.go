package allocation

import (
	"fmt"
	"strings"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/config"
)

// TieBreak 同一轮次、同一场次内的处理顺序，返回负数表示 a 先处理
// 返回 0 时由学校 ID、申请 ID 兜底，保证全序
type TieBreak func(a, b DemandEntry) int

// BySchoolID 按学校 ID 升序
func BySchoolID(a, b DemandEntry) int {
	return strings.Compare(a.SchoolID, b.SchoolID)
}

// BySubmittedAt 先提交者优先
func BySubmittedAt(a, b DemandEntry) int {
	switch {
	case a.SubmittedAt.Before(b.SubmittedAt):
		return -1
	case b.SubmittedAt.Before(a.SubmittedAt):
		return 1
	}
	return 0
}

// FirstTimeFirst 首次参加的学校优先
func FirstTimeFirst(a, b DemandEntry) int {
	switch {
	case a.IsFirstTime && !b.IsFirstTime:
		return -1
	case !a.IsFirstTime && b.IsFirstTime:
		return 1
	}
	return 0
}

// TieBreakFor 按配置名称返回排序规则
func TieBreakFor(name string) (TieBreak, error) {
	switch name {
	case "", config.TieBreakSchoolID:
		return BySchoolID, nil
	case config.TieBreakSubmittedAt:
		return BySubmittedAt, nil
	case config.TieBreakFirstTime:
		return FirstTimeFirst, nil
	}
	return nil, fmt.Errorf("未知的并列排序规则 %q", name)
}

func (tb TieBreak) less(a, b DemandEntry) bool {
	if tb != nil {
		if c := tb(a, b); c != 0 {
			return c < 0
		}
	}
	if a.SchoolID != b.SchoolID {
		return a.SchoolID < b.SchoolID
	}
	return a.RequestID < b.RequestID
}
