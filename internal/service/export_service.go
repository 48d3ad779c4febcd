package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoAllocations = errors.New("该周期暂无分配记录")
	ErrExportGenerateFail  = errors.New("生成 Excel 文件失败")
)

const (
	sheetAllocations = "分配明细"
	sheetEditions    = "场次汇总"
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入
type ExportService interface {
	// ExportAllocations 导出周期内全部分配为 Excel
	ExportAllocations(ctx context.Context, periodID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportAllocations
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "分配明细"：每条分配一行，按 (场次, 学校) 排序
//   - Sheet "场次汇总"：每个场次的容量、已分配与剩余名额

func (s *exportService) ExportAllocations(ctx context.Context, periodID string) (*bytes.Buffer, string, error) {
	period, err := getPeriod(ctx, s.repo, periodID, false)
	if err != nil {
		if !errors.Is(err, ErrPeriodNotFound) {
			s.logger.Error("查询报名周期失败", zap.Error(err))
		}
		return nil, "", err
	}

	allocations, err := s.repo.Allocation.List(ctx, repository.AllocationFilter{PeriodID: periodID})
	if err != nil {
		s.logger.Error("查询分配列表失败", zap.Error(err))
		return nil, "", err
	}
	if len(allocations) == 0 {
		return nil, "", ErrExportNoAllocations
	}
	editions, err := s.repo.Edition.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询场次失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(sheetAllocations)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	_, _ = f.NewSheet(sheetEditions)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	if err := writeAllocationSheet(f, allocations, headerStyle); err != nil {
		s.logger.Error("写入分配明细失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	if err := writeEditionSheet(f, editions, allocations, headerStyle); err != nil {
		s.logger.Error("写入场次汇总失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("分配已导出", zap.String("period_id", periodID), zap.Int("rows", len(allocations)))
	return buf, fmt.Sprintf("分配结果_%s.xlsx", period.Name), nil
}

func writeAllocationSheet(f *excelize.File, allocations []model.Allocation, headerStyle int) error {
	headers := []interface{}{"场次", "工作坊", "星期", "时间", "学校", "学校代码", "名额", "状态"}
	if err := writeRow(f, sheetAllocations, 1, headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetAllocations, "A1", cell(colName(len(headers)-1), 1), headerStyle); err != nil {
		return err
	}

	for i, a := range allocations {
		var title, day, slot, schoolName, schoolCode string
		if a.Edition != nil {
			day = a.Edition.DayOfWeek
			slot = a.Edition.StartTime + "-" + a.Edition.EndTime
			if a.Edition.Workshop != nil {
				title = a.Edition.Workshop.Title
			}
		}
		if a.School != nil {
			schoolName, schoolCode = a.School.Name, a.School.Code
		}
		row := []interface{}{a.EditionID, title, day, slot, schoolName, schoolCode, a.AssignedSeats, a.Status}
		if err := writeRow(f, sheetAllocations, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetAllocations, "A", "A", 38)
	_ = f.SetColWidth(sheetAllocations, "B", "B", 28)
	_ = f.SetColWidth(sheetAllocations, "E", "E", 28)
	return nil
}

func writeEditionSheet(f *excelize.File, editions []model.WorkshopEdition, allocations []model.Allocation, headerStyle int) error {
	used := make(map[string]int, len(editions))
	schools := make(map[string]int, len(editions))
	for _, a := range allocations {
		used[a.EditionID] += a.AssignedSeats
		schools[a.EditionID]++
	}

	headers := []interface{}{"场次", "工作坊", "星期", "容量", "单校上限", "学校数", "已分配", "剩余"}
	if err := writeRow(f, sheetEditions, 1, headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetEditions, "A1", cell(colName(len(headers)-1), 1), headerStyle); err != nil {
		return err
	}

	for i, e := range editions {
		title := ""
		if e.Workshop != nil {
			title = e.Workshop.Title
		}
		row := []interface{}{
			e.EditionID, title, e.DayOfWeek, e.CapacityTotal, e.MaxPerSchool,
			schools[e.EditionID], used[e.EditionID], e.CapacityTotal - used[e.EditionID],
		}
		if err := writeRow(f, sheetEditions, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetEditions, "A", "A", 38)
	_ = f.SetColWidth(sheetEditions, "B", "B", 28)
	return nil
}

// ── 辅助函数 ──

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	return f.SetSheetRow(sheet, cell("A", row), &values)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
