package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/config"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	pkgerrors "github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/errors"
)

const icsProductID = "-//enrollment//allocation-engine//CA"

// CalendarService 已发布分配的日历导出接口
type CalendarService interface {
	// ExportCalendar 导出 iCalendar；schoolID 为空时导出全部学校
	ExportCalendar(ctx context.Context, periodID, schoolID string) ([]byte, string, error)
}

type calendarService struct {
	cfg    *config.AllocationConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.AllocationConfig, repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{cfg: cfg, repo: repo, logger: logger}
}

// ════════════════════════════════════════════════════════════
// ExportCalendar — 每条分配生成 SessionCount 个每周课次
// ════════════════════════════════════════════════════════════

func (s *calendarService) ExportCalendar(ctx context.Context, periodID, schoolID string) ([]byte, string, error) {
	period, err := getPeriod(ctx, s.repo, periodID, false)
	if err != nil {
		if !errors.Is(err, ErrPeriodNotFound) {
			s.logger.Error("查询报名周期失败", zap.Error(err))
		}
		return nil, "", err
	}
	if period.Phase != model.PhasePublication && period.Phase != model.PhaseClosed {
		return nil, "", pkgerrors.NewPhaseError("ExportCalendar", period.Phase, model.PhasePublication, model.PhaseClosed)
	}

	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return nil, "", fmt.Errorf("加载时区失败: %w", err)
	}

	list, err := s.repo.Allocation.List(ctx, repository.AllocationFilter{PeriodID: periodID, SchoolID: schoolID})
	if err != nil {
		s.logger.Error("查询分配列表失败", zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(period.Name)
	cal.SetXWRTimezone(loc.String())

	stamp := time.Now().UTC()
	if period.PublishedAt != nil {
		stamp = period.PublishedAt.UTC()
	}

	events := 0
	for _, a := range list {
		if a.Status == model.AllocationStatusProvisional || a.Edition == nil {
			continue
		}
		sessions, err := SessionTimes(period.StartDate, a.Edition, s.cfg.SessionCount, loc)
		if err != nil {
			s.logger.Warn("场次时间无效，跳过日历导出",
				zap.String("edition_id", a.EditionID),
				zap.Error(err),
			)
			continue
		}

		summary := a.EditionID
		if a.Edition.Workshop != nil {
			summary = a.Edition.Workshop.Title
		}
		schoolName := a.SchoolID
		if a.School != nil {
			schoolName = a.School.Name
		}

		for i, sess := range sessions {
			evt := cal.AddEvent(fmt.Sprintf("%s-%02d@allocation", a.AllocationID, i+1))
			evt.SetDtStampTime(stamp)
			evt.SetStartAt(sess[0])
			evt.SetEndAt(sess[1])
			evt.SetSummary(fmt.Sprintf("%s（%d/%d）", summary, i+1, len(sessions)))
			evt.SetDescription(fmt.Sprintf("学校: %s\n名额: %d", schoolName, a.AssignedSeats))
			events++
		}
	}

	s.logger.Info("日历已导出",
		zap.String("period_id", periodID),
		zap.String("school_id", schoolID),
		zap.Int("events", events),
	)
	return []byte(cal.Serialize()), fmt.Sprintf("%s.ics", period.Name), nil
}

// SessionTimes 从周期开始日起，场次所在星期的前 count 次课的起止时间
func SessionTimes(periodStart time.Time, e *model.WorkshopEdition, count int, loc *time.Location) ([][2]time.Time, error) {
	weekday, ok := model.Weekday(e.DayOfWeek)
	if !ok {
		return nil, fmt.Errorf("未知星期 %q", e.DayOfWeek)
	}
	sh, sm, err := parseClock(e.StartTime)
	if err != nil {
		return nil, err
	}
	eh, em, err := parseClock(e.EndTime)
	if err != nil {
		return nil, err
	}
	if eh*60+em <= sh*60+sm {
		return nil, fmt.Errorf("结束时间 %s 不晚于开始时间 %s", e.EndTime, e.StartTime)
	}

	first := time.Date(periodStart.Year(), periodStart.Month(), periodStart.Day(), 0, 0, 0, 0, loc)
	first = first.AddDate(0, 0, (int(weekday)-int(first.Weekday())+7)%7)

	out := make([][2]time.Time, 0, count)
	for i := 0; i < count; i++ {
		day := first.AddDate(0, 0, 7*i)
		out = append(out, [2]time.Time{
			time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc),
			time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc),
		})
	}
	return out, nil
}

// parseClock 解析 HH:MM
func parseClock(v string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, fmt.Errorf("时间格式应为 HH:MM: %q", v)
	}
	return t.Hour(), t.Minute(), nil
}
