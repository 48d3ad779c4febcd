package service

import (
	"time"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/allocation"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/model"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toPeriodResponse(p *model.EnrollmentPeriod) dto.PeriodResponse {
	return dto.PeriodResponse{
		ID:          p.PeriodID,
		Name:        p.Name,
		StartDate:   p.StartDate.Format(dateLayout),
		EndDate:     p.EndDate.Format(dateLayout),
		Phase:       p.Phase,
		PublishedAt: formatTimePtr(p.PublishedAt),
		Version:     p.Version,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func toEditionBrief(e *model.WorkshopEdition) *dto.EditionBrief {
	if e == nil {
		return nil
	}
	brief := &dto.EditionBrief{
		ID:        e.EditionID,
		DayOfWeek: e.DayOfWeek,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
	}
	if e.Workshop != nil {
		brief.WorkshopTitle = e.Workshop.Title
	}
	return brief
}

func toSchoolBrief(s *model.School) *dto.SchoolBrief {
	if s == nil {
		return nil
	}
	return &dto.SchoolBrief{ID: s.SchoolID, Name: s.Name, Code: s.Code}
}

func toTeacherBrief(t *model.Teacher) *dto.TeacherBrief {
	if t == nil {
		return nil
	}
	return &dto.TeacherBrief{ID: t.TeacherID, FullName: t.FullName, Email: t.Email}
}

func toAllocationResponse(a *model.Allocation) dto.AllocationResponse {
	return dto.AllocationResponse{
		ID:            a.AllocationID,
		PeriodID:      a.PeriodID,
		Edition:       toEditionBrief(a.Edition),
		School:        toSchoolBrief(a.School),
		AssignedSeats: a.AssignedSeats,
		Status:        a.Status,
		PublishedAt:   formatTimePtr(a.PublishedAt),
		Version:       a.Version,
		CreatedAt:     formatTime(a.CreatedAt),
		UpdatedAt:     formatTime(a.UpdatedAt),
	}
}

func toAllocationResponses(list []model.Allocation) []dto.AllocationResponse {
	out := make([]dto.AllocationResponse, 0, len(list))
	for i := range list {
		out = append(out, toAllocationResponse(&list[i]))
	}
	return out
}

func toReferentResponse(a *model.ReferentAssignment) dto.ReferentResponse {
	return dto.ReferentResponse{
		ID:             a.AssignmentID,
		EditionID:      a.EditionID,
		Teacher:        toTeacherBrief(a.Teacher),
		IsMainReferent: a.IsMainReferent,
		AssignedAt:     formatTime(a.AssignedAt),
	}
}

func toEngineEdition(e *model.WorkshopEdition) allocation.Edition {
	return allocation.Edition{
		EditionID:     e.EditionID,
		DayOfWeek:     e.DayOfWeek,
		CapacityTotal: e.CapacityTotal,
		MaxPerSchool:  e.MaxPerSchool,
	}
}

func toEngineRequests(reqs []model.Request) []allocation.Request {
	out := make([]allocation.Request, 0, len(reqs))
	for _, r := range reqs {
		er := allocation.Request{
			RequestID:            r.RequestID,
			SchoolID:             r.SchoolID,
			Status:               r.Status,
			IsFirstTime:          r.IsFirstTime,
			AvailableForTuesdays: r.AvailableForTuesdays,
		}
		if r.SubmittedAt != nil {
			er.SubmittedAt = *r.SubmittedAt
		}
		for _, it := range r.Items {
			er.Items = append(er.Items, allocation.Item{
				EditionID:      it.EditionID,
				RequestedSeats: it.RequestedSeats,
				Priority:       it.Priority,
				StudentIDs:     []string(it.StudentIDs),
			})
		}
		out = append(out, er)
	}
	return out
}

func warningStrings(ws []allocation.Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}
