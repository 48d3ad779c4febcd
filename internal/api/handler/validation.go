package handler

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/dto"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/service"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册结构级校验，重复调用无副作用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterStructValidation(submitRequestStructLevel, dto.SubmitRequestRequest{})
	})
}

// submitRequestStructLevel 名额与学生名单一致、总名额上限、两位随行教师不重复
func submitRequestStructLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(dto.SubmitRequestRequest)

	total := 0
	for i, item := range req.Items {
		if item.RequestedSeats != len(item.StudentIDs) {
			sl.ReportError(item.StudentIDs, fmt.Sprintf("Items[%d].StudentIDs", i), "StudentIDs", "seats_match", "")
		}
		total += item.RequestedSeats
	}
	if total > service.MaxSeatsPerRequest {
		sl.ReportError(req.Items, "Items", "Items", "max_total_seats", fmt.Sprint(service.MaxSeatsPerRequest))
	}

	seen := make(map[string]bool, len(req.Teachers))
	for i, t := range req.Teachers {
		if seen[t.TeacherID] {
			sl.ReportError(t.TeacherID, fmt.Sprintf("Teachers[%d].TeacherID", i), "TeacherID", "distinct_teacher", "")
		}
		seen[t.TeacherID] = true
	}
}

// bindError 参数绑定失败，details 列出未通过的字段与规则
func bindError(c *gin.Context, code int, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(c, code, "参数校验失败")
		return
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Namespace()+": "+rule)
	}
	response.Invalid(c, code, "参数校验失败", strings.Join(parts, "; "))
}
