package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/utils"
)

// 每周时间表转换为日期范围时需要 startDate/endDate；日期范围时间表转换为每周时通过 week 选择一周
type conversionRequest struct {
	Name      string       `json:"name" validate:"omitempty,max=64"`
	StartDate *domain.Date `json:"startDate"`
	EndDate   *domain.Date `json:"endDate"`
	Week      *int         `json:"week"`
}

func validateConversion(tt *domain.Timetable, req *conversionRequest) error {
	if tt.Type != domain.TimetableTypeWeekly {
		return nil
	}
	if req.StartDate == nil || req.EndDate == nil {
		return errors.New("转换为日期范围时间表需要起止日期")
	}
	return utils.ValidateDateRange(*req.StartDate, *req.EndDate)
}

// convert 计算转换结果，返回目标时间表（尚未命名）和转换后的排班
// preview 为真时每周时间表只展开 week 指定的那一周
func (h *Handler) convert(tt *domain.Timetable, req *conversionRequest, preview bool) (*domain.Timetable, []domain.ScheduleEntry, error) {
	source, err := h.repository.GetSchedules(tt.ID)
	if err != nil {
		return nil, nil, err
	}

	switch tt.Type {
	case domain.TimetableTypeWeekly:
		var week *int
		if preview {
			week = req.Week
		}
		entries, err := scheduler.Expand(source, *req.StartDate, *req.EndDate, week)
		if err != nil {
			return nil, nil, err
		}

		target := &domain.Timetable{
			OwnerID:   tt.OwnerID,
			Type:      domain.TimetableTypeDateRange,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		}
		return target, entries, nil
	default:
		weeks := scheduler.WeeksCovering(*tt.StartDate, *tt.EndDate)
		index := scheduler.WeekIndexOf(weeks, h.today())
		if index < 0 {
			index = 0
		}
		if req.Week != nil {
			index = *req.Week
		}
		if index < 0 || index >= len(weeks) {
			return nil, nil, scheduler.ErrWeekOutOfRange
		}

		entries, err := scheduler.Collapse(source, weeks[index])
		if err != nil {
			return nil, nil, err
		}

		target := &domain.Timetable{
			OwnerID: tt.OwnerID,
			Type:    domain.TimetableTypeWeekly,
		}
		return target, entries, nil
	}
}

func (h *Handler) PreviewConversion(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)
	if err := validateConversion(tt, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	target, entries, err := h.convert(tt, &req, true)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	h.successResponse(w, r, "转换预览成功", map[string]any{
		"type":      target.Type,
		"startDate": target.StartDate,
		"endDate":   target.EndDate,
		"schedules": entries,
	})
}

// ConvertTimetable 将转换结果保存为一个新的时间表，原时间表保持不变
func (h *Handler) ConvertTimetable(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.errorResponse(w, r, "新时间表名称不能为空")
		return
	}

	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)
	if err := validateConversion(tt, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	target, entries, err := h.convert(tt, &req, false)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	target.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateTimetable(target); err != nil {
		h.badRequest(w, r, err)
		return
	}

	created, err := h.repository.CreateTimetableWithSchedules(target, entries)
	if err != nil {
		if cerr := timetableConstraintError(err); cerr != nil {
			h.badRequest(w, r, cerr)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "转换时间表成功", map[string]any{
		"timetable": target,
		"schedules": created,
	})
}
