package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/utils"
)

// timetableConstraintError 将时间表相关的约束冲突转换为用户可读的错误，无法识别时返回 nil
func timetableConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	switch pgErr.ConstraintName {
	case "timetables_owner_name_key":
		return errors.New("已存在同名的时间表")
	case "timetables_owner_active_key":
		return errors.New("同一时间只能启用一个时间表，请重试")
	case "timetables_date_range_check":
		return errors.New("时间表的类型与起止日期不匹配")
	default:
		return nil
	}
}

func (h *Handler) CreateTimetable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string       `json:"name" validate:"required,max=64"`
		Type      string       `json:"type" validate:"required,oneof=WEEKLY DATE_RANGE"`
		StartDate *domain.Date `json:"startDate"`
		EndDate   *domain.Date `json:"endDate"`
		IsActive  bool         `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	tt := &domain.Timetable{
		Name:      strings.TrimSpace(req.Name),
		OwnerID:   myInfo.ID,
		Type:      domain.TimetableType(req.Type),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive,
	}
	if err := utils.ValidateTimetable(tt); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateTimetable(tt); err != nil {
		if cerr := timetableConstraintError(err); cerr != nil {
			h.badRequest(w, r, cerr)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建时间表成功", tt)
}

// GetTimetables 默认返回自己的时间表，管理员可以通过 ownerID 查看其他人的，或者传 all 查看全部
func (h *Handler) GetTimetables(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	ownerID := myInfo.ID
	if param := r.URL.Query().Get("ownerID"); param != "" {
		if myInfo.Role != domain.RoleAdmin {
			h.errorResponse(w, r, "权限不足")
			return
		}

		if param == "all" {
			timetables, err := h.repository.GetAllTimetables()
			if err != nil {
				h.internalServerError(w, r, err)
				return
			}
			h.successResponse(w, r, "获取时间表列表成功", timetables)
			return
		}

		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "用户ID无效")
			return
		}
		ownerID = id
	}

	timetables, err := h.repository.GetTimetablesByOwner(ownerID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取时间表列表成功", timetables)
}

func (h *Handler) GetTimetable(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)
	h.successResponse(w, r, "获取时间表成功", tt)
}

// UpdateTimetable 时间表类型不可修改；缩小日期范围时，已有排班必须仍然落在新范围内
func (h *Handler) UpdateTimetable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      *string      `json:"name" validate:"omitempty,max=64"`
		StartDate *domain.Date `json:"startDate"`
		EndDate   *domain.Date `json:"endDate"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	if req.Name != nil {
		tt.Name = strings.TrimSpace(*req.Name)
	}
	if req.StartDate != nil {
		tt.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		tt.EndDate = req.EndDate
	}
	if err := utils.ValidateTimetable(tt); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if tt.Type == domain.TimetableTypeDateRange && (req.StartDate != nil || req.EndDate != nil) {
		entries, err := h.repository.GetSchedules(tt.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		for _, e := range entries {
			if e.ScheduleDate.Before(*tt.StartDate) || e.ScheduleDate.After(*tt.EndDate) {
				h.errorResponse(w, r, fmt.Sprintf("%s 的排班（%s）不在新的日期范围内", e.StudentName, e.ScheduleDate))
				return
			}
		}
	}

	if err := h.repository.UpdateTimetable(tt); err != nil {
		if cerr := timetableConstraintError(err); cerr != nil {
			h.badRequest(w, r, cerr)
			return
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新时间表失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新时间表成功", tt)
}

func (h *Handler) DeleteTimetable(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	if err := h.repository.DeleteTimetable(tt.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除时间表成功", nil)
}

func (h *Handler) ActivateTimetable(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	if tt.IsActive {
		h.successResponse(w, r, "时间表已启用", tt)
		return
	}

	if err := h.repository.ActivateTimetable(tt); err != nil {
		if cerr := timetableConstraintError(err); cerr != nil {
			h.errorResponse(w, r, cerr.Error())
			return
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "启用时间表失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "启用时间表成功", tt)
}

func (h *Handler) ArchiveTimetable(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	if tt.IsArchived {
		h.successResponse(w, r, "时间表已归档", tt)
		return
	}

	if err := h.repository.ArchiveTimetable(tt); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "归档时间表失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "归档时间表成功", tt)
}

// GetTimetableWeeks 返回日期范围时间表的所有周，currentWeek 为今天所在周的下标，不在范围内时为 -1
func (h *Handler) GetTimetableWeeks(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	if tt.Type != domain.TimetableTypeDateRange {
		h.errorResponse(w, r, "只有日期范围时间表才有周次")
		return
	}

	weeks := scheduler.WeeksCovering(*tt.StartDate, *tt.EndDate)
	h.successResponse(w, r, "获取周次成功", map[string]any{
		"weeks":       weeks,
		"currentWeek": scheduler.WeekIndexOf(weeks, h.today()),
	})
}
