package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/repository"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/utils"
)

// conflictReport 是一次冲突检测的结果，提交时按 reportToken 取回
type conflictReport struct {
	TimetableID int64                  `json:"timetableID"`
	Result      *scheduler.CheckResult `json:"result"`
}

func conflictReportKey(timetableID int64, token string) string {
	return fmt.Sprintf("conflict_report_%d_%s", timetableID, token)
}

// describeEntry 用于邮件中描述一条排班，如 "周一 10:00-11:00 张三"
func describeEntry(e *domain.ScheduleEntry) string {
	when := ""
	switch {
	case e.IsWeekly():
		when = e.DayOfWeek.Label()
	case e.IsDated():
		when = e.ScheduleDate.String()
	}
	return fmt.Sprintf("%s %s-%s %s", when, e.StartTime, e.EndTime, e.StudentName)
}

// GetSchedules 日期范围时间表可以通过 week 只取某一周的排班
func (h *Handler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	week, err := parseWeekParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	if week == nil {
		entries, err := h.repository.GetSchedules(tt.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		h.successResponse(w, r, "获取排班成功", entries)
		return
	}

	if tt.Type != domain.TimetableTypeDateRange {
		h.errorResponse(w, r, "只有日期范围时间表才能按周查询")
		return
	}

	weeks := scheduler.WeeksCovering(*tt.StartDate, *tt.EndDate)
	if *week < 0 || *week >= len(weeks) {
		h.domainErrorResponse(w, r, scheduler.ErrWeekOutOfRange)
		return
	}

	entries, err := h.repository.GetSchedulesInRange(tt.ID, weeks[*week].WeekStart, weeks[*week].WeekEnd)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排班成功", entries)
}

type schedulesRequest struct {
	Schedules []domain.ScheduleEntry `json:"schedules" validate:"required,min=1"`
}

// readSchedules 读取并校验请求中的排班列表
func (h *Handler) readSchedules(w http.ResponseWriter, r *http.Request, tt *domain.Timetable) ([]domain.ScheduleEntry, bool) {
	var req schedulesRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	if err := utils.ValidateScheduleEntries(req.Schedules, tt); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}

	return req.Schedules, true
}

// CreateSchedulesBatch 写入前会在事务中重新检测冲突，存在任何冲突时整批失败
func (h *Handler) CreateSchedulesBatch(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	entries, ok := h.readSchedules(w, r, tt)
	if !ok {
		return
	}

	created, err := h.repository.CreateSchedulesBatch(tt, entries)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrScheduleConflict):
			h.errorResponse(w, r, err.Error())
		default:
			h.domainErrorResponse(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "添加排班成功", map[string]any{"created": created})
}

func (h *Handler) CreateSchedulesBatchForce(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	entries, ok := h.readSchedules(w, r, tt)
	if !ok {
		return
	}

	created, err := h.repository.CreateSchedulesBatchForce(tt.ID, entries)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "添加排班成功", map[string]any{"created": created})
}

// CheckScheduleConflicts 只检测不写入，结果暂存在 redis 中供提交使用
func (h *Handler) CheckScheduleConflicts(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	entries, ok := h.readSchedules(w, r, tt)
	if !ok {
		return
	}

	existing, err := h.repository.GetSchedules(tt.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	result, err := scheduler.DetectConflicts(tt.Type, existing, entries)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	report, err := json.Marshal(conflictReport{TimetableID: tt.ID, Result: result})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	token := uuid.NewString()

	ctx, cancel := h.redisContext()
	defer cancel()

	if err := h.redisClient.Set(ctx, conflictReportKey(tt.ID, token), report, time.Duration(h.config.Conflict.ReportExpiration)*time.Second).Err(); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "冲突检测完成", map[string]any{
		"hasConflicts":     result.HasConflicts,
		"createdSchedules": result.CreatedSchedules,
		"conflicts":        result.Conflicts,
		"decisions":        scheduler.Decisions(result.Conflicts),
		"reportToken":      token,
	})
}

// CommitSchedules 按用户对冲突的选择提交检测结果
// overrides 是 decisions 中选择覆盖的下标，被覆盖的已有排班会被删除
func (h *Handler) CommitSchedules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportToken string `json:"reportToken" validate:"required,uuid"`
		Overrides   []int  `json:"overrides"`
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
	key := conflictReportKey(tt.ID, req.ReportToken)

	ctx, cancel := h.redisContext()
	defer cancel()

	data, err := h.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil):
			h.errorResponse(w, r, "冲突检测结果已过期，请重新检测")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	var report conflictReport
	if err := json.Unmarshal(data, &report); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ops, err := scheduler.BuildCommitPlan(tt.Type, report.Result, req.Overrides)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	inserted, deleted, err := h.repository.ApplyOperations(tt, ops)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrScheduleConflict):
			h.errorResponse(w, r, err.Error())
		default:
			h.domainErrorResponse(w, r, err)
		}
		return
	}

	// 同一份检测结果只能提交一次
	delCtx, delCancel := h.redisContext()
	defer delCancel()

	if err := h.redisClient.Del(delCtx, key).Err(); err != nil {
		slog.Error("无法删除冲突检测结果", "key", key, "error", err)
	}

	if len(deleted) > 0 {
		h.notifyCommit(tt, inserted, deleted)
	}

	h.successResponse(w, r, "提交排班成功", map[string]any{
		"inserted": inserted,
		"deleted":  deleted,
	})
}

// notifyCommit 向时间表所有者发送覆盖摘要，排班已经写入，失败时只记录日志
func (h *Handler) notifyCommit(tt *domain.Timetable, inserted, deleted []domain.ScheduleEntry) {
	owner, err := h.repository.GetUserByID(tt.OwnerID)
	if err != nil {
		slog.Error("无法获取时间表所有者", "timetableID", tt.ID, "error", err)
		return
	}

	replaced := make([]string, 0, len(deleted))
	for i := range deleted {
		replaced = append(replaced, describeEntry(&deleted[i]))
	}

	if err := h.publishMail(domain.MailMessage{
		Type: domain.MailTypeCommitSummary,
		To:   owner.Email,
		Data: domain.CommitSummaryMailData{
			FullName:      owner.FullName,
			TimetableName: tt.Name,
			Inserted:      len(inserted),
			Deleted:       len(deleted),
			Replaced:      replaced,
		},
	}); err != nil {
		slog.Error("无法发送提交摘要邮件", "timetableID", tt.ID, "error", err)
	}
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentName  *string           `json:"studentName"`
		DayOfWeek    *domain.DayOfWeek `json:"dayOfWeek"`
		ScheduleDate *domain.Date      `json:"scheduleDate"`
		StartTime    *string           `json:"startTime"`
		EndTime      *string           `json:"endTime"`
		Note         *string           `json:"note" validate:"omitempty,max=256"`
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
	entry := *r.Context().Value(ScheduleCtx).(*domain.ScheduleEntry)

	if req.StudentName != nil {
		entry.StudentName = *req.StudentName
	}
	if req.DayOfWeek != nil {
		entry.DayOfWeek = req.DayOfWeek
	}
	if req.ScheduleDate != nil {
		entry.ScheduleDate = req.ScheduleDate
	}
	if req.StartTime != nil {
		entry.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		entry.EndTime = *req.EndTime
	}
	if req.Note != nil {
		entry.Note = *req.Note
	}

	if err := utils.ValidateScheduleEntry(&entry, tt); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateSchedule(tt, &entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrScheduleConflict):
			h.errorResponse(w, r, "修改后的排班与已有排班时间冲突")
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "排班不存在")
		default:
			h.domainErrorResponse(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "修改排班成功", entry)
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)
	entry := r.Context().Value(ScheduleCtx).(*domain.ScheduleEntry)

	if err := h.repository.DeleteSchedule(tt.ID, entry.ID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "排班不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除排班成功", nil)
}
