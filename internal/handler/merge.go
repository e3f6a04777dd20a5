package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/export"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
)

type mergeParams struct {
	ids  []int64
	week *int
}

func parseMergeParams(r *http.Request) (*mergeParams, error) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		return nil, err
	}
	week, err := parseWeekParam(r)
	if err != nil {
		return nil, err
	}
	return &mergeParams{ids: ids, week: week}, nil
}

// buildMergeView 教练只能合并自己的时间表，其他人的时间表视为不存在
func (h *Handler) buildMergeView(me *domain.User, params *mergeParams) (*scheduler.MergeView, error) {
	if len(params.ids) == 0 {
		return nil, scheduler.ErrEmptyMergeSet
	}

	found, err := h.repository.GetTimetablesByIDs(params.ids)
	if err != nil {
		return nil, err
	}

	timetables := make([]domain.Timetable, 0, len(found))
	visible := make([]int64, 0, len(found))
	for _, tt := range found {
		// 无权访问的时间表不放入候选集合，Merge 会报告 SOURCE_NOT_FOUND 而不是权限不足
		if !canAccess(me, tt) {
			continue
		}
		timetables = append(timetables, *tt)
		visible = append(visible, tt.ID)
	}

	entries, err := h.repository.GetSchedulesByTimetables(visible)
	if err != nil {
		return nil, err
	}

	return scheduler.Merge(scheduler.MergeRequest{
		TimetableIDs: params.ids,
		Timetables:   timetables,
		Entries:      entries,
		Today:        h.today(),
		WeekIndex:    params.week,
		Palette:      h.palette,
	})
}

func (h *Handler) GetMergeView(w http.ResponseWriter, r *http.Request) {
	params, err := parseMergeParams(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	view, err := h.buildMergeView(myInfo, params)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	h.successResponse(w, r, "获取合并视图成功", view)
}

// mergeViewTitle 如 "周一班、周三班 合并课表（第 3 周 2025-03-17 ~ 2025-03-23）"
func mergeViewTitle(view *scheduler.MergeView) string {
	names := make([]string, 0, len(view.Sources))
	for _, src := range view.Sources {
		names = append(names, src.Name)
	}

	title := strings.Join(names, "、") + " 合并课表"
	if view.SelectedWeek != nil {
		week := view.Weeks[*view.SelectedWeek]
		title += fmt.Sprintf("（第 %d 周 %s ~ %s）", week.Index+1, week.WeekStart, week.WeekEnd)
	}
	return title
}

func (h *Handler) ExportMergeView(w http.ResponseWriter, r *http.Request) {
	params, err := parseMergeParams(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	view, err := h.buildMergeView(myInfo, params)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	buf, err := export.MergeViewXLSX(view, mergeViewTitle(view))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="merge-view.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logInternalServerError(r, fmt.Errorf("无法写出合并视图: %w", err))
	}
}
