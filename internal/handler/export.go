package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/export"
)

// ExportTimetableICS 每周时间表从本周开始重复，可以通过 until 指定重复的截止日期
func (h *Handler) ExportTimetableICS(w http.ResponseWriter, r *http.Request) {
	tt := r.Context().Value(TimetableCtx).(*domain.Timetable)

	opts := export.ICSOptions{
		Location: h.location,
		Anchor:   h.today(),
		Now:      time.Now(),
	}

	if param := r.URL.Query().Get("until"); param != "" && tt.Type == domain.TimetableTypeWeekly {
		until, err := domain.ParseDate(param)
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		opts.Until = &until
	}

	entries, err := h.repository.GetSchedules(tt.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ics, err := export.TimetableICS(tt, entries, opts)
	if err != nil {
		h.domainErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="timetable-%d.ics"`, tt.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(ics)); err != nil {
		h.logInternalServerError(r, err)
	}
}
