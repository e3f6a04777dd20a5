package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// GetMyInfo 返回个人信息，以及自己名下时间表的概况
func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	timetables, err := h.repository.GetTimetablesByOwner(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	archived := 0
	for _, tt := range timetables {
		if tt.IsArchived {
			archived++
		}
	}

	h.successResponse(w, r, "获取个人信息成功", map[string]any{
		"user":               myInfo,
		"activeTimetable":    activeTimetable(timetables),
		"timetableCount":     len(timetables),
		"archivedTimetables": archived,
	})
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=72,nefield=OldPassword"`
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
	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, "旧密码错误")
		return
	}

	if err := setPassword(myInfo, req.NewPassword); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.UpdateUser(myInfo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.errorResponse(w, r, "修改密码失败，请重试")
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "修改密码成功", nil)
}
