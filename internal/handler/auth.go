package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const tokenCookieName = "__ecnc_class_timetable_token"

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// sessionCookie 为用户签发令牌并包装成 http-only 的 cookie
func (h *Handler) sessionCookie(user *domain.User, now time.Time) (*http.Cookie, error) {
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Hour)

	claims := AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiration),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiration,
		HttpOnly: true,
	}
	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}

	return cookie, nil
}

// activeTimetable 返回列表中启用的时间表，没有时返回 nil
func activeTimetable(timetables []*domain.Timetable) *domain.Timetable {
	for _, tt := range timetables {
		if tt.IsActive && !tt.IsArchived {
			return tt
		}
	}
	return nil
}

// Login 登录成功后同时返回用户当前启用的时间表
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.repository.GetUserByUsername(req.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "用户名不存在或密码错误")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.errorResponse(w, r, "用户名不存在或密码错误")
			return
		}
		h.internalServerError(w, r, err)
		return
	}
	if !user.IsActive {
		h.errorResponse(w, r, "账号已停用，请联系管理员")
		return
	}

	timetables, err := h.repository.GetTimetablesByOwner(user.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	cookie, err := h.sessionCookie(user, time.Now())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	http.SetCookie(w, cookie)

	h.successResponse(w, r, "登录成功", map[string]any{
		"user":            user,
		"activeTimetable": activeTimetable(timetables),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	h.successResponse(w, r, "登出成功", nil)
}
