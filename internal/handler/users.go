package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func setPassword(user *domain.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	return nil
}

// userConstraintError 将用户表的唯一约束冲突转换为用户可读的错误，无法识别时返回 nil
func userConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	switch pgErr.ConstraintName {
	case "users_username_key":
		return errors.New("用户名已存在")
	case "users_email_key":
		return errors.New("邮箱已存在")
	default:
		return nil
	}
}

// openTimetables 统计尚未归档的时间表
func openTimetables(timetables []*domain.Timetable) []string {
	names := make([]string, 0)
	for _, tt := range timetables {
		if !tt.IsArchived {
			names = append(names, tt.Name)
		}
	}
	return names
}

// GetUsers 可以通过 role 只列出教练或管理员
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && role != domain.RoleCoach && role != domain.RoleAdmin {
		h.errorResponse(w, r, "角色无效")
		return
	}

	users, err := h.repository.GetAllUsers()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if role != "" {
		filtered := make([]*domain.User, 0, len(users))
		for _, u := range users {
			if u.Role == role {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

// CreateUser 默认创建教练账号，随机生成的初始密码通过邮件发送
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,max=32"`
		FullName string `json:"fullName" validate:"required,max=32"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"omitempty,oneof=教练 管理员"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := &domain.User{
		Username: strings.TrimSpace(req.Username),
		FullName: strings.TrimSpace(req.FullName),
		Email:    req.Email,
		Role:     domain.RoleCoach,
	}
	if req.Role != "" {
		user.Role = domain.Role(req.Role)
	}

	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)
	if err := setPassword(user, password); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.CreateUser(user); err != nil {
		if cerr := userConstraintError(err); cerr != nil {
			h.badRequest(w, r, cerr)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	if err := h.publishMail(domain.MailMessage{
		Type: domain.MailTypeCreateUser,
		To:   user.Email,
		Data: domain.CreateUserMailData{
			FullName: user.FullName,
			Username: user.Username,
			Password: password,
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建用户成功", user)
}

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取用户信息成功", r.Context().Value(UserInfoCtx).(*domain.User))
}

// UpdateUser 停用账号后该用户不能再登录，也不能再修改自己的时间表
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName *string `json:"fullName" validate:"omitempty,max=32"`
		Email    *string `json:"email" validate:"omitempty,email"`
		Role     *string `json:"role" validate:"omitempty,oneof=教练 管理员"`
		IsActive *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = domain.Role(*req.Role)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateUser(user); err != nil {
		if cerr := userConstraintError(err); cerr != nil {
			h.badRequest(w, r, cerr)
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			h.errorResponse(w, r, "更新用户信息失败，请重试")
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新用户信息成功", user)
}

// DeleteUser 删除用户会级联删除其时间表，因此要求该用户的时间表已全部归档
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	timetables, err := h.repository.GetTimetablesByOwner(user.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if open := openTimetables(timetables); len(open) > 0 {
		h.errorResponse(w, r, "该用户仍有未归档的时间表："+strings.Join(open, "、"))
		return
	}

	if err := h.repository.DeleteUser(user.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除用户成功", nil)
}

// ResetUserPassword 管理员为用户重新生成密码并通过邮件发送
func (h *Handler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)
	if err := setPassword(user, password); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.UpdateUser(user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.errorResponse(w, r, "重置密码失败，请重试")
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	if err := h.publishMail(domain.MailMessage{
		Type: domain.MailTypePasswordReset,
		To:   user.Email,
		Data: domain.CreateUserMailData{
			FullName: user.FullName,
			Username: user.Username,
			Password: password,
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "重置密码成功，新密码已通过邮件发送", nil)
}
