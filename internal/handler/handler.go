package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/config"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/repository"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client
	palette     scheduler.Palette
	location    *time.Location

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mailCh *amqp.Channel, rdb *redis.Client, palette scheduler.Palette, loc *time.Location) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,
		palette:     palette,
		location:    loc,

		Mux: chi.NewRouter(),
	}, nil
}

// today 按配置的时区计算
func (h *Handler) today() domain.Date {
	return domain.Today(h.location)
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	adminOnly := h.RequiredRole([]domain.Role{domain.RoleAdmin})

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		// 账号由管理员统一管理
		r.Route("/users", func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).Delete("/", h.DeleteUser)
				r.Post("/reset-password", h.ResetUserPassword)
			})
		})

		// 时间表只有所有者和管理员可以访问
		r.Route("/timetables", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Use(h.preventInactiveUser)
			r.Post("/", h.CreateTimetable)
			r.Get("/", h.GetTimetables)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.timetable)
				r.Get("/", h.GetTimetable)
				r.With(h.preventArchivedTimetable).Patch("/", h.UpdateTimetable)
				r.Delete("/", h.DeleteTimetable)
				r.With(h.preventArchivedTimetable).Post("/activate", h.ActivateTimetable)
				r.Post("/archive", h.ArchiveTimetable)
				r.Get("/weeks", h.GetTimetableWeeks)
				r.Get("/export.ics", h.ExportTimetableICS)

				r.Route("/schedules", func(r chi.Router) {
					r.Get("/", h.GetSchedules)
					r.Group(func(r chi.Router) {
						r.Use(h.preventArchivedTimetable)
						r.Post("/batch", h.CreateSchedulesBatch)
						r.Post("/batch/force", h.CreateSchedulesBatchForce)
						r.Post("/check", h.CheckScheduleConflicts)
						r.Post("/commit", h.CommitSchedules)
						r.Route("/{scheduleID}", func(r chi.Router) {
							r.Use(h.schedule)
							r.Patch("/", h.UpdateSchedule)
							r.Delete("/", h.DeleteSchedule)
						})
					})
				})

				r.Route("/convert", func(r chi.Router) {
					r.Post("/preview", h.PreviewConversion)
					r.Post("/", h.ConvertTimetable)
				})
			})
		})

		r.Route("/merge-view", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMergeView)
			r.Get("/export", h.ExportMergeView)
		})
	})
}
