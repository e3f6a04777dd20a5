package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

type Archiver interface {
	ArchiveExpiredTimetables(today domain.Date) (int64, error)
}

// ArchiveExpired 归档 loc 时区下今天之前已结束的日期范围时间表
func ArchiveExpired(archiver Archiver, loc *time.Location) {
	today := domain.Today(loc)
	n, err := archiver.ArchiveExpiredTimetables(today)
	if err != nil {
		slog.Error("归档过期时间表失败", "error", err)
		return
	}
	slog.Info("已归档过期时间表", "count", n, "today", today.String())
}

// NewScheduler 按 expr 定期执行归档，expr 为标准五段 cron 表达式
func NewScheduler(expr string, loc *time.Location, archiver Archiver) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(expr, func() { ArchiveExpired(archiver, loc) }); err != nil {
		return nil, fmt.Errorf("无效的归档 cron 表达式 %q: %w", expr, err)
	}
	return c, nil
}
