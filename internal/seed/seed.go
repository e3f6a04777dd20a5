package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/config"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/repository"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/utils"
)

// CSV 表头
const (
	ColumnStudent   = "学生"
	ColumnDay       = "星期"
	ColumnStartTime = "开始时间"
	ColumnEndTime   = "结束时间"
	ColumnNote      = "备注"
)

var requiredColumns = []string{ColumnStudent, ColumnDay, ColumnStartTime, ColumnEndTime}

// ParseWeeklyCSV 解析每周课表 CSV，备注列可选，列的顺序不限
func ParseWeeklyCSV(r io.Reader) ([]domain.ScheduleEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, header := range headers {
		index[strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("缺少 %s 列", column)
		}
	}

	entries := make([]domain.ScheduleEntry, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}

		day, err := domain.ParseDayOfWeek(row[index[ColumnDay]])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}

		entry := domain.ScheduleEntry{
			StudentName: row[index[ColumnStudent]],
			DayOfWeek:   &day,
			StartTime:   strings.TrimSpace(row[index[ColumnStartTime]]),
			EndTime:     strings.TrimSpace(row[index[ColumnEndTime]]),
		}
		if i, ok := index[ColumnNote]; ok {
			entry.Note = strings.TrimSpace(row[i])
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// acceptWithoutConflicts 只保留与已接受条目不冲突的条目
func acceptWithoutConflicts(kind domain.TimetableType, entries []domain.ScheduleEntry) ([]domain.ScheduleEntry, int, error) {
	accepted := make([]domain.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		check, err := scheduler.DetectConflicts(kind, accepted, []domain.ScheduleEntry{e})
		if err != nil {
			return nil, 0, err
		}
		if !check.HasConflicts {
			accepted = append(accepted, e)
		}
	}
	return accepted, len(entries) - len(accepted), nil
}

// ImportWeeklyCSV 从 CSV 导入一个新的每周时间表，与前面行冲突的行会被跳过
func ImportWeeklyCSV(r *repository.Repository, path string, owner *domain.User, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	entries, err := ParseWeeklyCSV(file)
	if err != nil {
		return err
	}

	tt := &domain.Timetable{Name: name, OwnerID: owner.ID, Type: domain.TimetableTypeWeekly}
	if err := utils.ValidateTimetable(tt); err != nil {
		return err
	}
	if err := utils.ValidateScheduleEntries(entries, tt); err != nil {
		return err
	}

	accepted, skipped, err := acceptWithoutConflicts(tt.Type, entries)
	if err != nil {
		return err
	}
	if skipped > 0 {
		slog.Warn("部分行与之前的行时间冲突，已跳过", "count", skipped)
	}

	created, err := r.CreateTimetableWithSchedules(tt, accepted)
	if err != nil {
		return err
	}

	slog.Info("导入课表完成", "timetable", tt.ID, "count", len(created))
	return nil
}

// SeedRandomData 生成若干教练，每人一个每周时间表和一个日期范围时间表
func SeedRandomData(r *repository.Repository, cfg *config.Config, coaches int, today domain.Date) error {
	for i := 0; i < coaches; i++ {
		coach, err := utils.GenerateRandomCoach(cfg.Seed.User.Password, cfg.Email.UserDomain)
		if err != nil {
			return err
		}
		if err := r.CreateUser(coach); err != nil {
			slog.Error("无法插入教练", "username", coach.Username, "error", err)
			continue
		}

		students := utils.GenerateRandomStudents(cfg.Seed.StudentsPerCoach)
		if len(students) == 0 {
			continue
		}

		for _, kind := range []domain.TimetableType{domain.TimetableTypeWeekly, domain.TimetableTypeDateRange} {
			tt := utils.GenerateRandomTimetable(coach.ID, kind, today)
			tt.IsActive = kind == domain.TimetableTypeWeekly

			var entries []domain.ScheduleEntry
			switch kind {
			case domain.TimetableTypeWeekly:
				entries = utils.GenerateRandomWeeklyEntries(students, len(students)*2)
			case domain.TimetableTypeDateRange:
				entries = utils.GenerateRandomDatedEntries(students, *tt.StartDate, *tt.EndDate, len(students)*6)
			}

			accepted, _, err := acceptWithoutConflicts(kind, entries)
			if err != nil {
				return err
			}

			if _, err := r.CreateTimetableWithSchedules(tt, accepted); err != nil {
				slog.Error("无法插入时间表", "coach", coach.Username, "error", err)
				continue
			}
		}

		slog.Info("已生成教练数据", "username", coach.Username)
	}

	return nil
}
