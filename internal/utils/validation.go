package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
)

func ValidateDateRange(start, end domain.Date) error {
	if start.After(end) {
		return errors.New("开始日期不能晚于结束日期")
	}
	return nil
}

// ValidateTimetable 检查时间表类型与起止日期是否匹配
func ValidateTimetable(tt *domain.Timetable) error {
	if strings.TrimSpace(tt.Name) == "" {
		return errors.New("时间表名称不能为空")
	}

	switch tt.Type {
	case domain.TimetableTypeWeekly:
		if tt.StartDate != nil || tt.EndDate != nil {
			return errors.New("每周时间表不能设置起止日期")
		}
	case domain.TimetableTypeDateRange:
		if tt.StartDate == nil || tt.EndDate == nil {
			return errors.New("日期范围时间表必须设置起止日期")
		}
		return ValidateDateRange(*tt.StartDate, *tt.EndDate)
	default:
		return fmt.Errorf("未知的时间表类型 %q", tt.Type)
	}

	return nil
}

// ValidateScheduleEntry 校验单个条目，并将时间规范化为 HH:MM
func ValidateScheduleEntry(e *domain.ScheduleEntry, tt *domain.Timetable) error {
	e.StudentName = strings.TrimSpace(e.StudentName)
	if e.StudentName == "" {
		return errors.New("学生姓名不能为空")
	}

	switch tt.Type {
	case domain.TimetableTypeWeekly:
		if !e.IsWeekly() {
			return errors.New("每周时间表的排班必须且只能指定星期")
		}
		if !e.DayOfWeek.Valid() {
			return errors.New("星期无效")
		}
	case domain.TimetableTypeDateRange:
		if !e.IsDated() {
			return errors.New("日期范围时间表的排班必须且只能指定日期")
		}
		if tt.StartDate != nil && tt.EndDate != nil && (e.ScheduleDate.Before(*tt.StartDate) || e.ScheduleDate.After(*tt.EndDate)) {
			return fmt.Errorf("日期 %s 不在时间表范围 %s ~ %s 内", e.ScheduleDate, tt.StartDate, tt.EndDate)
		}
	}

	start, err := scheduler.ParseClock(e.StartTime)
	if err != nil {
		return fmt.Errorf("开始时间 %q 格式错误", e.StartTime)
	}
	end, err := scheduler.ParseClock(e.EndTime)
	if err != nil {
		return fmt.Errorf("结束时间 %q 格式错误", e.EndTime)
	}
	if start%60 != 0 || end%60 != 0 {
		return errors.New("时间只能精确到分钟")
	}
	if start >= end {
		return errors.New("开始时间必须早于结束时间")
	}

	e.StartTime = scheduler.FormatClock(start)
	e.EndTime = scheduler.FormatClock(end)
	e.TimetableID = tt.ID

	return nil
}

func ValidateScheduleEntries(entries []domain.ScheduleEntry, tt *domain.Timetable) error {
	if len(entries) == 0 {
		return errors.New("排班列表不能为空")
	}

	for i := range entries {
		if err := ValidateScheduleEntry(&entries[i], tt); err != nil {
			return fmt.Errorf("第 %d 项: %w", i+1, err)
		}
	}

	return nil
}
