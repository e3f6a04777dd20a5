package scheduler

import (
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

// WeekWindow 周一到周日的 7 天区间，Index 按生成顺序从 0 开始
type WeekWindow struct {
	Index     int         `json:"index"`
	WeekStart domain.Date `json:"weekStart"`
	WeekEnd   domain.Date `json:"weekEnd"`
}

func (w WeekWindow) Contains(d domain.Date) bool {
	return !d.Before(w.WeekStart) && !d.After(w.WeekEnd)
}

// WeekStartOf 返回 d 当天或之前最近的周一
func WeekStartOf(d domain.Date) domain.Date {
	// time.Weekday 中周日为 0，需要挪到 6
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func windowAt(index int, weekStart domain.Date) WeekWindow {
	return WeekWindow{
		Index:     index,
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDays(6),
	}
}

// WeeksCovering 枚举覆盖 [startDate, endDate] 的所有周
// startDate 晚于 endDate 时返回空
func WeeksCovering(startDate, endDate domain.Date) []WeekWindow {
	if startDate.After(endDate) {
		return nil
	}

	windows := make([]WeekWindow, 0, endDate.DaysSince(startDate)/7+2)
	for ws := WeekStartOf(startDate); !ws.After(endDate); ws = ws.AddDays(7) {
		windows = append(windows, windowAt(len(windows), ws))
	}

	return windows
}

// WeekIndexOf 返回包含 d 的周的下标，不存在时返回 -1
func WeekIndexOf(windows []WeekWindow, d domain.Date) int {
	for _, w := range windows {
		if w.Contains(d) {
			return w.Index
		}
	}
	return -1
}

// DayOffset 周一为 0，周日为 6
func DayOffset(day domain.DayOfWeek) int {
	return int(day) - int(domain.Monday)
}

// DayOfWeekOf 是 DayOffset 的逆运算，越界的偏移按 7 取模
func DayOfWeekOf(offset int) domain.DayOfWeek {
	return domain.DayOfWeek(((offset%7)+7)%7) + domain.Monday
}

// DayOfWeekOfDate 返回日期对应的星期
func DayOfWeekOfDate(d domain.Date) domain.DayOfWeek {
	return DayOfWeekOf(d.DaysSince(WeekStartOf(d)))
}

func ConcreteDate(weekStart domain.Date, day domain.DayOfWeek) domain.Date {
	return weekStart.AddDays(DayOffset(day))
}
