package scheduler

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

var clockLayouts = []string{"15:04:05", "15:04"}

// ParseClock 将 "HH:MM" 或 "HH:MM:SS" 解析为当天零点起的秒数
func ParseClock(s string) (int, error) {
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// FormatClock 是 ParseClock 的逆操作，秒数为零时省略秒
func FormatClock(seconds int) string {
	h, m, sec := seconds/3600, seconds%3600/60, seconds%60
	if sec == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// Overlaps 半开区间 [s1, e1) 与 [s2, e2) 是否相交，首尾相接不算
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// interval 是条目解析后的时间段
type interval struct {
	start int
	end   int
}

func intervalOf(e *domain.ScheduleEntry) (interval, error) {
	start, err := ParseClock(e.StartTime)
	if err != nil {
		return interval{}, err
	}
	end, err := ParseClock(e.EndTime)
	if err != nil {
		return interval{}, err
	}
	return interval{start: start, end: end}, nil
}

func (a interval) overlaps(b interval) bool {
	return Overlaps(a.start, a.end, b.start, b.end)
}
