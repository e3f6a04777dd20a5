package domain

import (
	"fmt"
	"strings"
)

// DayOfWeek 沿用 1=周一 … 7=周日 的编号，数据库中直接存整数
type DayOfWeek int32

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = map[DayOfWeek]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

var dayLabels = map[DayOfWeek]string{
	Monday:    "周一",
	Tuesday:   "周二",
	Wednesday: "周三",
	Thursday:  "周四",
	Friday:    "周五",
	Saturday:  "周六",
	Sunday:    "周日",
}

func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d DayOfWeek) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DayOfWeek(%d)", int32(d))
}

// Label 返回中文星期名，用于导出
func (d DayOfWeek) Label() string {
	return dayLabels[d]
}

// ParseDayOfWeek 接受英文全称（大小写不敏感）以及 "周一"、"星期一" 这样的中文写法
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	label := strings.Replace(trimmed, "星期", "周", 1)
	if label == "周天" {
		label = "周日"
	}

	for day := Monday; day <= Sunday; day++ {
		if dayNames[day] == upper || dayLabels[day] == label {
			return day, nil
		}
	}
	return 0, fmt.Errorf("无效的星期 %q", s)
}

func (d DayOfWeek) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("无效的星期 %d", int32(d))
	}
	return []byte(d.String()), nil
}

func (d *DayOfWeek) UnmarshalText(text []byte) error {
	parsed, err := ParseDayOfWeek(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
