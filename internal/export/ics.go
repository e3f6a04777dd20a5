package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/teambition/rrule-go"
)

// ICSOptions 控制每周时间表的展开方式
type ICSOptions struct {
	Location *time.Location
	// Anchor 所在周是每周条目的第一次出现
	Anchor domain.Date
	// Until 非空时每周条目重复到该日为止
	Until *domain.Date
	Now   time.Time
}

// clockAt 返回 date 当天 clock 时刻在 loc 中的时间
func clockAt(date domain.Date, clock string, loc *time.Location) (time.Time, error) {
	seconds, err := scheduler.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, seconds, 0, loc), nil
}

// WeeklyRule 每周重复规则，周几由 DTSTART 决定
func WeeklyRule(until *time.Time) string {
	opt := rrule.ROption{Freq: rrule.WEEKLY, Wkst: rrule.MO}
	if until != nil {
		opt.Until = *until
	}
	return opt.RRuleString()
}

// TimetableICS 将时间表导出为 iCalendar 文本
// 每周条目生成带 RRULE 的重复事件，日期条目各自生成一个事件
func TimetableICS(tt *domain.Timetable, entries []domain.ScheduleEntry, opts ICSOptions) (string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//sysu-ecnc-dev//class-timetable//CN")
	cal.SetXWRCalName(tt.Name)
	cal.SetXWRTimezone(loc.String())

	var until *time.Time
	if opts.Until != nil {
		end, err := clockAt(*opts.Until, "23:59:59", loc)
		if err != nil {
			return "", err
		}
		until = &end
	}

	weekStart := scheduler.WeekStartOf(opts.Anchor)

	for i, e := range entries {
		var date domain.Date
		switch tt.Type {
		case domain.TimetableTypeWeekly:
			if !e.IsWeekly() {
				return "", scheduler.ErrDiscriminantMismatch
			}
			date = scheduler.ConcreteDate(weekStart, *e.DayOfWeek)
		case domain.TimetableTypeDateRange:
			if !e.IsDated() {
				return "", scheduler.ErrDiscriminantMismatch
			}
			date = *e.ScheduleDate
		}

		start, err := clockAt(date, e.StartTime, loc)
		if err != nil {
			return "", err
		}
		end, err := clockAt(date, e.EndTime, loc)
		if err != nil {
			return "", err
		}

		if tt.Type == domain.TimetableTypeWeekly && until != nil && until.Before(start) {
			continue
		}

		// 未落库的条目没有 ID，用下标区分
		uid := fmt.Sprintf("timetable-%d-entry-%d-%d@class-timetable", tt.ID, e.ID, i)
		event := cal.AddEvent(uid)
		event.SetDtStampTime(opts.Now)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(e.StudentName)
		if e.Note != "" {
			event.SetDescription(e.Note)
		}

		if tt.Type == domain.TimetableTypeWeekly {
			event.AddProperty(ical.ComponentPropertyRrule, WeeklyRule(until))
		}
	}

	return cal.Serialize(), nil
}
