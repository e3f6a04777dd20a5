package scheduler_test

import "github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"

func date(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *domain.Date {
	d := date(s)
	return &d
}

func dayPtr(d domain.DayOfWeek) *domain.DayOfWeek {
	return &d
}

func intPtr(i int) *int {
	return &i
}

func weekly(day domain.DayOfWeek, start, end, student string) domain.ScheduleEntry {
	return domain.ScheduleEntry{StudentName: student, DayOfWeek: dayPtr(day), StartTime: start, EndTime: end}
}

func dated(d, start, end, student string) domain.ScheduleEntry {
	return domain.ScheduleEntry{StudentName: student, ScheduleDate: datePtr(d), StartTime: start, EndTime: end}
}

func stored(id int64, e domain.ScheduleEntry) domain.ScheduleEntry {
	e.ID = id
	return e
}
