package export_test

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/export"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/teambition/rrule-go"
	"github.com/xuri/excelize/v2"
)

func datePtr(y int, m time.Month, d int) *domain.Date {
	date := domain.NewDate(y, m, d)
	return &date
}

func dayPtr(d domain.DayOfWeek) *domain.DayOfWeek {
	return &d
}

func TestTimetableICS_Weekly(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	tt := &domain.Timetable{ID: 1, Name: "周课表", Type: domain.TimetableTypeWeekly}
	entries := []domain.ScheduleEntry{
		{ID: 10, StudentName: "张三", DayOfWeek: dayPtr(domain.Wednesday), StartTime: "07:00", EndTime: "08:00", Note: "早课"},
		{ID: 11, StudentName: "李四", DayOfWeek: dayPtr(domain.Monday), StartTime: "18:00", EndTime: "19:30"},
	}

	// 2024-01-10 是周三，锚定周从 2024-01-08 开始
	out, err := export.TimetableICS(tt, entries, export.ICSOptions{
		Location: loc,
		Anchor:   domain.NewDate(2024, 1, 10),
		Until:    datePtr(2024, 1, 28),
		Now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("TimetableICS() error = %v", err)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}

	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first := events[0]
	start, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt() error = %v", err)
	}
	want := time.Date(2024, 1, 10, 7, 0, 0, 0, loc)
	if !start.Equal(want) {
		t.Errorf("first start = %s, want %s", start, want)
	}
	if p := first.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "张三" {
		t.Errorf("summary = %v", p)
	}

	ruleProp := first.GetProperty(ical.ComponentPropertyRrule)
	if ruleProp == nil {
		t.Fatal("weekly event has no RRULE")
	}
	rule, err := rrule.StrToRRule(ruleProp.Value)
	if err != nil {
		t.Fatalf("StrToRRule(%q) error = %v", ruleProp.Value, err)
	}
	rule.DTStart(start)

	// 1/10, 1/17, 1/24，都是周三早上 7 点
	occurrences := rule.All()
	if len(occurrences) != 3 {
		t.Fatalf("got %d occurrences, want 3: %v", len(occurrences), occurrences)
	}
	for _, occ := range occurrences {
		local := occ.In(loc)
		if local.Weekday() != time.Wednesday || local.Hour() != 7 {
			t.Errorf("occurrence %s is not Wednesday 07:00", local)
		}
	}
}

func TestTimetableICS_DateRange(t *testing.T) {
	tt := &domain.Timetable{ID: 2, Name: "寒假", Type: domain.TimetableTypeDateRange, StartDate: datePtr(2024, 1, 1), EndDate: datePtr(2024, 1, 31)}
	entries := []domain.ScheduleEntry{
		{StudentName: "张三", ScheduleDate: datePtr(2024, 1, 2), StartTime: "10:00", EndTime: "11:00"},
		{StudentName: "李四", ScheduleDate: datePtr(2024, 1, 3), StartTime: "10:00", EndTime: "11:00"},
	}

	out, err := export.TimetableICS(tt, entries, export.ICSOptions{Location: time.UTC, Now: time.Now()})
	if err != nil {
		t.Fatalf("TimetableICS() error = %v", err)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	for _, e := range cal.Events() {
		if e.GetProperty(ical.ComponentPropertyRrule) != nil {
			t.Error("dated event should not repeat")
		}
	}
	if len(cal.Events()) != 2 {
		t.Errorf("got %d events, want 2", len(cal.Events()))
	}
}

func TestTimetableICS_Mismatch(t *testing.T) {
	tt := &domain.Timetable{Type: domain.TimetableTypeWeekly}
	entries := []domain.ScheduleEntry{{StudentName: "张三", ScheduleDate: datePtr(2024, 1, 2), StartTime: "10:00", EndTime: "11:00"}}

	if _, err := export.TimetableICS(tt, entries, export.ICSOptions{}); err != scheduler.ErrDiscriminantMismatch {
		t.Errorf("TimetableICS() error = %v, want ErrDiscriminantMismatch", err)
	}
}

func TestMergeViewXLSX(t *testing.T) {
	view, err := scheduler.Merge(scheduler.MergeRequest{
		TimetableIDs: []int64{1, 2},
		Timetables: []domain.Timetable{
			{ID: 1, Name: "一组", Type: domain.TimetableTypeWeekly},
			{ID: 2, Name: "二组", Type: domain.TimetableTypeWeekly},
		},
		Entries: map[int64][]domain.ScheduleEntry{
			1: {{StudentName: "张三", DayOfWeek: dayPtr(domain.Monday), StartTime: "09:00", EndTime: "10:00"}},
			2: {
				{StudentName: "李四", DayOfWeek: dayPtr(domain.Monday), StartTime: "09:00", EndTime: "10:00"},
				{StudentName: "王五", DayOfWeek: dayPtr(domain.Friday), StartTime: "08:00", EndTime: "09:00"},
			},
		},
		Palette: scheduler.DefaultPalette(),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	buf, err := export.MergeViewXLSX(view, "合并课表")
	if err != nil {
		t.Fatalf("MergeViewXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	tests := []struct {
		cell string
		want string
	}{
		{"A1", "合并课表"},
		{"B2", "周一"},
		{"H2", "周日"},
		{"A3", "08:00-09:00"},
		{"A4", "09:00-10:00"},
		{"F3", "王五（二组）"},
		{"B4", "张三（一组）\n李四（二组）"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue("合并视图", tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) error = %v", tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("cell %s = %q, want %q", tt.cell, got, tt.want)
		}
	}

	if got, _ := f.GetCellValue("图例", "A3"); got != "二组" {
		t.Errorf("legend A3 = %q, want 二组", got)
	}
}
