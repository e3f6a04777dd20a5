package seed

import (
	"strings"
	"testing"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

func TestParseWeeklyCSV(t *testing.T) {
	input := "\ufeff星期,学生,开始时间,结束时间,备注\n" +
		"周一,张三,09:00,10:00,钢琴\n" +
		"TUESDAY,李四, 14:00 ,15:30,\n" +
		"星期日,王五,19:00,20:00,补课\n"

	entries, err := ParseWeeklyCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseWeeklyCSV() error = %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	want := []struct {
		day     domain.DayOfWeek
		student string
		start   string
		note    string
	}{
		{domain.Monday, "张三", "09:00", "钢琴"},
		{domain.Tuesday, "李四", "14:00", ""},
		{domain.Sunday, "王五", "19:00", "补课"},
	}
	for i, w := range want {
		e := entries[i]
		if *e.DayOfWeek != w.day || e.StudentName != w.student || e.StartTime != w.start || e.Note != w.note {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
}

func TestParseWeeklyCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"missing column": "学生,星期,开始时间\n张三,周一,09:00\n",
		"bad day":        "学生,星期,开始时间,结束时间\n张三,周八,09:00,10:00\n",
		"ragged row":     "学生,星期,开始时间,结束时间\n张三,周一,09:00\n",
		"empty":          "",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseWeeklyCSV(strings.NewReader(input)); err == nil {
				t.Error("ParseWeeklyCSV() expected an error")
			}
		})
	}
}

func TestAcceptWithoutConflicts(t *testing.T) {
	monday := domain.Monday
	entries := []domain.ScheduleEntry{
		{StudentName: "张三", DayOfWeek: &monday, StartTime: "09:00", EndTime: "10:00"},
		{StudentName: "李四", DayOfWeek: &monday, StartTime: "09:30", EndTime: "10:30"},
		{StudentName: "王五", DayOfWeek: &monday, StartTime: "10:00", EndTime: "11:00"},
	}

	accepted, skipped, err := acceptWithoutConflicts(domain.TimetableTypeWeekly, entries)
	if err != nil {
		t.Fatalf("acceptWithoutConflicts() error = %v", err)
	}
	if skipped != 1 || len(accepted) != 2 {
		t.Fatalf("accepted %d, skipped %d", len(accepted), skipped)
	}
	if accepted[0].StudentName != "张三" || accepted[1].StudentName != "王五" {
		t.Errorf("accepted = %+v", accepted)
	}
}
