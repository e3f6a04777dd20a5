package utils_test

import (
	"testing"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/utils"
)

func TestGenerateRandomClassTime(t *testing.T) {
	monday := domain.Monday
	tt := &domain.Timetable{Type: domain.TimetableTypeWeekly}

	for i := 0; i < 200; i++ {
		start, end := utils.GenerateRandomClassTime()
		e := domain.ScheduleEntry{StudentName: "张三", DayOfWeek: &monday, StartTime: start, EndTime: end}
		if err := utils.ValidateScheduleEntry(&e, tt); err != nil {
			t.Fatalf("generated invalid slot %s-%s: %v", start, end, err)
		}
	}
}

func TestGenerateRandomTimetable(t *testing.T) {
	today := domain.NewDate(2024, 3, 15)

	for i := 0; i < 50; i++ {
		tt := utils.GenerateRandomTimetable(1, domain.TimetableTypeDateRange, today)
		if err := utils.ValidateTimetable(tt); err != nil {
			t.Fatalf("ValidateTimetable() error = %v", err)
		}
		if tt.StartDate.After(today) {
			t.Errorf("start %s after today", tt.StartDate)
		}

		students := utils.GenerateRandomStudents(5)
		for _, e := range utils.GenerateRandomDatedEntries(students, *tt.StartDate, *tt.EndDate, 10) {
			if err := utils.ValidateScheduleEntry(&e, tt); err != nil {
				t.Fatalf("generated invalid entry %+v: %v", e, err)
			}
		}
	}

	weekly := utils.GenerateRandomTimetable(1, domain.TimetableTypeWeekly, today)
	if err := utils.ValidateTimetable(weekly); err != nil {
		t.Errorf("ValidateTimetable(weekly) error = %v", err)
	}
}

func TestGenerateRandomStudents(t *testing.T) {
	students := utils.GenerateRandomStudents(10)
	seen := make(map[string]bool)
	for _, s := range students {
		if seen[s] {
			t.Errorf("duplicate student %s", s)
		}
		seen[s] = true
	}
	if len(students) != 10 {
		t.Errorf("got %d students, want 10", len(students))
	}
}
