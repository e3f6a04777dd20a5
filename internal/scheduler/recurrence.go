package scheduler

import (
	"sort"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

// Expand 将每周模板展开为 [startDate, endDate] 内的具体日期条目
// weekIndex 非空时只展开对应的那一周（转换预览），否则展开所有周
func Expand(template []domain.ScheduleEntry, startDate, endDate domain.Date, weekIndex *int) ([]domain.ScheduleEntry, error) {
	for i := range template {
		if !template[i].IsWeekly() || !template[i].DayOfWeek.Valid() {
			return nil, ErrDiscriminantMismatch
		}
	}

	windows := WeeksCovering(startDate, endDate)
	if weekIndex != nil {
		if *weekIndex < 0 || *weekIndex >= len(windows) {
			return nil, ErrWeekOutOfRange
		}
		windows = windows[*weekIndex : *weekIndex+1]
	}

	type occurrence struct {
		entry domain.ScheduleEntry
		start int
		seq   int
	}
	occurrences := make([]occurrence, 0, len(windows)*len(template))

	for _, w := range windows {
		for _, src := range template {
			date := ConcreteDate(w.WeekStart, *src.DayOfWeek)
			if date.Before(startDate) || date.After(endDate) {
				continue
			}

			start, err := ParseClock(src.StartTime)
			if err != nil {
				return nil, err
			}

			occurrences = append(occurrences, occurrence{
				entry: domain.ScheduleEntry{
					StudentName:  src.StudentName,
					ScheduleDate: &date,
					StartTime:    src.StartTime,
					EndTime:      src.EndTime,
					Note:         src.Note,
				},
				start: start,
				seq:   len(occurrences),
			})
		}
	}

	// 先按日期，再按开始时间，完全相同时保持模板顺序
	sort.Slice(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if !a.entry.ScheduleDate.Equal(*b.entry.ScheduleDate) {
			return a.entry.ScheduleDate.Before(*b.entry.ScheduleDate)
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.seq < b.seq
	})

	result := make([]domain.ScheduleEntry, len(occurrences))
	for i, occ := range occurrences {
		result[i] = occ.entry
	}

	return result, nil
}

// Collapse 取出落在 window 内的日期条目，折叠为每周模板
// 结果按星期、开始时间排序
func Collapse(dated []domain.ScheduleEntry, window WeekWindow) ([]domain.ScheduleEntry, error) {
	type templateEntry struct {
		entry domain.ScheduleEntry
		start int
		seq   int
	}
	collapsed := make([]templateEntry, 0)

	for _, src := range dated {
		if !src.IsDated() {
			return nil, ErrDiscriminantMismatch
		}
		if !window.Contains(*src.ScheduleDate) {
			continue
		}

		start, err := ParseClock(src.StartTime)
		if err != nil {
			return nil, err
		}

		day := DayOfWeekOf(src.ScheduleDate.DaysSince(window.WeekStart))
		collapsed = append(collapsed, templateEntry{
			entry: domain.ScheduleEntry{
				StudentName: src.StudentName,
				DayOfWeek:   &day,
				StartTime:   src.StartTime,
				EndTime:     src.EndTime,
				Note:        src.Note,
			},
			start: start,
			seq:   len(collapsed),
		})
	}

	sort.Slice(collapsed, func(i, j int) bool {
		a, b := collapsed[i], collapsed[j]
		if *a.entry.DayOfWeek != *b.entry.DayOfWeek {
			return *a.entry.DayOfWeek < *b.entry.DayOfWeek
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.seq < b.seq
	})

	result := make([]domain.ScheduleEntry, len(collapsed))
	for i, c := range collapsed {
		result[i] = c.entry
	}

	return result, nil
}
