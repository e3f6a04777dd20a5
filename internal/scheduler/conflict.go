package scheduler

import (
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

// CheckResult 冲突检测结果
type CheckResult struct {
	HasConflicts     bool                    `json:"hasConflicts"`
	CreatedSchedules []domain.ScheduleEntry  `json:"createdSchedules"`
	Conflicts        []domain.ConflictRecord `json:"conflicts"`
	// AcceptedIndexes 与 CreatedSchedules 一一对应，记录其在候选批次中的下标
	AcceptedIndexes []int `json:"acceptedIndexes"`
}

// slotKey 是分桶键：每周时间表按星期，日期范围时间表按日期
type slotKey struct {
	day  domain.DayOfWeek
	date string
}

func keyOf(kind domain.TimetableType, e *domain.ScheduleEntry) (slotKey, error) {
	switch kind {
	case domain.TimetableTypeWeekly:
		if !e.IsWeekly() || !e.DayOfWeek.Valid() {
			return slotKey{}, ErrDiscriminantMismatch
		}
		return slotKey{day: *e.DayOfWeek}, nil
	case domain.TimetableTypeDateRange:
		if !e.IsDated() {
			return slotKey{}, ErrDiscriminantMismatch
		}
		return slotKey{date: e.ScheduleDate.String()}, nil
	default:
		return slotKey{}, ErrDiscriminantMismatch
	}
}

// bucketEntry 是桶中的一个已占用时间段
type bucketEntry struct {
	entry          domain.ScheduleEntry
	span           interval
	candidateIndex *int // 非空表示来自本批次
}

// DetectConflicts 检查 candidates 与 existing（以及本批次中更早的候选）之间的时间重叠
// 同一学生的重叠记为 STUDENT_TIME_CONFLICT，不同学生记为 TIME_CONFLICT
// 未被接受的候选同样占用时间段，后面与它重叠的候选也需要用户决定
func DetectConflicts(kind domain.TimetableType, existing, candidates []domain.ScheduleEntry) (*CheckResult, error) {
	buckets := make(map[slotKey][]bucketEntry)

	for _, e := range existing {
		key, err := keyOf(kind, &e)
		if err != nil {
			return nil, err
		}
		span, err := intervalOf(&e)
		if err != nil {
			return nil, err
		}
		buckets[key] = append(buckets[key], bucketEntry{entry: e, span: span})
	}

	result := &CheckResult{
		CreatedSchedules: make([]domain.ScheduleEntry, 0, len(candidates)),
		Conflicts:        make([]domain.ConflictRecord, 0),
		AcceptedIndexes:  make([]int, 0, len(candidates)),
	}

	for i, c := range candidates {
		key, err := keyOf(kind, &c)
		if err != nil {
			return nil, err
		}
		span, err := intervalOf(&c)
		if err != nil {
			return nil, err
		}

		conflicted := false
		for _, occupied := range buckets[key] {
			if !span.overlaps(occupied.span) {
				continue
			}

			conflicted = true
			conflictType := domain.ConflictTypeTime
			if c.StudentName == occupied.entry.StudentName {
				conflictType = domain.ConflictTypeStudentTime
			}

			result.Conflicts = append(result.Conflicts, domain.ConflictRecord{
				ConflictType:           conflictType,
				ExistingSchedule:       occupied.entry,
				NewSchedule:            c,
				NewIndex:               i,
				ExistingCandidateIndex: occupied.candidateIndex,
			})
		}

		index := i
		buckets[key] = append(buckets[key], bucketEntry{entry: c, span: span, candidateIndex: &index})

		if conflicted {
			continue
		}

		result.CreatedSchedules = append(result.CreatedSchedules, c)
		result.AcceptedIndexes = append(result.AcceptedIndexes, i)
	}

	result.HasConflicts = len(result.Conflicts) > 0

	return result, nil
}
