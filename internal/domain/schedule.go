package domain

// ScheduleEntry 一个被占用的时间段
// DayOfWeek 与 ScheduleDate 二选一，由所属时间表的类型决定
type ScheduleEntry struct {
	ID           int64      `json:"id,omitempty"`
	TimetableID  int64      `json:"timetableID,omitempty"`
	StudentName  string     `json:"studentName"`
	DayOfWeek    *DayOfWeek `json:"dayOfWeek,omitempty"`
	ScheduleDate *Date      `json:"scheduleDate,omitempty"`
	StartTime    string     `json:"startTime"`
	EndTime      string     `json:"endTime"`
	Note         string     `json:"note,omitempty"`
}

// IsWeekly 报告该条目是否以星期为键
func (e *ScheduleEntry) IsWeekly() bool {
	return e.DayOfWeek != nil && e.ScheduleDate == nil
}

func (e *ScheduleEntry) IsDated() bool {
	return e.ScheduleDate != nil && e.DayOfWeek == nil
}

type ConflictType string

const (
	ConflictTypeTime        ConflictType = "TIME_CONFLICT"
	ConflictTypeStudentTime ConflictType = "STUDENT_TIME_CONFLICT"
)

type ConflictRecord struct {
	ConflictType     ConflictType  `json:"conflictType"`
	ExistingSchedule ScheduleEntry `json:"existingSchedule"`
	NewSchedule      ScheduleEntry `json:"newSchedule"`
	// NewIndex 为候选条目在本批次中的下标
	NewIndex int `json:"newIndex"`
	// ExistingCandidateIndex 非空时表示冲突对象是本批次中更早的候选条目
	ExistingCandidateIndex *int `json:"existingCandidateIndex,omitempty"`
}
