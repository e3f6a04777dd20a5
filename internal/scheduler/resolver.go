package scheduler

import (
	"slices"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

type OperationKind string

const (
	OperationDelete OperationKind = "DELETE"
	OperationInsert OperationKind = "INSERT"
)

// Operation 交给存储层执行的一条写操作
type Operation struct {
	Kind       OperationKind         `json:"kind"`
	ScheduleID int64                 `json:"scheduleID,omitempty"`
	Schedule   *domain.ScheduleEntry `json:"schedule,omitempty"`
}

var (
	ErrOverridesCollide = &DomainError{Code: "OVERRIDES_COLLIDE", Message: "选择覆盖的排班之间仍然存在时间冲突"}
	ErrPartialOverride  = &DomainError{Code: "PARTIAL_OVERRIDE", Message: "同一条新排班的所有冲突需要一起选择覆盖"}
)

// Decisions 返回需要用户决定的冲突，即 TIME_CONFLICT
// 一个候选只要和同一学生冲突就会被整体丢弃，它的 TIME_CONFLICT 也不再呈现
func Decisions(conflicts []domain.ConflictRecord) []domain.ConflictRecord {
	studentConflicted := make(map[int]bool)
	for _, c := range conflicts {
		if c.ConflictType == domain.ConflictTypeStudentTime {
			studentConflicted[c.NewIndex] = true
		}
	}

	decisions := make([]domain.ConflictRecord, 0, len(conflicts))
	for _, c := range conflicts {
		if c.ConflictType != domain.ConflictTypeTime || studentConflicted[c.NewIndex] {
			continue
		}
		decisions = append(decisions, c)
	}

	return decisions
}

// chosenCandidates 校验 overrides 并按首次出现的决策顺序返回被选中的候选下标
// 覆盖以候选为单位：选择了某个候选的一项决策，就必须选择它的全部决策
func chosenCandidates(decisions []domain.ConflictRecord, overrides []int) ([]int, error) {
	sorted := slices.Clone(overrides)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	selected := make(map[int]bool, len(sorted))
	chosen := make([]int, 0, len(sorted))
	for _, idx := range sorted {
		if idx < 0 || idx >= len(decisions) {
			return nil, ErrDecisionNotFound
		}
		selected[idx] = true
		if !slices.Contains(chosen, decisions[idx].NewIndex) {
			chosen = append(chosen, decisions[idx].NewIndex)
		}
	}

	for i, d := range decisions {
		if slices.Contains(chosen, d.NewIndex) && !selected[i] {
			return nil, ErrPartialOverride
		}
	}

	return chosen, nil
}

// Resolve 把用户选择覆盖的冲突转换为删除/插入操作
// overrides 是 Decisions(conflicts) 中的下标，每个被覆盖的已有条目先删除，再插入对应的候选
// 未被选择的冲突不产生任何操作，候选被丢弃，已有条目保留
func Resolve(conflicts []domain.ConflictRecord, overrides []int) ([]Operation, error) {
	decisions := Decisions(conflicts)

	chosen, err := chosenCandidates(decisions, overrides)
	if err != nil {
		return nil, err
	}

	ops := make([]Operation, 0, len(chosen)*2)
	deleted := make(map[int64]bool)

	for _, candidate := range chosen {
		var newSchedule domain.ScheduleEntry
		for _, d := range decisions {
			if d.NewIndex != candidate {
				continue
			}
			newSchedule = d.NewSchedule
			// 本批次内的冲突对象还没有落库，由 BuildCommitPlan 负责撤回
			if d.ExistingCandidateIndex != nil || d.ExistingSchedule.ID == 0 {
				continue
			}
			if deleted[d.ExistingSchedule.ID] {
				continue
			}
			deleted[d.ExistingSchedule.ID] = true
			ops = append(ops, Operation{Kind: OperationDelete, ScheduleID: d.ExistingSchedule.ID})
		}

		ops = append(ops, Operation{Kind: OperationInsert, Schedule: &newSchedule})
	}

	return ops, nil
}

// BuildCommitPlan 合并检测结果与用户选择，得到一次提交需要执行的全部操作
// 未冲突的候选直接插入；被覆盖的本批次候选会被撤回；最终插入集合内部不允许再有重叠
func BuildCommitPlan(kind domain.TimetableType, result *CheckResult, overrides []int) ([]Operation, error) {
	decisions := Decisions(result.Conflicts)

	chosen, err := chosenCandidates(decisions, overrides)
	if err != nil {
		return nil, err
	}

	withdrawn := make(map[int]bool)
	for _, d := range decisions {
		if d.ExistingCandidateIndex != nil && slices.Contains(chosen, d.NewIndex) {
			withdrawn[*d.ExistingCandidateIndex] = true
		}
	}

	ops := make([]Operation, 0, len(result.CreatedSchedules)+len(chosen)*2)
	for i, entry := range result.CreatedSchedules {
		if i < len(result.AcceptedIndexes) && withdrawn[result.AcceptedIndexes[i]] {
			continue
		}
		ops = append(ops, Operation{Kind: OperationInsert, Schedule: &entry})
	}

	resolved, err := Resolve(result.Conflicts, overrides)
	if err != nil {
		return nil, err
	}
	ops = append(ops, resolved...)

	inserts := make([]domain.ScheduleEntry, 0, len(ops))
	for _, op := range ops {
		if op.Kind == OperationInsert {
			inserts = append(inserts, *op.Schedule)
		}
	}
	check, err := DetectConflicts(kind, nil, inserts)
	if err != nil {
		return nil, err
	}
	if check.HasConflicts {
		return nil, ErrOverridesCollide
	}

	return ops, nil
}
