package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
)

// 时间列统一以 HH:MM 读出，与请求中的格式保持一致
const scheduleColumns = `
	id,
	timetable_id,
	student_name,
	day_of_week,
	schedule_date,
	to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'),
	note
`

func scanSchedule(row interface{ Scan(...any) error }) (domain.ScheduleEntry, error) {
	var e domain.ScheduleEntry
	dst := []any{&e.ID, &e.TimetableID, &e.StudentName, &e.DayOfWeek, &e.ScheduleDate, &e.StartTime, &e.EndTime, &e.Note}
	if err := row.Scan(dst...); err != nil {
		return domain.ScheduleEntry{}, err
	}
	return e, nil
}

func querySchedules(ctx context.Context, q querier, query string, args ...any) ([]domain.ScheduleEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ScheduleEntry, 0)
	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func dayArg(d *domain.DayOfWeek) any {
	if d == nil {
		return nil
	}
	return int32(*d)
}

func insertSchedules(ctx context.Context, tx *sql.Tx, timetableID int64, entries []domain.ScheduleEntry) ([]domain.ScheduleEntry, error) {
	query := `
		INSERT INTO schedules (timetable_id, student_name, day_of_week, schedule_date, start_time, end_time, note)
		VALUES ($1, $2, $3, $4::date, $5::time, $6::time, $7)
		RETURNING id
	`

	created := make([]domain.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		e.TimetableID = timetableID
		args := []any{timetableID, e.StudentName, dayArg(e.DayOfWeek), dateArg(e.ScheduleDate), e.StartTime, e.EndTime, e.Note}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
			return nil, err
		}
		created = append(created, e)
	}

	return created, nil
}

// lockTimetable 锁住时间表所在行，使同一时间表的写入串行化
func lockTimetable(ctx context.Context, tx *sql.Tx, timetableID int64) error {
	var id int64
	return tx.QueryRowContext(ctx, `SELECT id FROM timetables WHERE id = $1 FOR UPDATE`, timetableID).Scan(&id)
}

func (r *Repository) GetSchedules(timetableID int64) ([]domain.ScheduleEntry, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE timetable_id = $1 ORDER BY day_of_week, schedule_date, start_time, id`
	return querySchedules(ctx, r.dbpool, query, timetableID)
}

// GetSchedulesInRange 只返回 [start, end] 内的日期条目
func (r *Repository) GetSchedulesInRange(timetableID int64, start, end domain.Date) ([]domain.ScheduleEntry, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE timetable_id = $1 AND schedule_date BETWEEN $2::date AND $3::date
		ORDER BY schedule_date, start_time, id
	`
	return querySchedules(ctx, r.dbpool, query, timetableID, start.String(), end.String())
}

// GetSchedulesByTimetables 按时间表分组返回条目，用于合并视图
func (r *Repository) GetSchedulesByTimetables(ids []int64) (map[int64][]domain.ScheduleEntry, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE timetable_id = ANY($1) ORDER BY timetable_id, day_of_week, schedule_date, start_time, id`
	entries, err := querySchedules(ctx, r.dbpool, query, ids)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64][]domain.ScheduleEntry, len(ids))
	for _, e := range entries {
		grouped[e.TimetableID] = append(grouped[e.TimetableID], e)
	}

	return grouped, nil
}

func (r *Repository) GetScheduleByID(timetableID, id int64) (*domain.ScheduleEntry, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1 AND timetable_id = $2`
	e, err := scanSchedule(r.dbpool.QueryRowContext(ctx, query, id, timetableID))
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// CreateSchedulesBatch 在持有时间表行锁的事务中重新检测冲突，任何冲突都会使整个批次失败
func (r *Repository) CreateSchedulesBatch(tt *domain.Timetable, entries []domain.ScheduleEntry) ([]domain.ScheduleEntry, error) {
	var created []domain.ScheduleEntry
	err := r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if err := lockTimetable(ctx, tx, tt.ID); err != nil {
			return err
		}

		existing, err := querySchedules(ctx, tx, `SELECT `+scheduleColumns+` FROM schedules WHERE timetable_id = $1`, tt.ID)
		if err != nil {
			return err
		}

		check, err := scheduler.DetectConflicts(tt.Type, existing, entries)
		if err != nil {
			return err
		}
		if check.HasConflicts {
			return ErrScheduleConflict
		}

		created, err = insertSchedules(ctx, tx, tt.ID, entries)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// CreateSchedulesBatchForce 不做冲突检测直接写入
func (r *Repository) CreateSchedulesBatchForce(timetableID int64, entries []domain.ScheduleEntry) ([]domain.ScheduleEntry, error) {
	var created []domain.ScheduleEntry
	err := r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		var err error
		created, err = insertSchedules(ctx, tx, timetableID, entries)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// ApplyOperations 在一个事务中执行冲突处理得到的删除和插入
// 删除先于插入执行；要删除的条目已不存在，或插入后仍与其他条目冲突，都视为检测结果已过期
func (r *Repository) ApplyOperations(tt *domain.Timetable, ops []scheduler.Operation) (inserted []domain.ScheduleEntry, deleted []domain.ScheduleEntry, err error) {
	err = r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if err := lockTimetable(ctx, tx, tt.ID); err != nil {
			return err
		}

		toInsert := make([]domain.ScheduleEntry, 0, len(ops))
		for _, op := range ops {
			switch op.Kind {
			case scheduler.OperationDelete:
				query := `DELETE FROM schedules WHERE id = $1 AND timetable_id = $2 RETURNING ` + scheduleColumns
				e, err := scanSchedule(tx.QueryRowContext(ctx, query, op.ScheduleID, tt.ID))
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return ErrScheduleConflict
					}
					return err
				}
				deleted = append(deleted, e)
			case scheduler.OperationInsert:
				toInsert = append(toInsert, *op.Schedule)
			}
		}

		remaining, err := querySchedules(ctx, tx, `SELECT `+scheduleColumns+` FROM schedules WHERE timetable_id = $1`, tt.ID)
		if err != nil {
			return err
		}

		check, err := scheduler.DetectConflicts(tt.Type, remaining, toInsert)
		if err != nil {
			return err
		}
		if check.HasConflicts {
			return ErrScheduleConflict
		}

		inserted, err = insertSchedules(ctx, tx, tt.ID, toInsert)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return inserted, deleted, nil
}

// UpdateSchedule 修改后的条目不能与同一时间表中的其他条目重叠
func (r *Repository) UpdateSchedule(tt *domain.Timetable, entry *domain.ScheduleEntry) error {
	return r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if err := lockTimetable(ctx, tx, tt.ID); err != nil {
			return err
		}

		others, err := querySchedules(ctx, tx, `SELECT `+scheduleColumns+` FROM schedules WHERE timetable_id = $1 AND id <> $2`, tt.ID, entry.ID)
		if err != nil {
			return err
		}

		check, err := scheduler.DetectConflicts(tt.Type, others, []domain.ScheduleEntry{*entry})
		if err != nil {
			return err
		}
		if check.HasConflicts {
			return ErrScheduleConflict
		}

		query := `
			UPDATE schedules
			SET
				student_name = $1,
				day_of_week = $2,
				schedule_date = $3::date,
				start_time = $4::time,
				end_time = $5::time,
				note = $6
			WHERE id = $7 AND timetable_id = $8
			RETURNING id
		`
		args := []any{entry.StudentName, dayArg(entry.DayOfWeek), dateArg(entry.ScheduleDate), entry.StartTime, entry.EndTime, entry.Note, entry.ID, tt.ID}
		return tx.QueryRowContext(ctx, query, args...).Scan(&entry.ID)
	})
}

func (r *Repository) DeleteSchedule(timetableID, id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1 AND timetable_id = $2`, id, timetableID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}
