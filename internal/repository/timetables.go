package repository

import (
	"context"
	"database/sql"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

const timetableColumns = `id, name, owner_id, type, start_date, end_date, is_active, is_archived, created_at, version`

func scanTimetable(row interface{ Scan(...any) error }) (*domain.Timetable, error) {
	tt := &domain.Timetable{}
	dst := []any{&tt.ID, &tt.Name, &tt.OwnerID, &tt.Type, &tt.StartDate, &tt.EndDate, &tt.IsActive, &tt.IsArchived, &tt.CreatedAt, &tt.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return tt, nil
}

func queryTimetables(ctx context.Context, q querier, query string, args ...any) ([]*domain.Timetable, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	timetables := make([]*domain.Timetable, 0)
	for rows.Next() {
		tt, err := scanTimetable(rows)
		if err != nil {
			return nil, err
		}
		timetables = append(timetables, tt)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return timetables, nil
}

// dateArg 将可空日期转换为查询参数，配合 $n::date 使用
func dateArg(d *domain.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func insertTimetable(ctx context.Context, tx *sql.Tx, tt *domain.Timetable) error {
	// 同一所有者最多只有一个启用中的时间表
	if tt.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE timetables SET is_active = FALSE, version = version + 1 WHERE owner_id = $1 AND is_active`, tt.OwnerID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO timetables (name, owner_id, type, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4::date, $5::date, $6)
		RETURNING id, is_archived, created_at, version
	`
	args := []any{tt.Name, tt.OwnerID, tt.Type, dateArg(tt.StartDate), dateArg(tt.EndDate), tt.IsActive}
	return tx.QueryRowContext(ctx, query, args...).Scan(&tt.ID, &tt.IsArchived, &tt.CreatedAt, &tt.Version)
}

func (r *Repository) CreateTimetable(tt *domain.Timetable) error {
	return r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		return insertTimetable(ctx, tx, tt)
	})
}

// CreateTimetableWithSchedules 新建时间表并写入全部条目，用于类型转换
func (r *Repository) CreateTimetableWithSchedules(tt *domain.Timetable, entries []domain.ScheduleEntry) ([]domain.ScheduleEntry, error) {
	var created []domain.ScheduleEntry
	err := r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if err := insertTimetable(ctx, tx, tt); err != nil {
			return err
		}

		var err error
		created, err = insertSchedules(ctx, tx, tt.ID, entries)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *Repository) GetTimetableByID(id int64) (*domain.Timetable, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1`
	return scanTimetable(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetTimetablesByOwner(ownerID int64) ([]*domain.Timetable, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE owner_id = $1 ORDER BY is_archived, id`
	return queryTimetables(ctx, r.dbpool, query, ownerID)
}

func (r *Repository) GetAllTimetables() ([]*domain.Timetable, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + timetableColumns + ` FROM timetables ORDER BY owner_id, is_archived, id`
	return queryTimetables(ctx, r.dbpool, query)
}

// GetTimetablesByIDs 不存在的 ID 会被忽略，由调用方判断是否缺失
func (r *Repository) GetTimetablesByIDs(ids []int64) ([]*domain.Timetable, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = ANY($1) ORDER BY id`
	return queryTimetables(ctx, r.dbpool, query, ids)
}

func (r *Repository) UpdateTimetable(tt *domain.Timetable) error {
	query := `
		UPDATE timetables
		SET
			name = $1,
			start_date = $2::date,
			end_date = $3::date,
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{tt.Name, dateArg(tt.StartDate), dateArg(tt.EndDate), tt.ID, tt.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&tt.Version)
}

// ActivateTimetable 启用时间表，同时停用同一所有者的其他时间表
func (r *Repository) ActivateTimetable(tt *domain.Timetable) error {
	return r.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE timetables SET is_active = FALSE, version = version + 1 WHERE owner_id = $1 AND is_active AND id <> $2`, tt.OwnerID, tt.ID); err != nil {
			return err
		}

		query := `
			UPDATE timetables
			SET is_active = TRUE, version = version + 1
			WHERE id = $1 AND version = $2 AND NOT is_archived
			RETURNING is_active, version
		`
		return tx.QueryRowContext(ctx, query, tt.ID, tt.Version).Scan(&tt.IsActive, &tt.Version)
	})
}

// ArchiveTimetable 归档的时间表同时被停用
func (r *Repository) ArchiveTimetable(tt *domain.Timetable) error {
	query := `
		UPDATE timetables
		SET is_archived = TRUE, is_active = FALSE, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING is_archived, is_active, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, tt.ID, tt.Version).Scan(&tt.IsArchived, &tt.IsActive, &tt.Version)
}

// ArchiveExpiredTimetables 归档所有在 today 之前结束的日期范围时间表，返回归档数量
func (r *Repository) ArchiveExpiredTimetables(today domain.Date) (int64, error) {
	query := `
		UPDATE timetables
		SET is_archived = TRUE, is_active = FALSE, version = version + 1
		WHERE type = $1 AND NOT is_archived AND end_date < $2::date
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, domain.TimetableTypeDateRange, today.String())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteTimetable 条目随时间表级联删除
func (r *Repository) DeleteTimetable(id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id)
	return err
}
