package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
)

const instanceColumns = "id, owner_id, start_at, end_at, is_active, attendance_required, title, location, category, generated_from"

type scheduleRepository struct {
	exec core.DBExecutor
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(exec core.DBExecutor) *scheduleRepository {
	return &scheduleRepository{exec: exec}
}

func (repo scheduleRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// instanceRow is the event_instance table shape.
type instanceRow struct {
	ID                 string
	OwnerID            string
	StartAt            time.Time
	EndAt              time.Time
	IsActive           bool
	AttendanceRequired bool
	Title              null.String
	Location           null.String
	Category           string
	GeneratedFrom      string
}

func (r *instanceRow) scan(s interface{ Scan(...interface{}) error }) error {
	return s.Scan(
		&r.ID, &r.OwnerID, &r.StartAt, &r.EndAt, &r.IsActive,
		&r.AttendanceRequired, &r.Title, &r.Location, &r.Category, &r.GeneratedFrom,
	)
}

func (r instanceRow) instance() schedule.EventInstance {
	return schedule.EventInstance{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		StartAt:            r.StartAt.UTC(),
		EndAt:              r.EndAt.UTC(),
		IsActive:           r.IsActive,
		AttendanceRequired: r.AttendanceRequired,
		Title:              r.Title.String,
		Location:           r.Location.String,
		Category:           r.Category,
		GeneratedFrom:      r.GeneratedFrom,
	}
}

func (repo scheduleRepository) queryInstances(
	ctx context.Context, exe core.DBExecutor, query string, args ...interface{},
) ([]schedule.EventInstance, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var instances []schedule.EventInstance
	for rows.Next() {
		var r instanceRow
		if err := r.scan(rows); err != nil {
			return nil, err
		}
		instances = append(instances, r.instance())
	}
	return instances, rows.Err()
}

func (repo scheduleRepository) InsertInstances(
	ctx context.Context, instances []schedule.EventInstance, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	exe := repo.getExec(exec)
	query := `INSERT INTO event_instance (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	inserted := make([]schedule.EventInstance, 0, len(instances))
	for _, inst := range instances {
		inst.ID = uuid.New().String()
		_, err := exe.ExecContext(ctx, query,
			inst.ID, inst.OwnerID, inst.StartAt.UTC(), inst.EndAt.UTC(), inst.IsActive, inst.AttendanceRequired,
			null.NewString(inst.Title, inst.Title != ""), null.NewString(inst.Location, inst.Location != ""),
			inst.Category, inst.GeneratedFrom,
		)
		if err != nil {
			return nil, errors.Wrap(err, "inserting instance")
		}
		inserted = append(inserted, inst)
	}
	return inserted, nil
}

func (repo scheduleRepository) GetInstancesByIDs(
	ctx context.Context, ids []string, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+instanceColumns+` FROM event_instance WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	instances, err := repo.queryInstances(ctx, repo.getExec(exec), sqlx.Rebind(sqlx.DOLLAR, query), args...)
	return instances, errors.Wrap(err, "querying instances by ids")
}

func (repo scheduleRepository) QueryInstancesByGeneration(
	ctx context.Context, ownerID, generatedFrom string, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM event_instance
		WHERE owner_id = $1 AND generated_from = $2 ORDER BY start_at ASC`
	instances, err := repo.queryInstances(ctx, repo.getExec(exec), query, ownerID, generatedFrom)
	return instances, errors.Wrap(err, "querying generation batch")
}

func (repo scheduleRepository) QueryInstancesBetween(
	ctx context.Context, from, to time.Time, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM event_instance
		WHERE is_active AND start_at >= $1 AND start_at < $2 ORDER BY start_at ASC`
	instances, err := repo.queryInstances(ctx, repo.getExec(exec), query, from.UTC(), to.UTC())
	return instances, errors.Wrap(err, "querying instances between")
}

// timePartition returns the WHERE fragment and ordering for a time filter;
// `current` also surfaces active instances regardless of time.
func timePartition(filter schedule.QueryFilter) (cond, order string) {
	if filter.Time == schedule.TimeFilterPast {
		return "start_at < $2", "start_at DESC"
	}
	return "(start_at >= $2 OR is_active)", "start_at ASC"
}

func (repo scheduleRepository) FilterInstances(
	ctx context.Context, ownerID string, filter schedule.QueryFilter, now time.Time, exec ...core.DBExecutor,
) ([]schedule.EventInstance, error) {
	cond, order := timePartition(filter)
	query := `SELECT ` + instanceColumns + ` FROM event_instance
		WHERE owner_id = $1 AND ` + cond + ` ORDER BY ` + order + ` LIMIT $3 OFFSET $4`
	instances, err := repo.queryInstances(
		ctx, repo.getExec(exec), query, ownerID, now.UTC(), filter.Limit(), filter.Offset(),
	)
	return instances, errors.Wrap(err, "filtering instances")
}

func (repo scheduleRepository) CountInstances(
	ctx context.Context, ownerID string, filter schedule.QueryFilter, now time.Time, exec ...core.DBExecutor,
) (int, error) {
	cond, _ := timePartition(filter)
	query := `SELECT COUNT(*) FROM event_instance WHERE owner_id = $1 AND ` + cond

	var count int
	if err := repo.getExec(exec).QueryRowContext(ctx, query, ownerID, now.UTC()).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "counting instances")
	}
	return count, nil
}

func (repo scheduleRepository) UpdateActiveFlag(
	ctx context.Context, ids []string, isActive bool, exec ...core.DBExecutor,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE event_instance SET is_active = ? WHERE id IN (?)`, isActive, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating active flag")
	}
	updated, err := res.RowsAffected()
	return int(updated), errors.Wrap(err, "updating active flag")
}

func (repo scheduleRepository) DeleteInstancesByID(
	ctx context.Context, ids []string, exec ...core.DBExecutor,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM event_instance WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting instances")
	}
	deleted, err := res.RowsAffected()
	return int(deleted), errors.Wrap(err, "deleting instances")
}
