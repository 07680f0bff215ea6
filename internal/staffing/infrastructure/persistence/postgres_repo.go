// Package persistence implements the staffing repository on PostgreSQL.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
	"github.com/velvetcut/booking/internal/staffing/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectWorkerColumns = `id, user_id, display_name, role, active`

func (r *PostgresRepository) FindWorker(ctx context.Context, id uuid.UUID) (*domain.Worker, error) {
	row := sharedpersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+selectWorkerColumns+` FROM workers WHERE id = $1`, id)

	var w domain.Worker
	if err := row.Scan(&w.ID, &w.UserID, &w.DisplayName, &w.Role, &w.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find worker: %w", err)
	}
	return &w, nil
}

func (r *PostgresRepository) FindWorkers(ctx context.Context, ids []uuid.UUID) ([]domain.Worker, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx,
		`SELECT `+selectWorkerColumns+` FROM workers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find workers: %w", err)
	}
	defer rows.Close()
	return scanWorkers(rows)
}

// ListActiveByRole returns candidates in id order, which fixes the
// tie-break when several workers offer the same earliest slot.
func (r *PostgresRepository) ListActiveByRole(ctx context.Context, role domain.Role) ([]domain.Worker, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx,
		`SELECT `+selectWorkerColumns+` FROM workers WHERE role = $1 AND active ORDER BY id`, role)
	if err != nil {
		return nil, fmt.Errorf("list workers by role: %w", err)
	}
	defer rows.Close()
	return scanWorkers(rows)
}

func (r *PostgresRepository) ListRulesForDay(ctx context.Context, workerID uuid.UUID, dayOfWeek int) ([]domain.ScheduleRule, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, worker_id, day_of_week,
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), active
		FROM schedule_rules
		WHERE worker_id = $1 AND day_of_week = $2
		ORDER BY id`, workerID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list schedule rules: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduleRule
	for rows.Next() {
		var rule domain.ScheduleRule
		var start, end string
		if err := rows.Scan(&rule.ID, &rule.WorkerID, &rule.DayOfWeek, &start, &end, &rule.Active); err != nil {
			return nil, fmt.Errorf("scan schedule rule: %w", err)
		}
		if rule.StartTime, err = domain.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if rule.EndTime, err = domain.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListBreaksForDay(ctx context.Context, workerID uuid.UUID, dayOfWeek int) ([]domain.Break, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, worker_id, day_of_week,
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')
		FROM breaks
		WHERE worker_id = $1 AND day_of_week = $2
		ORDER BY id`, workerID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var out []domain.Break
	for rows.Next() {
		var br domain.Break
		var start, end string
		if err := rows.Scan(&br.ID, &br.WorkerID, &br.DayOfWeek, &start, &end); err != nil {
			return nil, fmt.Errorf("scan break: %w", err)
		}
		if br.StartTime, err = domain.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if br.EndTime, err = domain.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		out = append(out, br)
	}
	return out, rows.Err()
}

// ListExceptionsForDate returns exceptions ordered by insertion id; the
// calendar resolver applies them in that order.
func (r *PostgresRepository) ListExceptionsForDate(ctx context.Context, workerID uuid.UUID, date time.Time) ([]domain.Exception, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, worker_id, date, type,
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), note
		FROM calendar_exceptions
		WHERE worker_id = $1 AND date = $2::date
		ORDER BY id`, workerID, date)
	if err != nil {
		return nil, fmt.Errorf("list calendar exceptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Exception
	for rows.Next() {
		var exc domain.Exception
		var start, end *string
		if err := rows.Scan(&exc.ID, &exc.WorkerID, &exc.Date, &exc.Type, &start, &end, &exc.Note); err != nil {
			return nil, fmt.Errorf("scan calendar exception: %w", err)
		}
		if start != nil {
			t, err := domain.ParseTimeOfDay(*start)
			if err != nil {
				return nil, err
			}
			exc.StartTime = &t
		}
		if end != nil {
			t, err := domain.ParseTimeOfDay(*end)
			if err != nil {
				return nil, err
			}
			exc.EndTime = &t
		}
		out = append(out, exc)
	}
	return out, rows.Err()
}

// LockWorkers takes FOR UPDATE row locks ordered by id. It refuses to run
// outside a transaction: a lock that dies with the statement is no lock.
func (r *PostgresRepository) LockWorkers(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, ok := sharedpersistence.TxInfoFromContext(ctx); !ok {
		return errors.New("LockWorkers requires a transaction")
	}
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx,
		`SELECT id FROM workers WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock workers: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan locked worker: %w", err)
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if locked != len(ids) {
		return fmt.Errorf("lock workers: expected %d rows, locked %d", len(ids), locked)
	}
	return nil
}

func scanWorkers(rows pgx.Rows) ([]domain.Worker, error) {
	var out []domain.Worker
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(&w.ID, &w.UserID, &w.DisplayName, &w.Role, &w.Active); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
