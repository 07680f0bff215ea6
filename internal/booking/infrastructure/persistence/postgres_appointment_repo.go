// Package persistence implements the booking repositories on PostgreSQL.
// The unique constraint on (worker_id, start_datetime) is the storage-level
// last line of defense against double-booking; its violation surfaces as a
// conflict error.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velvetcut/booking/internal/booking/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
)

const pgUniqueViolation = "23505"

type PostgresAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAppointmentRepository(pool *pgxpool.Pool) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{pool: pool}
}

func (r *PostgresAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	exec := sharedpersistence.Executor(ctx, r.pool)

	_, err := exec.Exec(ctx, `
		INSERT INTO appointments (
			id, customer_id, status, start_datetime, end_datetime, channel,
			gap_total_minutes, recommended_subtotal, recommended_discount,
			recommended_total, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		appt.ID(), appt.CustomerID(), appt.Status(), appt.Start(), appt.End(),
		appt.Channel(), appt.GapTotalMinutes(), appt.RecommendedSubtotal(),
		appt.RecommendedDiscount(), appt.RecommendedTotal(),
		appt.CreatedAt(), appt.UpdatedAt())
	if err != nil {
		return mapConstraint(err, "create appointment")
	}
	return r.insertBlocks(ctx, appt)
}

func (r *PostgresAppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	exec := sharedpersistence.Executor(ctx, r.pool)

	row := exec.QueryRow(ctx, `
		SELECT id, customer_id, status, start_datetime, end_datetime, channel,
		       gap_total_minutes, recommended_subtotal, recommended_discount,
		       recommended_total, paid_total, payment_method, paid_at, paid_by,
		       cancelled_at, cancelled_by, cancelled_reason, created_at, updated_at
		FROM appointments WHERE id = $1`, id)

	var (
		apptID, customerID               uuid.UUID
		status                           domain.AppointmentStatus
		start, end, createdAt, updatedAt time.Time
		channel                          domain.Channel
		gap                              int
		subtotal, discount, total        decimal.Decimal
		paidTotal                        decimal.NullDecimal
		paymentMethod                    *string
		paidAt, cancelledAt              *time.Time
		paidBy, cancelledBy              *uuid.UUID
		cancelledReason                  string
	)
	err := row.Scan(&apptID, &customerID, &status, &start, &end, &channel,
		&gap, &subtotal, &discount, &total, &paidTotal, &paymentMethod,
		&paidAt, &paidBy, &cancelledAt, &cancelledBy, &cancelledReason,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}

	blocks, err := r.loadBlocks(ctx, apptID)
	if err != nil {
		return nil, err
	}

	var paid *decimal.Decimal
	if paidTotal.Valid {
		paid = &paidTotal.Decimal
	}
	var method *domain.PaymentMethod
	if paymentMethod != nil {
		m := domain.PaymentMethod(*paymentMethod)
		method = &m
	}
	return domain.RehydrateAppointment(
		apptID, customerID, status, start, end, channel, gap,
		subtotal, discount, total,
		paid, method, paidAt, paidBy,
		cancelledAt, cancelledBy, cancelledReason,
		blocks, createdAt, updatedAt), nil
}

func (r *PostgresAppointmentRepository) UpdateLifecycle(ctx context.Context, appt *domain.Appointment) error {
	exec := sharedpersistence.Executor(ctx, r.pool)

	var paymentMethod *string
	if appt.PaymentMethod() != nil {
		m := string(*appt.PaymentMethod())
		paymentMethod = &m
	}
	var paidTotal decimal.NullDecimal
	if appt.PaidTotal() != nil {
		paidTotal = decimal.NullDecimal{Decimal: *appt.PaidTotal(), Valid: true}
	}

	tag, err := exec.Exec(ctx, `
		UPDATE appointments SET
			status = $2, start_datetime = $3, end_datetime = $4,
			gap_total_minutes = $5, paid_total = $6, payment_method = $7,
			paid_at = $8, paid_by = $9, cancelled_at = $10, cancelled_by = $11,
			cancelled_reason = $12, updated_at = $13
		WHERE id = $1`,
		appt.ID(), appt.Status(), appt.Start(), appt.End(),
		appt.GapTotalMinutes(), paidTotal, paymentMethod,
		appt.PaidAt(), appt.PaidBy(), appt.CancelledAt(), appt.CancelledBy(),
		appt.CancelledReason(), appt.UpdatedAt())
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shareddomain.NewNotFound("appointment not found")
	}
	return nil
}

func (r *PostgresAppointmentRepository) ReplaceBlocks(ctx context.Context, appt *domain.Appointment) error {
	if err := r.DeleteBlocks(ctx, appt.ID()); err != nil {
		return err
	}
	return r.insertBlocks(ctx, appt)
}

func (r *PostgresAppointmentRepository) DeleteBlocks(ctx context.Context, appointmentID uuid.UUID) error {
	exec := sharedpersistence.Executor(ctx, r.pool)
	if _, err := exec.Exec(ctx,
		`DELETE FROM appointment_blocks WHERE appointment_id = $1`, appointmentID); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	return nil
}

func (r *PostgresAppointmentRepository) ExistsOverlap(ctx context.Context, workerID uuid.UUID, start, end time.Time, excludeAppointmentID *uuid.UUID) (bool, error) {
	exec := sharedpersistence.Executor(ctx, r.pool)

	var exists bool
	err := exec.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment_blocks
			WHERE worker_id = $1
			  AND start_datetime < $3
			  AND end_datetime > $2
			  AND ($4::uuid IS NULL OR appointment_id <> $4)
		)`, workerID, start, end, excludeAppointmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

func (r *PostgresAppointmentRepository) ListBlocksInRange(ctx context.Context, workerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]domain.Block, error) {
	if len(workerIDs) == 0 {
		return map[uuid.UUID][]domain.Block{}, nil
	}
	exec := sharedpersistence.Executor(ctx, r.pool)

	rows, err := exec.Query(ctx, `
		SELECT id, sequence, worker_id, start_datetime, end_datetime
		FROM appointment_blocks
		WHERE worker_id = ANY($1)
		  AND start_datetime < $3
		  AND end_datetime > $2
		ORDER BY worker_id, start_datetime`, workerIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.Block)
	for rows.Next() {
		var b domain.Block
		if err := rows.Scan(&b.ID, &b.Sequence, &b.WorkerID, &b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out[b.WorkerID] = append(out[b.WorkerID], b)
	}
	return out, rows.Err()
}

func (r *PostgresAppointmentRepository) insertBlocks(ctx context.Context, appt *domain.Appointment) error {
	exec := sharedpersistence.Executor(ctx, r.pool)

	for _, b := range appt.Blocks() {
		_, err := exec.Exec(ctx, `
			INSERT INTO appointment_blocks (id, appointment_id, sequence, worker_id, start_datetime, end_datetime)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			b.ID, appt.ID(), b.Sequence, b.WorkerID, b.Start, b.End)
		if err != nil {
			return mapConstraint(err, "create block")
		}
		for pos, l := range b.Lines {
			_, err := exec.Exec(ctx, `
				INSERT INTO appointment_service_lines (
					id, block_id, position, service_id, name, duration_minutes,
					buffer_before_minutes, buffer_after_minutes, price
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				l.ID, b.ID, pos, l.ServiceID, l.Name, l.DurationMinutes,
				l.BufferBeforeMinutes, l.BufferAfterMinutes, l.Price)
			if err != nil {
				return mapConstraint(err, "create service line")
			}
		}
	}
	return nil
}

func (r *PostgresAppointmentRepository) loadBlocks(ctx context.Context, appointmentID uuid.UUID) ([]domain.Block, error) {
	exec := sharedpersistence.Executor(ctx, r.pool)

	rows, err := exec.Query(ctx, `
		SELECT id, sequence, worker_id, start_datetime, end_datetime
		FROM appointment_blocks
		WHERE appointment_id = $1
		ORDER BY sequence`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.Block
	blockIdx := make(map[uuid.UUID]int)
	for rows.Next() {
		var b domain.Block
		if err := rows.Scan(&b.ID, &b.Sequence, &b.WorkerID, &b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blockIdx[b.ID] = len(blocks)
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return blocks, nil
	}

	blockIDs := make([]uuid.UUID, 0, len(blocks))
	for _, b := range blocks {
		blockIDs = append(blockIDs, b.ID)
	}
	lineRows, err := exec.Query(ctx, `
		SELECT id, block_id, position, service_id, name, duration_minutes,
		       buffer_before_minutes, buffer_after_minutes, price
		FROM appointment_service_lines
		WHERE block_id = ANY($1)
		ORDER BY position`, blockIDs)
	if err != nil {
		return nil, fmt.Errorf("load service lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l domain.ServiceLine
		var blockID uuid.UUID
		if err := lineRows.Scan(&l.ID, &blockID, &l.Position, &l.ServiceID, &l.Name,
			&l.DurationMinutes, &l.BufferBeforeMinutes, &l.BufferAfterMinutes, &l.Price); err != nil {
			return nil, fmt.Errorf("scan service line: %w", err)
		}
		if idx, ok := blockIdx[blockID]; ok {
			blocks[idx].Lines = append(blocks[idx].Lines, l)
		}
	}
	return blocks, lineRows.Err()
}

// mapConstraint translates unique violations to conflicts; everything else
// stays an internal error.
func mapConstraint(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return shareddomain.NewConflict("requested time is no longer available")
	}
	return fmt.Errorf("%s: %w", op, err)
}
