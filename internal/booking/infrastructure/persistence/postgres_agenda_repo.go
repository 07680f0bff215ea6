package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velvetcut/booking/internal/booking/domain"
	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
)

// PostgresAgendaRepository serves the agenda read model. A day view costs
// three queries regardless of how many appointments it holds: the
// appointments with their customers, then all blocks with their workers,
// then all service lines.
type PostgresAgendaRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAgendaRepository(pool *pgxpool.Pool) *PostgresAgendaRepository {
	return &PostgresAgendaRepository{pool: pool}
}

func (r *PostgresAgendaRepository) ListDay(ctx context.Context, from, to time.Time, filter domain.AgendaFilter) ([]domain.AgendaEntry, error) {
	exec := sharedpersistence.Executor(ctx, r.pool)

	query := `
		SELECT a.id, a.customer_id, a.status, a.start_datetime, a.end_datetime,
		       a.channel, a.gap_total_minutes, a.recommended_subtotal,
		       a.recommended_discount, a.recommended_total, a.paid_total,
		       a.payment_method, a.paid_at, a.paid_by, a.cancelled_at,
		       a.cancelled_by, a.cancelled_reason, a.created_at, a.updated_at,
		       c.full_name, c.customer_type, COALESCE(c.phone, '')
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		WHERE a.start_datetime >= $1 AND a.start_datetime < $2`
	args := []any{from, to}

	if filter.WorkerID != nil {
		args = append(args, *filter.WorkerID)
		query += fmt.Sprintf(`
		  AND EXISTS (
			SELECT 1 FROM appointment_blocks b
			WHERE b.appointment_id = a.id AND b.worker_id = $%d
		  )`, len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(` AND a.status = $%d`, len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += fmt.Sprintf(` AND (c.full_name ILIKE $%d OR c.phone ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY a.start_datetime, a.id`

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agenda appointments: %w", err)
	}
	defer rows.Close()

	var entries []domain.AgendaEntry
	entryIdx := make(map[uuid.UUID]int)
	for rows.Next() {
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
			customerName, customerPhone      string
			customerType                     domain.CustomerType
		)
		err := rows.Scan(&apptID, &customerID, &status, &start, &end, &channel,
			&gap, &subtotal, &discount, &total, &paidTotal, &paymentMethod,
			&paidAt, &paidBy, &cancelledAt, &cancelledBy, &cancelledReason,
			&createdAt, &updatedAt, &customerName, &customerType, &customerPhone)
		if err != nil {
			return nil, fmt.Errorf("scan agenda appointment: %w", err)
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
		appt := domain.RehydrateAppointment(
			apptID, customerID, status, start, end, channel, gap,
			subtotal, discount, total,
			paid, method, paidAt, paidBy,
			cancelledAt, cancelledBy, cancelledReason,
			nil, createdAt, updatedAt)

		entryIdx[apptID] = len(entries)
		entries = append(entries, domain.AgendaEntry{
			Appointment:  appt,
			CustomerName: customerName,
			CustomerType: customerType,
			Phone:        customerPhone,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	apptIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		apptIDs = append(apptIDs, e.Appointment.ID())
	}

	blockIdx := make(map[uuid.UUID]struct{ entry, block int })
	blockRows, err := exec.Query(ctx, `
		SELECT b.id, b.appointment_id, b.sequence, b.worker_id, w.display_name,
		       b.start_datetime, b.end_datetime
		FROM appointment_blocks b
		JOIN workers w ON w.id = b.worker_id
		WHERE b.appointment_id = ANY($1)
		ORDER BY b.appointment_id, b.sequence`, apptIDs)
	if err != nil {
		return nil, fmt.Errorf("list agenda blocks: %w", err)
	}
	defer blockRows.Close()

	var blockIDs []uuid.UUID
	for blockRows.Next() {
		var b domain.AgendaBlock
		var apptID uuid.UUID
		if err := blockRows.Scan(&b.BlockID, &apptID, &b.Sequence, &b.WorkerID,
			&b.WorkerName, &b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("scan agenda block: %w", err)
		}
		i := entryIdx[apptID]
		blockIdx[b.BlockID] = struct{ entry, block int }{i, len(entries[i].Blocks)}
		entries[i].Blocks = append(entries[i].Blocks, b)
		blockIDs = append(blockIDs, b.BlockID)
	}
	if err := blockRows.Err(); err != nil {
		return nil, err
	}
	if len(blockIDs) == 0 {
		return entries, nil
	}

	lineRows, err := exec.Query(ctx, `
		SELECT id, block_id, position, service_id, name, duration_minutes,
		       buffer_before_minutes, buffer_after_minutes, price
		FROM appointment_service_lines
		WHERE block_id = ANY($1)
		ORDER BY position`, blockIDs)
	if err != nil {
		return nil, fmt.Errorf("list agenda service lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l domain.ServiceLine
		var blockID uuid.UUID
		if err := lineRows.Scan(&l.ID, &blockID, &l.Position, &l.ServiceID, &l.Name,
			&l.DurationMinutes, &l.BufferBeforeMinutes, &l.BufferAfterMinutes, &l.Price); err != nil {
			return nil, fmt.Errorf("scan agenda service line: %w", err)
		}
		if pos, ok := blockIdx[blockID]; ok {
			entries[pos.entry].Blocks[pos.block].Lines = append(entries[pos.entry].Blocks[pos.block].Lines, l)
		}
	}
	return entries, lineRows.Err()
}
