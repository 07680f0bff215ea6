package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetcut/booking/internal/booking/domain"
	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
)

// PostgresAuditRepository is the append-only audit trail. Rows are never
// updated or deleted.
type PostgresAuditRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAuditRepository(pool *pgxpool.Pool) *PostgresAuditRepository {
	return &PostgresAuditRepository{pool: pool}
}

func (r *PostgresAuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	exec := sharedpersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `
		INSERT INTO appointment_audits (id, appointment_id, actor_id, action, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.AppointmentID, entry.ActorID, entry.Action, entry.Note, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListForAppointment returns entries ordered by time, ties broken by
// insertion order.
func (r *PostgresAuditRepository) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, appointment_id, actor_id, action, note, created_at
		FROM appointment_audits
		WHERE appointment_id = $1
		ORDER BY created_at, seq`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.ActorID, &e.Action, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
