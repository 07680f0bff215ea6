// Package persistence implements the catalog repository on PostgreSQL.
package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetcut/booking/internal/catalog/domain"
	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// FindActiveByIDs returns active services in the order the ids were given.
// Duplicated ids yield duplicated services; a missing or inactive id shows
// up as a shorter result.
func (r *PostgresRepository) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Service, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, category_id, name, duration_minutes, buffer_before_minutes,
		       buffer_after_minutes, price, active, assignment_type, fixed_worker_id
		FROM services
		WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, fmt.Errorf("find services: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.Service)
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.DurationMinutes,
			&s.BufferBeforeMinutes, &s.BufferAfterMinutes, &s.Price,
			&s.Active, &s.AssignmentType, &s.FixedWorkerID); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *PostgresRepository) FindCategories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.ServiceCategory, error) {
	rows, err := sharedpersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, name, active, default_fixed_worker_id
		FROM service_categories
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find service categories: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]domain.ServiceCategory)
	for rows.Next() {
		var c domain.ServiceCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.DefaultFixedWorkerID); err != nil {
			return nil, fmt.Errorf("scan service category: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}
