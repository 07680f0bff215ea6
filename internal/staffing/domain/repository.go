package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository reads worker and calendar data. Write access (worker CRUD,
// rule management) lives outside the booking core.
type Repository interface {
	FindWorker(ctx context.Context, id uuid.UUID) (*Worker, error)
	FindWorkers(ctx context.Context, ids []uuid.UUID) ([]Worker, error)
	ListActiveByRole(ctx context.Context, role Role) ([]Worker, error)

	ListRulesForDay(ctx context.Context, workerID uuid.UUID, dayOfWeek int) ([]ScheduleRule, error)
	ListBreaksForDay(ctx context.Context, workerID uuid.UUID, dayOfWeek int) ([]Break, error)
	ListExceptionsForDate(ctx context.Context, workerID uuid.UUID, date time.Time) ([]Exception, error)

	// LockWorkers takes row locks on the given workers, ordered by id so
	// concurrent reservations cannot deadlock. Requires a transaction in
	// context.
	LockWorkers(ctx context.Context, ids []uuid.UUID) error
}
