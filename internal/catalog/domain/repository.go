package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads catalog data. Service CRUD lives outside the core.
type Repository interface {
	// FindActiveByIDs returns the active services for the given ids in the
	// given order. A missing or inactive id is reported by returning fewer
	// services than ids; callers treat that as a validation error.
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Service, error)

	FindCategories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ServiceCategory, error)
}
