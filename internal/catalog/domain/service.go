// Package domain models the service catalog: categories and bookable
// services with durations, buffers and prices.
package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssignmentType decides how a service is matched to a worker.
type AssignmentType string

const (
	// AssignmentRoleBased services are served by any worker of the barber
	// role, chosen at booking time.
	AssignmentRoleBased AssignmentType = "ROLE_BASED"
	// AssignmentFixedWorker services are always served by one worker.
	AssignmentFixedWorker AssignmentType = "FIXED_WORKER"
)

// ServiceCategory groups services and optionally pins a default worker,
// which acts as a fallback group resolver for its services.
type ServiceCategory struct {
	ID                   uuid.UUID
	Name                 string
	Active               bool
	DefaultFixedWorkerID *uuid.UUID
}

// Service is a bookable catalog item. Duration and buffers are minutes;
// buffers are consumed inside the service's block.
type Service struct {
	ID                  uuid.UUID
	CategoryID          uuid.UUID
	Name                string
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	Price               decimal.Decimal
	Active              bool
	AssignmentType      AssignmentType
	FixedWorkerID       *uuid.UUID
}

// EffectiveMinutes is the block time the service consumes.
func (s Service) EffectiveMinutes() int {
	return s.BufferBeforeMinutes + s.DurationMinutes + s.BufferAfterMinutes
}

// ResolvedFixedWorkerID returns the service-level fixed worker, falling
// back to the category default. Nil means the service is role based.
func (s Service) ResolvedFixedWorkerID(category *ServiceCategory) *uuid.UUID {
	if s.AssignmentType == AssignmentFixedWorker && s.FixedWorkerID != nil {
		return s.FixedWorkerID
	}
	if category != nil && category.DefaultFixedWorkerID != nil {
		return category.DefaultFixedWorkerID
	}
	return nil
}
