package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository persists the appointment aggregate. Mutating calls
// are expected to run inside a unit of work; Create surfaces a conflict
// error when the database rejects a duplicate (worker, start) pair.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateLifecycle writes status and payment fields.
	UpdateLifecycle(ctx context.Context, appt *Appointment) error

	// ReplaceBlocks deletes the appointment's blocks and inserts the
	// current set, updating the aggregate bounds. Used by reschedule and
	// inline edits; duplicate (worker, start) pairs surface as conflicts.
	ReplaceBlocks(ctx context.Context, appt *Appointment) error

	// DeleteBlocks removes all blocks so the time frees up on the
	// calendar. Used on cancellation.
	DeleteBlocks(ctx context.Context, appointmentID uuid.UUID) error

	// ExistsOverlap reports whether any live block of the worker overlaps
	// [start, end), optionally excluding one appointment's own blocks.
	ExistsOverlap(ctx context.Context, workerID uuid.UUID, start, end time.Time, excludeAppointmentID *uuid.UUID) (bool, error)

	// ListBlocksInRange returns live blocks for the workers intersecting
	// [from, to), for calendar resolution.
	ListBlocksInRange(ctx context.Context, workerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]Block, error)
}

// CustomerRepository persists customers. FindFrequent matches registered
// customers by the identity triple; it never creates records.
type CustomerRepository interface {
	Create(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindFrequent(ctx context.Context, phone string, birthDate time.Time) (*Customer, error)
	UpdateName(ctx context.Context, c *Customer) error
}

// AuditRepository appends audit trail entries.
type AuditRepository interface {
	Append(ctx context.Context, entry AuditEntry) error
	ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]AuditEntry, error)
}

// AgendaBlock is one block of an agenda entry with its worker identity and
// snapshotted service lines already attached.
type AgendaBlock struct {
	BlockID    uuid.UUID
	Sequence   int
	WorkerID   uuid.UUID
	WorkerName string
	Start      time.Time
	End        time.Time
	Lines      []ServiceLine
}

// AgendaEntry is one appointment of a day view, eager-loaded with its
// customer and blocks so rendering a day never issues per-row queries.
type AgendaEntry struct {
	Appointment  *Appointment
	CustomerName string
	CustomerType CustomerType
	Phone        string
	Blocks       []AgendaBlock
}

// AgendaFilter narrows a day view. Nil fields mean no filtering; Query
// matches customer name or phone case-insensitively.
type AgendaFilter struct {
	WorkerID *uuid.UUID
	Status   *AppointmentStatus
	Query    string
}

// AgendaReader serves the read side of the agenda views.
type AgendaReader interface {
	// ListDay returns the appointments starting in [from, to) with their
	// blocks, ordered by appointment start.
	ListDay(ctx context.Context, from, to time.Time, filter AgendaFilter) ([]AgendaEntry, error)
}
