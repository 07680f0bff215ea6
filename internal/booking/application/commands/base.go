// Package commands holds the write-side handlers of the booking context:
// reservation and the appointment lifecycle operations.
package commands

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/domain"
	sharedapp "github.com/velvetcut/booking/internal/shared/application"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	staffingdomain "github.com/velvetcut/booking/internal/staffing/domain"
	"github.com/velvetcut/booking/pkg/observability"
)

// TokenVerifier validates and decodes an option token. Implementations
// return an option_invalid error on any signature, age or format failure.
type TokenVerifier interface {
	Verify(token string) (domain.OptionPayload, error)
}

// ConsumedGuard remembers option tokens that already produced an
// appointment, so an accidental double submit fails fast instead of
// reaching the database. A token is marked only after its reservation
// committed; failed attempts leave it reusable. It is best-effort: the
// storage constraint is the real defense, so guard failures only disable
// the shortcut.
type ConsumedGuard interface {
	// Consumed reports whether the signature already produced an
	// appointment. Errors mean the guard is unavailable, not a conflict.
	Consumed(ctx context.Context, signature string) (bool, error)
	// MarkConsumed records the signature after a committed reservation.
	MarkConsumed(ctx context.Context, signature string) error
}

// auditSink appends audit entries after the business transaction commits.
// Failures are logged and counted, never propagated: the audit trail is
// best-effort by design.
type auditSink struct {
	audits  domain.AuditRepository
	logger  *slog.Logger
	metrics observability.Metrics
}

func (s auditSink) append(ctx context.Context, entry domain.AuditEntry) {
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			slog.String("appointment_id", entry.AppointmentID.String()),
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
		s.metrics.Counter("booking.audit_append_failed", 1,
			observability.T("action", string(entry.Action)))
	}
}

// lockAndCheckAvailability takes ordered row locks on every worker in the
// payload, then looks for intersecting blocks. Reads happen after the
// locks, so concurrent writers for the same worker are serialized.
func lockAndCheckAvailability(
	ctx context.Context,
	staffing staffingdomain.Repository,
	appointments domain.AppointmentRepository,
	payload domain.OptionPayload,
	excludeAppointmentID *uuid.UUID,
) error {
	workerIDs := payload.WorkerIDs()
	sort.Slice(workerIDs, func(i, j int) bool {
		return workerIDs[i].String() < workerIDs[j].String()
	})
	if err := staffing.LockWorkers(ctx, workerIDs); err != nil {
		return err
	}

	for _, block := range payload.Blocks {
		taken, err := appointments.ExistsOverlap(ctx, block.WorkerID, block.Start, block.End, excludeAppointmentID)
		if err != nil {
			return err
		}
		if taken {
			return shareddomain.NewConflict("requested time is no longer available")
		}
	}
	return nil
}

// stageEvents stamps actor metadata on the aggregate's pending events and
// stores them in the transactional outbox.
func stageEvents(ctx context.Context, ob outbox.Repository, appt *domain.Appointment, meta shareddomain.EventMetadata) error {
	events := appt.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedapp.ApplyEventMetadata(events, meta)
	messages, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}
	if err := ob.SaveBatch(ctx, messages); err != nil {
		return err
	}
	appt.ClearDomainEvents()
	return nil
}
