package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	sharedapp "github.com/velvetcut/booking/internal/shared/application"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	"github.com/velvetcut/booking/pkg/observability"
)

// CancelCommand cancels an appointment and frees its calendar time.
type CancelCommand struct {
	Principal     identitydomain.Principal
	AppointmentID uuid.UUID
	Reason        string
	Force         bool
}

// CancelHandler drives the RESERVED → CANCELLED transition. Blocks are
// deleted so the time immediately reopens on the calendar; cancelling an
// already cancelled appointment succeeds without writing anything.
type CancelHandler struct {
	uow          sharedapp.UnitOfWork
	appointments domain.AppointmentRepository
	outbox       outbox.Repository
	audit        auditSink
	cancelWindow time.Duration
	metrics      observability.Metrics
	now          func() time.Time
}

func NewCancelHandler(
	uow sharedapp.UnitOfWork,
	appointments domain.AppointmentRepository,
	ob outbox.Repository,
	audits domain.AuditRepository,
	cancelWindow time.Duration,
	logger *slog.Logger,
	metrics observability.Metrics,
) *CancelHandler {
	return &CancelHandler{
		uow:          uow,
		appointments: appointments,
		outbox:       ob,
		audit:        auditSink{audits: audits, logger: logger, metrics: metrics},
		cancelWindow: cancelWindow,
		metrics:      metrics,
		now:          time.Now,
	}
}

func (h *CancelHandler) Handle(ctx context.Context, cmd CancelCommand) error {
	var freedSummary string
	alreadyCancelled := false

	err := sharedapp.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		appt, err := h.appointments.FindByID(ctx, cmd.AppointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return shareddomain.NewNotFound("appointment not found")
		}
		if appt.Status() == domain.StatusCancelled {
			alreadyCancelled = true
			return nil
		}

		if err := h.checkPolicy(cmd, appt); err != nil {
			return err
		}

		freedSummary = blockSummary(appt.Blocks())
		if err := appt.Cancel(cmd.Principal.UserID, cmd.Reason, h.now()); err != nil {
			return err
		}
		if err := h.appointments.UpdateLifecycle(ctx, appt); err != nil {
			return err
		}
		if err := h.appointments.DeleteBlocks(ctx, appt.ID()); err != nil {
			return err
		}
		return stageEvents(ctx, h.outbox, appt, sharedapp.NewEventMetadata(cmd.Principal.UserID))
	})
	if err != nil {
		return err
	}
	if alreadyCancelled {
		return nil
	}

	note := fmt.Sprintf("freed %s", freedSummary)
	if cmd.Reason != "" {
		note = fmt.Sprintf("%s; reason: %s", note, cmd.Reason)
	}
	h.audit.append(ctx, domain.NewAuditEntry(cmd.AppointmentID, cmd.Principal.UserID, domain.AuditCancel, note))
	h.metrics.Counter("booking.cancelled", 1)
	return nil
}

// checkPolicy enforces the cancellation window. Staff and admin may bypass
// it with force; everyone else must cancel early enough.
func (h *CancelHandler) checkPolicy(cmd CancelCommand, appt *domain.Appointment) error {
	if cmd.Principal.IsStaff() && cmd.Force {
		return nil
	}
	deadline := appt.Start().Add(-h.cancelWindow)
	if h.now().After(deadline) {
		return shareddomain.NewPolicyDenied(
			fmt.Sprintf("cancellation closes %s before the appointment", h.cancelWindow))
	}
	return nil
}

func blockSummary(blocks []domain.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, fmt.Sprintf("worker %s %s-%s",
			b.WorkerID,
			b.Start.Format("15:04"),
			b.End.Format("15:04")))
	}
	return strings.Join(parts, ", ")
}
