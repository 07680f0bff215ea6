package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	sharedapp "github.com/velvetcut/booking/internal/shared/application"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	staffingdomain "github.com/velvetcut/booking/internal/staffing/domain"
	"github.com/velvetcut/booking/pkg/observability"
)

// RescheduleCommand moves a reserved appointment to the times of a new
// option. Staff only; a reschedule moves times, not personnel.
type RescheduleCommand struct {
	Principal     identitydomain.Principal
	AppointmentID uuid.UUID
	Token         string
	Reason        string
}

type RescheduleHandler struct {
	uow          sharedapp.UnitOfWork
	tokens       TokenVerifier
	appointments domain.AppointmentRepository
	staffing     staffingdomain.Repository
	outbox       outbox.Repository
	audit        auditSink
	cancelWindow time.Duration
	metrics      observability.Metrics
	now          func() time.Time
}

func NewRescheduleHandler(
	uow sharedapp.UnitOfWork,
	tokens TokenVerifier,
	appointments domain.AppointmentRepository,
	staffing staffingdomain.Repository,
	ob outbox.Repository,
	audits domain.AuditRepository,
	cancelWindow time.Duration,
	logger *slog.Logger,
	metrics observability.Metrics,
) *RescheduleHandler {
	return &RescheduleHandler{
		uow:          uow,
		tokens:       tokens,
		appointments: appointments,
		staffing:     staffing,
		outbox:       ob,
		audit:        auditSink{audits: audits, logger: logger, metrics: metrics},
		cancelWindow: cancelWindow,
		metrics:      metrics,
		now:          time.Now,
	}
}

func (h *RescheduleHandler) Handle(ctx context.Context, cmd RescheduleCommand) error {
	if !cmd.Principal.IsStaff() {
		return shareddomain.NewUnauthorized("staff role required")
	}

	payload, err := h.tokens.Verify(cmd.Token)
	if err != nil {
		return err
	}

	var before, after time.Time
	err = sharedapp.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		appt, err := h.appointments.FindByID(ctx, cmd.AppointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return shareddomain.NewNotFound("appointment not found")
		}
		if h.now().After(appt.Start().Add(-h.cancelWindow)) {
			return shareddomain.NewPolicyDenied(
				fmt.Sprintf("rescheduling closes %s before the appointment", h.cancelWindow))
		}

		excludeID := appt.ID()
		if err := lockAndCheckAvailability(ctx, h.staffing, h.appointments, payload, &excludeID); err != nil {
			return err
		}

		before = appt.Start()
		if err := appt.Reschedule(payload); err != nil {
			return err
		}
		after = appt.Start()

		if err := h.appointments.UpdateLifecycle(ctx, appt); err != nil {
			return err
		}
		if err := h.appointments.ReplaceBlocks(ctx, appt); err != nil {
			return err
		}
		return stageEvents(ctx, h.outbox, appt, sharedapp.NewEventMetadata(cmd.Principal.UserID))
	})
	if err != nil {
		return err
	}

	note := fmt.Sprintf("%s -> %s", before.Format(time.RFC3339), after.Format(time.RFC3339))
	if cmd.Reason != "" {
		note = fmt.Sprintf("%s; reason: %s", note, cmd.Reason)
	}
	h.audit.append(ctx, domain.NewAuditEntry(
		cmd.AppointmentID, cmd.Principal.UserID, domain.AuditReschedule, note))
	h.metrics.Counter("booking.rescheduled", 1)
	return nil
}
