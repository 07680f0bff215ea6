package commands

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	sharedapp "github.com/velvetcut/booking/internal/shared/application"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	"github.com/velvetcut/booking/pkg/observability"
)

// MarkAttendedCommand records that the customer showed up. Staff only.
type MarkAttendedCommand struct {
	Principal     identitydomain.Principal
	AppointmentID uuid.UUID
}

type MarkAttendedHandler struct {
	uow          sharedapp.UnitOfWork
	appointments domain.AppointmentRepository
	outbox       outbox.Repository
	audit        auditSink
	metrics      observability.Metrics
}

func NewMarkAttendedHandler(
	uow sharedapp.UnitOfWork,
	appointments domain.AppointmentRepository,
	ob outbox.Repository,
	audits domain.AuditRepository,
	logger *slog.Logger,
	metrics observability.Metrics,
) *MarkAttendedHandler {
	return &MarkAttendedHandler{
		uow:          uow,
		appointments: appointments,
		outbox:       ob,
		audit:        auditSink{audits: audits, logger: logger, metrics: metrics},
		metrics:      metrics,
	}
}

func (h *MarkAttendedHandler) Handle(ctx context.Context, cmd MarkAttendedCommand) error {
	if !cmd.Principal.IsStaff() {
		return shareddomain.NewUnauthorized("staff role required")
	}

	err := sharedapp.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		appt, err := h.appointments.FindByID(ctx, cmd.AppointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return shareddomain.NewNotFound("appointment not found")
		}
		if err := appt.MarkAttended(); err != nil {
			return err
		}
		if err := h.appointments.UpdateLifecycle(ctx, appt); err != nil {
			return err
		}
		return stageEvents(ctx, h.outbox, appt, sharedapp.NewEventMetadata(cmd.Principal.UserID))
	})
	if err != nil {
		return err
	}

	h.audit.append(ctx, domain.NewAuditEntry(
		cmd.AppointmentID, cmd.Principal.UserID, domain.AuditStatusChange, "status=ATTENDED"))
	h.metrics.Counter("booking.status_changed", 1, observability.T("status", "attended"))
	return nil
}
