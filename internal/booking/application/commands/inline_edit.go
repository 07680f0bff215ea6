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
	"github.com/velvetcut/booking/pkg/observability"
)

// InlineEditCommand corrects an appointment in place without availability
// checks. Staff only; the audit trail is the control. A DurationMinutes
// without NewEnd implies end = start + duration. Status changes follow the
// regular lifecycle transitions.
type InlineEditCommand struct {
	Principal       identitydomain.Principal
	AppointmentID   uuid.UUID
	NewStart        *time.Time
	NewEnd          *time.Time
	DurationMinutes *int
	Status          *string
	Note            string
}

type InlineEditHandler struct {
	uow          sharedapp.UnitOfWork
	appointments domain.AppointmentRepository
	outbox       outbox.Repository
	audit        auditSink
	metrics      observability.Metrics
	now          func() time.Time
}

func NewInlineEditHandler(
	uow sharedapp.UnitOfWork,
	appointments domain.AppointmentRepository,
	ob outbox.Repository,
	audits domain.AuditRepository,
	logger *slog.Logger,
	metrics observability.Metrics,
) *InlineEditHandler {
	return &InlineEditHandler{
		uow:          uow,
		appointments: appointments,
		outbox:       ob,
		audit:        auditSink{audits: audits, logger: logger, metrics: metrics},
		metrics:      metrics,
		now:          time.Now,
	}
}

func (h *InlineEditHandler) Handle(ctx context.Context, cmd InlineEditCommand) error {
	if !cmd.Principal.IsStaff() {
		return shareddomain.NewUnauthorized("staff role required")
	}
	if cmd.NewStart == nil && cmd.NewEnd == nil && cmd.DurationMinutes == nil && cmd.Status == nil {
		return shareddomain.NewValidation("nothing to edit")
	}
	if cmd.NewEnd != nil && cmd.DurationMinutes != nil {
		return shareddomain.NewValidation("end and duration are mutually exclusive")
	}
	var targetStatus *domain.AppointmentStatus
	if cmd.Status != nil {
		st, err := domain.ParseAppointmentStatus(*cmd.Status)
		if err != nil {
			return err
		}
		targetStatus = &st
	}

	var beforeNote, afterNote string
	err := sharedapp.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		appt, err := h.appointments.FindByID(ctx, cmd.AppointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return shareddomain.NewNotFound("appointment not found")
		}

		beforeNote = fmt.Sprintf("%s %s-%s", appt.Status(),
			appt.Start().Format(time.RFC3339), appt.End().Format(time.RFC3339))

		if cmd.NewStart != nil || cmd.NewEnd != nil || cmd.DurationMinutes != nil {
			newStart := appt.Start()
			if cmd.NewStart != nil {
				newStart = *cmd.NewStart
			}
			newEnd := appt.End()
			switch {
			case cmd.DurationMinutes != nil:
				newEnd = newStart.Add(time.Duration(*cmd.DurationMinutes) * time.Minute)
			case cmd.NewEnd != nil:
				newEnd = *cmd.NewEnd
			case cmd.NewStart != nil:
				// Start-only edits keep the duration.
				newEnd = newStart.Add(appt.End().Sub(appt.Start()))
			}
			if err := appt.MoveTo(newStart, newEnd); err != nil {
				return err
			}
		}

		if targetStatus != nil && *targetStatus != appt.Status() {
			if err := h.applyStatus(appt, *targetStatus, cmd); err != nil {
				return err
			}
		}

		afterNote = fmt.Sprintf("%s %s-%s", appt.Status(),
			appt.Start().Format(time.RFC3339), appt.End().Format(time.RFC3339))

		if err := h.appointments.UpdateLifecycle(ctx, appt); err != nil {
			return err
		}
		if appt.Status() == domain.StatusCancelled {
			if err := h.appointments.DeleteBlocks(ctx, appt.ID()); err != nil {
				return err
			}
		} else if err := h.appointments.ReplaceBlocks(ctx, appt); err != nil {
			return err
		}
		return stageEvents(ctx, h.outbox, appt, sharedapp.NewEventMetadata(cmd.Principal.UserID))
	})
	if err != nil {
		return err
	}

	note := fmt.Sprintf("%s -> %s", beforeNote, afterNote)
	if cmd.Note != "" {
		note = fmt.Sprintf("%s; %s", note, cmd.Note)
	}
	h.audit.append(ctx, domain.NewAuditEntry(
		cmd.AppointmentID, cmd.Principal.UserID, domain.AuditInlineEdit, note))
	h.metrics.Counter("booking.inline_edited", 1)
	return nil
}

func (h *InlineEditHandler) applyStatus(appt *domain.Appointment, target domain.AppointmentStatus, cmd InlineEditCommand) error {
	switch target {
	case domain.StatusAttended:
		return appt.MarkAttended()
	case domain.StatusNoShow:
		return appt.MarkNoShow()
	case domain.StatusCancelled:
		return appt.Cancel(cmd.Principal.UserID, cmd.Note, h.now())
	default:
		return shareddomain.NewInvalidState(
			fmt.Sprintf("cannot move appointment back to %s", target))
	}
}
