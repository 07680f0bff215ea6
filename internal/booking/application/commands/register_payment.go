package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	sharedapp "github.com/velvetcut/booking/internal/shared/application"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	"github.com/velvetcut/booking/pkg/observability"
)

// RegisterPaymentCommand captures what was actually paid. Staff only; it
// never changes the appointment status.
type RegisterPaymentCommand struct {
	Principal     identitydomain.Principal
	AppointmentID uuid.UUID
	PaidTotal     decimal.Decimal
	PaymentMethod string
}

type RegisterPaymentHandler struct {
	uow          sharedapp.UnitOfWork
	appointments domain.AppointmentRepository
	outbox       outbox.Repository
	audit        auditSink
	metrics      observability.Metrics
	now          func() time.Time
}

func NewRegisterPaymentHandler(
	uow sharedapp.UnitOfWork,
	appointments domain.AppointmentRepository,
	ob outbox.Repository,
	audits domain.AuditRepository,
	logger *slog.Logger,
	metrics observability.Metrics,
) *RegisterPaymentHandler {
	return &RegisterPaymentHandler{
		uow:          uow,
		appointments: appointments,
		outbox:       ob,
		audit:        auditSink{audits: audits, logger: logger, metrics: metrics},
		metrics:      metrics,
		now:          time.Now,
	}
}

func (h *RegisterPaymentHandler) Handle(ctx context.Context, cmd RegisterPaymentCommand) error {
	if !cmd.Principal.IsStaff() {
		return shareddomain.NewUnauthorized("staff role required")
	}
	var method *domain.PaymentMethod
	if cmd.PaymentMethod != "" {
		m, err := domain.ParsePaymentMethod(cmd.PaymentMethod)
		if err != nil {
			return err
		}
		method = &m
	}

	err := sharedapp.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		appt, err := h.appointments.FindByID(ctx, cmd.AppointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return shareddomain.NewNotFound("appointment not found")
		}
		if err := appt.RegisterPayment(cmd.PaidTotal, method, cmd.Principal.UserID, h.now()); err != nil {
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

	methodLabel := "unspecified"
	if method != nil {
		methodLabel = string(*method)
	}
	h.audit.append(ctx, domain.NewAuditEntry(
		cmd.AppointmentID, cmd.Principal.UserID, domain.AuditPaymentRecorded,
		fmt.Sprintf("paid_total=%s method=%s", cmd.PaidTotal.StringFixed(2), methodLabel)))
	h.metrics.Counter("booking.payment_recorded", 1, observability.T("method", methodLabel))
	return nil
}
