package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/domain"
	catalogdomain "github.com/velvetcut/booking/internal/catalog/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	sharedapp "github.com/velvetcut/booking/internal/shared/application"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	staffingdomain "github.com/velvetcut/booking/internal/staffing/domain"
	"github.com/velvetcut/booking/pkg/observability"
)

// CustomerInput is the customer half of a reservation request.
type CustomerInput struct {
	Type      domain.CustomerType
	Name      string
	Phone     string
	BirthDate *time.Time
}

// ReserveCommand materializes an option token into an appointment.
type ReserveCommand struct {
	Principal identitydomain.Principal
	Token     string
	Customer  CustomerInput
}

// ReserveResult is the created appointment's summary.
type ReserveResult struct {
	AppointmentID uuid.UUID
	CustomerID    uuid.UUID
	Start         time.Time
	End           time.Time
	Status        domain.AppointmentStatus
}

// ReserveHandler turns a verified option into persistent state. Double
// booking is prevented twice over: worker row locks plus an overlap query
// inside the transaction, and the storage unique constraint on
// (worker, start) as the last line of defense.
type ReserveHandler struct {
	uow          sharedapp.UnitOfWork
	tokens       TokenVerifier
	guard        ConsumedGuard
	appointments domain.AppointmentRepository
	customers    domain.CustomerRepository
	catalog      catalogdomain.Repository
	staffing     staffingdomain.Repository
	outbox       outbox.Repository
	audit        auditSink
	logger       *slog.Logger
	metrics      observability.Metrics
}

func NewReserveHandler(
	uow sharedapp.UnitOfWork,
	tokens TokenVerifier,
	guard ConsumedGuard,
	appointments domain.AppointmentRepository,
	customers domain.CustomerRepository,
	catalog catalogdomain.Repository,
	staffing staffingdomain.Repository,
	ob outbox.Repository,
	audits domain.AuditRepository,
	logger *slog.Logger,
	metrics observability.Metrics,
) *ReserveHandler {
	return &ReserveHandler{
		uow:          uow,
		tokens:       tokens,
		guard:        guard,
		appointments: appointments,
		customers:    customers,
		catalog:      catalog,
		staffing:     staffing,
		outbox:       ob,
		audit:        auditSink{audits: audits, logger: logger, metrics: metrics},
		logger:       logger,
		metrics:      metrics,
	}
}

func (h *ReserveHandler) Handle(ctx context.Context, cmd ReserveCommand) (*ReserveResult, error) {
	payload, err := h.tokens.Verify(cmd.Token)
	if err != nil {
		h.metrics.Counter("booking.reserve_rejected", 1, observability.T("reason", "option_invalid"))
		return nil, err
	}

	// Fast duplicate-submit rejection. Unavailability of the guard only
	// skips the shortcut; the database still decides the winner.
	if h.guard != nil {
		used, guardErr := h.guard.Consumed(ctx, payload.Signature())
		if guardErr != nil {
			h.logger.WarnContext(ctx, "consumed-token guard unavailable", slog.String("error", guardErr.Error()))
		} else if used {
			h.metrics.Counter("booking.reserve_rejected", 1, observability.T("reason", "token_reused"))
			return nil, shareddomain.NewConflict("option already used")
		}
	}

	lines, err := h.snapshotLines(ctx, payload)
	if err != nil {
		return nil, err
	}

	var result *ReserveResult
	err = sharedapp.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		customer, err := h.resolveCustomer(ctx, cmd.Customer)
		if err != nil {
			return err
		}

		if err := lockAndCheckAvailability(ctx, h.staffing, h.appointments, payload, nil); err != nil {
			return err
		}

		channel := domain.ChannelClient
		if cmd.Principal.IsStaff() {
			channel = domain.ChannelStaff
		}
		appt, err := domain.NewAppointment(customer.ID(), channel, payload, lines)
		if err != nil {
			return err
		}
		if err := h.appointments.Create(ctx, appt); err != nil {
			return err
		}
		if err := stageEvents(ctx, h.outbox, appt, sharedapp.NewEventMetadata(cmd.Principal.UserID)); err != nil {
			return err
		}

		result = &ReserveResult{
			AppointmentID: appt.ID(),
			CustomerID:    customer.ID(),
			Start:         appt.Start(),
			End:           appt.End(),
			Status:        appt.Status(),
		}
		return nil
	})
	if err != nil {
		if shareddomain.IsKind(err, shareddomain.KindConflict) {
			h.metrics.Counter("booking.reserve_rejected", 1, observability.T("reason", "conflict"))
		}
		return nil, err
	}

	// The token is spent only once its reservation committed. A failed
	// attempt leaves it valid for a retry.
	if h.guard != nil {
		if guardErr := h.guard.MarkConsumed(ctx, payload.Signature()); guardErr != nil {
			h.logger.WarnContext(ctx, "consumed-token guard unavailable", slog.String("error", guardErr.Error()))
		}
	}

	channel := "CLIENT"
	if cmd.Principal.IsStaff() {
		channel = "STAFF"
	}
	h.audit.append(ctx, domain.NewAuditEntry(
		result.AppointmentID, cmd.Principal.UserID, domain.AuditCreate,
		fmt.Sprintf("channel=%s start=%s", channel, result.Start.Format(time.RFC3339))))
	h.metrics.Counter("booking.reserved", 1, observability.T("channel", channel))
	return result, nil
}

// resolveCustomer applies the customer rules: FREQUENT must pre-exist and
// is matched by (phone, birth_date); CASUAL is always created fresh from a
// name. Runs inside the transaction so a conflict rolls the row back.
func (h *ReserveHandler) resolveCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	switch input.Type {
	case domain.CustomerFrequent:
		phone := strings.TrimSpace(input.Phone)
		if phone == "" || input.BirthDate == nil {
			return nil, shareddomain.NewValidation("frequent customers require phone and birth date")
		}
		customer, err := h.customers.FindFrequent(ctx, phone, *input.BirthDate)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			return nil, shareddomain.NewFrequentNotRegistered("no registered customer matches phone and birth date")
		}
		if customer.SyncName(input.Name) {
			if err := h.customers.UpdateName(ctx, customer); err != nil {
				return nil, err
			}
		}
		return customer, nil
	case domain.CustomerCasual:
		customer, err := domain.NewCasualCustomer(input.Name)
		if err != nil {
			return nil, err
		}
		if err := h.customers.Create(ctx, customer); err != nil {
			return nil, err
		}
		return customer, nil
	default:
		return nil, shareddomain.NewValidation(fmt.Sprintf("unknown customer type %q", input.Type))
	}
}

// snapshotLines resolves the payload's services and freezes name, duration,
// buffers and price per block. Every service must still be active.
func (h *ReserveHandler) snapshotLines(ctx context.Context, payload domain.OptionPayload) (map[int][]domain.ServiceLine, error) {
	ids := payload.ServiceIDs()
	svcs, err := h.catalog.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(svcs) != len(ids) {
		return nil, shareddomain.NewValidation("one or more services are unknown or inactive")
	}
	byID := make(map[uuid.UUID]catalogdomain.Service, len(svcs))
	for _, s := range svcs {
		byID[s.ID] = s
	}

	lines := make(map[int][]domain.ServiceLine, len(payload.Blocks))
	for _, block := range payload.Blocks {
		for pos, sid := range block.ServiceIDs {
			s := byID[sid]
			lines[block.Sequence] = append(lines[block.Sequence], domain.ServiceLine{
				ID:                  uuid.New(),
				ServiceID:           s.ID,
				Name:                s.Name,
				DurationMinutes:     s.DurationMinutes,
				BufferBeforeMinutes: s.BufferBeforeMinutes,
				BufferAfterMinutes:  s.BufferAfterMinutes,
				Price:               s.Price,
				Position:            pos,
			})
		}
	}
	return lines, nil
}
