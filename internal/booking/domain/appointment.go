package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusReserved  AppointmentStatus = "RESERVED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusAttended  AppointmentStatus = "ATTENDED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// IsTerminal reports whether no further lifecycle transition is allowed.
func (s AppointmentStatus) IsTerminal() bool {
	return s != StatusReserved
}

// Channel records where a reservation came from.
type Channel string

const (
	ChannelClient Channel = "CLIENT"
	ChannelStaff  Channel = "STAFF"
)

// PaymentMethod is how an appointment was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
)

// ParseAppointmentStatus normalizes and validates a status string.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusReserved, StatusCancelled, StatusAttended, StatusNoShow:
		return st, nil
	default:
		return "", shareddomain.NewValidation(fmt.Sprintf("unknown status %q", s))
	}
}

// ParsePaymentMethod normalizes and validates a payment method string.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return m, nil
	default:
		return "", shareddomain.NewValidation(fmt.Sprintf("unknown payment method %q", s))
	}
}

// ServiceLine is a point-in-time snapshot of a booked service, owned by a
// block. Later catalog edits never change what an existing appointment
// shows or charges.
type ServiceLine struct {
	ID                  uuid.UUID
	ServiceID           uuid.UUID
	Name                string
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	Price               decimal.Decimal
	// Position orders lines inside their block as the option listed them.
	Position int
}

// Block is one worker's committed time range within an appointment,
// carrying the snapshotted lines of the services it covers. The database
// enforces uniqueness of (worker, start), so two reservations can never
// land the same worker on the same instant.
type Block struct {
	ID       uuid.UUID
	Sequence int
	WorkerID uuid.UUID
	Start    time.Time
	End      time.Time
	Lines    []ServiceLine
}

// Interval returns the block's occupied range.
func (b Block) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ServiceIDs returns the snapshotted service ids in line order.
func (b Block) ServiceIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(b.Lines))
	for _, l := range b.Lines {
		out = append(out, l.ServiceID)
	}
	return out
}

// Appointment is the booking aggregate: a customer, one or more worker
// blocks with service line snapshots, money totals and a lifecycle status.
type Appointment struct {
	shareddomain.BaseAggregateRoot
	customerID      uuid.UUID
	status          AppointmentStatus
	start           time.Time
	end             time.Time
	channel         Channel
	gapTotalMinutes int

	recommendedSubtotal decimal.Decimal
	recommendedDiscount decimal.Decimal
	recommendedTotal    decimal.Decimal

	paidTotal     *decimal.Decimal
	paymentMethod *PaymentMethod
	paidAt        *time.Time
	paidBy        *uuid.UUID

	cancelledAt     *time.Time
	cancelledBy     *uuid.UUID
	cancelledReason string

	blocks []Block
}

// NewAppointment reserves an appointment from a validated option payload
// and per-block service line snapshots, keyed by block sequence. Blocks
// must be ordered by start; availability and locking are the caller's
// responsibility.
func NewAppointment(
	customerID uuid.UUID,
	channel Channel,
	payload OptionPayload,
	linesBySequence map[int][]ServiceLine,
) (*Appointment, error) {
	if len(payload.Blocks) == 0 {
		return nil, shareddomain.NewValidation("appointment requires at least one block")
	}

	blocks := make([]Block, 0, len(payload.Blocks))
	subtotal := decimal.Zero
	for _, ob := range payload.Blocks {
		if !ob.End.After(ob.Start) {
			return nil, shareddomain.NewValidation("block end must be after start")
		}
		lines := linesBySequence[ob.Sequence]
		if len(lines) == 0 {
			return nil, shareddomain.NewValidation("block requires at least one service line")
		}
		for _, l := range lines {
			subtotal = subtotal.Add(l.Price)
		}
		blocks = append(blocks, Block{
			ID:       uuid.New(),
			Sequence: ob.Sequence,
			WorkerID: ob.WorkerID,
			Start:    ob.Start,
			End:      ob.End,
			Lines:    lines,
		})
	}

	appt := &Appointment{
		BaseAggregateRoot:   shareddomain.NewBaseAggregateRoot(),
		customerID:          customerID,
		status:              StatusReserved,
		start:               payload.Start,
		end:                 payload.End,
		channel:             channel,
		gapTotalMinutes:     payload.GapMinutes(),
		recommendedSubtotal: subtotal,
		recommendedDiscount: decimal.Zero,
		recommendedTotal:    subtotal,
		blocks:              blocks,
	}
	appt.AddDomainEvent(NewAppointmentReserved(appt))
	return appt, nil
}

// RehydrateAppointment reconstructs an appointment from storage.
func RehydrateAppointment(
	id uuid.UUID,
	customerID uuid.UUID,
	status AppointmentStatus,
	start, end time.Time,
	channel Channel,
	gapTotalMinutes int,
	recommendedSubtotal, recommendedDiscount, recommendedTotal decimal.Decimal,
	paidTotal *decimal.Decimal,
	paymentMethod *PaymentMethod,
	paidAt *time.Time,
	paidBy *uuid.UUID,
	cancelledAt *time.Time,
	cancelledBy *uuid.UUID,
	cancelledReason string,
	blocks []Block,
	createdAt, updatedAt time.Time,
) *Appointment {
	return &Appointment{
		BaseAggregateRoot: shareddomain.RehydrateBaseAggregateRoot(
			shareddomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		),
		customerID:          customerID,
		status:              status,
		start:               start,
		end:                 end,
		channel:             channel,
		gapTotalMinutes:     gapTotalMinutes,
		recommendedSubtotal: recommendedSubtotal,
		recommendedDiscount: recommendedDiscount,
		recommendedTotal:    recommendedTotal,
		paidTotal:           paidTotal,
		paymentMethod:       paymentMethod,
		paidAt:              paidAt,
		paidBy:              paidBy,
		cancelledAt:         cancelledAt,
		cancelledBy:         cancelledBy,
		cancelledReason:     cancelledReason,
		blocks:              blocks,
	}
}

func (a *Appointment) CustomerID() uuid.UUID                { return a.customerID }
func (a *Appointment) Status() AppointmentStatus            { return a.status }
func (a *Appointment) Start() time.Time                     { return a.start }
func (a *Appointment) End() time.Time                       { return a.end }
func (a *Appointment) Channel() Channel                     { return a.channel }
func (a *Appointment) GapTotalMinutes() int                 { return a.gapTotalMinutes }
func (a *Appointment) RecommendedSubtotal() decimal.Decimal { return a.recommendedSubtotal }
func (a *Appointment) RecommendedDiscount() decimal.Decimal { return a.recommendedDiscount }
func (a *Appointment) RecommendedTotal() decimal.Decimal    { return a.recommendedTotal }
func (a *Appointment) PaidTotal() *decimal.Decimal          { return a.paidTotal }
func (a *Appointment) PaymentMethod() *PaymentMethod        { return a.paymentMethod }
func (a *Appointment) PaidAt() *time.Time                   { return a.paidAt }
func (a *Appointment) PaidBy() *uuid.UUID                   { return a.paidBy }
func (a *Appointment) CancelledAt() *time.Time              { return a.cancelledAt }
func (a *Appointment) CancelledBy() *uuid.UUID              { return a.cancelledBy }
func (a *Appointment) CancelledReason() string              { return a.cancelledReason }
func (a *Appointment) Blocks() []Block                      { return a.blocks }

// WorkerIDs returns the distinct workers across blocks, in block order.
func (a *Appointment) WorkerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a.blocks))
	out := make([]uuid.UUID, 0, len(a.blocks))
	for _, b := range a.blocks {
		if _, ok := seen[b.WorkerID]; ok {
			continue
		}
		seen[b.WorkerID] = struct{}{}
		out = append(out, b.WorkerID)
	}
	return out
}

// Lines returns every service line across blocks, in block order.
func (a *Appointment) Lines() []ServiceLine {
	var out []ServiceLine
	for _, b := range a.blocks {
		out = append(out, b.Lines...)
	}
	return out
}

// Cancel transitions a reserved appointment to CANCELLED. The caller
// deletes the blocks afterwards so the time frees up on the calendar.
// Cancelling an already cancelled appointment is a no-op.
func (a *Appointment) Cancel(by uuid.UUID, reason string, at time.Time) error {
	if a.status == StatusCancelled {
		return nil
	}
	if a.status.IsTerminal() {
		return shareddomain.NewInvalidState(
			fmt.Sprintf("cannot cancel appointment in status %s", a.status))
	}
	a.status = StatusCancelled
	a.cancelledAt = &at
	a.cancelledBy = &by
	a.cancelledReason = reason
	a.Touch()
	a.AddDomainEvent(NewAppointmentCancelled(a))
	return nil
}

// MarkAttended records that the customer showed up.
func (a *Appointment) MarkAttended() error {
	if err := a.ensureTransitionable("mark attended"); err != nil {
		return err
	}
	a.status = StatusAttended
	a.Touch()
	a.AddDomainEvent(NewAppointmentStatusChanged(a, StatusAttended))
	return nil
}

// MarkNoShow records that the customer did not show up.
func (a *Appointment) MarkNoShow() error {
	if err := a.ensureTransitionable("mark no-show"); err != nil {
		return err
	}
	a.status = StatusNoShow
	a.Touch()
	a.AddDomainEvent(NewAppointmentStatusChanged(a, StatusNoShow))
	return nil
}

// RegisterPayment records what was actually paid. It never changes status;
// it typically follows MarkAttended. A nil method leaves any previously
// recorded method untouched.
func (a *Appointment) RegisterPayment(paidTotal decimal.Decimal, method *PaymentMethod, by uuid.UUID, at time.Time) error {
	if paidTotal.IsNegative() {
		return shareddomain.NewValidation("paid total cannot be negative")
	}
	a.paidTotal = &paidTotal
	if method != nil {
		a.paymentMethod = method
	}
	a.paidAt = &at
	a.paidBy = &by
	a.Touch()
	a.AddDomainEvent(NewAppointmentPaymentRecorded(a, a.paymentMethod, paidTotal))
	return nil
}

// Reschedule moves a reserved appointment to the times of a new option
// payload. Workers stay the same and every block keeps its identity and
// service lines; only times and sequence change. Availability and locking
// are re-validated by the caller before this is persisted.
func (a *Appointment) Reschedule(payload OptionPayload) error {
	if a.status != StatusReserved {
		return shareddomain.NewInvalidState(
			fmt.Sprintf("cannot reschedule appointment in status %s", a.status))
	}
	if !sameWorkerSet(a.WorkerIDs(), payload.WorkerIDs()) {
		return shareddomain.NewValidation("reschedule must keep the same workers")
	}
	if len(payload.Blocks) != len(a.blocks) {
		return shareddomain.NewValidation("reschedule must keep the same number of blocks")
	}

	// Match payload blocks to existing blocks by worker, consuming each
	// existing block once.
	used := make([]bool, len(a.blocks))
	assign := make([]int, len(payload.Blocks))
	for i, ob := range payload.Blocks {
		found := -1
		for j := range a.blocks {
			if !used[j] && a.blocks[j].WorkerID == ob.WorkerID {
				found = j
				break
			}
		}
		if found < 0 {
			return shareddomain.NewValidation("reschedule must keep the same workers")
		}
		used[found] = true
		assign[i] = found
	}

	oldStart := a.start
	for i, ob := range payload.Blocks {
		b := &a.blocks[assign[i]]
		b.Sequence = ob.Sequence
		b.Start = ob.Start
		b.End = ob.End
	}
	sort.Slice(a.blocks, func(i, j int) bool { return a.blocks[i].Sequence < a.blocks[j].Sequence })
	a.start = payload.Start
	a.end = payload.End
	a.gapTotalMinutes = payload.GapMinutes()
	a.Touch()
	a.AddDomainEvent(NewAppointmentRescheduled(a, oldStart))
	return nil
}

// MoveTo shifts the appointment to a new [start, end) without any
// availability check. Blocks move by the start delta; if the overall
// duration changes, the last block absorbs the difference. Used by staff
// inline edits, where the audit trail is the control; the edit applies
// regardless of status so records can be corrected after the fact.
func (a *Appointment) MoveTo(newStart, newEnd time.Time) error {
	if !newEnd.After(newStart) {
		return shareddomain.NewValidation("end must be after start")
	}

	delta := newStart.Sub(a.start)
	for i := range a.blocks {
		a.blocks[i].Start = a.blocks[i].Start.Add(delta)
		a.blocks[i].End = a.blocks[i].End.Add(delta)
	}
	if last := a.latestBlock(); last != nil && !last.End.Equal(newEnd) {
		if !newEnd.After(last.Start) {
			return shareddomain.NewValidation("end would invert the final block")
		}
		last.End = newEnd
	}

	a.start = newStart
	a.end = newEnd
	a.recomputeGap()
	a.Touch()
	return nil
}

func (a *Appointment) latestBlock() *Block {
	if len(a.blocks) == 0 {
		return nil
	}
	latest := &a.blocks[0]
	for i := range a.blocks[1:] {
		if a.blocks[i+1].End.After(latest.End) {
			latest = &a.blocks[i+1]
		}
	}
	return latest
}

func (a *Appointment) recomputeGap() {
	ordered := make([]Block, len(a.blocks))
	copy(ordered, a.blocks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })
	gap := 0
	for i := 1; i < len(ordered); i++ {
		d := ordered[i].Start.Sub(ordered[i-1].End)
		if d > 0 {
			gap += int(d / time.Minute)
		}
	}
	a.gapTotalMinutes = gap
}

func (a *Appointment) ensureTransitionable(action string) error {
	if a.status.IsTerminal() {
		return shareddomain.NewInvalidState(
			fmt.Sprintf("cannot %s appointment in status %s", action, a.status))
	}
	return nil
}

func sameWorkerSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
