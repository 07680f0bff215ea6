package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

const aggregateTypeAppointment = "appointment"

// AppointmentReserved fires when a reservation commits.
type AppointmentReserved struct {
	shareddomain.BaseEvent
	CustomerID uuid.UUID   `json:"customer_id"`
	WorkerIDs  []uuid.UUID `json:"worker_ids"`
	ServiceIDs []uuid.UUID `json:"service_ids"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	TotalPrice string      `json:"total_price"`
}

func NewAppointmentReserved(a *Appointment) *AppointmentReserved {
	lines := a.Lines()
	serviceIDs := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		serviceIDs = append(serviceIDs, l.ServiceID)
	}
	return &AppointmentReserved{
		BaseEvent:  shareddomain.NewBaseEvent(a.ID(), aggregateTypeAppointment, "booking.appointment.reserved"),
		CustomerID: a.customerID,
		WorkerIDs:  a.WorkerIDs(),
		ServiceIDs: serviceIDs,
		Start:      a.start,
		End:        a.end,
		TotalPrice: a.recommendedTotal.String(),
	}
}

// AppointmentCancelled fires when an appointment is cancelled and its
// blocks are released.
type AppointmentCancelled struct {
	shareddomain.BaseEvent
	CustomerID uuid.UUID   `json:"customer_id"`
	WorkerIDs  []uuid.UUID `json:"worker_ids"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
}

func NewAppointmentCancelled(a *Appointment) *AppointmentCancelled {
	return &AppointmentCancelled{
		BaseEvent:  shareddomain.NewBaseEvent(a.ID(), aggregateTypeAppointment, "booking.appointment.cancelled"),
		CustomerID: a.customerID,
		WorkerIDs:  a.WorkerIDs(),
		Start:      a.start,
		End:        a.end,
	}
}

// AppointmentRescheduled fires when an appointment moves to new times.
type AppointmentRescheduled struct {
	shareddomain.BaseEvent
	CustomerID    uuid.UUID `json:"customer_id"`
	PreviousStart time.Time `json:"previous_start"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

func NewAppointmentRescheduled(a *Appointment, previousStart time.Time) *AppointmentRescheduled {
	return &AppointmentRescheduled{
		BaseEvent:     shareddomain.NewBaseEvent(a.ID(), aggregateTypeAppointment, "booking.appointment.rescheduled"),
		CustomerID:    a.customerID,
		PreviousStart: previousStart,
		Start:         a.start,
		End:           a.end,
	}
}

// AppointmentStatusChanged fires on attendance outcomes.
type AppointmentStatusChanged struct {
	shareddomain.BaseEvent
	CustomerID uuid.UUID         `json:"customer_id"`
	Status     AppointmentStatus `json:"status"`
}

func NewAppointmentStatusChanged(a *Appointment, status AppointmentStatus) *AppointmentStatusChanged {
	return &AppointmentStatusChanged{
		BaseEvent:  shareddomain.NewBaseEvent(a.ID(), aggregateTypeAppointment, "booking.appointment.status_changed"),
		CustomerID: a.customerID,
		Status:     status,
	}
}

// AppointmentPaymentRecorded fires when a payment is captured.
type AppointmentPaymentRecorded struct {
	shareddomain.BaseEvent
	CustomerID uuid.UUID `json:"customer_id"`
	Method     string    `json:"method,omitempty"`
	Amount     string    `json:"amount"`
}

func NewAppointmentPaymentRecorded(a *Appointment, method *PaymentMethod, amount decimal.Decimal) *AppointmentPaymentRecorded {
	e := &AppointmentPaymentRecorded{
		BaseEvent:  shareddomain.NewBaseEvent(a.ID(), aggregateTypeAppointment, "booking.appointment.payment_recorded"),
		CustomerID: a.customerID,
		Amount:     amount.String(),
	}
	if method != nil {
		e.Method = string(*method)
	}
	return e
}
