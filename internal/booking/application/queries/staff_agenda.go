package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingdomain "github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// StaffAgendaQuery asks for the full shop agenda of one day.
type StaffAgendaQuery struct {
	Principal identitydomain.Principal
	Date      time.Time
	WorkerID  *uuid.UUID
	Status    *bookingdomain.AppointmentStatus
	Query     string
}

// AgendaServiceLine is one snapshotted service on an agenda block.
type AgendaServiceLine struct {
	ServiceID       uuid.UUID `json:"service_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration"`
	Price           string    `json:"price,omitempty"`
}

// AgendaBlockView is one block of an agenda appointment.
type AgendaBlockView struct {
	BlockID    uuid.UUID           `json:"block_id"`
	Sequence   int                 `json:"sequence"`
	WorkerID   uuid.UUID           `json:"worker_id"`
	WorkerName string              `json:"worker_name"`
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
	Services   []AgendaServiceLine `json:"services"`
}

// AgendaAppointmentView is one appointment row of a day view. Money and
// payment fields are only populated for staff viewers.
type AgendaAppointmentView struct {
	AppointmentID   uuid.UUID         `json:"appointment_id"`
	Status          string            `json:"status"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	GapTotalMinutes int               `json:"gap_total_minutes"`
	CustomerName    string            `json:"customer_name"`
	CustomerType    string            `json:"customer_type"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	Blocks          []AgendaBlockView `json:"blocks"`

	RecommendedTotal string     `json:"recommended_total,omitempty"`
	PaidTotal        string     `json:"paid_total,omitempty"`
	PaymentMethod    string     `json:"payment_method,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

// StaffAgendaHandler serves the staff day view.
type StaffAgendaHandler struct {
	agenda   bookingdomain.AgendaReader
	location *time.Location
}

func NewStaffAgendaHandler(agenda bookingdomain.AgendaReader, location *time.Location) *StaffAgendaHandler {
	return &StaffAgendaHandler{agenda: agenda, location: location}
}

func (h *StaffAgendaHandler) Handle(ctx context.Context, q StaffAgendaQuery) ([]AgendaAppointmentView, error) {
	if !q.Principal.IsStaff() {
		return nil, shareddomain.NewUnauthorized("staff role required")
	}

	from := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, h.location)
	to := from.AddDate(0, 0, 1)

	entries, err := h.agenda.ListDay(ctx, from, to, bookingdomain.AgendaFilter{
		WorkerID: q.WorkerID,
		Status:   q.Status,
		Query:    q.Query,
	})
	if err != nil {
		return nil, err
	}

	views := make([]AgendaAppointmentView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toAgendaView(e, true))
	}
	return views, nil
}

func toAgendaView(e bookingdomain.AgendaEntry, staffViewer bool) AgendaAppointmentView {
	appt := e.Appointment
	view := AgendaAppointmentView{
		AppointmentID:   appt.ID(),
		Status:          string(appt.Status()),
		Start:           appt.Start(),
		End:             appt.End(),
		GapTotalMinutes: appt.GapTotalMinutes(),
		CustomerName:    e.CustomerName,
		CustomerType:    string(e.CustomerType),
		Blocks:          make([]AgendaBlockView, 0, len(e.Blocks)),
	}
	if staffViewer {
		view.CustomerPhone = e.Phone
		view.RecommendedTotal = appt.RecommendedTotal().StringFixed(2)
		if appt.PaidTotal() != nil {
			view.PaidTotal = appt.PaidTotal().StringFixed(2)
		}
		if appt.PaymentMethod() != nil {
			view.PaymentMethod = string(*appt.PaymentMethod())
		}
		view.PaidAt = appt.PaidAt()
	}

	for _, b := range e.Blocks {
		lines := make([]AgendaServiceLine, 0, len(b.Lines))
		for _, l := range b.Lines {
			line := AgendaServiceLine{
				ServiceID:       l.ServiceID,
				Name:            l.Name,
				DurationMinutes: l.DurationMinutes,
			}
			if staffViewer {
				line.Price = l.Price.StringFixed(2)
			}
			lines = append(lines, line)
		}
		view.Blocks = append(view.Blocks, AgendaBlockView{
			BlockID:    b.BlockID,
			Sequence:   b.Sequence,
			WorkerID:   b.WorkerID,
			WorkerName: b.WorkerName,
			Start:      b.Start,
			End:        b.End,
			Services:   lines,
		})
	}
	return view
}
