package queries

import (
	"context"
	"time"

	bookingdomain "github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// WorkerAgendaQuery asks for the caller's own day view. The principal must
// be bound to a worker record.
type WorkerAgendaQuery struct {
	Principal identitydomain.Principal
	Date      time.Time
}

// WorkerAgendaHandler serves a worker their appointments for a day:
// appointments with at least one block assigned to them, without money or
// payment fields.
type WorkerAgendaHandler struct {
	agenda   bookingdomain.AgendaReader
	location *time.Location
}

func NewWorkerAgendaHandler(agenda bookingdomain.AgendaReader, location *time.Location) *WorkerAgendaHandler {
	return &WorkerAgendaHandler{agenda: agenda, location: location}
}

func (h *WorkerAgendaHandler) Handle(ctx context.Context, q WorkerAgendaQuery) ([]AgendaAppointmentView, error) {
	if q.Principal.WorkerID == nil {
		return nil, shareddomain.NewUnauthorized("caller is not bound to a worker")
	}

	from := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, h.location)
	to := from.AddDate(0, 0, 1)

	entries, err := h.agenda.ListDay(ctx, from, to, bookingdomain.AgendaFilter{
		WorkerID: q.Principal.WorkerID,
	})
	if err != nil {
		return nil, err
	}

	views := make([]AgendaAppointmentView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toAgendaView(e, false))
	}
	return views, nil
}
