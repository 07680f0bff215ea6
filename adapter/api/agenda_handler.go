package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/application/queries"
	bookingdomain "github.com/velvetcut/booking/internal/booking/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// AgendaHandler serves the staff and worker day views.
type AgendaHandler struct {
	staffAgenda  *queries.StaffAgendaHandler
	workerAgenda *queries.WorkerAgendaHandler
	location     *time.Location
}

func NewAgendaHandler(staffAgenda *queries.StaffAgendaHandler, workerAgenda *queries.WorkerAgendaHandler, location *time.Location) *AgendaHandler {
	return &AgendaHandler{staffAgenda: staffAgenda, workerAgenda: workerAgenda, location: location}
}

// StaffDay handles GET /agenda/staff.
func (h *AgendaHandler) StaffDay(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	query := queries.StaffAgendaQuery{
		Principal: PrincipalFromContext(r.Context()),
		Date:      date,
		Query:     r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("worker_id"); raw != "" {
		workerID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, shareddomain.NewValidation("invalid worker_id"))
			return
		}
		query.WorkerID = &workerID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := bookingdomain.AppointmentStatus(raw)
		query.Status = &status
	}

	views, err := h.staffAgenda.Handle(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// WorkerDay handles GET /agenda/my.
func (h *AgendaHandler) WorkerDay(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	views, err := h.workerAgenda.Handle(r.Context(), queries.WorkerAgendaQuery{
		Principal: PrincipalFromContext(r.Context()),
		Date:      date,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AgendaHandler) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, shareddomain.NewValidation("date is required"))
		return time.Time{}, false
	}
	date, err := time.ParseInLocation("2006-01-02", raw, h.location)
	if err != nil {
		writeError(w, shareddomain.NewValidation("date must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return date, true
}
