package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/application/queries"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// AvailabilityHandler serves the public option generation endpoint.
type AvailabilityHandler struct {
	findOptions *queries.FindOptionsHandler
	defaults    AvailabilityDefaults
	location    *time.Location
}

// AvailabilityDefaults are applied when the request omits tuning knobs.
type AvailabilityDefaults struct {
	SlotIntervalMinutes int
	Limit               int
}

func NewAvailabilityHandler(findOptions *queries.FindOptionsHandler, defaults AvailabilityDefaults, location *time.Location) *AvailabilityHandler {
	return &AvailabilityHandler{findOptions: findOptions, defaults: defaults, location: location}
}

type findOptionsRequest struct {
	Date                string      `json:"date"`
	ServiceIDs          []uuid.UUID `json:"service_ids"`
	BarberChoice        string      `json:"barber_choice"`
	BarberID            *uuid.UUID  `json:"barber_id,omitempty"`
	SlotIntervalMinutes *int        `json:"slot_interval_minutes,omitempty"`
	Limit               *int        `json:"limit,omitempty"`
	TimeWindow          *timeWindow `json:"time_window,omitempty"`
}

type timeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FindOptions handles POST /availability/options.
func (h *AvailabilityHandler) FindOptions(w http.ResponseWriter, r *http.Request) {
	var req findOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shareddomain.NewValidation("invalid request body"))
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, h.location)
	if err != nil {
		writeError(w, shareddomain.NewValidation("date must be YYYY-MM-DD"))
		return
	}

	query := queries.FindOptionsQuery{
		Date:                date,
		ServiceIDs:          req.ServiceIDs,
		BarberChoice:        queries.BarberChoice(req.BarberChoice),
		BarberID:            req.BarberID,
		SlotIntervalMinutes: h.defaults.SlotIntervalMinutes,
		Limit:               h.defaults.Limit,
	}
	if req.SlotIntervalMinutes != nil {
		query.SlotIntervalMinutes = *req.SlotIntervalMinutes
	}
	if req.Limit != nil {
		query.Limit = *req.Limit
	}
	if req.TimeWindow != nil {
		query.WindowStart = &req.TimeWindow.Start
		query.WindowEnd = &req.TimeWindow.End
	}

	options, err := h.findOptions.Handle(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}
