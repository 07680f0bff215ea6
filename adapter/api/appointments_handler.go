package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velvetcut/booking/internal/booking/application/commands"
	"github.com/velvetcut/booking/internal/booking/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// AppointmentsHandler serves reservation and lifecycle endpoints.
type AppointmentsHandler struct {
	reserve         *commands.ReserveHandler
	cancel          *commands.CancelHandler
	markAttended    *commands.MarkAttendedHandler
	markNoShow      *commands.MarkNoShowHandler
	registerPayment *commands.RegisterPaymentHandler
	reschedule      *commands.RescheduleHandler
	inlineEdit      *commands.InlineEditHandler
}

func NewAppointmentsHandler(
	reserve *commands.ReserveHandler,
	cancel *commands.CancelHandler,
	markAttended *commands.MarkAttendedHandler,
	markNoShow *commands.MarkNoShowHandler,
	registerPayment *commands.RegisterPaymentHandler,
	reschedule *commands.RescheduleHandler,
	inlineEdit *commands.InlineEditHandler,
) *AppointmentsHandler {
	return &AppointmentsHandler{
		reserve:         reserve,
		cancel:          cancel,
		markAttended:    markAttended,
		markNoShow:      markNoShow,
		registerPayment: registerPayment,
		reschedule:      reschedule,
		inlineEdit:      inlineEdit,
	}
}

type customerInput struct {
	CustomerType string `json:"customer_type"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	BirthDate    string `json:"birth_date,omitempty"`
}

type reserveRequest struct {
	OptionID string        `json:"option_id"`
	Customer customerInput `json:"customer"`
}

type appointmentSummary struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Status        string    `json:"status"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// Reserve handles POST /public/appointments.
func (h *AppointmentsHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shareddomain.NewValidation("invalid request body"))
		return
	}

	input := commands.CustomerInput{
		Type:  domain.CustomerType(req.Customer.CustomerType),
		Name:  req.Customer.Name,
		Phone: req.Customer.Phone,
	}
	if req.Customer.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", req.Customer.BirthDate)
		if err != nil {
			writeError(w, shareddomain.NewValidation("birth_date must be YYYY-MM-DD"))
			return
		}
		input.BirthDate = &birthDate
	}

	result, err := h.reserve.Handle(r.Context(), commands.ReserveCommand{
		Principal: PrincipalFromContext(r.Context()),
		Token:     req.OptionID,
		Customer:  input,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentSummary{
		AppointmentID: result.AppointmentID,
		CustomerID:    result.CustomerID,
		Status:        string(result.Status),
		Start:         result.Start,
		End:           result.End,
	})
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason,omitempty"`
		Force  bool   `json:"force,omitempty"`
	}
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	err := h.cancel.Handle(r.Context(), commands.CancelCommand{
		Principal:     PrincipalFromContext(r.Context()),
		AppointmentID: id,
		Reason:        req.Reason,
		Force:         req.Force,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
}

// MarkAttended handles POST /appointments/{id}/attend.
func (h *AppointmentsHandler) MarkAttended(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	err := h.markAttended.Handle(r.Context(), commands.MarkAttendedCommand{
		Principal:     PrincipalFromContext(r.Context()),
		AppointmentID: id,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ATTENDED"})
}

// MarkNoShow handles POST /appointments/{id}/no-show.
func (h *AppointmentsHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	err := h.markNoShow.Handle(r.Context(), commands.MarkNoShowCommand{
		Principal:     PrincipalFromContext(r.Context()),
		AppointmentID: id,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "NO_SHOW"})
}

// RegisterPayment handles POST /appointments/{id}/payment.
func (h *AppointmentsHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		PaidTotal     decimal.Decimal `json:"paid_total"`
		PaymentMethod string          `json:"payment_method,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shareddomain.NewValidation("invalid request body"))
		return
	}

	err := h.registerPayment.Handle(r.Context(), commands.RegisterPaymentCommand{
		Principal:     PrincipalFromContext(r.Context()),
		AppointmentID: id,
		PaidTotal:     req.PaidTotal,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "recorded"})
}

// Reschedule handles POST /staff/appointments/{id}/reschedule.
func (h *AppointmentsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		OptionID string `json:"option_id"`
		Reason   string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shareddomain.NewValidation("invalid request body"))
		return
	}

	err := h.reschedule.Handle(r.Context(), commands.RescheduleCommand{
		Principal:     PrincipalFromContext(r.Context()),
		AppointmentID: id,
		Token:         req.OptionID,
		Reason:        req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "rescheduled"})
}

// InlineEdit handles POST /staff/appointments/{id}/inline-edit.
func (h *AppointmentsHandler) InlineEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		Start           *time.Time `json:"start,omitempty"`
		End             *time.Time `json:"end,omitempty"`
		DurationMinutes *int       `json:"duration_minutes,omitempty"`
		Status          *string    `json:"status,omitempty"`
		Note            string     `json:"note,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, shareddomain.NewValidation("invalid request body"))
		return
	}

	err := h.inlineEdit.Handle(r.Context(), commands.InlineEditCommand{
		Principal:       PrincipalFromContext(r.Context()),
		AppointmentID:   id,
		NewStart:        req.Start,
		NewEnd:          req.End,
		DurationMinutes: req.DurationMinutes,
		Status:          req.Status,
		Note:            req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "edited"})
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, shareddomain.NewValidation("invalid appointment id"))
		return uuid.Nil, false
	}
	return id, true
}

// decodeOptionalBody tolerates an empty body but rejects malformed JSON.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, shareddomain.NewValidation("invalid request body"))
		return false
	}
	return true
}
