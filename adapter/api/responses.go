package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError maps a domain error kind to its HTTP status. Internal errors
// never leak their message.
func writeError(w http.ResponseWriter, err error) {
	kind := shareddomain.KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(kind),
		Message: message,
	}})
}

func statusForKind(kind shareddomain.Kind) int {
	switch kind {
	case shareddomain.KindValidation,
		shareddomain.KindOptionInvalid,
		shareddomain.KindFrequentNotRegistered:
		return http.StatusBadRequest
	case shareddomain.KindUnauthorized,
		shareddomain.KindPolicyDenied:
		return http.StatusForbidden
	case shareddomain.KindNotFound:
		return http.StatusNotFound
	case shareddomain.KindInvalidState,
		shareddomain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
