package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction classifies an audit trail entry.
type AuditAction string

const (
	AuditCreate          AuditAction = "CREATE"
	AuditReschedule      AuditAction = "RESCHEDULE"
	AuditCancel          AuditAction = "CANCEL"
	AuditStatusChange    AuditAction = "STATUS_CHANGE"
	AuditPaymentRecorded AuditAction = "PAYMENT_RECORDED"
	AuditInlineEdit      AuditAction = "INLINE_EDIT"
)

// AuditEntry is an append-only record of who did what to an appointment.
// Entries are written after the business transaction commits; a failed
// write is logged but never rolls the business change back.
type AuditEntry struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ActorID       uuid.UUID
	Action        AuditAction
	Note          string
	CreatedAt     time.Time
}

// NewAuditEntry builds an entry stamped now.
func NewAuditEntry(appointmentID, actorID uuid.UUID, action AuditAction, note string) AuditEntry {
	return AuditEntry{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		ActorID:       actorID,
		Action:        action,
		Note:          note,
		CreatedAt:     time.Now().UTC(),
	}
}
