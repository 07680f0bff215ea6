package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	"github.com/velvetcut/booking/pkg/observability"
)

type rescheduleFixture struct {
	uow          *mockUow
	appointments *mockAppointmentRepo
	staffing     *mockStaffingRepo
	outbox       *mockOutboxRepo
	audits       *mockAuditRepo
}

func newRescheduleFixture() *rescheduleFixture {
	return &rescheduleFixture{
		uow:          &mockUow{},
		appointments: newMockAppointmentRepo(),
		staffing:     &mockStaffingRepo{},
		outbox:       &mockOutboxRepo{},
		audits:       &mockAuditRepo{},
	}
}

func (f *rescheduleFixture) handler(verifier TokenVerifier, now time.Time) *RescheduleHandler {
	h := NewRescheduleHandler(f.uow, verifier, f.appointments, f.staffing,
		f.outbox, f.audits, 2*time.Hour, testLogger(), observability.NewInMemoryMetrics())
	h.now = func() time.Time { return now }
	return h
}

func staffPrincipal() identitydomain.Principal {
	return identitydomain.Principal{UserID: uuid.New(), Role: identitydomain.RoleStaff}
}

func TestRescheduleRequiresStaff(t *testing.T) {
	f := newRescheduleFixture()
	h := f.handler(stubVerifier{}, apptStart)

	err := h.Handle(context.Background(), RescheduleCommand{
		Principal:     identitydomain.Anonymous(),
		AppointmentID: uuid.New(),
		Token:         "tok",
	})
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindUnauthorized))
	assert.Zero(t, f.uow.begun)
}

func TestReschedule(t *testing.T) {
	f := newRescheduleFixture()
	appt := storedAppointment(t, f.appointments)
	workerID := appt.Blocks()[0].WorkerID
	serviceID := appt.Blocks()[0].Lines[0].ServiceID
	blockID := appt.Blocks()[0].ID

	newStart := apptStart.Add(2 * time.Hour)
	payload := singleBlockPayload(workerID, serviceID, newStart, 30)
	h := f.handler(stubVerifier{payload: payload}, apptStart.Add(-3*time.Hour))

	var excludeSeen *uuid.UUID
	f.appointments.existsOverlap = func(_ uuid.UUID, _, _ time.Time, excludeID *uuid.UUID) (bool, error) {
		excludeSeen = excludeID
		return false, nil
	}

	err := h.Handle(context.Background(), RescheduleCommand{
		Principal:     staffPrincipal(),
		AppointmentID: appt.ID(),
		Token:         "tok",
		Reason:        "barber out sick",
	})
	require.NoError(t, err)

	assert.Equal(t, newStart, appt.Start())
	assert.Equal(t, newStart.Add(30*time.Minute), appt.End())
	// Block identity and lines survive the move.
	assert.Equal(t, blockID, appt.Blocks()[0].ID)
	assert.Equal(t, serviceID, appt.Blocks()[0].Lines[0].ServiceID)

	// The overlap check excludes the appointment's own blocks.
	require.NotNil(t, excludeSeen)
	assert.Equal(t, appt.ID(), *excludeSeen)

	assert.Equal(t, 1, f.appointments.updated)
	assert.Equal(t, 1, f.appointments.replaced)
	assert.Len(t, f.outbox.saved, 1)
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, domain.AuditReschedule, f.audits.entries[0].Action)
	assert.Contains(t, f.audits.entries[0].Note, "barber out sick")
}

func TestRescheduleConflict(t *testing.T) {
	f := newRescheduleFixture()
	appt := storedAppointment(t, f.appointments)
	payload := singleBlockPayload(appt.Blocks()[0].WorkerID, appt.Blocks()[0].Lines[0].ServiceID,
		apptStart.Add(time.Hour), 30)
	h := f.handler(stubVerifier{payload: payload}, apptStart.Add(-3*time.Hour))

	f.appointments.existsOverlap = func(uuid.UUID, time.Time, time.Time, *uuid.UUID) (bool, error) {
		return true, nil
	}

	err := h.Handle(context.Background(), RescheduleCommand{
		Principal:     staffPrincipal(),
		AppointmentID: appt.ID(),
		Token:         "tok",
	})
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindConflict))
	assert.Equal(t, apptStart, appt.Start())
	assert.Equal(t, 1, f.uow.rolledBack)
}

func TestRescheduleDifferentWorker(t *testing.T) {
	f := newRescheduleFixture()
	appt := storedAppointment(t, f.appointments)
	payload := singleBlockPayload(uuid.New(), appt.Blocks()[0].Lines[0].ServiceID,
		apptStart.Add(time.Hour), 30)
	h := f.handler(stubVerifier{payload: payload}, apptStart.Add(-3*time.Hour))

	err := h.Handle(context.Background(), RescheduleCommand{
		Principal:     staffPrincipal(),
		AppointmentID: appt.ID(),
		Token:         "tok",
	})
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
	assert.Zero(t, f.appointments.replaced)
}

func TestReschedulePolicyWindow(t *testing.T) {
	f := newRescheduleFixture()
	appt := storedAppointment(t, f.appointments)
	payload := singleBlockPayload(appt.Blocks()[0].WorkerID, appt.Blocks()[0].Lines[0].ServiceID,
		apptStart.Add(time.Hour), 30)
	h := f.handler(stubVerifier{payload: payload}, apptStart.Add(-time.Hour))

	err := h.Handle(context.Background(), RescheduleCommand{
		Principal:     staffPrincipal(),
		AppointmentID: appt.ID(),
		Token:         "tok",
	})
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindPolicyDenied))
}

func TestRescheduleInvalidToken(t *testing.T) {
	f := newRescheduleFixture()
	h := f.handler(stubVerifier{err: shareddomain.NewOptionInvalid("bad mac")}, apptStart)

	err := h.Handle(context.Background(), RescheduleCommand{
		Principal:     staffPrincipal(),
		AppointmentID: uuid.New(),
		Token:         "tok",
	})
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindOptionInvalid))
	assert.Zero(t, f.uow.begun)
}
