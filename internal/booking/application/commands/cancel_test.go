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

var apptStart = time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

// storedAppointment builds a reserved appointment as it would come back
// from the repository: persisted, no pending events.
func storedAppointment(t *testing.T, repo *mockAppointmentRepo) *domain.Appointment {
	t.Helper()
	workerID, serviceID := uuid.New(), uuid.New()
	appt, err := domain.NewAppointment(uuid.New(), domain.ChannelClient,
		singleBlockPayload(workerID, serviceID, apptStart, 30),
		map[int][]domain.ServiceLine{1: {{
			ID: uuid.New(), ServiceID: serviceID, Name: "Classic Cut", DurationMinutes: 30,
		}}})
	require.NoError(t, err)
	appt.ClearDomainEvents()
	repo.appointments[appt.ID()] = appt
	return appt
}

type cancelFixture struct {
	uow          *mockUow
	appointments *mockAppointmentRepo
	outbox       *mockOutboxRepo
	audits       *mockAuditRepo
	handler      *CancelHandler
}

func newCancelFixture(now time.Time) *cancelFixture {
	f := &cancelFixture{
		uow:          &mockUow{},
		appointments: newMockAppointmentRepo(),
		outbox:       &mockOutboxRepo{},
		audits:       &mockAuditRepo{},
	}
	f.handler = NewCancelHandler(f.uow, f.appointments, f.outbox, f.audits,
		2*time.Hour, testLogger(), observability.NewInMemoryMetrics())
	f.handler.now = func() time.Time { return now }
	return f
}

func TestCancel(t *testing.T) {
	t.Run("within the window", func(t *testing.T) {
		f := newCancelFixture(apptStart.Add(-3 * time.Hour))
		appt := storedAppointment(t, f.appointments)
		by := uuid.New()

		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Principal{UserID: by, Role: identitydomain.RolePublic},
			AppointmentID: appt.ID(),
			Reason:        "cannot make it",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCancelled, appt.Status())
		assert.Equal(t, by, *appt.CancelledBy())
		assert.Equal(t, []uuid.UUID{appt.ID()}, f.appointments.deletedBlocks)
		assert.Equal(t, 1, f.appointments.updated)
		assert.Len(t, f.outbox.saved, 1)
		require.Len(t, f.audits.entries, 1)
		assert.Equal(t, domain.AuditCancel, f.audits.entries[0].Action)
		assert.Contains(t, f.audits.entries[0].Note, "cannot make it")
		assert.Equal(t, 1, f.uow.committed)
	})

	t.Run("inside the window is denied", func(t *testing.T) {
		f := newCancelFixture(apptStart.Add(-30 * time.Minute))
		appt := storedAppointment(t, f.appointments)

		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Anonymous(),
			AppointmentID: appt.ID(),
		})
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindPolicyDenied))
		assert.Equal(t, domain.StatusReserved, appt.Status())
		assert.Empty(t, f.appointments.deletedBlocks)
		assert.Equal(t, 1, f.uow.rolledBack)
	})

	t.Run("staff force bypasses the window", func(t *testing.T) {
		f := newCancelFixture(apptStart.Add(-30 * time.Minute))
		appt := storedAppointment(t, f.appointments)

		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Principal{UserID: uuid.New(), Role: identitydomain.RoleStaff},
			AppointmentID: appt.ID(),
			Force:         true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, appt.Status())
	})

	t.Run("staff without force is still bound", func(t *testing.T) {
		f := newCancelFixture(apptStart.Add(-30 * time.Minute))
		appt := storedAppointment(t, f.appointments)

		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Principal{UserID: uuid.New(), Role: identitydomain.RoleStaff},
			AppointmentID: appt.ID(),
		})
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindPolicyDenied))
	})

	t.Run("already cancelled is a no-op", func(t *testing.T) {
		f := newCancelFixture(apptStart.Add(-3 * time.Hour))
		appt := storedAppointment(t, f.appointments)
		require.NoError(t, appt.Cancel(uuid.New(), "first", apptStart.Add(-4*time.Hour)))
		appt.ClearDomainEvents()

		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Anonymous(),
			AppointmentID: appt.ID(),
		})
		require.NoError(t, err)
		assert.Equal(t, "first", appt.CancelledReason())
		assert.Empty(t, f.audits.entries)
		assert.Empty(t, f.appointments.deletedBlocks)
		assert.Empty(t, f.outbox.saved)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		f := newCancelFixture(apptStart)
		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Anonymous(),
			AppointmentID: uuid.New(),
		})
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindNotFound))
	})

	t.Run("terminal status cannot be cancelled", func(t *testing.T) {
		f := newCancelFixture(apptStart.Add(-3 * time.Hour))
		appt := storedAppointment(t, f.appointments)
		require.NoError(t, appt.MarkAttended())
		appt.ClearDomainEvents()

		err := f.handler.Handle(context.Background(), CancelCommand{
			Principal:     identitydomain.Principal{UserID: uuid.New(), Role: identitydomain.RoleStaff},
			AppointmentID: appt.ID(),
			Force:         true,
		})
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindInvalidState))
	})
}
