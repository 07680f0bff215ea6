package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetcut/booking/internal/booking/application/queries"
	bookingdomain "github.com/velvetcut/booking/internal/booking/domain"
	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// mockAgenda is a test double for bookingdomain.AgendaReader.
type mockAgenda struct {
	entries    []bookingdomain.AgendaEntry
	lastFilter bookingdomain.AgendaFilter
	lastFrom   time.Time
	lastTo     time.Time
}

func (m *mockAgenda) ListDay(_ context.Context, from, to time.Time, filter bookingdomain.AgendaFilter) ([]bookingdomain.AgendaEntry, error) {
	m.lastFrom, m.lastTo, m.lastFilter = from, to, filter
	return m.entries, nil
}

func agendaEntry(workerID uuid.UUID) bookingdomain.AgendaEntry {
	start := onMonday(9, 0)
	end := onMonday(9, 30)
	paidTotal := decimal.RequireFromString("35.00")
	method := bookingdomain.PaymentCash
	paidAt := onMonday(9, 35)

	appt := bookingdomain.RehydrateAppointment(
		uuid.New(), uuid.New(), bookingdomain.StatusAttended, start, end,
		bookingdomain.ChannelClient, 0,
		decimal.RequireFromString("35.00"), decimal.Zero, decimal.RequireFromString("35.00"),
		&paidTotal, &method, &paidAt, nil,
		nil, nil, "",
		nil, start.Add(-time.Hour), start.Add(-time.Hour))

	return bookingdomain.AgendaEntry{
		Appointment:  appt,
		CustomerName: "Ana Soto",
		CustomerType: bookingdomain.CustomerCasual,
		Phone:        "555-0101",
		Blocks: []bookingdomain.AgendaBlock{{
			BlockID:    uuid.New(),
			Sequence:   1,
			WorkerID:   workerID,
			WorkerName: "Marco",
			Start:      start,
			End:        end,
			Lines: []bookingdomain.ServiceLine{{
				ID:              uuid.New(),
				ServiceID:       uuid.New(),
				Name:            "Classic Cut",
				DurationMinutes: 30,
				Price:           decimal.RequireFromString("35.00"),
			}},
		}},
	}
}

func TestStaffAgenda(t *testing.T) {
	workerID := uuid.New()
	staff := identitydomain.Principal{UserID: uuid.New(), Role: identitydomain.RoleStaff}

	t.Run("staff sees phone, prices and payment", func(t *testing.T) {
		agenda := &mockAgenda{entries: []bookingdomain.AgendaEntry{agendaEntry(workerID)}}
		h := queries.NewStaffAgendaHandler(agenda, time.UTC)

		views, err := h.Handle(context.Background(), queries.StaffAgendaQuery{
			Principal: staff,
			Date:      monday,
		})
		require.NoError(t, err)
		require.Len(t, views, 1)

		view := views[0]
		assert.Equal(t, "ATTENDED", view.Status)
		assert.Equal(t, "555-0101", view.CustomerPhone)
		assert.Equal(t, "35.00", view.RecommendedTotal)
		assert.Equal(t, "35.00", view.PaidTotal)
		assert.Equal(t, "CASH", view.PaymentMethod)
		require.Len(t, view.Blocks, 1)
		assert.Equal(t, "Marco", view.Blocks[0].WorkerName)
		require.Len(t, view.Blocks[0].Services, 1)
		assert.Equal(t, "35.00", view.Blocks[0].Services[0].Price)

		// The day window is [midnight, next midnight).
		assert.Equal(t, monday, agenda.lastFrom)
		assert.Equal(t, monday.AddDate(0, 0, 1), agenda.lastTo)
	})

	t.Run("filters pass through", func(t *testing.T) {
		agenda := &mockAgenda{}
		h := queries.NewStaffAgendaHandler(agenda, time.UTC)
		status := bookingdomain.StatusReserved

		_, err := h.Handle(context.Background(), queries.StaffAgendaQuery{
			Principal: staff,
			Date:      monday,
			WorkerID:  &workerID,
			Status:    &status,
			Query:     "ana",
		})
		require.NoError(t, err)
		assert.Equal(t, &workerID, agenda.lastFilter.WorkerID)
		assert.Equal(t, &status, agenda.lastFilter.Status)
		assert.Equal(t, "ana", agenda.lastFilter.Query)
	})

	t.Run("non-staff rejected", func(t *testing.T) {
		h := queries.NewStaffAgendaHandler(&mockAgenda{}, time.UTC)
		_, err := h.Handle(context.Background(), queries.StaffAgendaQuery{
			Principal: identitydomain.Anonymous(),
			Date:      monday,
		})
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindUnauthorized))
	})
}

func TestWorkerAgenda(t *testing.T) {
	workerID := uuid.New()

	t.Run("shows own day without money fields", func(t *testing.T) {
		agenda := &mockAgenda{entries: []bookingdomain.AgendaEntry{agendaEntry(workerID)}}
		h := queries.NewWorkerAgendaHandler(agenda, time.UTC)

		views, err := h.Handle(context.Background(), queries.WorkerAgendaQuery{
			Principal: identitydomain.Principal{
				UserID: uuid.New(), Role: identitydomain.RoleWorker, WorkerID: &workerID,
			},
			Date: monday,
		})
		require.NoError(t, err)
		require.Len(t, views, 1)

		view := views[0]
		assert.Empty(t, view.CustomerPhone)
		assert.Empty(t, view.RecommendedTotal)
		assert.Empty(t, view.PaidTotal)
		assert.Empty(t, view.PaymentMethod)
		assert.Nil(t, view.PaidAt)
		assert.Equal(t, "Ana Soto", view.CustomerName)
		require.Len(t, view.Blocks, 1)
		assert.Empty(t, view.Blocks[0].Services[0].Price)

		// Always pinned to the caller's own worker id.
		assert.Equal(t, &workerID, agenda.lastFilter.WorkerID)
	})

	t.Run("principal without a worker binding rejected", func(t *testing.T) {
		h := queries.NewWorkerAgendaHandler(&mockAgenda{}, time.UTC)
		_, err := h.Handle(context.Background(), queries.WorkerAgendaQuery{
			Principal: identitydomain.Principal{UserID: uuid.New(), Role: identitydomain.RoleStaff},
			Date:      monday,
		})
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindUnauthorized))
	})
}
