package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetcut/booking/internal/booking/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

func line(price string) domain.ServiceLine {
	return domain.ServiceLine{
		ID:              uuid.New(),
		ServiceID:       uuid.New(),
		Name:            "Classic Cut",
		DurationMinutes: 30,
		Price:           decimal.RequireFromString(price),
	}
}

func twoBlockPayload(barberID, nailsID uuid.UUID) domain.OptionPayload {
	return domain.OptionPayload{
		Start: at(9, 0),
		End:   at(10, 15),
		Blocks: []domain.OptionBlock{
			{Sequence: 1, WorkerID: barberID, Start: at(9, 0), End: at(9, 30), ServiceIDs: []uuid.UUID{uuid.New()}},
			{Sequence: 2, WorkerID: nailsID, Start: at(9, 30), End: at(10, 15), ServiceIDs: []uuid.UUID{uuid.New()}},
		},
	}
}

func newReserved(t *testing.T) *domain.Appointment {
	t.Helper()
	barberID, nailsID := uuid.New(), uuid.New()
	appt, err := domain.NewAppointment(uuid.New(), domain.ChannelClient,
		twoBlockPayload(barberID, nailsID),
		map[int][]domain.ServiceLine{
			1: {line("35.00")},
			2: {line("20.00"), line("5.50")},
		})
	require.NoError(t, err)
	return appt
}

func TestNewAppointment(t *testing.T) {
	appt := newReserved(t)

	assert.Equal(t, domain.StatusReserved, appt.Status())
	assert.Equal(t, domain.ChannelClient, appt.Channel())
	assert.Equal(t, at(9, 0), appt.Start())
	assert.Equal(t, at(10, 15), appt.End())
	assert.Equal(t, 0, appt.GapTotalMinutes())
	assert.True(t, appt.RecommendedSubtotal().Equal(decimal.RequireFromString("60.50")))
	assert.True(t, appt.RecommendedDiscount().IsZero())
	assert.True(t, appt.RecommendedTotal().Equal(appt.RecommendedSubtotal()))
	assert.Len(t, appt.Blocks(), 2)
	assert.Len(t, appt.Lines(), 3)
	assert.Len(t, appt.DomainEvents(), 1)
	assert.Nil(t, appt.PaidTotal())
}

func TestNewAppointmentValidation(t *testing.T) {
	t.Run("no blocks", func(t *testing.T) {
		_, err := domain.NewAppointment(uuid.New(), domain.ChannelClient,
			domain.OptionPayload{Start: at(9, 0), End: at(10, 0)}, nil)
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
	})

	t.Run("missing lines for a block", func(t *testing.T) {
		_, err := domain.NewAppointment(uuid.New(), domain.ChannelClient,
			twoBlockPayload(uuid.New(), uuid.New()),
			map[int][]domain.ServiceLine{1: {line("35.00")}})
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
	})
}

func TestCancel(t *testing.T) {
	t.Run("reserved appointment cancels and records who and why", func(t *testing.T) {
		appt := newReserved(t)
		by := uuid.New()
		when := at(8, 0)

		require.NoError(t, appt.Cancel(by, "customer called in", when))

		assert.Equal(t, domain.StatusCancelled, appt.Status())
		require.NotNil(t, appt.CancelledAt())
		assert.Equal(t, when, *appt.CancelledAt())
		assert.Equal(t, by, *appt.CancelledBy())
		assert.Equal(t, "customer called in", appt.CancelledReason())
	})

	t.Run("cancelling twice is a no-op", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.Cancel(uuid.New(), "first", at(8, 0)))
		events := len(appt.DomainEvents())

		require.NoError(t, appt.Cancel(uuid.New(), "second", at(8, 5)))

		assert.Equal(t, "first", appt.CancelledReason())
		assert.Len(t, appt.DomainEvents(), events)
	})

	t.Run("attended appointment cannot be cancelled", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.MarkAttended())

		err := appt.Cancel(uuid.New(), "too late", at(11, 0))
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindInvalidState))
	})
}

func TestStatusTransitions(t *testing.T) {
	t.Run("attend", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.MarkAttended())
		assert.Equal(t, domain.StatusAttended, appt.Status())
	})

	t.Run("no-show", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.MarkNoShow())
		assert.Equal(t, domain.StatusNoShow, appt.Status())
	})

	t.Run("terminal states reject further transitions", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.MarkNoShow())

		assert.True(t, shareddomain.IsKind(appt.MarkAttended(), shareddomain.KindInvalidState))
		assert.True(t, shareddomain.IsKind(appt.MarkNoShow(), shareddomain.KindInvalidState))
	})
}

func TestRegisterPayment(t *testing.T) {
	t.Run("records amount, method, actor and time", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.MarkAttended())
		by := uuid.New()
		method := domain.PaymentCard

		require.NoError(t, appt.RegisterPayment(decimal.RequireFromString("55.00"), &method, by, at(10, 30)))

		require.NotNil(t, appt.PaidTotal())
		assert.True(t, appt.PaidTotal().Equal(decimal.RequireFromString("55.00")))
		assert.Equal(t, domain.PaymentCard, *appt.PaymentMethod())
		assert.Equal(t, by, *appt.PaidBy())
		assert.Equal(t, domain.StatusAttended, appt.Status())
	})

	t.Run("nil method keeps the previous one", func(t *testing.T) {
		appt := newReserved(t)
		method := domain.PaymentCash
		require.NoError(t, appt.RegisterPayment(decimal.RequireFromString("50.00"), &method, uuid.New(), at(10, 0)))

		require.NoError(t, appt.RegisterPayment(decimal.RequireFromString("60.50"), nil, uuid.New(), at(10, 5)))

		require.NotNil(t, appt.PaymentMethod())
		assert.Equal(t, domain.PaymentCash, *appt.PaymentMethod())
		assert.True(t, appt.PaidTotal().Equal(decimal.RequireFromString("60.50")))
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		appt := newReserved(t)
		err := appt.RegisterPayment(decimal.RequireFromString("-1"), nil, uuid.New(), at(10, 0))
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
	})
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := domain.ParsePaymentMethod(" cash ")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCash, m)

	_, err = domain.ParsePaymentMethod("bitcoin")
	require.Error(t, err)
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
}

func TestReschedule(t *testing.T) {
	barberID, nailsID := uuid.New(), uuid.New()
	build := func(t *testing.T) *domain.Appointment {
		t.Helper()
		appt, err := domain.NewAppointment(uuid.New(), domain.ChannelStaff,
			twoBlockPayload(barberID, nailsID),
			map[int][]domain.ServiceLine{1: {line("35.00")}, 2: {line("20.00")}})
		require.NoError(t, err)
		return appt
	}

	t.Run("moves times and keeps block identity and lines", func(t *testing.T) {
		appt := build(t)
		beforeIDs := map[uuid.UUID]uuid.UUID{}
		beforeLines := map[uuid.UUID][]domain.ServiceLine{}
		for _, b := range appt.Blocks() {
			beforeIDs[b.WorkerID] = b.ID
			beforeLines[b.WorkerID] = b.Lines
		}

		// Same workers, nails now goes first.
		err := appt.Reschedule(domain.OptionPayload{
			Start: at(14, 0),
			End:   at(15, 15),
			Blocks: []domain.OptionBlock{
				{Sequence: 1, WorkerID: nailsID, Start: at(14, 0), End: at(14, 45)},
				{Sequence: 2, WorkerID: barberID, Start: at(14, 45), End: at(15, 15)},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, at(14, 0), appt.Start())
		assert.Equal(t, at(15, 15), appt.End())
		require.Len(t, appt.Blocks(), 2)
		first := appt.Blocks()[0]
		assert.Equal(t, nailsID, first.WorkerID)
		assert.Equal(t, beforeIDs[nailsID], first.ID)
		assert.Equal(t, beforeLines[nailsID], first.Lines)
		assert.Equal(t, at(14, 0), first.Start)
		assert.Equal(t, beforeIDs[barberID], appt.Blocks()[1].ID)
	})

	t.Run("different worker set rejected", func(t *testing.T) {
		appt := build(t)
		err := appt.Reschedule(twoBlockPayload(barberID, uuid.New()))
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
	})

	t.Run("only reserved appointments reschedule", func(t *testing.T) {
		appt := build(t)
		require.NoError(t, appt.MarkAttended())
		err := appt.Reschedule(twoBlockPayload(barberID, nailsID))
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindInvalidState))
	})
}

func TestMoveTo(t *testing.T) {
	t.Run("shifts all blocks by the start delta", func(t *testing.T) {
		appt := newReserved(t)

		require.NoError(t, appt.MoveTo(at(11, 0), at(12, 15)))

		assert.Equal(t, at(11, 0), appt.Start())
		assert.Equal(t, at(12, 15), appt.End())
		assert.Equal(t, at(11, 0), appt.Blocks()[0].Start)
		assert.Equal(t, at(11, 30), appt.Blocks()[0].End)
		assert.Equal(t, at(11, 30), appt.Blocks()[1].Start)
		assert.Equal(t, at(12, 15), appt.Blocks()[1].End)
		assert.Equal(t, 0, appt.GapTotalMinutes())
	})

	t.Run("last block absorbs a duration change", func(t *testing.T) {
		appt := newReserved(t)

		require.NoError(t, appt.MoveTo(at(9, 0), at(10, 45)))

		assert.Equal(t, at(9, 30), appt.Blocks()[0].End)
		assert.Equal(t, at(10, 45), appt.Blocks()[1].End)
	})

	t.Run("end before start rejected", func(t *testing.T) {
		appt := newReserved(t)
		err := appt.MoveTo(at(10, 0), at(9, 0))
		require.Error(t, err)
		assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
	})

	t.Run("terminal appointments can still be moved", func(t *testing.T) {
		appt := newReserved(t)
		require.NoError(t, appt.MarkAttended())

		require.NoError(t, appt.MoveTo(at(11, 0), at(12, 15)))

		assert.Equal(t, at(11, 0), appt.Start())
		assert.Equal(t, domain.StatusAttended, appt.Status())
	})
}

func TestParseAppointmentStatus(t *testing.T) {
	st, err := domain.ParseAppointmentStatus(" no_show ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoShow, st)

	_, err = domain.ParseAppointmentStatus("DONE")
	require.Error(t, err)
	assert.True(t, shareddomain.IsKind(err, shareddomain.KindValidation))
}
