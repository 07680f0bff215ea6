package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/velvetcut/booking/internal/booking/domain"
)

func TestOptionPayloadWorkerIDs(t *testing.T) {
	barberID, nailsID := uuid.New(), uuid.New()
	payload := domain.OptionPayload{
		Blocks: []domain.OptionBlock{
			{Sequence: 1, WorkerID: barberID},
			{Sequence: 2, WorkerID: nailsID},
			{Sequence: 3, WorkerID: barberID},
		},
	}

	assert.Equal(t, []uuid.UUID{barberID, nailsID}, payload.WorkerIDs())
}

func TestOptionPayloadGapMinutes(t *testing.T) {
	worker := uuid.New()

	contiguous := domain.OptionPayload{
		Blocks: []domain.OptionBlock{
			{WorkerID: worker, Start: at(9, 0), End: at(9, 30)},
			{WorkerID: worker, Start: at(9, 30), End: at(10, 0)},
		},
	}
	assert.Equal(t, 0, contiguous.GapMinutes())

	gapped := domain.OptionPayload{
		Blocks: []domain.OptionBlock{
			{WorkerID: worker, Start: at(9, 0), End: at(9, 30)},
			{WorkerID: worker, Start: at(9, 45), End: at(10, 0)},
			{WorkerID: worker, Start: at(10, 20), End: at(11, 0)},
		},
	}
	assert.Equal(t, 35, gapped.GapMinutes())
}

func TestOptionPayloadSignature(t *testing.T) {
	barberID, nailsID := uuid.New(), uuid.New()
	svc := uuid.New()

	base := domain.OptionPayload{
		Start: at(9, 0),
		End:   at(10, 0),
		Blocks: []domain.OptionBlock{
			{Sequence: 1, WorkerID: barberID, Start: at(9, 0), End: at(9, 30), ServiceIDs: []uuid.UUID{svc}},
			{Sequence: 2, WorkerID: nailsID, Start: at(9, 30), End: at(10, 0), ServiceIDs: []uuid.UUID{svc}},
		},
	}

	same := base
	assert.Equal(t, base.Signature(), same.Signature())

	shifted := base
	shifted.Blocks = append([]domain.OptionBlock(nil), base.Blocks...)
	shifted.Blocks[0].Start = at(9, 1)
	assert.NotEqual(t, base.Signature(), shifted.Signature())

	otherWorker := base
	otherWorker.Blocks = append([]domain.OptionBlock(nil), base.Blocks...)
	otherWorker.Blocks[1].WorkerID = uuid.New()
	assert.NotEqual(t, base.Signature(), otherWorker.Signature())
}
