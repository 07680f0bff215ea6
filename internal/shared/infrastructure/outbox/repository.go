package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages alongside business writes.
type Repository interface {
	Save(ctx context.Context, msg *Message) error
	SaveBatch(ctx context.Context, msgs []*Message) error
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
