package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/velvetcut/booking/internal/shared/infrastructure/eventbus"
	"github.com/velvetcut/booking/pkg/observability"
)

// ProcessorConfig tunes the outbox relay loop.
type ProcessorConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxRetries      int
	RetryBackoff    time.Duration
	RetentionDays   int
	CleanupInterval time.Duration
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:    100 * time.Millisecond,
		BatchSize:       100,
		MaxRetries:      5,
		RetryBackoff:    5 * time.Second,
		RetentionDays:   14,
		CleanupInterval: 24 * time.Hour,
	}
}

// Processor relays committed outbox messages to the event bus.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, metrics observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run polls for unpublished messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(p.config.CleanupInterval)
	defer cleanup.Stop()

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return ctx.Err()
		case <-cleanup.C:
			p.cleanupOld(ctx)
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

// ProcessBatch publishes one batch of pending messages.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	msgs, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := p.publishOne(ctx, msg); err != nil {
			p.metrics.Counter("outbox.publish_failed", 1, observability.T("routing_key", msg.RoutingKey))
			continue
		}
		p.metrics.Counter("outbox.published", 1, observability.T("routing_key", msg.RoutingKey))
	}

	return nil
}

func (p *Processor) publishOne(ctx context.Context, msg *Message) error {
	if !msg.CanRetry(p.config.MaxRetries) {
		// Leave exhausted messages for operator inspection; retry_count
		// already records the failure history.
		return nil
	}

	if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
		next := time.Now().Add(p.config.RetryBackoff * time.Duration(msg.RetryCount+1))
		if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
			p.logger.Error("failed to mark outbox message failed", "id", msg.ID, "error", markErr)
		}
		return err
	}

	return p.repo.MarkPublished(ctx, msg.ID)
}

func (p *Processor) cleanupOld(ctx context.Context) {
	deleted, err := p.repo.DeleteOld(ctx, p.config.RetentionDays)
	if err != nil {
		p.logger.Error("outbox cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("outbox cleanup", "deleted", deleted)
	}
}
