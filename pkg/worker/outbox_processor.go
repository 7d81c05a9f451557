package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/messaging"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries is how many failed publishes mark an event FAILED for good.
	MaxRetries    int
	ChannelPrefix string
}

// OutboxProcessor publishes pending outbox events to the broker.
type OutboxProcessor struct {
	tx      repository.Transactor
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	tx repository.Transactor,
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be greater than 0")
	}

	return &OutboxProcessor{
		tx:      tx,
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor", "batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox batch")
			}
		}
	}
}

// ProcessBatch claims one batch and publishes it in a single transaction.
// Rows stay locked until the statuses are written, so concurrent workers
// never publish the same event twice.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	published := 0
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
		if err != nil {
			return err
		}
		p.metrics.OutboxBatchSize.Set(float64(len(events)))

		for _, event := range events {
			if err := p.processEvent(ctx, event); err != nil {
				return err
			}
			if event.Status == model.OutboxStatusProcessed {
				published++
			}
		}
		return nil
	})
	if err != nil {
		return published, fmt.Errorf("failed to process outbox events: %w", err)
	}
	return published, nil
}

// processEvent only returns errors from the status update; publish failures
// are recorded on the event.
func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	envelope := messaging.Envelope{
		ID:            event.ID,
		Type:          event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.CreatedAt,
		Payload:       event.Payload,
	}

	channel := event.EventType
	if p.config.ChannelPrefix != "" {
		channel = p.config.ChannelPrefix + ":" + event.EventType
	}

	if err := p.broker.Publish(ctx, channel, envelope); err != nil {
		final := event.RetryCount+1 >= p.config.MaxRetries
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		if final {
			p.metrics.OutboxEventsFailed.Inc()
		}
		p.logger.Warn("failed to publish outbox event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retry_count", event.RetryCount,
			"final", final,
			"error", err.Error())
		return p.repo.MarkFailed(ctx, event.ID, err.Error(), final)
	}

	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}
	event.Status = model.OutboxStatusProcessed
	p.metrics.OutboxEventsProcessed.Inc()
	return nil
}
