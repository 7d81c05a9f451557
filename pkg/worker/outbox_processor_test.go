package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/messaging"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOutboxRepo struct {
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]bool
	deleted   time.Time
}

func (r *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.pending = append(r.pending, event)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.processed = append(r.processed, id)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	if r.failed == nil {
		r.failed = map[uuid.UUID]bool{}
	}
	r.failed[id] = final
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.deleted = before
	return 2, nil
}

type fakeBroker struct {
	channels []string
	fail     map[string]bool
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	env := message.(messaging.Envelope)
	if b.fail[env.Type] {
		return errors.New("redis down")
	}
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func newEvent(eventType string, retries int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{}`),
		Status:      model.OutboxStatusPending,
		RetryCount:  retries,
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	ok := newEvent(model.EventCaseScheduled, 0)
	retrying := newEvent(model.EventCaseStarted, 0)
	exhausted := newEvent(model.EventCaseStarted, 2)

	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{ok, retrying, exhausted}}
	broker := &fakeBroker{fail: map[string]bool{model.EventCaseStarted: true}}

	p, err := NewOutboxProcessor(passthroughTx{}, repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		MaxRetries:    3,
		ChannelPrefix: "theatre.events",
	}, logger.Nop(), metrics.NewNop())
	require.NoError(t, err)

	published, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, published)
	assert.Equal(t, []string{"theatre.events:" + model.EventCaseScheduled}, broker.channels)
	assert.Equal(t, []uuid.UUID{ok.ID}, repo.processed)
	assert.False(t, repo.failed[retrying.ID])
	assert.True(t, repo.failed[exhausted.ID])
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(passthroughTx{}, &fakeOutboxRepo{}, &fakeBroker{},
		OutboxProcessorConfig{BatchSize: 0, PollInterval: time.Second, MaxRetries: 1},
		logger.Nop(), metrics.NewNop())
	assert.Error(t, err)
}

func TestOutboxCleanupUsesRetention(t *testing.T) {
	repo := &fakeOutboxRepo{}
	w := NewOutboxCleanupWorker(repo, 24*time.Hour, time.Hour, logger.Nop())
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

	w.RunOnce(context.Background(), now)
	assert.Equal(t, now.Add(-24*time.Hour), repo.deleted)
}
