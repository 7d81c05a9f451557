package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/theatre-api/internal/repository"
	"github.com/jwalitptl/theatre-api/pkg/logger"
)

// OutboxCleanupWorker purges published events once they age past retention.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, time.Now())
		}
	}
}

func (w *OutboxCleanupWorker) RunOnce(ctx context.Context, now time.Time) {
	deleted, err := w.repo.DeleteProcessedBefore(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.Error(err, "failed to purge processed outbox events")
		return
	}
	if deleted > 0 {
		w.logger.Info("purged processed outbox events", "count", deleted)
	}
}
