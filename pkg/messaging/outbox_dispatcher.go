package messaging

import (
	"context"
	"log/slog"
	"time"
)

type OutboxDispatcher struct {
	outbox    *Outbox
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewOutboxDispatcher(outbox *Outbox, publisher Publisher, interval time.Duration, batch int, logger *slog.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batch,
		logger:    logger,
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.dispatch(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatch publishes one batch and returns how many rows were sent.
func (d *OutboxDispatcher) dispatch(ctx context.Context) int {
	rows := d.outbox.claim(d.batchSize, d.outbox.now().Add(30*time.Second))

	sent := 0
	for _, row := range rows {
		if err := d.publishOne(ctx, row); err != nil {
			d.logger.Warn("publish event failed", "row_id", row.ID, "routing_key", row.RoutingKey, "attempts", row.Attempts+1, "err", err)
			continue
		}
		sent++
	}
	return sent
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, row outboxRow) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, row.RoutingKey, row.Payload); err != nil {
		d.outbox.markFailure(row.ID)
		return err
	}

	d.outbox.markSent(row.ID)
	return nil
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
