package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultBatchSize = 100

// Worker polls the outbox table and publishes pending events to Kafka,
// keyed by aggregate ID so per-aggregate ordering survives partitioning.
type Worker struct {
	store        *Store
	client       *kgo.Client
	topic        string
	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger
}

func NewWorker(store *Store, client *kgo.Client, topic string, pollInterval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:        store,
		client:       client,
		topic:        topic,
		pollInterval: pollInterval,
		batchSize:    defaultBatchSize,
		logger:       logger,
	}
}

// EnsureTopic creates the outbox topic if the cluster does not already have
// it. Safe to call on every boot.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Run polls until the context is canceled. Each cycle drains at most one
// batch; failures leave the rows pending for the next cycle.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	tx, err := w.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	events, err := w.store.FetchPending(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		records = append(records, &kgo.Record{
			Topic: w.topic,
			Key:   []byte(ev.AggregateID),
			Value: ev.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(ev.EventType)},
				{Key: "aggregate_type", Value: []byte(ev.AggregateType)},
			},
		})
		ids = append(ids, ev.ID)
	}
	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce outbox batch: %w", err)
	}
	if err := w.store.MarkPublished(ctx, tx, ids, time.Now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}

	w.logger.DebugContext(ctx, "outbox batch published", "count", len(events))
	return nil
}
