package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaDispatcher publishes notifications to a Kafka topic, keyed by
// recipient so one user's notifications stay ordered. A downstream delivery
// service owns the actual email/SMS fan-out.
type KafkaDispatcher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaDispatcher(client *kgo.Client, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{client: client, topic: topic}
}

func (d *KafkaDispatcher) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(n.UserID.String()),
		Value: payload,
	}
	if err := d.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}
