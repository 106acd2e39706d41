// Package notify publishes terminal pipeline outcomes for downstream
// consumers (dashboards, alerting). Publishing is best-effort and
// never fails the pipeline.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"aidSentinel/internal/model"
)

// KafkaNotifier writes one message per terminal outcome, keyed by
// event id.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 250 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// PublishOutcome emits the terminal entry as JSON.
func (n *KafkaNotifier) PublishOutcome(ctx context.Context, entry model.HistoryEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.Event.ID),
		Value: body,
	})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
