package sink

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"authwatch/internal/model"
)

// KafkaSink publishes alerts to a topic, keyed by identity so consumers see
// each attacker's alerts in order on one partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Deliver(ctx context.Context, alert model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.Identity),
		Value: data,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
