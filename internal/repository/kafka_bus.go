package repository

import (
	drepo "FeedRelay/internal/domain/repository"
	"FeedRelay/pkg/async"
	pkgkafka "FeedRelay/pkg/kafka"
)

// KafkaBus publishes to Kafka; the ordering key becomes the message key so a
// hash balancer keeps each symbol on one partition.
type KafkaBus struct {
	producer *pkgkafka.Producer
}

// NewKafkaBus creates a Kafka-backed bus.
func NewKafkaBus(producer *pkgkafka.Producer) drepo.Bus {
	return &KafkaBus{producer: producer}
}

func (b *KafkaBus) Publish(topic, orderingKey string, data []byte) *async.Result {
	return b.producer.PublishAsync(topic, []byte(orderingKey), data)
}

func (b *KafkaBus) Close() error {
	if b.producer != nil {
		return b.producer.Close()
	}
	return nil
}
