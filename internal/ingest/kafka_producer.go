package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/last-mile-dispatch/internal/models"
)

// KafkaProducer publishes domain events: raw orders as they arrive at the
// webhook, and driver location pings. Consumers fold locations into the
// Redis GEO index; the order topic feeds analytics and replay.
type KafkaProducer struct {
	orders    *kafka.Writer
	locations *kafka.Writer
}

func NewKafkaProducer(brokers []string, orderTopic, locationTopic string) *KafkaProducer {
	mk := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	}
	return &KafkaProducer{orders: mk(orderTopic), locations: mk(locationTopic)}
}

func (k *KafkaProducer) PublishOrder(o models.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(o)
	return k.orders.WriteMessages(ctx, kafka.Message{Key: []byte(o.ID), Value: b})
}

func (k *KafkaProducer) PublishLocation(d models.Driver) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(d)
	return k.locations.WriteMessages(ctx, kafka.Message{Key: []byte(d.ID), Value: b})
}

func (k *KafkaProducer) Close() error {
	var err error
	if k.orders != nil {
		err = k.orders.Close()
	}
	if k.locations != nil {
		if e := k.locations.Close(); err == nil {
			err = e
		}
	}
	return err
}
