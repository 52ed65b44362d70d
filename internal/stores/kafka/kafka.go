// Package kafka wraps the franz-go client for producing domain events and
// consuming the account-created stream.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storefront-service/pkg/logkey"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Conf struct {
	producer *kgo.Client
}

// NewConf connects a producer to the brokers listed in KAFKA_BROKERS
// (comma separated).
func NewConf(brokers string) (*Conf, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}

	if err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging kafka brokers: %w", err)
	}

	return &Conf{producer: client}, nil
}

// ProduceMessage synchronously produces one record.
func (c *Conf) ProduceMessage(topic string, key, value []byte) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := c.producer.ProduceSync(context.Background(), record).FirstErr(); err != nil {
		return fmt.Errorf("producing to %s: %w", topic, err)
	}
	return nil
}

// ConsumeMessages polls the topic in a loop and hands every record to the
// handler. Handler errors are logged and the record is skipped; the loop ends
// when the context is cancelled.
func ConsumeMessages(ctx context.Context, brokers, topic, group string, handler func(key, value []byte) error) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
	)
	if err != nil {
		return fmt.Errorf("creating kafka consumer: %w", err)
	}
	defer client.Close()

	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(t string, p int32, err error) {
			slog.Error("kafka fetch error", slog.String("topic", t),
				slog.Int("partition", int(p)), slog.String(logkey.ERROR, err.Error()))
		})
		fetches.EachRecord(func(record *kgo.Record) {
			if err := handler(record.Key, record.Value); err != nil {
				slog.Error("kafka handler failed", slog.String("topic", record.Topic),
					slog.String(logkey.ERROR, err.Error()))
			}
		})
	}
}

// Close shuts the producer down.
func (c *Conf) Close() {
	c.producer.Close()
}
