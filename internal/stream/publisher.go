// Package stream publishes processed compliance events to Kafka so downstream
// consumers (reporting, HR systems) follow state changes without polling the
// gateway's store. Publishing is best-effort: the store is the source of
// truth and a broker outage never blocks ingestion.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the record published per applied transition.
type Message struct {
	AccountID  string    `json:"account_id"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	CourseID   string    `json:"course_id"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Encode renders the message and its partition key. Keying by user+course
// keeps one learner's transitions ordered within a partition.
func (m Message) Encode(topic string) (*kgo.Record, error) {
	value, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal stream message: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(m.UserID + "/" + m.CourseID),
		Value: value,
	}, nil
}

// Publisher writes Messages to a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the brokers and ensures the topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	// Topic bootstrap keeps fresh environments zero-step; an "already
	// exists" response from the broker is fine.
	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
		logger.WarnContext(ctx, "kafka topic create skipped", "topic", topic, "reason", err.Error())
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish produces asynchronously. Delivery failures are logged; the caller
// never waits on the broker.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	record, err := msg.Encode(p.topic)
	if err != nil {
		return err
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("stream publish failed",
				"event_id", msg.EventID,
				"error", err.Error(),
			)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
