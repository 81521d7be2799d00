package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events keyed by bet id so every event of one
// bet lands on the same partition.
type KafkaPublisher struct {
	Writer       messageWriter
	TopicPlaced  string
	TopicSettled string
	WriteTimeout time.Duration
}

func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(brokers []string, topicPlaced, topicSettled string) *KafkaPublisher {
	return &KafkaPublisher{
		Writer:       NewWriter(brokers),
		TopicPlaced:  topicPlaced,
		TopicSettled: topicSettled,
		WriteTimeout: 5 * time.Second,
	}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e BetPlaced) error {
	if e.EventId == "" {
		e.EventId = uuid.NewString()
	}
	return p.write(ctx, p.TopicPlaced, e.BetId, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e BetSettled) error {
	if e.EventId == "" {
		e.EventId = uuid.NewString()
	}
	return p.write(ctx, p.TopicSettled, e.BetId, e)
}

func (p *KafkaPublisher) write(ctx context.Context, topic string, betID int, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if p.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.WriteTimeout)
		defer cancel()
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.Itoa(betID)),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
