package kafkax

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// StartOffset applies only when the group has no committed offsets:
	// "first" replays the topic, anything else starts at the tail.
	StartOffset string

	MinBytes int
	MaxBytes int
}

// Consumer wraps a group reader with explicit commits: the notification
// service commits only after the event row is written, so a crash between
// the two replays the event and the processed_events table dedupes it.
type Consumer struct {
	cfg ConsumerConfig

	mu sync.Mutex
	r  *kafka.Reader
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{cfg: cfg, r: buildReader(cfg)}
}

func buildReader(cfg ConsumerConfig) *kafka.Reader {
	minB, maxB := cfg.MinBytes, cfg.MaxBytes
	if minB <= 0 {
		minB = 1
	}
	if maxB <= 0 {
		maxB = 10e6
	}

	offset := kafka.LastOffset
	if strings.EqualFold(cfg.StartOffset, "first") {
		offset = kafka.FirstOffset
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: offset,
		MinBytes:    minB,
		MaxBytes:    maxB,
		// Bounded waits keep FetchMessage responsive to shutdown even when
		// the broker is unreachable.
		MaxWait:        500 * time.Millisecond,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})
}

func (c *Consumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	return r.FetchMessage(ctx)
}

func (c *Consumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	return r.CommitMessages(ctx, msgs...)
}

// Reopen replaces the reader, dropping any cached broker metadata.
func (c *Consumer) Reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r != nil {
		_ = c.r.Close()
	}
	c.r = buildReader(c.cfg)
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r == nil {
		return nil
	}
	err := c.r.Close()
	c.r = nil
	return err
}
