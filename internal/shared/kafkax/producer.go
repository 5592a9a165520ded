package kafkax

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	WriteTimeout time.Duration
}

// Producer publishes ticket event envelopes. Messages are keyed by the
// caller so one ticket's events land on one partition in order.
type Producer struct {
	cfg ProducerConfig

	mu        sync.Mutex
	w         *kafka.Writer
	lastReset time.Time
}

func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{cfg: cfg, w: buildWriter(cfg)}
}

func buildWriter(cfg ProducerConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
			// Short metadata TTL lets the writer recover on its own when
			// broker addresses change under it.
			MetadataTTL: 10 * time.Second,
		},
	}
}

func (p *Producer) Produce(ctx context.Context, key, value []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.cfg.WriteTimeout
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	err := p.write(ctx, key, value, timeout)
	if err == nil {
		return nil
	}
	if !transportError(err) {
		return err
	}

	// Stale broker metadata shows up as a connection error; one rebuild and
	// retry covers it without bouncing the process.
	p.rebuild()
	return p.write(ctx, key, value, timeout)
}

func (p *Producer) write(ctx context.Context, key, value []byte, timeout time.Duration) error {
	p.mu.Lock()
	w := p.w
	p.mu.Unlock()
	if w == nil {
		return context.Canceled
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.WriteMessages(wctx, kafka.Message{Key: key, Value: value})
}

func (p *Producer) rebuild() {
	p.mu.Lock()
	defer p.mu.Unlock()

	// One rebuild every couple of seconds at most.
	if time.Since(p.lastReset) < 2*time.Second {
		return
	}
	if p.w != nil {
		_ = p.w.Close()
	}
	p.w = buildWriter(p.cfg)
	p.lastReset = time.Now()
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}

var transportErrSubstrings = []string{
	"dial tcp",
	"connection refused",
	"connection reset",
	"i/o timeout",
	"eof",
	"broken pipe",
	"not leader",
	"unknown broker",
	"failed to dial",
}

func transportError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transportErrSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
