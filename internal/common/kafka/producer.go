package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
	"data-quality/internal/common/metrics"
)

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	Retries      int
	RetryBackoff time.Duration
}

// Producer publishes JSON records keyed for per-key partition ordering.
type Producer struct {
	cfg    ProducerConfig
	writer Writer
	logger logger.Logger
}

func NewProducer(cfg ProducerConfig, log logger.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewProducerWithWriter(cfg, w, log)
}

func NewProducerWithWriter(cfg ProducerConfig, w Writer, log logger.Logger) *Producer {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Producer{
		cfg:    cfg,
		writer: w,
		logger: log.With(map[string]interface{}{"topic": cfg.Topic}),
	}
}

// Publish serializes value as JSON and writes it under key. It retries with
// exponential backoff and returns a PUBLISH_FAILED error once attempts run out.
func (p *Producer) Publish(ctx context.Context, key string, value interface{}, headers map[string]string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.NewInternalError("marshal record: " + err.Error())
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	delay := p.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			metrics.RecordsPublished.WithLabelValues(p.cfg.Topic).Inc()
			return nil
		}
		if attempt >= p.cfg.Retries || ctx.Err() != nil {
			break
		}

		p.logger.Warn("publish failed, retrying", map[string]interface{}{
			"key":         key,
			"attempt":     attempt + 1,
			"nextRetryIn": delay.String(),
			"error":       err,
		})
		if !sleep(ctx, delay) {
			break
		}
		delay *= 2
	}

	return errors.NewPublishFailedError(p.cfg.Topic, err)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
