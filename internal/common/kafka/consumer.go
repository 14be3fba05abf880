// internal/common/kafka/consumer.go
package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
	"data-quality/internal/common/metrics"
)

// Reader is the subset of *kafka.Reader the consumer loop uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc processes one record. A retryable error keeps the record
// uncommitted and it is retried in place. Any other error is logged and the
// record is committed.
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	Topic          string
	Consumers      int
	ProcessTimeout time.Duration
	RetryBackoff   time.Duration
	MaxBackoff     time.Duration
}

// Consumer runs one fetch/handle/commit loop per reader. All readers join the
// same group, so each partition is owned by exactly one loop at a time.
type Consumer struct {
	cfg     ConsumerConfig
	readers []Reader
	handler HandlerFunc
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewConsumer(cfg ConsumerConfig, handler HandlerFunc, log logger.Logger) *Consumer {
	if cfg.Consumers <= 0 {
		cfg.Consumers = 1
	}
	readers := make([]Reader, 0, cfg.Consumers)
	for i := 0; i < cfg.Consumers; i++ {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
		}))
	}
	return NewConsumerWithReaders(cfg, readers, handler, log)
}

// NewConsumerWithReaders builds a consumer over caller supplied readers.
func NewConsumerWithReaders(cfg ConsumerConfig, readers []Reader, handler HandlerFunc, log logger.Logger) *Consumer {
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.With(map[string]interface{}{"topic": cfg.Topic, "group": cfg.GroupID})

	return &Consumer{
		cfg:     cfg,
		readers: readers,
		handler: handler,
		errors: errors.NewErrorHandler(log).OnError(func(code errors.ErrorCode) {
			metrics.RecordErrors.WithLabelValues(string(code)).Inc()
		}),
		logger: log,
	}
}

// Run blocks until ctx is cancelled and every loop has returned, then closes
// the readers.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, r := range c.readers {
		wg.Add(1)
		go func(id int, r Reader) {
			defer wg.Done()
			metrics.ConsumersActive.WithLabelValues(c.cfg.Topic).Inc()
			defer metrics.ConsumersActive.WithLabelValues(c.cfg.Topic).Dec()
			c.loop(ctx, id, r)
		}(i, r)
	}

	c.logger.Info("consumers started", map[string]interface{}{"consumers": len(c.readers)})
	wg.Wait()

	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			c.logger.Warn("failed to close reader", map[string]interface{}{"error": err})
		}
	}
	c.logger.Info("consumers stopped", nil)
}

func (c *Consumer) loop(ctx context.Context, id int, r Reader) {
	log := c.logger.With(map[string]interface{}{"consumer": id})
	backoff := c.cfg.RetryBackoff

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("fetch failed", map[string]interface{}{"error": err})
			if !sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}
		backoff = c.cfg.RetryBackoff

		if !c.handle(ctx, log, msg) {
			// Shutdown while the record was still failing; it stays uncommitted.
			return
		}

		// The commit must go through even if shutdown started while handling.
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err = r.CommitMessages(commitCtx, msg)
		cancel()
		if err != nil {
			log.Error("commit failed", map[string]interface{}{
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"error":     err,
			})
		}
	}
}

// handle runs the handler until it succeeds, fails permanently or ctx is
// cancelled. It reports false only in the last case.
func (c *Consumer) handle(ctx context.Context, log logger.Logger, msg kafka.Message) bool {
	backoff := c.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		// In-flight records finish even after shutdown is signalled.
		procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ProcessTimeout)
		err := c.safeHandle(procCtx, msg)
		cancel()

		if err == nil {
			return true
		}

		stdErr := c.errors.HandleRecordError(msg.Topic, msg.Partition, msg.Offset, err)
		if !stdErr.Retryable {
			return true
		}

		log.Warn("record will be retried", map[string]interface{}{
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"attempt":   attempt,
			"backoff":   backoff.String(),
		})
		if !sleep(ctx, backoff) {
			return false
		}
		backoff = c.nextBackoff(backoff)
	}
}

func (c *Consumer) safeHandle(ctx context.Context, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
	}()
	return c.handler(ctx, msg)
}

func (c *Consumer) nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > c.cfg.MaxBackoff {
		return c.cfg.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
