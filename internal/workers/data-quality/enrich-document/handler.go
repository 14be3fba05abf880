package enrichdocument

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"data-quality/internal/common/config"
	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
	"data-quality/internal/common/metrics"
	"data-quality/internal/common/observability"
	"data-quality/internal/models"
	"data-quality/internal/quality"
)

const TaskType = "enrich-document"

type Handler struct {
	config    *Config
	logger    logger.Logger
	service   *Service
	publisher Publisher
	errors    *errors.ErrorHandler
	obs       *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Validator     quality.Validator
	Fetcher       ContentFetcher
	Publisher     Publisher
	Notifier      BlockedNotifier
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Validator == nil || opts.Fetcher == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("%s requires a validator, a fetcher and a publisher", TaskType)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"worker": TaskType})

	h := &Handler{
		config:    workerConfig,
		logger:    loggerInstance,
		publisher: opts.Publisher,
		errors: errors.NewErrorHandler(loggerInstance).OnError(func(code errors.ErrorCode) {
			metrics.RecordErrors.WithLabelValues(string(code)).Inc()
		}),
		obs: opts.Observability,
	}

	h.service = NewService(ServiceDependencies{
		Validator: opts.Validator,
		Fetcher:   opts.Fetcher,
		Notifier:  opts.Notifier,
		Logger:    loggerInstance,
	}, workerConfig)

	return h, nil
}

// HandleMessage processes one change record and publishes at most one
// enriched record keyed by document id. Only a failed publish is returned,
// so the caller can keep the input offset uncommitted.
func (h *Handler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	startTime := time.Now()
	correlationID := uuid.NewString()

	ctx, span := h.obs.StartSpan(ctx, TaskType,
		attribute.String("messaging.source", msg.Topic),
		attribute.Int("messaging.partition", msg.Partition),
		attribute.Int64("messaging.offset", msg.Offset),
		attribute.String("correlation_id", correlationID),
	)
	defer span.End()

	log := h.logger.With(map[string]interface{}{
		"correlationId": correlationID,
		"partition":     msg.Partition,
		"offset":        msg.Offset,
	})

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	result := h.process(ctx, log, msg)

	if result.Event != nil {
		headers := map[string]string{
			"correlation_id": correlationID,
			"source_topic":   msg.Topic,
			"source_offset":  strconv.FormatInt(msg.Offset, 10),
		}
		if err := h.publisher.Publish(ctx, result.Event.ID, result.Event, headers); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
			h.observe(ctx, "PUBLISH_FAILED", startTime)
			return err
		}
	}

	span.SetAttributes(
		attribute.String("document.id", result.DocumentID),
		attribute.String("outcome", string(result.State)),
	)
	if result.Quality != nil {
		metrics.QualityScores.Observe(result.Quality.OverallScore)
		span.SetAttributes(attribute.Float64("quality.score", result.Quality.OverallScore))
	}
	h.observe(ctx, string(result.State), startTime)

	log.Info("record processed", map[string]interface{}{
		"documentId": result.DocumentID,
		"outcome":    result.State,
		"durationMs": time.Since(startTime).Milliseconds(),
	})
	return nil
}

func (h *Handler) process(ctx context.Context, log logger.Logger, msg kafka.Message) *Result {
	if len(msg.Value) == 0 {
		log.Debug("tombstone record, skipping", nil)
		return &Result{State: StateDiscarded, Reason: "tombstone"}
	}

	// Numbers stay json.Number so large ids and versions keep every digit.
	var event models.ChangeEvent
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		stdErr := h.errors.HandleRecordError(msg.Topic, msg.Partition, msg.Offset, errors.NewEventDecodeFailedError(err))
		return &Result{State: StateDiscarded, Reason: stdErr.Message}
	}

	return h.service.Process(ctx, &event)
}

func (h *Handler) observe(ctx context.Context, outcome string, start time.Time) {
	elapsed := time.Since(start)
	metrics.RecordsProcessed.WithLabelValues(outcome).Inc()
	metrics.RecordDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	h.obs.RecordProcessed(ctx, outcome)
	h.obs.RecordDuration(ctx, elapsed, outcome)
}
