// cmd/data-quality/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"data-quality/internal/common/aws"
	"data-quality/internal/common/config"
	"data-quality/internal/common/database"
	"data-quality/internal/common/kafka"
	"data-quality/internal/common/logger"
	"data-quality/internal/common/observability"
	"data-quality/internal/common/storage"
	"data-quality/internal/quality"

	ed "data-quality/internal/workers/data-quality/enrich-document"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	var outputs []string
	if cfg.Logging.Output != "" {
		outputs = append(outputs, cfg.Logging.Output)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, outputs...)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting data quality service...",
		zap.String("service", cfg.App.Name),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("inputTopic", cfg.Kafka.InputTopic),
		zap.String("outputTopic", cfg.Kafka.OutputTopic),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Quality validator ---
	provider := cfg.ActiveProvider()
	validator, err := quality.NewValidator(cfg.LLM.Provider, quality.Config{
		APIKey:             provider.APIKey,
		APIURL:             provider.APIURL,
		Model:              provider.Model,
		MinQualityScore:    cfg.Quality.MinScore,
		MaxInputCharacters: cfg.Quality.MaxInputCharacters,
		Timeout:            config.GetDuration(cfg.LLM.Timeout),
		MaxRetries:         cfg.LLM.MaxRetries,
		RequestsPerSecond:  cfg.LLM.RequestsPerSecond,
		Burst:              cfg.LLM.Burst,
	}, log)
	if err != nil {
		zapLog.Fatal("quality validator init failed", zap.Error(err))
	}
	zapLog.Info("Quality validator ready",
		zap.String("provider", validator.Name()),
		zap.String("model", validator.Model()),
	)

	// --- Init Redis cache with retry ---
	var redis *database.RedisClient
	if cfg.Cache.Enabled {
		redis = database.NewRedis(cfg.Redis)
		err = retryWithBackoff(func() error {
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			return redis.Ping(pingCtx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		validator = quality.NewCachedValidator(validator, redis, quality.CacheOptions{
			TTL:                config.GetDuration(cfg.Cache.TTL),
			MinQualityScore:    cfg.Quality.MinScore,
			MaxInputCharacters: cfg.Quality.MaxInputCharacters,
		}, log)
		zapLog.Info("Redis connected successfully, validation cache enabled")
	}

	// --- Object storage ---
	fetcher := storage.NewFetcher(storage.NewS3Client(cfg.MinIO), cfg.MinIO.BucketDocuments, log)

	// --- Kafka producer ---
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers(),
		Topic:        cfg.Kafka.OutputTopic,
		Retries:      cfg.Kafka.PublishRetries,
		RetryBackoff: 500 * time.Millisecond,
	}, log)

	// --- Optional notices for blocked documents ---
	var notifiers aws.Notifiers
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifiers = append(notifiers, aws.NewBlockedNotifier(snsClient, cfg.Notifications.SNS.TopicARN))
		zapLog.Info("SNS blocked-document notices enabled", zap.String("topicArn", cfg.Notifications.SNS.TopicARN))
	}
	if cfg.Notifications.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.SES.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		notifiers = append(notifiers, aws.NewEmailNotifier(sesClient, cfg.Notifications.SES.From, cfg.Notifications.SES.To))
		zapLog.Info("SES blocked-document notices enabled", zap.Strings("to", cfg.Notifications.SES.To))
	}
	var notifier ed.BlockedNotifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	handler, err := ed.NewHandler(ed.HandlerOptions{
		AppConfig:     cfg,
		Validator:     validator,
		Fetcher:       fetcher,
		Publisher:     producer,
		Notifier:      notifier,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create enrich-document handler", zap.Error(err))
	}

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers(),
		GroupID:        cfg.Kafka.ConsumerGroup,
		Topic:          cfg.Kafka.InputTopic,
		Consumers:      cfg.Kafka.Consumers,
		ProcessTimeout: config.GetDuration(cfg.Kafka.ProcessTimeout),
		RetryBackoff:   time.Second,
		MaxBackoff:     30 * time.Second,
	}, handler.HandleMessage, log)

	var ready atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ready.Store(true)
		consumer.Run(ctx)
		ready.Store(false)
	}()
	zapLog.Info("Consumer started",
		zap.String("group", cfg.Kafka.ConsumerGroup),
		zap.Int("consumers", cfg.Kafka.Consumers),
	)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ready", http.StatusOK
		if !ready.Load() {
			status, code = "not ready", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping consumer...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		zapLog.Error("Error closing Kafka producer", zap.Error(err))
	}

	zapLog.Info("Data quality service stopped gracefully")
}
