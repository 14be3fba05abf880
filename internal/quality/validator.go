// Package quality scores documents through an LLM backend and folds every
// failure into a degraded result instead of an error.
package quality

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"data-quality/internal/common/errors"
	commonhttp "data-quality/internal/common/http"
	"data-quality/internal/common/logger"
	"data-quality/internal/common/metrics"
	"data-quality/internal/models"
)

const (
	DefaultMaxInputCharacters = 1024
	DefaultTimeout            = 60 * time.Second
)

// errValidatorTimeout marks expiry of the validator's own timer, as opposed
// to a shorter deadline inherited from the caller.
var errValidatorTimeout = stderrors.New("validator timeout")

// Validator scores one document. Implementations never return an error:
// anything that prevents a verdict yields models.NewFallbackResult.
type Validator interface {
	Validate(ctx context.Context, title, content, documentID string) *models.QualityResult
	Name() string
	Model() string
}

// Config is shared by all providers.
type Config struct {
	APIKey             string
	APIURL             string
	Model              string
	MinQualityScore    float64
	MaxInputCharacters int
	Timeout            time.Duration
	MaxRetries         int
	RequestsPerSecond  float64 // <= 0 disables throttling
	Burst              int
}

func (c Config) withDefaults() Config {
	if c.MaxInputCharacters <= 0 {
		c.MaxInputCharacters = DefaultMaxInputCharacters
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// completeFunc sends one prompt to a backend and returns the raw JSON text
// the model produced.
type completeFunc func(ctx context.Context, prompt string) (string, error)

// llmValidator holds what every provider shares: timeout, throttling, the
// retrying HTTP client and the parse/fallback path.
type llmValidator struct {
	name     string
	cfg      Config
	client   *commonhttp.Client
	limiter  *rate.Limiter
	logger   logger.Logger
	now      func() time.Time
	complete completeFunc
}

func newLLMValidator(name string, cfg Config, log logger.Logger) (*llmValidator, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigInvalidError(name + " api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.NewConfigInvalidError(name + " model is required")
	}
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &llmValidator{
		name: name,
		cfg:  cfg,
		// The per-call context carries the deadline, so the client itself has none.
		client:  commonhttp.NewClient(commonhttp.Options{RetryMax: cfg.MaxRetries}),
		limiter: limiter,
		logger: log.With(map[string]interface{}{
			"provider": name,
			"model":    cfg.Model,
		}),
		now: time.Now,
	}, nil
}

func (v *llmValidator) Name() string  { return v.name }
func (v *llmValidator) Model() string { return v.cfg.Model }

func (v *llmValidator) Validate(ctx context.Context, title, content, documentID string) *models.QualityResult {
	start := v.now()
	callerDeadline, hasCallerDeadline := ctx.Deadline()

	ctx, cancel := context.WithTimeoutCause(ctx, v.cfg.Timeout, errValidatorTimeout)
	defer cancel()

	result, err := v.validate(ctx, title, content, documentID)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			timeout := v.cfg.Timeout
			if !stderrors.Is(context.Cause(ctx), errValidatorTimeout) && hasCallerDeadline {
				timeout = callerDeadline.Sub(start).Round(time.Millisecond)
			}
			err = errors.NewLLMTimeoutError(v.name, timeout)
		}
		v.logger.Error("validation failed", map[string]interface{}{
			"documentId": documentID,
			"error":      err,
		})
		metrics.ValidatorCalls.WithLabelValues(v.name, "fallback").Inc()
		return models.NewFallbackResult(documentID, v.name, v.cfg.Model, fallbackCause(err), v.now())
	}

	v.logger.Info("validation complete", map[string]interface{}{
		"documentId":   documentID,
		"overallScore": result.OverallScore,
		"isValid":      result.IsValid,
		"durationMs":   v.now().Sub(start).Milliseconds(),
	})
	metrics.ValidatorCalls.WithLabelValues(v.name, "ok").Inc()
	return result
}

func (v *llmValidator) validate(ctx context.Context, title, content, documentID string) (*models.QualityResult, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, errors.NewLLMRequestFailedError(v.name, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	text, err := v.complete(ctx, BuildPrompt(title, content, v.cfg.MaxInputCharacters))
	if err != nil {
		return nil, err
	}

	result, err := ParseResponse(text, ParseOptions{
		DocumentID:      documentID,
		MinQualityScore: v.cfg.MinQualityScore,
		Provider:        v.name,
		Model:           v.cfg.Model,
		CheckedAt:       v.now(),
	})
	if err != nil {
		return nil, errors.NewLLMResponseInvalidError(v.name, err)
	}
	return result, nil
}

// fallbackCause renders the text that follows "Validation error: " in the
// system issue of a fallback result.
func fallbackCause(err error) string {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		return err.Error()
	}
	switch stdErr.Code {
	case errors.ErrCodeLLMTimeout:
		return fmt.Sprintf("%s (%s)", stdErr.Message, stdErr.Details)
	case errors.ErrCodeLLMResponseInvalid:
		return "Parse error: " + stdErr.Details
	default:
		if stdErr.Details == "" {
			return stdErr.Message
		}
		return stdErr.Message + ": " + stdErr.Details
	}
}
