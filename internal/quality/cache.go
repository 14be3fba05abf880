package quality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"data-quality/internal/common/logger"
	"data-quality/internal/common/metrics"
	"data-quality/internal/models"
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CacheOptions carries the settings a cached verdict depends on.
// MaxInputCharacters is part of the key since it changes what the provider
// sees. MinQualityScore is applied again on every hit.
type CacheOptions struct {
	TTL                time.Duration
	MinQualityScore    float64
	MaxInputCharacters int
}

// CachedValidator memoizes verdicts by provider, model, input limit and
// document text. Fallback results are never stored.
type CachedValidator struct {
	inner  Validator
	store  Store
	opts   CacheOptions
	logger logger.Logger
	now    func() time.Time
}

func NewCachedValidator(inner Validator, store Store, opts CacheOptions, log logger.Logger) *CachedValidator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.MaxInputCharacters <= 0 {
		opts.MaxInputCharacters = DefaultMaxInputCharacters
	}
	return &CachedValidator{
		inner:  inner,
		store:  store,
		opts:   opts,
		logger: log.With(map[string]interface{}{"component": "validation-cache"}),
		now:    time.Now,
	}
}

func (c *CachedValidator) Name() string  { return c.inner.Name() }
func (c *CachedValidator) Model() string { return c.inner.Model() }

func (c *CachedValidator) Validate(ctx context.Context, title, content, documentID string) *models.QualityResult {
	key := c.Key(title, content)

	if cached, ok := c.lookup(ctx, key); ok {
		cached.DocumentID = documentID
		cached.IsValid = cached.OverallScore >= c.opts.MinQualityScore
		cached.CheckedAt = c.now().UTC()
		return cached
	}

	result := c.inner.Validate(ctx, title, content, documentID)
	if result == nil || result.HasSystemIssue() {
		return result
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return result
	}
	if err := c.store.Set(ctx, key, raw, c.opts.TTL); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"documentId": documentID,
			"error":      err,
		})
	}
	return result
}

// Key derives the cache key for one document.
func (c *CachedValidator) Key(title, content string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + content))
	return fmt.Sprintf("quality:%s:%s:%d:%s",
		c.inner.Name(), c.inner.Model(), c.opts.MaxInputCharacters, hex.EncodeToString(sum[:]))
}

func (c *CachedValidator) lookup(ctx context.Context, key string) (*models.QualityResult, bool) {
	raw, err := c.store.Get(ctx, key)
	if err == redis.Nil {
		metrics.ValidatorCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.ValidatorCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", map[string]interface{}{"error": err})
		return nil, false
	}

	var result models.QualityResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		metrics.ValidatorCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache entry is corrupt, evicting", map[string]interface{}{"error": err})
		if err := c.store.Del(ctx, key); err != nil {
			c.logger.Warn("cache eviction failed", map[string]interface{}{"error": err})
		}
		return nil, false
	}
	metrics.ValidatorCacheLookups.WithLabelValues("hit").Inc()
	return &result, true
}
