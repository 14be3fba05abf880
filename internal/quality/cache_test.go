package quality

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"data-quality/internal/common/config"
	"data-quality/internal/common/database"
	"data-quality/internal/common/logger"
	"data-quality/internal/models"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, title, content, documentID string) *models.QualityResult {
	args := m.Called(ctx, title, content, documentID)
	return args.Get(0).(*models.QualityResult)
}

func (m *mockValidator) Name() string  { return "openai" }
func (m *mockValidator) Model() string { return "gpt-4o-mini" }

func validResult(documentID string) *models.QualityResult {
	check := models.CheckResult{Passed: true, Score: 90, Issues: []models.ValidationIssue{}}
	return models.NewQualityResult(documentID, check, check, check, check, 50, "openai", "gpt-4o-mini", testCheckedAt)
}

func newCacheFixture(t *testing.T) (*miniredis.Miniredis, *mockValidator, *CachedValidator) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	inner := &mockValidator{}
	opts := CacheOptions{TTL: time.Hour, MinQualityScore: 50, MaxInputCharacters: 16}
	return mr, inner, NewCachedValidator(inner, rc, opts, logger.NewTestLogger(t))
}

func TestCachedValidator_HitSkipsInner(t *testing.T) {
	mr, inner, cached := newCacheFixture(t)
	ctx := context.Background()

	inner.On("Validate", mock.Anything, "title", "body", "doc-1").Return(validResult("doc-1")).Once()

	first := cached.Validate(ctx, "title", "body", "doc-1")
	assert.Equal(t, "doc-1", first.DocumentID)
	assert.True(t, mr.Exists(cached.Key("title", "body")))

	hitAt := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return hitAt }

	second := cached.Validate(ctx, "title", "body", "doc-2")
	assert.Equal(t, "doc-2", second.DocumentID)
	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.True(t, second.IsValid)
	assert.Equal(t, hitAt, second.CheckedAt)

	inner.AssertNumberOfCalls(t, "Validate", 1)
}

func TestCachedValidator_FallbackNotCached(t *testing.T) {
	mr, inner, cached := newCacheFixture(t)
	ctx := context.Background()

	fallback := models.NewFallbackResult("doc-1", "openai", "gpt-4o-mini", "request timed out", testCheckedAt)
	inner.On("Validate", mock.Anything, "title", "body", "doc-1").Return(fallback).Twice()

	cached.Validate(ctx, "title", "body", "doc-1")
	assert.False(t, mr.Exists(cached.Key("title", "body")))

	cached.Validate(ctx, "title", "body", "doc-1")
	inner.AssertNumberOfCalls(t, "Validate", 2)
}

func TestCachedValidator_TTL(t *testing.T) {
	mr, inner, cached := newCacheFixture(t)

	inner.On("Validate", mock.Anything, "title", "body", "doc-1").Return(validResult("doc-1"))
	cached.Validate(context.Background(), "title", "body", "doc-1")

	assert.Equal(t, time.Hour, mr.TTL(cached.Key("title", "body")))
}

func TestCachedValidator_RedisDownFallsThrough(t *testing.T) {
	mr, inner, cached := newCacheFixture(t)
	mr.Close()

	inner.On("Validate", mock.Anything, "title", "body", "doc-1").Return(validResult("doc-1"))

	result := cached.Validate(context.Background(), "title", "body", "doc-1")
	require.NotNil(t, result)
	assert.True(t, result.IsValid)
	inner.AssertNumberOfCalls(t, "Validate", 1)
}

func TestCachedValidator_CorruptEntryIgnored(t *testing.T) {
	mr, inner, cached := newCacheFixture(t)
	require.NoError(t, mr.Set(cached.Key("title", "body"), "{not json"))

	inner.On("Validate", mock.Anything, "title", "body", "doc-1").Return(validResult("doc-1"))

	result := cached.Validate(context.Background(), "title", "body", "doc-1")
	assert.True(t, result.IsValid)
	inner.AssertNumberOfCalls(t, "Validate", 1)

	raw, err := mr.Get(cached.Key("title", "body"))
	require.NoError(t, err)
	var stored models.QualityResult
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, result.OverallScore, stored.OverallScore)
}

func TestCachedValidator_HitAppliesCurrentThreshold(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": goodVerdict}},
			},
		})
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rc := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	newCached := func(minScore float64) *CachedValidator {
		cfg := testConfig(srv.URL)
		cfg.MinQualityScore = minScore
		v, err := NewOpenAIValidator(cfg, logger.NewNoOpLogger())
		require.NoError(t, err)
		return NewCachedValidator(v, rc, CacheOptions{
			TTL:                time.Hour,
			MinQualityScore:    minScore,
			MaxInputCharacters: cfg.MaxInputCharacters,
		}, logger.NewNoOpLogger())
	}

	lenient := newCached(50).Validate(context.Background(), "title", "body", "doc-1")
	require.InDelta(t, 85.0, lenient.OverallScore, 1e-9)
	assert.True(t, lenient.IsValid)

	strict := newCached(90).Validate(context.Background(), "title", "body", "doc-1")
	assert.InDelta(t, 85.0, strict.OverallScore, 1e-9)
	assert.False(t, strict.IsValid)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCachedValidator_KeyDependsOnInputs(t *testing.T) {
	_, _, cached := newCacheFixture(t)

	k := cached.Key("a", "b")
	assert.Contains(t, k, "quality:openai:gpt-4o-mini:")
	assert.NotEqual(t, k, cached.Key("a", "c"))
	assert.NotEqual(t, k, cached.Key("ab", ""))

	wider := NewCachedValidator(&mockValidator{}, nil, CacheOptions{MaxInputCharacters: 4096}, nil)
	assert.NotEqual(t, k, wider.Key("a", "b"))
	assert.Equal(t, "openai", cached.Name())
	assert.Equal(t, "gpt-4o-mini", cached.Model())
}
