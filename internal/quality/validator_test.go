package quality

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
	"data-quality/internal/models"
)

const goodVerdict = `{
	"completeness": {"score": 80, "passed": true, "issues": []},
	"consistency": {"score": 90, "passed": true, "issues": []},
	"pii_detection": {"score": 100, "passed": true, "has_pii": false, "pii_types": []},
	"language_quality": {"score": 70, "passed": true, "issues": ["minor typo"]}
}`

func openAIServer(t *testing.T, verdict string, captured *openAIRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": verdict}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(url string) Config {
	return Config{
		APIKey:             "sk-test",
		APIURL:             url,
		Model:              "gpt-4o-mini",
		MinQualityScore:    50,
		MaxInputCharacters: 16,
		Timeout:            2 * time.Second,
	}
}

func assertFallback(t *testing.T, result *models.QualityResult, descriptionPrefix string) {
	t.Helper()
	require.NotNil(t, result)
	assert.Equal(t, 0.0, result.OverallScore)
	assert.False(t, result.IsValid)
	for _, check := range []models.CheckResult{result.CompletenessCheck, result.ConsistencyCheck, result.PIICheck, result.LanguageCheck} {
		assert.False(t, check.Passed)
		assert.Equal(t, 0.0, check.Score)
		require.Len(t, check.Issues, 1)
		assert.Equal(t, models.IssueTypeSystem, check.Issues[0].IssueType)
		assert.Equal(t, models.SeverityHigh, check.Issues[0].Severity)
		assert.Nil(t, check.Issues[0].Field)
		assert.True(t, strings.HasPrefix(check.Issues[0].Description, descriptionPrefix),
			"description %q does not start with %q", check.Issues[0].Description, descriptionPrefix)
	}
}

func TestOpenAIValidator_Success(t *testing.T) {
	var captured openAIRequest
	srv := openAIServer(t, goodVerdict, &captured)
	defer srv.Close()

	v, err := NewOpenAIValidator(testConfig(srv.URL), logger.NewTestLogger(t))
	require.NoError(t, err)

	result := v.Validate(context.Background(), "Quarterly report", "0123456789abcdefXYZ", "doc-42")

	assert.Equal(t, "doc-42", result.DocumentID)
	assert.InDelta(t, 85.0, result.OverallScore, 1e-9)
	assert.True(t, result.IsValid)
	assert.Equal(t, "openai", result.ProviderName)
	assert.Equal(t, "gpt-4o-mini", result.ModelName)
	assert.False(t, result.CheckedAt.IsZero())
	assert.Equal(t, time.UTC, result.CheckedAt.Location())

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 0.0, captured.Temperature)
	assert.Equal(t, "json_object", captured.ResponseFormat["type"])
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, systemPrompt, captured.Messages[0].Content)
	assert.Contains(t, captured.Messages[1].Content, "Document Content: 0123456789abcdef\n")
	assert.NotContains(t, captured.Messages[1].Content, "XYZ")
}

func TestOpenAIValidator_MalformedVerdict(t *testing.T) {
	srv := openAIServer(t, "not json at all", nil)
	defer srv.Close()

	v, err := NewOpenAIValidator(testConfig(srv.URL), logger.NewNoOpLogger())
	require.NoError(t, err)

	result := v.Validate(context.Background(), "t", "c", "doc-1")
	assertFallback(t, result, "Validation error: Parse error: ")
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, "openai", result.ProviderName)
}

func TestOpenAIValidator_TypeMismatch(t *testing.T) {
	srv := openAIServer(t, `{"completeness": {"score": "high"}}`, nil)
	defer srv.Close()

	v, err := NewOpenAIValidator(testConfig(srv.URL), logger.NewNoOpLogger())
	require.NoError(t, err)

	assertFallback(t, v.Validate(context.Background(), "t", "c", "doc-1"), "Validation error: Parse error: ")
}

func TestOpenAIValidator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	v, err := NewOpenAIValidator(testConfig(srv.URL), logger.NewNoOpLogger())
	require.NoError(t, err)

	result := v.Validate(context.Background(), "t", "c", "doc-1")
	assertFallback(t, result, "Validation error: openai request failed")
	assert.Contains(t, result.CompletenessCheck.Issues[0].Description, "status 502")
}

func TestOpenAIValidator_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": goodVerdict}}},
		})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	v, err := NewOpenAIValidator(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)

	result := v.Validate(context.Background(), "t", "c", "doc-1")
	assert.True(t, result.IsValid)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIValidator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	v, err := NewOpenAIValidator(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)

	result := v.Validate(context.Background(), "t", "c", "doc-1")
	assertFallback(t, result, "Validation error: request timed out")
	assert.Contains(t, result.CompletenessCheck.Issues[0].Description, "timeout: 50ms")
}

func TestOpenAIValidator_CallerDeadlineNamesItsBudget(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 30 * time.Second
	v, err := NewOpenAIValidator(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := v.Validate(ctx, "t", "c", "doc-1")
	assertFallback(t, result, "Validation error: request timed out")
	assert.NotContains(t, result.CompletenessCheck.Issues[0].Description, "timeout: 30s")
}

func TestOpenAIValidator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	v, err := NewOpenAIValidator(testConfig(srv.URL), logger.NewNoOpLogger())
	require.NoError(t, err)

	assertFallback(t, v.Validate(context.Background(), "t", "c", "doc-1"), "Validation error: Parse error: ")
}

func TestOpenAIValidator_RequiresKeyAndModel(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.APIKey = ""
	_, err := NewOpenAIValidator(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

	cfg = testConfig("http://unused")
	cfg.Model = ""
	_, err = NewOpenAIValidator(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestOpenAIValidator_ConcurrentUse(t *testing.T) {
	srv := openAIServer(t, goodVerdict, nil)
	defer srv.Close()

	v, err := NewOpenAIValidator(testConfig(srv.URL), logger.NewNoOpLogger())
	require.NoError(t, err)

	const n = 8
	results := make(chan *models.QualityResult, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			results <- v.Validate(context.Background(), "t", "c", string(rune('a'+i)))
		}(i)
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		r := <-results
		assert.True(t, r.IsValid)
		seen[r.DocumentID] = true
	}
	assert.Len(t, seen, n)
}

func TestGeminiValidator_Success(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		half := len(goodVerdict) / 2
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{
						{"text": goodVerdict[:half]},
						{"text": goodVerdict[half:]},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	v, err := NewGeminiValidator(Config{
		APIKey:          "g-key",
		APIURL:          srv.URL,
		Model:           "gemini-1.5-flash",
		MinQualityScore: 50,
	}, logger.NewNoOpLogger())
	require.NoError(t, err)

	result := v.Validate(context.Background(), "title", "content", "doc-7")
	assert.InDelta(t, 85.0, result.OverallScore, 1e-9)
	assert.Equal(t, "gemini", result.ProviderName)
	assert.Equal(t, "gemini-1.5-flash", result.ModelName)

	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 0.0, captured.GenerationConfig.Temperature)
	require.Len(t, captured.SystemInstruction.Parts, 1)
	assert.Equal(t, systemPrompt, captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)
}

func TestGeminiValidator_ErrorDoesNotLeakKey(t *testing.T) {
	cfg := Config{APIKey: "secret-key", APIURL: "http://127.0.0.1:1", Model: "m", Timeout: time.Second}
	v, err := NewGeminiValidator(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)

	result := v.Validate(context.Background(), "t", "c", "doc-1")
	assertFallback(t, result, "Validation error: ")
	assert.NotContains(t, result.CompletenessCheck.Issues[0].Description, "secret-key")
}

func TestValidator_RateLimited(t *testing.T) {
	srv := openAIServer(t, goodVerdict, nil)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	cfg.Timeout = 100 * time.Millisecond
	v, err := NewOpenAIValidator(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)

	first := v.Validate(context.Background(), "t", "c", "doc-1")
	assert.True(t, first.IsValid)

	// The bucket is empty and the next token is far beyond the deadline.
	second := v.Validate(context.Background(), "t", "c", "doc-2")
	assertFallback(t, second, "Validation error: ")
}
