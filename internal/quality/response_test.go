package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"data-quality/internal/models"
)

var testCheckedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func parseOpts() ParseOptions {
	return ParseOptions{
		DocumentID:      "doc-1",
		MinQualityScore: 50,
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		CheckedAt:       testCheckedAt,
	}
}

func TestParseResponse_FullDocument(t *testing.T) {
	text := `{
		"completeness": {"score": 80, "passed": true, "issues": []},
		"consistency": {"score": 90, "passed": true, "issues": ["title is vague"]},
		"pii_detection": {"score": 60, "passed": false, "has_pii": true, "pii_types": ["email", "phone"]},
		"language_quality": {"score": 70, "passed": true, "issues": ["typo"]}
	}`

	result, err := ParseResponse(text, parseOpts())
	require.NoError(t, err)

	assert.InDelta(t, 77.0, result.OverallScore, 1e-9)
	assert.True(t, result.IsValid)
	assert.True(t, result.HasPII())
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, "openai", result.ProviderName)
	assert.Equal(t, "gpt-4o-mini", result.ModelName)
	assert.Equal(t, testCheckedAt, result.CheckedAt)

	issues := result.AllIssues()
	require.Len(t, issues, 4)

	assert.Equal(t, models.IssueTypeConsistency, issues[0].IssueType)
	assert.Equal(t, models.SeverityMedium, issues[0].Severity)
	assert.Equal(t, "title", *issues[0].Field)

	assert.Equal(t, models.IssueTypePII, issues[1].IssueType)
	assert.Equal(t, models.SeverityHigh, issues[1].Severity)
	assert.Equal(t, "Detected email", issues[1].Description)
	assert.Equal(t, "content", *issues[1].Field)
	assert.Equal(t, "Detected phone", issues[2].Description)

	assert.Equal(t, models.IssueTypeLanguage, issues[3].IssueType)
	assert.Equal(t, models.SeverityLow, issues[3].Severity)
	assert.Equal(t, "typo", issues[3].Description)
}

func TestParseResponse_EmptyObjectUsesDefaults(t *testing.T) {
	result, err := ParseResponse(`{}`, parseOpts())
	require.NoError(t, err)

	assert.False(t, result.CompletenessCheck.Passed)
	assert.Equal(t, 0.0, result.CompletenessCheck.Score)
	assert.False(t, result.ConsistencyCheck.Passed)
	assert.False(t, result.LanguageCheck.Passed)

	assert.True(t, result.PIICheck.Passed)
	assert.Equal(t, 100.0, result.PIICheck.Score)
	assert.False(t, result.HasPII())

	assert.InDelta(t, 20.0, result.OverallScore, 1e-9)
	assert.False(t, result.IsValid)
	assert.Empty(t, result.AllIssues())
}

func TestParseResponse_PIIPassedFollowsHasPII(t *testing.T) {
	// The model's own "passed" flag for PII is ignored.
	text := `{"pii_detection": {"score": 100, "passed": false, "has_pii": false}}`

	result, err := ParseResponse(text, parseOpts())
	require.NoError(t, err)
	assert.True(t, result.PIICheck.Passed)
}

func TestParseResponse_ClampsScores(t *testing.T) {
	text := `{
		"completeness": {"score": 150, "passed": true},
		"consistency": {"score": -20, "passed": false},
		"pii_detection": {"score": 100},
		"language_quality": {"score": 100, "passed": true}
	}`

	result, err := ParseResponse(text, parseOpts())
	require.NoError(t, err)

	assert.Equal(t, 100.0, result.CompletenessCheck.Score)
	assert.Equal(t, 0.0, result.ConsistencyCheck.Score)
	assert.InDelta(t, 70.0, result.OverallScore, 1e-9)
}

func TestParseResponse_ValidityThreshold(t *testing.T) {
	text := `{
		"completeness": {"score": 50},
		"consistency": {"score": 50},
		"pii_detection": {"score": 50},
		"language_quality": {"score": 50}
	}`

	result, err := ParseResponse(text, parseOpts())
	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.OverallScore, 1e-9)
	assert.True(t, result.IsValid)

	opts := parseOpts()
	opts.MinQualityScore = 50.5
	result, err = ParseResponse(text, opts)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}

func TestParseResponse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", `this is not json`},
		{"array", `[1, 2, 3]`},
		{"string score", `{"completeness": {"score": "eighty"}}`},
		{"null passed", `{"consistency": {"passed": null}}`},
		{"issue not string", `{"language_quality": {"issues": [1]}}`},
		{"has_pii not bool", `{"pii_detection": {"has_pii": "yes"}}`},
		{"section not object", `{"completeness": 80}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResponse(tt.text, parseOpts())
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello", 10))
	assert.Equal(t, "hel", TruncateRunes("hello", 3))
	assert.Equal(t, "héé", TruncateRunes("héééé", 3))
	assert.Equal(t, "", TruncateRunes("hello", 0))
	assert.Equal(t, "", TruncateRunes("", 5))
}

func TestBuildPrompt_TruncatesContent(t *testing.T) {
	prompt := BuildPrompt("Title", "abcdefghij", 4)
	assert.Contains(t, prompt, "Document Title: Title")
	assert.Contains(t, prompt, "Document Content: abcd\n")
	assert.NotContains(t, prompt, "abcde")
	assert.Contains(t, prompt, `"pii_detection"`)
}
