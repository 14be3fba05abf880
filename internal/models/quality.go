// internal/models/quality.go
package models

import (
	"fmt"
	"time"
)

type IssueType string

const (
	IssueTypeCompleteness IssueType = "completeness"
	IssueTypeConsistency  IssueType = "consistency"
	IssueTypePII          IssueType = "pii"
	IssueTypeLanguage     IssueType = "language"
	IssueTypeSystem       IssueType = "system"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Dimension weights for the overall score. They sum to 1.0.
const (
	WeightCompleteness = 0.3
	WeightConsistency  = 0.3
	WeightPII          = 0.2
	WeightLanguage     = 0.2
)

const (
	MinScore = 0.0
	MaxScore = 100.0

	DefaultMinQualityScore = 50.0
)

// ValidationIssue is a single finding reported for one quality dimension.
type ValidationIssue struct {
	IssueType   IssueType `json:"issueType"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Field       *string   `json:"field,omitempty"`
}

// CheckResult is the outcome of one quality dimension.
type CheckResult struct {
	Passed  bool              `json:"passed"`
	Score   float64           `json:"score"`
	Issues  []ValidationIssue `json:"issues"`
	Details string            `json:"details,omitempty"`
}

// QualityResult is the aggregate verdict for one document. It is built once
// per validation call and not modified afterwards.
type QualityResult struct {
	DocumentID        string      `json:"documentId"`
	OverallScore      float64     `json:"overallScore"`
	IsValid           bool        `json:"isValid"`
	CompletenessCheck CheckResult `json:"completenessCheck"`
	ConsistencyCheck  CheckResult `json:"consistencyCheck"`
	PIICheck          CheckResult `json:"piiCheck"`
	LanguageCheck     CheckResult `json:"languageCheck"`
	CheckedAt         time.Time   `json:"checkedAt"`
	ProviderName      string      `json:"providerName"`
	ModelName         string      `json:"modelName"`
}

// AllIssues returns the issues of every check in the fixed order
// completeness, consistency, pii, language.
func (r *QualityResult) AllIssues() []ValidationIssue {
	issues := make([]ValidationIssue, 0,
		len(r.CompletenessCheck.Issues)+len(r.ConsistencyCheck.Issues)+
			len(r.PIICheck.Issues)+len(r.LanguageCheck.Issues))
	issues = append(issues, r.CompletenessCheck.Issues...)
	issues = append(issues, r.ConsistencyCheck.Issues...)
	issues = append(issues, r.PIICheck.Issues...)
	issues = append(issues, r.LanguageCheck.Issues...)
	return issues
}

// HasPII reports whether the PII check detected personal data.
func (r *QualityResult) HasPII() bool {
	return !r.PIICheck.Passed
}

// HasSystemIssue reports whether the result is a degraded fallback.
func (r *QualityResult) HasSystemIssue() bool {
	for _, issue := range r.AllIssues() {
		if issue.IssueType == IssueTypeSystem {
			return true
		}
	}
	return false
}

// OverallScore applies the fixed dimension weights.
func OverallScore(completeness, consistency, pii, language float64) float64 {
	return completeness*WeightCompleteness +
		consistency*WeightConsistency +
		pii*WeightPII +
		language*WeightLanguage
}

// ClampScore bounds a provider supplied score to [0,100].
func ClampScore(score float64) float64 {
	if score != score { // NaN
		return MinScore
	}
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// NewQualityResult builds a result from four checks and derives the overall
// score and validity against minQualityScore.
func NewQualityResult(
	documentID string,
	completeness, consistency, pii, language CheckResult,
	minQualityScore float64,
	provider, model string,
	checkedAt time.Time,
) *QualityResult {
	overall := OverallScore(completeness.Score, consistency.Score, pii.Score, language.Score)
	return &QualityResult{
		DocumentID:        documentID,
		OverallScore:      overall,
		IsValid:           overall >= minQualityScore,
		CompletenessCheck: completeness,
		ConsistencyCheck:  consistency,
		PIICheck:          pii,
		LanguageCheck:     language,
		CheckedAt:         checkedAt.UTC(),
		ProviderName:      provider,
		ModelName:         model,
	}
}

// NewFallbackResult is the degraded result used whenever validation could not
// complete. Every check fails with score 0 and one system issue.
func NewFallbackResult(documentID, provider, model, cause string, checkedAt time.Time) *QualityResult {
	check := func() CheckResult {
		return CheckResult{
			Passed: false,
			Score:  0,
			Issues: []ValidationIssue{{
				IssueType:   IssueTypeSystem,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("Validation error: %s", cause),
			}},
		}
	}
	return &QualityResult{
		DocumentID:        documentID,
		OverallScore:      0,
		IsValid:           false,
		CompletenessCheck: check(),
		ConsistencyCheck:  check(),
		PIICheck:          check(),
		LanguageCheck:     check(),
		CheckedAt:         checkedAt.UTC(),
		ProviderName:      provider,
		ModelName:         model,
	}
}

func StringPtr(s string) *string {
	return &s
}
