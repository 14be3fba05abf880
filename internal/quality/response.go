package quality

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"data-quality/internal/models"
)

// responseSchema constrains the types of the fields a model may return. Every
// field is optional; absent fields take parse defaults.
const responseSchema = `{
  "type": "object",
  "definitions": {
    "dimension": {
      "type": "object",
      "properties": {
        "score":  {"type": "number"},
        "passed": {"type": "boolean"},
        "issues": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "properties": {
    "completeness":     {"$ref": "#/definitions/dimension"},
    "consistency":      {"$ref": "#/definitions/dimension"},
    "language_quality": {"$ref": "#/definitions/dimension"},
    "pii_detection": {
      "type": "object",
      "properties": {
        "score":     {"type": "number"},
        "passed":    {"type": "boolean"},
        "has_pii":   {"type": "boolean"},
        "pii_types": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var responseSchemaLoader = gojsonschema.NewStringLoader(responseSchema)

type dimension struct {
	Score  *float64 `json:"score"`
	Passed *bool    `json:"passed"`
	Issues []string `json:"issues"`
}

type piiDimension struct {
	Score    *float64 `json:"score"`
	HasPII   *bool    `json:"has_pii"`
	PIITypes []string `json:"pii_types"`
}

type llmResponse struct {
	Completeness    dimension    `json:"completeness"`
	Consistency     dimension    `json:"consistency"`
	PIIDetection    piiDimension `json:"pii_detection"`
	LanguageQuality dimension    `json:"language_quality"`
}

// ParseOptions stamps the parsed result.
type ParseOptions struct {
	DocumentID      string
	MinQualityScore float64
	Provider        string
	Model           string
	CheckedAt       time.Time
}

// ParseResponse turns the model's JSON text into a QualityResult. Missing
// sections default to a failed check with score 0, except PII which defaults
// to score 100 with nothing detected. A type mismatch is an error.
func ParseResponse(text string, opts ParseOptions) (*models.QualityResult, error) {
	if err := validateResponse(text); err != nil {
		return nil, err
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, err
	}

	completeness := toCheck(resp.Completeness, models.IssueTypeCompleteness, models.SeverityMedium, "content")
	consistency := toCheck(resp.Consistency, models.IssueTypeConsistency, models.SeverityMedium, "title")
	language := toCheck(resp.LanguageQuality, models.IssueTypeLanguage, models.SeverityLow, "content")

	hasPII := resp.PIIDetection.HasPII != nil && *resp.PIIDetection.HasPII
	pii := models.CheckResult{
		Passed: !hasPII,
		Score:  scoreOr(resp.PIIDetection.Score, models.MaxScore),
		Issues: make([]models.ValidationIssue, 0, len(resp.PIIDetection.PIITypes)),
	}
	for _, piiType := range resp.PIIDetection.PIITypes {
		pii.Issues = append(pii.Issues, models.ValidationIssue{
			IssueType:   models.IssueTypePII,
			Severity:    models.SeverityHigh,
			Description: "Detected " + piiType,
			Field:       models.StringPtr("content"),
		})
	}

	return models.NewQualityResult(
		opts.DocumentID,
		completeness, consistency, pii, language,
		opts.MinQualityScore,
		opts.Provider, opts.Model,
		opts.CheckedAt,
	), nil
}

func toCheck(d dimension, issueType models.IssueType, severity models.Severity, field string) models.CheckResult {
	check := models.CheckResult{
		Passed: d.Passed != nil && *d.Passed,
		Score:  scoreOr(d.Score, 0),
		Issues: make([]models.ValidationIssue, 0, len(d.Issues)),
	}
	for _, issue := range d.Issues {
		check.Issues = append(check.Issues, models.ValidationIssue{
			IssueType:   issueType,
			Severity:    severity,
			Description: issue,
			Field:       models.StringPtr(field),
		})
	}
	return check
}

func scoreOr(score *float64, def float64) float64 {
	if score == nil {
		return def
	}
	return models.ClampScore(*score)
}

func validateResponse(text string) error {
	result, err := gojsonschema.Validate(responseSchemaLoader, gojsonschema.NewStringLoader(text))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
}
