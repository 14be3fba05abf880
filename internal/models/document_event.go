// internal/models/document_event.go
package models

// CDC operation codes as emitted by the change log.
const (
	OpCreate   = "c"
	OpUpdate   = "u"
	OpSnapshot = "r"
	OpDelete   = "d"
)

// ChangeEvent is one record of the documents change log. After holds the row
// image as loosely typed JSON.
type ChangeEvent struct {
	Op    string                 `json:"op"`
	After map[string]interface{} `json:"after"`
}

// QualityIssue is the flattened issue shape carried by enriched events.
type QualityIssue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Field       *string   `json:"field"`
}

type QualityChecks struct {
	Completeness    float64 `json:"completeness"`
	Consistency     float64 `json:"consistency"`
	PIIDetection    float64 `json:"pii_detection"`
	LanguageQuality float64 `json:"language_quality"`
}

// EnrichedEvent is published to the quality topic. The provider, model and
// timestamp fields are absent on events built without a validation pass.
type EnrichedEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Status      string      `json:"status"`
	CreatedBy   string      `json:"created_by"`
	ContentType interface{} `json:"content_type"`
	ContentSize int64       `json:"content_size"`
	CreatedAt   interface{} `json:"created_at"`
	UpdatedAt   interface{} `json:"updated_at"`
	Version     int64       `json:"version"`
	S3Key       string      `json:"s3_key"`

	QualityScore     float64        `json:"quality_score"`
	QualityIsValid   bool           `json:"quality_is_valid"`
	QualityIssues    []QualityIssue `json:"quality_issues"`
	HasPII           bool           `json:"has_pii"`
	QualityChecks    QualityChecks  `json:"quality_checks"`
	QualityCheckedAt string         `json:"quality_checked_at,omitempty"`
	QualityProvider  string         `json:"quality_provider,omitempty"`
	QualityModel     string         `json:"quality_model,omitempty"`
}
