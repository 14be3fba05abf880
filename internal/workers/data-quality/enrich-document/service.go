package enrichdocument

import (
	"context"
	"time"

	"github.com/spf13/cast"

	"data-quality/internal/common/aws"
	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
	"data-quality/internal/models"
	"data-quality/internal/quality"
)

const noContentDescription = "No content available"

type Service struct {
	config    *Config
	validator quality.Validator
	fetcher   ContentFetcher
	notifier  BlockedNotifier
	logger    logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:    config,
		validator: deps.Validator,
		fetcher:   deps.Fetcher,
		notifier:  deps.Notifier,
		logger:    log,
	}
}

// Process runs one change record to a terminal state. It never returns an
// error: unexpected failures, panics included, end in DISCARDED.
func (s *Service) Process(ctx context.Context, event *models.ChangeEvent) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			stdErr := errors.RecoverPanic(r)
			s.logger.Error("error processing document event", map[string]interface{}{
				"errorCode": stdErr.Code,
				"details":   stdErr.Details,
			})
			result = &Result{State: StateDiscarded, Reason: stdErr.Details}
		}
	}()

	if event == nil {
		return &Result{State: StateDiscarded, Reason: "empty record"}
	}

	switch event.Op {
	case models.OpSnapshot, models.OpDelete:
		s.logger.Debug("skipping operation", map[string]interface{}{"op": event.Op})
		return &Result{State: StateDiscarded, Reason: "skipped operation " + event.Op}
	}

	doc := documentFromRow(event.After)
	log := s.logger.With(map[string]interface{}{"documentId": doc.ID})

	if doc.S3Key == "" {
		log.Warn("document has no S3 key, skipping", nil)
		return &Result{State: StateDiscarded, DocumentID: doc.ID, Reason: "missing s3_key"}
	}

	log.Info("fetching content", map[string]interface{}{"s3Key": doc.S3Key})
	content := s.fetcher.Fetch(ctx, doc.S3Key)
	if content == "" {
		log.Warn("no content found for document", nil)
		return &Result{
			State:      StateNoContent,
			DocumentID: doc.ID,
			Event:      noContentEvent(doc),
		}
	}

	log.Info("validating document", map[string]interface{}{"provider": s.validator.Name()})
	verdict := s.validator.Validate(ctx, doc.Title, content, doc.ID)

	if s.config.BlockLowQuality && !verdict.IsValid {
		log.Warn("blocking low-quality document", map[string]interface{}{
			"overallScore": verdict.OverallScore,
		})
		s.notifyBlocked(ctx, doc, verdict)
		return &Result{
			State:      StateBlocked,
			DocumentID: doc.ID,
			Quality:    verdict,
		}
	}

	log.Info("document validated", map[string]interface{}{
		"overallScore": verdict.OverallScore,
		"isValid":      verdict.IsValid,
		"issues":       len(verdict.AllIssues()),
	})

	return &Result{
		State:      StateEnriched,
		DocumentID: doc.ID,
		Event:      enrichedEvent(doc, verdict),
		Quality:    verdict,
	}
}

func (s *Service) notifyBlocked(ctx context.Context, doc document, verdict *models.QualityResult) {
	if s.notifier == nil {
		return
	}

	issues := verdict.AllIssues()
	descriptions := make([]string, 0, len(issues))
	for _, issue := range issues {
		descriptions = append(descriptions, issue.Description)
	}

	err := s.notifier.NotifyBlocked(ctx, aws.BlockedDocument{
		DocumentID:   doc.ID,
		Title:        doc.Title,
		S3Key:        doc.S3Key,
		OverallScore: verdict.OverallScore,
		MinScore:     s.config.MinQualityScore,
		Issues:       descriptions,
		Provider:     verdict.ProviderName,
		Model:        verdict.ModelName,
	})
	if err != nil {
		s.logger.Warn("blocked-document notice failed", map[string]interface{}{
			"documentId": doc.ID,
			"error":      err,
		})
	}
}

// documentFromRow coerces the loosely typed row image. Missing or null
// fields take the documented defaults.
func documentFromRow(row map[string]interface{}) document {
	doc := document{
		ID:          cast.ToString(row["id"]),
		Title:       cast.ToString(row["title"]),
		Status:      "created",
		CreatedBy:   cast.ToString(row["created_by"]),
		ContentType: row["content_type"],
		CreatedAt:   row["created_at"],
		UpdatedAt:   row["updated_at"],
		Version:     1,
		S3Key:       cast.ToString(row["s3_key"]),
	}
	if v, ok := row["status"]; ok && v != nil {
		doc.Status = cast.ToString(v)
	}
	if v, ok := row["content_size"]; ok && v != nil {
		doc.ContentSize = cast.ToInt64(v)
	}
	if v, ok := row["version"]; ok && v != nil {
		if n, err := cast.ToInt64E(v); err == nil {
			doc.Version = n
		}
	}
	return doc
}

func baseEvent(doc document) *models.EnrichedEvent {
	return &models.EnrichedEvent{
		ID:          doc.ID,
		Title:       doc.Title,
		Status:      doc.Status,
		CreatedBy:   doc.CreatedBy,
		ContentType: doc.ContentType,
		ContentSize: doc.ContentSize,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		Version:     doc.Version,
		S3Key:       doc.S3Key,
	}
}

func noContentEvent(doc document) *models.EnrichedEvent {
	ev := baseEvent(doc)
	ev.QualityScore = 0
	ev.QualityIsValid = false
	ev.QualityIssues = []models.QualityIssue{{
		Type:        models.IssueTypeCompleteness,
		Severity:    models.SeverityHigh,
		Description: noContentDescription,
		Field:       models.StringPtr("content"),
	}}
	ev.HasPII = false
	ev.QualityChecks = models.QualityChecks{
		Completeness:    0,
		Consistency:     0,
		PIIDetection:    models.MaxScore,
		LanguageQuality: 0,
	}
	return ev
}

func enrichedEvent(doc document, verdict *models.QualityResult) *models.EnrichedEvent {
	ev := baseEvent(doc)
	ev.QualityScore = verdict.OverallScore
	ev.QualityIsValid = verdict.IsValid
	ev.HasPII = verdict.HasPII()

	issues := verdict.AllIssues()
	ev.QualityIssues = make([]models.QualityIssue, 0, len(issues))
	for _, issue := range issues {
		ev.QualityIssues = append(ev.QualityIssues, models.QualityIssue{
			Type:        issue.IssueType,
			Severity:    issue.Severity,
			Description: issue.Description,
			Field:       issue.Field,
		})
	}

	ev.QualityChecks = models.QualityChecks{
		Completeness:    verdict.CompletenessCheck.Score,
		Consistency:     verdict.ConsistencyCheck.Score,
		PIIDetection:    verdict.PIICheck.Score,
		LanguageQuality: verdict.LanguageCheck.Score,
	}
	ev.QualityCheckedAt = verdict.CheckedAt.UTC().Format(time.RFC3339Nano)
	ev.QualityProvider = verdict.ProviderName
	ev.QualityModel = verdict.ModelName
	return ev
}
