package enrichdocument

import (
	"context"

	"data-quality/internal/common/aws"
	"data-quality/internal/common/logger"
	"data-quality/internal/models"
	"data-quality/internal/quality"
)

// State is the terminal state of one change record.
type State string

const (
	StateDiscarded State = "DISCARDED"
	StateNoContent State = "NO_CONTENT"
	StateBlocked   State = "BLOCKED"
	StateEnriched  State = "ENRICHED"
)

// Result is what processing one record produced. Event is nil for
// DISCARDED and BLOCKED.
type Result struct {
	State      State
	DocumentID string
	Reason     string
	Event      *models.EnrichedEvent
	Quality    *models.QualityResult
}

type ContentFetcher interface {
	Fetch(ctx context.Context, key string) string
}

type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}, headers map[string]string) error
}

type BlockedNotifier interface {
	NotifyBlocked(ctx context.Context, doc aws.BlockedDocument) error
}

type ServiceDependencies struct {
	Validator quality.Validator
	Fetcher   ContentFetcher
	Notifier  BlockedNotifier // optional
	Logger    logger.Logger
}

// document is the typed view of a change record's row image.
type document struct {
	ID          string
	Title       string
	Status      string
	CreatedBy   string
	ContentType interface{}
	ContentSize int64
	CreatedAt   interface{}
	UpdatedAt   interface{}
	Version     int64
	S3Key       string
}
