// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"data-quality/internal/common/errors"
)

// SNSPublisher is the part of *sns.Client used here.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client SNSPublisher
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg)}, nil
}

func NewSNSClientWithPublisher(p SNSPublisher) *SNSClient {
	return &SNSClient{client: p}
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}

// BlockedDocument is the notice sent when a document is withheld from the
// quality topic.
type BlockedDocument struct {
	DocumentID   string   `json:"document_id"`
	Title        string   `json:"title"`
	S3Key        string   `json:"s3_key"`
	OverallScore float64  `json:"quality_score"`
	MinScore     float64  `json:"min_quality_score"`
	Issues       []string `json:"issues"`
	Provider     string   `json:"quality_provider"`
	Model        string   `json:"quality_model"`
}

// Notifier delivers BlockedDocument notices over one channel.
type Notifier interface {
	NotifyBlocked(ctx context.Context, doc BlockedDocument) error
}

// Notifiers sends each notice to every channel. A failing channel does not
// stop the others; their errors are joined.
type Notifiers []Notifier

func (ns Notifiers) NotifyBlocked(ctx context.Context, doc BlockedDocument) error {
	var errs []error
	for _, n := range ns {
		if err := n.NotifyBlocked(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// BlockedNotifier publishes BlockedDocument notices to one SNS topic.
type BlockedNotifier struct {
	client   *SNSClient
	topicARN string
}

func NewBlockedNotifier(client *SNSClient, topicARN string) *BlockedNotifier {
	return &BlockedNotifier{client: client, topicARN: topicARN}
}

func (n *BlockedNotifier) NotifyBlocked(ctx context.Context, doc BlockedDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewNotificationFailedError("sns", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Subject:  awssdk.String(fmt.Sprintf("Document %s blocked by quality gate", doc.DocumentID)),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"document_id": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(doc.DocumentID),
			},
		},
	})
	if err != nil {
		return errors.NewNotificationFailedError("sns", err)
	}
	return nil
}
