// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"data-quality/internal/common/errors"
)

// SESSender is the part of *ses.Client used here.
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client SESSender
}

func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(cfg)}, nil
}

func NewSESClientWithSender(s SESSender) *SESClient {
	return &SESClient{client: s}
}

func (s *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	return s.client.SendEmail(ctx, input)
}

// EmailNotifier mails BlockedDocument notices through SES.
type EmailNotifier struct {
	client *SESClient
	from   string
	to     []string
}

func NewEmailNotifier(client *SESClient, from string, to []string) *EmailNotifier {
	return &EmailNotifier{client: client, from: from, to: to}
}

func (n *EmailNotifier) NotifyBlocked(ctx context.Context, doc BlockedDocument) error {
	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(n.from),
		Destination: &types.Destination{ToAddresses: n.to},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: awssdk.String("UTF-8"),
				Data:    awssdk.String(fmt.Sprintf("Document %s blocked by quality gate", doc.DocumentID)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Charset: awssdk.String("UTF-8"),
					Data:    awssdk.String(emailBody(doc)),
				},
			},
		},
	})
	if err != nil {
		return errors.NewNotificationFailedError("ses", err)
	}
	return nil
}

func emailBody(doc BlockedDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document %q (%s) was withheld from the quality topic.\n\n", doc.Title, doc.DocumentID)
	fmt.Fprintf(&b, "Object: %s\n", doc.S3Key)
	fmt.Fprintf(&b, "Score: %.1f (minimum %.1f)\n", doc.OverallScore, doc.MinScore)
	fmt.Fprintf(&b, "Checked by: %s/%s\n", doc.Provider, doc.Model)
	if len(doc.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, issue := range doc.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	return b.String()
}
