package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESProvider sends via AWS SES v2's SendEmail API, the production
// provider selected when NODE_ENV=production (spec.md §6).
type SESProvider struct {
	client   *sesv2.Client
	fromAddr string
}

func NewSESProvider(ctx context.Context, region, accessKeyID, secretAccessKey, fromAddr string) (*SESProvider, error) {
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION is required")
	}
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESProvider{
		client:   sesv2.NewFromConfig(cfg),
		fromAddr: fromAddr,
	}, nil
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) Send(ctx context.Context, data EmailData) Result {
	from := data.FromEmail
	if from == "" {
		from = p.fromAddr
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses:  []string{data.To},
			CcAddresses:  data.CC,
			BccAddresses: data.BCC,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(data.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(data.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if data.ReplyTo != "" {
		input.ReplyToAddresses = []string{data.ReplyTo}
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("ses send: %w", err)}
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	return Result{Success: true, MessageID: messageID}
}
