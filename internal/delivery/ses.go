package delivery

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"notify-dispatch/internal/common/logger"
)

// SESAPI is the subset of the SES client used here, extracted for mocking.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESDeliverer sends messages through AWS SES.
type SESDeliverer struct {
	client SESAPI
	logger logger.Logger
}

// NewSESDeliverer creates an SES-backed Deliverer for the given region.
func NewSESDeliverer(ctx context.Context, region string, log logger.Logger) (*SESDeliverer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESDeliverer{
		client: ses.NewFromConfig(cfg),
		logger: log.WithFields(map[string]interface{}{"provider": "ses"}),
	}, nil
}

// NewSESDelivererWithClient wires an existing client, for tests.
func NewSESDelivererWithClient(client SESAPI, log logger.Logger) *SESDeliverer {
	return &SESDeliverer{
		client: client,
		logger: log.WithFields(map[string]interface{}{"provider": "ses"}),
	}
}

func (d *SESDeliverer) Deliver(ctx context.Context, msg Message) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses:  []string{msg.To},
			CcAddresses:  splitAddresses(msg.CC),
			BccAddresses: splitAddresses(msg.BCC),
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(msg.From),
	}

	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	_, err := d.client.SendEmail(ctx, input)
	return err
}

func splitAddresses(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
