package delivery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"notify-dispatch/internal/common/logger"
)

// SNSAPI is the subset of the SNS client used here, extracted for mocking.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSDeliverer publishes messages to an SNS topic, for deployments that fan
// out notifications through a topic subscription instead of direct email.
type SNSDeliverer struct {
	client   SNSAPI
	topicARN string
	logger   logger.Logger
}

// NewSNSDeliverer creates an SNS-backed Deliverer publishing to topicARN.
func NewSNSDeliverer(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSDeliverer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSDeliverer{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"provider": "sns"}),
	}, nil
}

// NewSNSDelivererWithClient wires an existing client, for tests.
func NewSNSDelivererWithClient(client SNSAPI, topicARN string, log logger.Logger) *SNSDeliverer {
	return &SNSDeliverer{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"provider": "sns"}),
	}
}

func (d *SNSDeliverer) Deliver(ctx context.Context, msg Message) error {
	body := fmt.Sprintf("To: %s\n\n%s", msg.To, msg.Body)

	_, err := d.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.topicARN),
		Subject:  aws.String(msg.Subject),
		Message:  aws.String(body),
	})
	return err
}
