package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher emits sync lifecycle events (order synced / order failed) to an SQS
// queue for back-office consumers. Publishing is best-effort: the sync engine
// never blocks or fails an order on event delivery.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL. An empty queue URL
// yields a disabled publisher (Enabled() == false) for fully offline terminals.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// Enabled reports whether events will actually be sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.QueueURL != "" && p.SQS != nil
}

// SendSyncEvent sends one event to SQS. messageBody should be a JSON string.
// attributes are sent as MessageAttributes.
func (p *Publisher) SendSyncEvent(ctx context.Context, messageBody string, attributes map[string]string) error {
	if !p.Enabled() {
		return nil
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: &v,
			}
		}
		input.MessageAttributes = msgAttrs
	}

	_, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
