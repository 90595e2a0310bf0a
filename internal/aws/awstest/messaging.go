package awstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every message sent to it.
type SQS struct {
	mu       sync.Mutex
	Messages []*sqs.SendMessageInput
	Err      error
}

func (s *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Messages = append(s.Messages, params)
	return &sqs.SendMessageOutput{MessageId: strPtr(fmt.Sprintf("msg-%d", len(s.Messages)))}, nil
}

// Bodies returns the message bodies in send order.
func (s *SQS) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, *m.MessageBody)
	}
	return out
}

// SES records raw e-mails.
type SES struct {
	mu   sync.Mutex
	Raw  [][]byte
	Dest [][]string
	Err  error
}

func (s *SES) SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Raw = append(s.Raw, params.RawMessage.Data)
	s.Dest = append(s.Dest, params.Destinations)
	return &ses.SendRawEmailOutput{MessageId: strPtr("ses-message")}, nil
}

// CloudWatch records metric batches.
type CloudWatch struct {
	mu     sync.Mutex
	Inputs []*cloudwatch.PutMetricDataInput
	Err    error
}

func (c *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Inputs = append(c.Inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// MetricNames lists recorded metric names in order.
func (c *CloudWatch) MetricNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, in := range c.Inputs {
		for _, d := range in.MetricData {
			out = append(out, *d.MetricName)
		}
	}
	return out
}
